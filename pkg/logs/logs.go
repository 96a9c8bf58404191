// Package logs configures the global logrus logger from command line flags.
// Errors and warnings go to stderr and everything else to stdout, because
// that is how some cloud logging systems assign a severity in the UI.
package logs

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var (
	logLevel  string
	logFormat string
)

// AddFlags adds log related flags to the supplied flag set.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&logLevel, "log-level", "info", "Log level. One of: trace, debug, info, warn, error.")
	fs.StringVar(&logFormat, "log-format", "text", `Sets the log format. Permitted formats: "json", "text".`)
}

// Initialize applies the flag values to the global logger.
func Initialize() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("error in logging configuration: %s", err)
	}
	logrus.SetLevel(level)

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("error in logging configuration: unknown format %q", logFormat)
	}

	logrus.SetOutput(io.Discard)
	logrus.AddHook(&splitStreamHook{
		stdout: os.Stdout,
		stderr: os.Stderr,
	})

	return nil
}

// splitStreamHook writes warnings and errors to stderr and everything else to
// stdout.
type splitStreamHook struct {
	stdout io.Writer
	stderr io.Writer
}

func (h *splitStreamHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *splitStreamHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}

	out := h.stdout
	if entry.Level <= logrus.WarnLevel {
		out = h.stderr
	}

	_, err = out.Write(line)
	return err
}
