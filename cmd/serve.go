package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jetstack/sealx/pkg/server"
)

var (
	serveConfigPath string
	serveConfig     server.Config
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the demo server behind the envelope middleware",
	Long: `Serves the demo API with request and response bodies protected by
the envelope middleware. Clients fetch the RSA public key from
/api/crypto/public-key and encrypt subsequent exchanges with it.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.PersistentFlags().StringVarP(
		&serveConfigPath,
		"config",
		"c",
		"",
		"Config file location. Flags override values from the file.",
	)
	serveCmd.PersistentFlags().StringVarP(
		&serveConfig.Listen,
		"listen",
		"l",
		"",
		"Address where to listen.",
	)
	serveCmd.PersistentFlags().StringVar(
		&serveConfig.PublicKeyPath,
		"public-key",
		"",
		"Path to the PEM encoded RSA public key.",
	)
	serveCmd.PersistentFlags().StringVar(
		&serveConfig.PrivateKeyPath,
		"private-key",
		"",
		"Path to the PEM encoded RSA private key.",
	)
	serveCmd.PersistentFlags().BoolVar(
		&serveConfig.Disabled,
		"disabled",
		false,
		"Serve the API in the clear, without the envelope middleware.",
	)
}

func serve(cmd *cobra.Command, args []string) error {
	config, err := loadServeConfig()
	if err != nil {
		return err
	}

	dump, err := config.Dump()
	if err != nil {
		return err
	}
	logrus.Debugf("running with config:\n%s", dump)

	srv, err := server.New(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("listen", config.Listen).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// loadServeConfig merges the config file, if any, with the flag overrides.
func loadServeConfig() (server.Config, error) {
	config := serveConfig

	if serveConfigPath != "" {
		fileConfig, err := server.ParseConfigFile(serveConfigPath)
		if err != nil {
			return server.Config{}, err
		}
		if config.Listen == "" {
			config.Listen = fileConfig.Listen
		}
		if config.PublicKeyPath == "" {
			config.PublicKeyPath = fileConfig.PublicKeyPath
		}
		if config.PrivateKeyPath == "" {
			config.PrivateKeyPath = fileConfig.PrivateKeyPath
		}
		if !config.Disabled {
			config.Disabled = fileConfig.Disabled
		}
		return config, nil
	}

	if config.Listen == "" {
		config.Listen = ":8080"
	}

	return config, nil
}
