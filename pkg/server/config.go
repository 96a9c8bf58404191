package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config wraps the options for a run of the server.
type Config struct {
	// Listen is the address the HTTP server binds to, e.g. ":8080".
	Listen string `yaml:"listen"`

	// PublicKeyPath and PrivateKeyPath point at the PEM-encoded RSA key pair
	// used for key transport. The public key is published to initiators; the
	// private key never leaves this process.
	PublicKeyPath  string `yaml:"public-key"`
	PrivateKeyPath string `yaml:"private-key"`

	// Disabled turns the envelope middleware off at the boundary, serving the
	// API in the clear. The protocol core is unaware of this flag.
	Disabled bool `yaml:"disabled,omitempty"`
}

// ParseConfig reads config bytes into a Config and validates it.
func ParseConfig(data []byte) (Config, error) {
	var config Config
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return config, errors.WithStack(err)
	}

	if config.Listen == "" {
		config.Listen = ":8080"
	}

	err = config.validate()
	if err != nil {
		return config, err
	}

	return config, nil
}

// ParseConfigFile reads and validates the config file at path.
func ParseConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	return ParseConfig(data)
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.PublicKeyPath == "" {
		result = multierror.Append(result, fmt.Errorf("public-key is required"))
	}
	if c.PrivateKeyPath == "" {
		result = multierror.Append(result, fmt.Errorf("private-key is required"))
	}

	return result.ErrorOrNil()
}

// Dump returns the config as YAML, for logging at startup.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal config")
	}
	return string(data), nil
}
