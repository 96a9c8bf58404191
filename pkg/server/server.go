package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jetstack/sealx/internal/exchange"
	"github.com/jetstack/sealx/internal/keywrap"
)

// New assembles an http.Server serving the demo API behind the envelope
// middleware, keyed from the PEM files named in config.
func New(config Config) (*http.Server, error) {
	privateKey, err := keywrap.LoadPrivateKeyFromPEMFile(config.PrivateKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load private key")
	}

	publicKey, err := keywrap.LoadPublicKeyFromPEMFile(config.PublicKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load public key")
	}

	responder, err := exchange.NewResponder(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create responder")
	}

	api, err := DemoAPI(publicKey)
	if err != nil {
		return nil, err
	}

	handler := api
	if config.Disabled {
		logrus.Warn("envelope encryption is disabled, serving in the clear")
	} else {
		handler = Middleware(responder)(api)
	}

	return &http.Server{
		Addr:    config.Listen,
		Handler: handler,
	}, nil
}
