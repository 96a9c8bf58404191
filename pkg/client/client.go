// Package client implements the initiator side of the envelope protocol over
// HTTP: it bootstraps the responder's public key, seals outgoing JSON bodies,
// and opens the sealed responses it gets back.
package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jetstack/sealx/internal/envelope"
	"github.com/jetstack/sealx/internal/exchange"
	"github.com/jetstack/sealx/internal/keywrap"
)

// PublicKeyPath is the well-known endpoint publishing the responder's RSA
// public key as PEM.
const PublicKeyPath = "/api/crypto/public-key"

// Client posts encrypted exchanges to a single server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	initiator  *exchange.Initiator
}

// New creates a Client for the server at baseURL. The responder's public key
// is fetched from the server before the first exchange, retrying with
// exponential backoff until maxWait elapses.
func New(ctx context.Context, baseURL string, store *exchange.Store, maxWait time.Duration) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	publicKey, err := c.fetchPublicKey(ctx, maxWait)
	if err != nil {
		return nil, err
	}

	c.initiator, err = exchange.NewInitiator(publicKey, store)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// fetchPublicKey retrieves and parses the responder's public key, retrying
// transient failures. A key that fails to parse is not retried.
func (c *Client) fetchPublicKey(ctx context.Context, maxWait time.Duration) (*rsa.PublicKey, error) {
	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 10 * time.Second
	backOff.MaxElapsedTime = maxWait

	var publicKey *rsa.PublicKey
	fetch := func() error {
		var err error
		publicKey, err = c.doFetchPublicKey(ctx)
		return err
	}
	err := backoff.RetryNotify(fetch, backoff.WithContext(backOff, ctx), func(err error, t time.Duration) {
		logrus.WithError(err).Warnf("failed to fetch public key, retrying in %v", t)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch server public key")
	}

	return publicKey, nil
}

func (c *Client) doFetchPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PublicKeyPath, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public key endpoint returned %s", resp.Status)
	}

	pemBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	publicKey, err := keywrap.LoadPublicKeyFromPEM(pemBytes)
	if err != nil {
		// The server answered with something that is not a key. Retrying
		// will not help.
		return nil, backoff.Permanent(err)
	}

	return publicKey, nil
}

// Post runs one full exchange: it seals payload, posts it to path, and
// returns the opened response plaintext. A structured error answer from the
// server is returned as a *ServerError.
func (c *Client) Post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	env, err := c.initiator.Seal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	body := envelope.EncodeRequest(env, req.Header)
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "text/plain")

	logrus.WithFields(logrus.Fields{
		"exchange_id": env.ExchangeID,
		"path":        path,
	}).Debug("posting encrypted exchange")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// A response without the flag is not ciphertext. It carries the server's
	// structured error payload.
	if !strings.EqualFold(resp.Header.Get(envelope.HeaderEncrypt), envelope.EncryptFlag) {
		return nil, parseServerError(resp.StatusCode, raw)
	}

	respEnv, err := envelope.DecodeResponse(resp.Header, raw)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.initiator.Open(respEnv)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return plaintext, fmt.Errorf("server returned %s", resp.Status)
	}

	return plaintext, nil
}
