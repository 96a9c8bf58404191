// Package server implements the responder-side transport boundary of the
// envelope scheme: an HTTP middleware that decrypts request bodies before the
// handler runs and encrypts response bodies after it returns, plus the demo
// API and its configuration. Handlers behind the middleware see plain JSON and
// stay unaware of encryption.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jetstack/sealx/internal/aesgcm"
	"github.com/jetstack/sealx/internal/envelope"
	"github.com/jetstack/sealx/internal/exchange"
	"github.com/jetstack/sealx/internal/keywrap"
)

// exposedHeaders lets browser-based initiators read the envelope response
// headers across origins.
var exposedHeaders = strings.Join([]string{
	envelope.HeaderEncrypt,
	envelope.HeaderExchangeID,
	envelope.HeaderResponseNonce,
	envelope.HeaderResponseTag,
}, ", ")

// Middleware returns an http.Handler middleware running the envelope protocol
// around next.
//
// Requests without the X-Encrypt flag bypass the protocol entirely. For
// encrypted requests the middleware decodes and opens the request envelope,
// substitutes the decrypted JSON body, captures the handler's response, and
// seals it under the same exchange key with a fresh nonce. Every failure is
// written as a structured error payload rather than an aborted connection, and
// the per-exchange session is closed on every exit path, including handler
// panics.
func Middleware(responder *exchange.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.EqualFold(r.Header.Get(envelope.HeaderEncrypt), envelope.EncryptFlag) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeEnvelopeError(w, err)
				return
			}

			env, err := envelope.DecodeRequest(r.Header, body)
			if err != nil {
				writeEnvelopeError(w, err)
				return
			}

			plaintext, sess, err := responder.Open(env)
			if err != nil {
				// Fail closed: the handler never sees a request that did not
				// authenticate.
				writeEnvelopeError(w, err)
				return
			}
			defer sess.Close()

			// Hand the handler the decrypted body. The payload under the
			// envelope is JSON, so the content type is rewritten accordingly.
			inner := r.Clone(r.Context())
			inner.Body = io.NopCloser(bytes.NewReader(plaintext))
			inner.ContentLength = int64(len(plaintext))
			inner.Header.Set("Content-Type", "application/json; charset=utf-8")

			rec := newResponseRecorder()
			next.ServeHTTP(rec, inner)

			out, err := responder.Seal(sess, rec.body.Bytes())
			if err != nil {
				// The response cannot be encrypted. Degrade to a structured
				// error on the same channel, unencrypted and without the
				// X-Encrypt flag so the initiator does not treat the body as
				// ciphertext.
				logrus.WithError(err).WithField("exchange_id", sess.ExchangeID()).
					Error("failed to seal response envelope")
				writeErrorPayload(w, http.StatusInternalServerError,
					envelope.NewErrorPayload(envelope.CodeEncryptError, "failed to encrypt response"))
				return
			}

			copyHandlerHeaders(w.Header(), rec.header)
			encoded := envelope.EncodeResponse(out, w.Header())
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
			w.WriteHeader(rec.status)
			_, _ = w.Write(encoded)
		})
	}
}

// reservedHeaders are owned by the envelope protocol and cannot be set by a
// handler: Content-Type and Content-Length describe the sealed wire body, and
// the envelope fields are written by the codec.
var reservedHeaders = map[string]bool{
	"Content-Type":   true,
	"Content-Length": true,
	http.CanonicalHeaderKey(envelope.HeaderEncrypt):       true,
	http.CanonicalHeaderKey(envelope.HeaderExchangeID):    true,
	http.CanonicalHeaderKey(envelope.HeaderKey):           true,
	http.CanonicalHeaderKey(envelope.HeaderNonce):         true,
	http.CanonicalHeaderKey(envelope.HeaderTag):           true,
	http.CanonicalHeaderKey(envelope.HeaderResponseNonce): true,
	http.CanonicalHeaderKey(envelope.HeaderResponseTag):   true,
}

// copyHandlerHeaders forwards the handler's response headers to the outgoing
// response, skipping the protocol-owned ones.
func copyHandlerHeaders(dst, src http.Header) {
	for name, values := range src {
		if reservedHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}

// responseRecorder buffers the handler's response so it can be sealed after
// the handler returns.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header: http.Header{},
		status: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
}

// writeEnvelopeError maps an envelope failure to its boundary error code and
// writes the structured payload. The exchange terminates; the process does not.
func writeEnvelopeError(w http.ResponseWriter, err error) {
	code, status := codeForError(err)

	logrus.WithError(err).WithField("code", code).Warn("rejecting encrypted exchange")

	writeErrorPayload(w, status, envelope.NewErrorPayload(code, err.Error()))
}

func writeErrorPayload(w http.ResponseWriter, status int, payload envelope.ErrorPayload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// codeForError assigns each failure in the envelope taxonomy its
// externally-visible error code and HTTP status. Anything outside the
// taxonomy is an internal error.
func codeForError(err error) (string, int) {
	switch {
	case errors.Is(err, envelope.ErrMalformed):
		return envelope.CodeMalformedEnvelope, http.StatusBadRequest
	case errors.Is(err, keywrap.ErrUnwrap):
		return envelope.CodeUnwrapFailure, http.StatusBadRequest
	case errors.Is(err, aesgcm.ErrAuthentication):
		return envelope.CodeAuthFailure, http.StatusBadRequest
	case errors.Is(err, exchange.ErrUnknownExchange):
		return envelope.CodeUnknownExchange, http.StatusBadRequest
	case errors.Is(err, exchange.ErrDuplicateExchange):
		return envelope.CodeDuplicateExchange, http.StatusBadRequest
	default:
		return envelope.CodeInternalError, http.StatusInternalServerError
	}
}
