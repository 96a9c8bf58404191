package envelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jetstack/sealx/internal/aesgcm"
)

// ErrMalformed is returned by the decode functions for any envelope that is
// missing a required field or carries one that does not parse. It is always
// raised before any cryptographic operation sees the input.
var ErrMalformed = errors.New("malformed envelope")

// fieldEncodings is the ordered list of accepted binary-to-text encodings.
// Standard base64 is what this side emits; URL-safe base64 is tolerated on
// decode because some upstream agents produce it. First success wins.
var fieldEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
}

// EncodeRequest writes the request-leg header fields of env to h and returns
// the encoded body.
func EncodeRequest(env *Envelope, h http.Header) []byte {
	h.Set(HeaderEncrypt, EncryptFlag)
	h.Set(HeaderExchangeID, env.ExchangeID)
	h.Set(HeaderKey, base64.StdEncoding.EncodeToString(env.WrappedKey))
	h.Set(HeaderNonce, base64.StdEncoding.EncodeToString(env.Nonce))
	h.Set(HeaderTag, base64.StdEncoding.EncodeToString(env.Tag))

	return []byte(base64.StdEncoding.EncodeToString(env.Ciphertext))
}

// EncodeResponse writes the response-leg header fields of env to h and returns
// the encoded body. The wrapped key is never present on this leg.
func EncodeResponse(env *Envelope, h http.Header) []byte {
	h.Set(HeaderEncrypt, EncryptFlag)
	h.Set(HeaderExchangeID, env.ExchangeID)
	h.Set(HeaderResponseNonce, base64.StdEncoding.EncodeToString(env.Nonce))
	h.Set(HeaderResponseTag, base64.StdEncoding.EncodeToString(env.Tag))

	return []byte(base64.StdEncoding.EncodeToString(env.Ciphertext))
}

// DecodeRequest parses a request-leg envelope from header fields and body.
func DecodeRequest(h http.Header, body []byte) (*Envelope, error) {
	exchangeID, err := textField(h, HeaderExchangeID)
	if err != nil {
		return nil, err
	}

	wrappedKey, err := binaryField(h, HeaderKey)
	if err != nil {
		return nil, err
	}

	nonce, err := nonceField(h, HeaderNonce)
	if err != nil {
		return nil, err
	}

	tag, err := tagField(h, HeaderTag)
	if err != nil {
		return nil, err
	}

	ciphertext, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ExchangeID: exchangeID,
		WrappedKey: wrappedKey,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
	}, nil
}

// DecodeResponse parses a response-leg envelope from header fields and body.
func DecodeResponse(h http.Header, body []byte) (*Envelope, error) {
	exchangeID, err := textField(h, HeaderExchangeID)
	if err != nil {
		return nil, err
	}

	nonce, err := nonceField(h, HeaderResponseNonce)
	if err != nil {
		return nil, err
	}

	tag, err := tagField(h, HeaderResponseTag)
	if err != nil {
		return nil, err
	}

	ciphertext, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ExchangeID: exchangeID,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
	}, nil
}

func textField(h http.Header, name string) (string, error) {
	value := strings.TrimSpace(h.Get(name))
	if value == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}

	return value, nil
}

func binaryField(h http.Header, name string) ([]byte, error) {
	value, err := textField(h, name)
	if err != nil {
		return nil, err
	}

	return decodeBase64(name, value)
}

func nonceField(h http.Header, name string) ([]byte, error) {
	nonce, err := binaryField(h, name)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aesgcm.NonceSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, expected %d", ErrMalformed, name, len(nonce), aesgcm.NonceSize)
	}

	return nonce, nil
}

func tagField(h http.Header, name string) ([]byte, error) {
	tag, err := binaryField(h, name)
	if err != nil {
		return nil, err
	}

	if len(tag) != aesgcm.TagSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, expected %d", ErrMalformed, name, len(tag), aesgcm.TagSize)
	}

	return tag, nil
}

func decodeBody(body []byte) ([]byte, error) {
	text := strings.TrimSpace(string(body))

	// Some upstream serializers deliver the body as a JSON string; strip the
	// quoting before decoding.
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) >= 2 {
		text = strings.ReplaceAll(text[1:len(text)-1], `\"`, `"`)
	}

	if text == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	return decodeBase64("body", text)
}

func decodeBase64(name, value string) ([]byte, error) {
	for _, enc := range fieldEncodings {
		if decoded, err := enc.DecodeString(value); err == nil {
			return decoded, nil
		}
	}

	return nil, fmt.Errorf("%w: %s is not valid base64", ErrMalformed, name)
}
