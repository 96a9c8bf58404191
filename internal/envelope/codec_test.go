package envelope_test

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetstack/sealx/internal/envelope"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)

	return b
}

func requestEnvelope(t *testing.T) *envelope.Envelope {
	t.Helper()

	return &envelope.Envelope{
		ExchangeID: "7f9c2ba4-e88f-11eb-9a03-0242ac130003",
		WrappedKey: randomBytes(t, 256),
		Nonce:      randomBytes(t, 12),
		Tag:        randomBytes(t, 16),
		Ciphertext: randomBytes(t, 100),
	}
}

func TestEncodeDecodeRequest_RoundTrip(t *testing.T) {
	env := requestEnvelope(t)

	h := http.Header{}
	body := envelope.EncodeRequest(env, h)

	require.Equal(t, "true", h.Get(envelope.HeaderEncrypt))
	require.Equal(t, env.ExchangeID, h.Get(envelope.HeaderExchangeID))

	decoded, err := envelope.DecodeRequest(h, body)
	require.NoError(t, err)
	require.Equal(t, env, decoded)
}

func TestEncodeDecodeResponse_RoundTrip(t *testing.T) {
	env := &envelope.Envelope{
		ExchangeID: "abc",
		Nonce:      randomBytes(t, 12),
		Tag:        randomBytes(t, 16),
		Ciphertext: randomBytes(t, 64),
	}

	h := http.Header{}
	body := envelope.EncodeResponse(env, h)

	require.Empty(t, h.Get(envelope.HeaderKey), "response leg must never carry a wrapped key")

	decoded, err := envelope.DecodeResponse(h, body)
	require.NoError(t, err)
	require.Equal(t, env, decoded)
}

func TestDecodeRequest_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		remove string
	}{
		{"missing exchange id", envelope.HeaderExchangeID},
		{"missing wrapped key", envelope.HeaderKey},
		{"missing nonce", envelope.HeaderNonce},
		{"missing tag", envelope.HeaderTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			body := envelope.EncodeRequest(requestEnvelope(t), h)
			h.Del(tt.remove)

			_, err := envelope.DecodeRequest(h, body)
			require.ErrorIs(t, err, envelope.ErrMalformed)
			require.Contains(t, err.Error(), tt.remove)
		})
	}

	t.Run("empty body", func(t *testing.T) {
		h := http.Header{}
		envelope.EncodeRequest(requestEnvelope(t), h)

		_, err := envelope.DecodeRequest(h, nil)
		require.ErrorIs(t, err, envelope.ErrMalformed)
		require.Contains(t, err.Error(), "empty body")
	})
}

func TestDecodeRequest_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"nonce not base64", envelope.HeaderNonce, "!!not-base64!!"},
		{"nonce wrong length", envelope.HeaderNonce, base64.StdEncoding.EncodeToString(make([]byte, 16))},
		{"tag wrong length", envelope.HeaderTag, base64.StdEncoding.EncodeToString(make([]byte, 12))},
		{"key not base64", envelope.HeaderKey, "%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			body := envelope.EncodeRequest(requestEnvelope(t), h)
			h.Set(tt.header, tt.value)

			_, err := envelope.DecodeRequest(h, body)
			require.ErrorIs(t, err, envelope.ErrMalformed)
		})
	}
}

func TestDecode_AcceptsURLSafeBase64(t *testing.T) {
	env := requestEnvelope(t)

	h := http.Header{}
	envelope.EncodeRequest(env, h)

	// Re-encode every binary field with the URL-safe alphabet.
	h.Set(envelope.HeaderKey, base64.URLEncoding.EncodeToString(env.WrappedKey))
	h.Set(envelope.HeaderNonce, base64.URLEncoding.EncodeToString(env.Nonce))
	h.Set(envelope.HeaderTag, base64.URLEncoding.EncodeToString(env.Tag))
	body := []byte(base64.URLEncoding.EncodeToString(env.Ciphertext))

	decoded, err := envelope.DecodeRequest(h, body)
	require.NoError(t, err)
	require.Equal(t, env, decoded)
}

func TestDecode_JSONQuotedBody(t *testing.T) {
	env := requestEnvelope(t)

	h := http.Header{}
	body := envelope.EncodeRequest(env, h)

	quoted := append([]byte(`"`), body...)
	quoted = append(quoted, '"')

	decoded, err := envelope.DecodeRequest(h, quoted)
	require.NoError(t, err)
	require.Equal(t, env.Ciphertext, decoded.Ciphertext)
}

func TestDecodeResponse_MissingResponseFields(t *testing.T) {
	h := http.Header{}
	env := &envelope.Envelope{
		ExchangeID: "abc",
		Nonce:      randomBytes(t, 12),
		Tag:        randomBytes(t, 16),
		Ciphertext: randomBytes(t, 8),
	}
	body := envelope.EncodeResponse(env, h)
	h.Del(envelope.HeaderResponseTag)

	_, err := envelope.DecodeResponse(h, body)
	require.ErrorIs(t, err, envelope.ErrMalformed)
	require.Contains(t, err.Error(), envelope.HeaderResponseTag)
}
