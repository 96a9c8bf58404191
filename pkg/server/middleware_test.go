package server_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetstack/sealx/internal/envelope"
	"github.com/jetstack/sealx/internal/exchange"
	"github.com/jetstack/sealx/pkg/server"
)

func testSetup(t *testing.T) (*exchange.Initiator, *httptest.Server) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	responder, err := exchange.NewResponder(key)
	require.NoError(t, err)

	api, err := server.DemoAPI(&key.PublicKey)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Middleware(responder)(api))
	t.Cleanup(ts.Close)

	initiator, err := exchange.NewInitiator(&key.PublicKey, exchange.NewStore(0, 0))
	require.NoError(t, err)

	return initiator, ts
}

// postSealed runs the initiator side of one exchange against the test server
// and returns the raw HTTP response.
func postSealed(t *testing.T, initiator *exchange.Initiator, url string, payload []byte) *http.Response {
	t.Helper()

	env, err := initiator.Seal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	body := envelope.EncodeRequest(env, req.Header)
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestMiddleware_RoundTrip(t *testing.T) {
	initiator, ts := testSetup(t)

	resp := postSealed(t, initiator, ts.URL+"/api/test/echo", []byte(`{"userId":123,"message":"meet at the usual place"}`))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, envelope.EncryptFlag, resp.Header.Get(envelope.HeaderEncrypt))
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), envelope.HeaderResponseTag)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The wire body must not leak the payload.
	require.NotContains(t, string(raw), "meet at the usual place")

	env, err := envelope.DecodeResponse(resp.Header, raw)
	require.NoError(t, err)

	plaintext, err := initiator.Open(env)
	require.NoError(t, err)

	var reply struct {
		Echo    server.EchoRequest `json:"echo"`
		Status  string             `json:"status"`
		Message string             `json:"message"`
	}
	require.NoError(t, json.Unmarshal(plaintext, &reply))
	require.Equal(t, "success", reply.Status)
	require.Equal(t, 123, reply.Echo.UserID)
	require.Equal(t, "meet at the usual place", reply.Echo.Message)
}

func TestMiddleware_PassthroughWithoutFlag(t *testing.T) {
	_, ts := testSetup(t)

	resp, err := http.Get(ts.URL + "/api/test/server-info")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get(envelope.HeaderEncrypt))

	var info map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "sealx demo server", info["serverName"])
}

func TestMiddleware_PublicKeyEndpointIsClear(t *testing.T) {
	_, ts := testSetup(t)

	resp, err := http.Get(ts.URL + "/api/crypto/public-key")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	pem, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(pem), "BEGIN PUBLIC KEY")
}

func decodeErrorPayload(t *testing.T, resp *http.Response) envelope.ErrorPayload {
	t.Helper()

	// Error payloads are never encrypted and never carry the flag, so the
	// initiator knows not to treat them as ciphertext.
	require.Empty(t, resp.Header.Get(envelope.HeaderEncrypt))
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var payload envelope.ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotZero(t, payload.Timestamp)
	return payload
}

func TestMiddleware_MalformedEnvelope(t *testing.T) {
	_, ts := testSetup(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/test/echo", bytes.NewReader([]byte("junk")))
	require.NoError(t, err)
	req.Header.Set(envelope.HeaderEncrypt, envelope.EncryptFlag)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decodeErrorPayload(t, resp)
	require.Equal(t, envelope.CodeMalformedEnvelope, payload.Code)
}

func TestMiddleware_TamperedCiphertext(t *testing.T) {
	initiator, ts := testSetup(t)

	env, err := initiator.Seal([]byte(`{"userId":1,"message":"x"}`))
	require.NoError(t, err)
	env.Ciphertext[0] ^= 0xff

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/test/echo", nil)
	require.NoError(t, err)
	body := envelope.EncodeRequest(env, req.Header)
	req.Body = io.NopCloser(bytes.NewReader(body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decodeErrorPayload(t, resp)
	require.Equal(t, envelope.CodeAuthFailure, payload.Code)
}

func TestMiddleware_GarbageWrappedKey(t *testing.T) {
	initiator, ts := testSetup(t)

	env, err := initiator.Seal([]byte(`{"userId":1,"message":"x"}`))
	require.NoError(t, err)
	for i := range env.WrappedKey {
		env.WrappedKey[i] ^= 0xff
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/test/echo", nil)
	require.NoError(t, err)
	body := envelope.EncodeRequest(env, req.Header)
	req.Body = io.NopCloser(bytes.NewReader(body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload := decodeErrorPayload(t, resp)
	require.Equal(t, envelope.CodeUnwrapFailure, payload.Code)
}

func TestMiddleware_HandlerStatusSurvivesSealing(t *testing.T) {
	initiator, ts := testSetup(t)

	// Unknown route: the mux 404 is produced behind the middleware, so it
	// comes back sealed like any other response.
	resp := postSealed(t, initiator, ts.URL+"/api/test/nope", []byte(`{}`))
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, envelope.EncryptFlag, resp.Header.Get(envelope.HeaderEncrypt))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	env, err := envelope.DecodeResponse(resp.Header, raw)
	require.NoError(t, err)

	_, err = initiator.Open(env)
	require.NoError(t, err)
}

func TestMiddleware_HandlerHeadersSurviveSealing(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	responder, err := exchange.NewResponder(key)
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Add("Vary", "Accept")
		w.Header().Add("Vary", "Accept-Encoding")
		// Protocol-owned headers must not leak through from a handler.
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(envelope.HeaderTag, "bogus")
		_, _ = w.Write([]byte(`{}`))
	})

	ts := httptest.NewServer(server.Middleware(responder)(handler))
	t.Cleanup(ts.Close)

	initiator, err := exchange.NewInitiator(&key.PublicKey, exchange.NewStore(0, 0))
	require.NoError(t, err)

	resp := postSealed(t, initiator, ts.URL, []byte(`{}`))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Equal(t, []string{"Accept", "Accept-Encoding"}, resp.Header.Values("Vary"))
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Empty(t, resp.Header.Get(envelope.HeaderTag))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	env, err := envelope.DecodeResponse(resp.Header, raw)
	require.NoError(t, err)
	plaintext, err := initiator.Open(env)
	require.NoError(t, err)
	require.Equal(t, []byte(`{}`), plaintext)
}

func TestMiddleware_ResponseNonceDiffersFromRequest(t *testing.T) {
	initiator, ts := testSetup(t)

	env, err := initiator.Seal([]byte(`{"userId":1,"message":"x"}`))
	require.NoError(t, err)
	requestNonce := append([]byte(nil), env.Nonce...)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/test/echo", nil)
	require.NoError(t, err)
	body := envelope.EncodeRequest(env, req.Header)
	req.Body = io.NopCloser(bytes.NewReader(body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	respEnv, err := envelope.DecodeResponse(resp.Header, raw)
	require.NoError(t, err)
	require.NotEqual(t, requestNonce, respEnv.Nonce)
}
