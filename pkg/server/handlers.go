package server

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/jetstack/sealx/internal/keywrap"
	"github.com/jetstack/sealx/pkg/version"
)

// EchoRequest is the demo payload posted by initiators.
type EchoRequest struct {
	UserID  int    `json:"userId"`
	Message string `json:"message"`
}

// DemoAPI builds the demo handler tree: the public key endpoint used by
// initiators to bootstrap, and a few JSON endpoints to exercise the envelope
// end to end. All JSON endpoints sit behind the middleware and never see
// ciphertext.
func DemoAPI(publicKey *rsa.PublicKey) (http.Handler, error) {
	publicPEM, err := keywrap.PublicKeyToPEM(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode public key")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/crypto/public-key", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, fmt.Sprintf("invalid method. Expected GET, received %s", r.Method), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(publicPEM)
	})

	mux.HandleFunc("/api/test/echo", func(w http.ResponseWriter, r *http.Request) {
		var payload EchoRequest
		if code, err := decodePost(r, &payload); err != nil {
			writeError(w, err.Error(), code)
			return
		}

		// print the decrypted payload to the console
		color.Green("-- %s %s\n", r.Method, r.URL.Path)
		color.Yellow("userId: %d\nmessage: %s\n", payload.UserID, payload.Message)
		color.Green("-----")

		writeJSON(w, map[string]interface{}{
			"echo":      payload,
			"status":    "success",
			"message":   "request processed",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	mux.HandleFunc("/api/test/user-info", func(w http.ResponseWriter, r *http.Request) {
		var payload EchoRequest
		if code, err := decodePost(r, &payload); err != nil {
			writeError(w, err.Error(), code)
			return
		}

		writeJSON(w, map[string]interface{}{
			"received":  payload,
			"processed": true,
			"userId":    payload.UserID,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	mux.HandleFunc("/api/test/server-info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"serverName": "sealx demo server",
			"version":    version.Version,
			"timestamp":  time.Now().UnixMilli(),
		})
	})

	return mux, nil
}

func decodePost(r *http.Request, into interface{}) (int, error) {
	if r.Method != http.MethodPost {
		return http.StatusMethodNotAllowed, fmt.Errorf("invalid method. Expected POST, received %s", r.Method)
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return http.StatusBadRequest, fmt.Errorf("decoding body: %+v", err)
	}
	return 0, nil
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err string, code int) {
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, fmt.Sprintf(`{ "error": "%s", "code": %d }`, err, code), code)
}
