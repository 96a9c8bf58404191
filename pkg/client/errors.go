package client

import (
	"encoding/json"
	"fmt"

	"github.com/jetstack/sealx/internal/envelope"
)

// ServerError is a structured error payload received from the server in place
// of a sealed response.
type ServerError struct {
	Code    string
	Message string
	Status  int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

func parseServerError(status int, body []byte) error {
	var payload envelope.ErrorPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Code == "" {
		return &ServerError{
			Code:    envelope.CodeInternalError,
			Message: string(body),
			Status:  status,
		}
	}

	return &ServerError{
		Code:    payload.Code,
		Message: payload.Message,
		Status:  status,
	}
}
