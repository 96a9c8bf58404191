package envelope

import "time"

// Header names for the envelope fields. These match the wire format spoken by
// existing browser-side initiators and must not change.
const (
	// HeaderEncrypt declares that an exchange uses the envelope. Its value is
	// the literal "true"; its absence on a response tells the initiator the
	// body is NOT ciphertext (the error-degradation path).
	HeaderEncrypt = "X-Encrypt"

	// HeaderExchangeID is the correlation token tying a request leg to its
	// response leg. It is non-secret metadata: the capability is the key, not
	// the id.
	HeaderExchangeID = "X-Req-Id"

	// HeaderKey carries the asymmetrically wrapped symmetric key. Present on
	// the request leg only; the response leg reuses the established key via
	// correlation.
	HeaderKey = "X-Key"

	// HeaderNonce and HeaderTag carry the request-leg nonce and tag.
	HeaderNonce = "X-IV"
	HeaderTag   = "X-Tag"

	// HeaderResponseNonce and HeaderResponseTag carry the response-leg nonce
	// and tag. The response nonce must differ from the request nonce.
	HeaderResponseNonce = "X-IV-Resp"
	HeaderResponseTag   = "X-Tag-Resp"
)

// EncryptFlag is the only accepted value of HeaderEncrypt.
const EncryptFlag = "true"

// Error codes reported to the transport boundary. Every envelope failure maps
// to one of these and terminates only its own exchange.
const (
	CodeMalformedEnvelope = "MALFORMED_ENVELOPE"
	CodeUnwrapFailure     = "UNWRAP_FAILURE"
	CodeAuthFailure       = "AUTH_FAILURE"
	CodeUnknownExchange   = "UNKNOWN_EXCHANGE"
	CodeDuplicateExchange = "DUPLICATE_EXCHANGE"
	CodeEncryptError      = "ENCRYPT_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Envelope is the decoded form of one encrypted leg.
type Envelope struct {
	// ExchangeID correlates the request leg with its response leg.
	ExchangeID string

	// WrappedKey is the RSA-wrapped symmetric key. Populated on the request
	// leg only; nil on the response leg.
	WrappedKey []byte

	// Nonce is the 12-byte AES-GCM nonce for this leg's ciphertext.
	Nonce []byte

	// Tag is the 16-byte authentication tag covering this leg's ciphertext.
	Tag []byte

	// Ciphertext is the encrypted payload.
	Ciphertext []byte
}

// ErrorPayload is the structured error body written to the transport boundary
// in place of a response when an exchange fails. It is always sent
// unencrypted, without the X-Encrypt header.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewErrorPayload builds an ErrorPayload stamped with the current time.
func NewErrorPayload(code, message string) ErrorPayload {
	return ErrorPayload{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}
