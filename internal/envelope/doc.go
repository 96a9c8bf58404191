// Package envelope defines the wire representation of one encrypted leg of an
// exchange: a set of header fields carrying the exchange id, the wrapped
// symmetric key (request leg only), the nonce and the authentication tag, plus
// a single opaque base64 body carrying the ciphertext.
//
// Encoding is deterministic and lossless. Decoding is strict: every required
// field must be present and well formed before any cryptographic operation is
// attempted, and any violation is reported as ErrMalformed. Binary fields are
// accepted in both standard and URL-safe base64, since either variant can
// arrive depending on which upstream agent produced the envelope.
package envelope
