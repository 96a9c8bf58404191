// Package aesgcm implements the symmetric half of the envelope scheme:
// AES-256-GCM authenticated encryption of an opaque payload under a
// per-exchange key, with the authentication tag carried detached so the wire
// format can place it in its own header field.
//
// Both operations are pure functions of their inputs. Nonces are always
// supplied by the caller; the orchestrator draws a fresh one for every
// encryption, so the request and response legs of an exchange never share a
// nonce even though they share a key.
package aesgcm
