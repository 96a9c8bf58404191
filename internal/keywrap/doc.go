// Package keywrap implements the asymmetric half of the envelope scheme:
// transporting the per-exchange symmetric key under a long-lived RSA key pair.
//
// The symmetric key is re-encoded as a fixed-width hex string before wrapping.
// This doubles the wrapped payload but keeps the wire format interoperable
// with initiators built on RSA libraries that only accept string input, which
// is the constraint this format was designed against. PKCS#1 v1.5 padding is
// used for the same reason; 64 hex characters sit well inside the 245-byte
// payload limit of a 2048-bit key.
//
// The package also carries the PEM helpers for loading and persisting the RSA
// key pair itself. Provisioning and rotation of that pair are out of scope.
package keywrap
