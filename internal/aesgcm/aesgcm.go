package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// KeySize is the size of the AES-256 key in bytes; aes.NewCipher selects
	// the cipher variant based on the size of the key passed in.
	KeySize = 32

	// NonceSize is the size of the AES-GCM nonce in bytes. NB: Nonce sizes can
	// be security critical. Reusing a nonce with the same key breaks AES-256-GCM
	// completely. Every encryption in this module uses a freshly generated
	// random nonce, never one carried over from another operation.
	NonceSize = 12

	// TagSize is the size of the GCM authentication tag in bytes.
	TagSize = 16
)

// ErrAuthentication is returned by Open when the authentication tag does not
// verify. The same error covers a tampered ciphertext, a tampered tag, a wrong
// key and a wrong nonce; callers cannot distinguish these cases and no partial
// plaintext is ever returned.
var ErrAuthentication = errors.New("authentication failed")

// GenerateKey returns a fresh random 256-bit symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate AES key: %w", err)
	}

	return key, nil
}

// GenerateNonce returns a fresh random 12-byte nonce.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, nil
}

// Seal encrypts plaintext with AES-256-GCM under the given key and nonce.
// It returns the ciphertext and the detached 16-byte authentication tag which
// covers the whole ciphertext.
func Seal(key, nonce, plaintext []byte) (ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, nil, err
	}

	// gcm.Seal appends the tag to the ciphertext; the wire format carries the
	// tag in a separate field, so split it off here.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return sealed[:split], sealed[split:], nil
}

// Open decrypts and authenticates ciphertext with the detached tag.
// It returns ErrAuthentication if the tag does not verify.
func Open(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != TagSize {
		return nil, fmt.Errorf("tag must be %d bytes, got %d", TagSize, len(tag))
	}

	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	// Reassemble the combined form gcm.Open expects: ciphertext || tag.
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// The underlying error is deliberately discarded; a uniform failure
		// keeps tamper, wrong-key and wrong-nonce cases indistinguishable.
		return nil, ErrAuthentication
	}

	return plaintext, nil
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	return gcm, nil
}
