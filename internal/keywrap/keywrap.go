package keywrap

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jetstack/sealx/internal/aesgcm"
)

const (
	// MinRSAKeySize is the minimum RSA key size in bits; we'd expect that keys
	// will be larger but 2048 is a sane floor to enforce to ensure that a weak
	// key can't accidentally be used.
	MinRSAKeySize = 2048

	// hexKeyLength is the length of a 32-byte symmetric key once hex-encoded
	// for wrapping.
	hexKeyLength = 2 * aesgcm.KeySize
)

// ErrUnwrap is returned by Unwrap for every way the wrapped key can fail to
// open: a size that does not match the key modulus, invalid padding (wrong key
// pair or corrupted ciphertext), a payload that is not hex, or a decoded key
// that is not exactly 32 bytes.
var ErrUnwrap = errors.New("key unwrap failed")

// Wrap encrypts the 32-byte symmetric key under the RSA public key.
// The key travels hex-encoded; see the package documentation for why.
func Wrap(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("RSA public key cannot be nil")
	}

	if keySize := pub.N.BitLen(); keySize < MinRSAKeySize {
		return nil, fmt.Errorf("RSA key size must be at least %d bits, got %d bits", MinRSAKeySize, keySize)
	}

	if len(key) != aesgcm.KeySize {
		return nil, fmt.Errorf("symmetric key must be %d bytes, got %d", aesgcm.KeySize, len(key))
	}

	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(hex.EncodeToString(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap symmetric key: %w", err)
	}

	return wrapped, nil
}

// Unwrap decrypts a wrapped symmetric key with the RSA private key and decodes
// it back to raw bytes. A decoded length other than exactly 32 bytes is a
// protocol violation and is rejected, never truncated.
func Unwrap(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("RSA private key cannot be nil")
	}

	if len(wrapped) != priv.Size() {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes, expected %d for this key modulus",
			ErrUnwrap, len(wrapped), priv.Size())
	}

	decrypted, err := rsa.DecryptPKCS1v15(nil, priv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrap, err)
	}

	if len(decrypted) != hexKeyLength {
		return nil, fmt.Errorf("%w: wrapped payload is %d characters, expected %d",
			ErrUnwrap, len(decrypted), hexKeyLength)
	}

	key, err := hex.DecodeString(string(decrypted))
	if err != nil {
		return nil, fmt.Errorf("%w: wrapped payload is not valid hex", ErrUnwrap)
	}

	if len(key) != aesgcm.KeySize {
		return nil, fmt.Errorf("%w: decoded key is %d bytes, expected exactly %d",
			ErrUnwrap, len(key), aesgcm.KeySize)
	}

	return key, nil
}
