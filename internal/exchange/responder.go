package exchange

import (
	"bytes"
	"crypto/rsa"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jetstack/sealx/internal/aesgcm"
	"github.com/jetstack/sealx/internal/envelope"
	"github.com/jetstack/sealx/internal/keywrap"
)

// Responder runs the receiving side of the envelope protocol. It holds no
// per-exchange state: the key recovered from a request leg travels to the
// matching Seal call only inside the Session returned by Open. Safe for
// concurrent use.
type Responder struct {
	privateKey *rsa.PrivateKey
}

// NewResponder creates a Responder that unwraps keys with privateKey.
func NewResponder(privateKey *rsa.PrivateKey) (*Responder, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("RSA private key cannot be nil")
	}

	if keySize := privateKey.N.BitLen(); keySize < keywrap.MinRSAKeySize {
		return nil, fmt.Errorf("RSA key size must be at least %d bits, got %d bits", keywrap.MinRSAKeySize, keySize)
	}

	return &Responder{
		privateKey: privateKey,
	}, nil
}

// Open runs the request leg on the receiving side: it unwraps the symmetric
// key and decrypts the request ciphertext. On success it returns the plaintext
// together with a Session carrying the key for the response leg; the caller
// must Close the session on every exit path. On any failure nothing is handed
// to the handler; the exchange fails closed.
func (r *Responder) Open(env *envelope.Envelope) ([]byte, *Session, error) {
	key, err := keywrap.Unwrap(r.privateKey, env.WrappedKey)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"exchange_id": env.ExchangeID,
		}).Warn("failed to unwrap exchange key")
		return nil, nil, err
	}

	plaintext, err := aesgcm.Open(key, env.Nonce, env.Ciphertext, env.Tag)
	if err != nil {
		zero(key)
		logrus.WithFields(logrus.Fields{
			"exchange_id": env.ExchangeID,
		}).Warn("request envelope failed authentication")
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"exchange_id":   env.ExchangeID,
		"payload_bytes": len(plaintext),
	}).Debug("opened request envelope")

	sess := &Session{
		exchangeID:   env.ExchangeID,
		key:          key,
		requestNonce: append([]byte(nil), env.Nonce...),
	}

	return plaintext, sess, nil
}

// Seal runs the response leg: it encrypts the handler's plaintext under the
// session key with a freshly generated nonce and emits an envelope with the
// exchange id unchanged and no wrapped key. The nonce is re-drawn until it
// differs from the request nonce; reusing a nonce under the same key would
// void the cipher's guarantees, so the invariant is enforced unconditionally
// rather than left to probability.
func (r *Responder) Seal(sess *Session, plaintext []byte) (*envelope.Envelope, error) {
	if sess == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	var out *envelope.Envelope

	err := sess.use(func(key, requestNonce []byte) error {
		nonce, err := aesgcm.GenerateNonce()
		if err != nil {
			return err
		}

		for bytes.Equal(nonce, requestNonce) {
			if nonce, err = aesgcm.GenerateNonce(); err != nil {
				return err
			}
		}

		ciphertext, tag, err := aesgcm.Seal(key, nonce, plaintext)
		if err != nil {
			return err
		}

		out = &envelope.Envelope{
			ExchangeID: sess.ExchangeID(),
			Nonce:      nonce,
			Tag:        tag,
			Ciphertext: ciphertext,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"exchange_id":   out.ExchangeID,
		"payload_bytes": len(plaintext),
	}).Debug("sealed response envelope")

	return out, nil
}
