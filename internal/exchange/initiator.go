package exchange

import (
	"crypto/rsa"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jetstack/sealx/internal/aesgcm"
	"github.com/jetstack/sealx/internal/envelope"
	"github.com/jetstack/sealx/internal/keywrap"
)

// Initiator runs the sending side of the envelope protocol. It is safe for
// concurrent use; the Store is the only mutable state and every exchange gets
// its own key, nonce and id.
type Initiator struct {
	publicKey *rsa.PublicKey
	store     *Store
}

// NewInitiator creates an Initiator that wraps keys for the holder of
// publicKey and correlates responses through store.
func NewInitiator(publicKey *rsa.PublicKey, store *Store) (*Initiator, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("RSA public key cannot be nil")
	}

	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	return &Initiator{
		publicKey: publicKey,
		store:     store,
	}, nil
}

// Seal runs the request leg: it generates a fresh symmetric key, exchange id
// and nonce, encrypts the plaintext, wraps the key for the responder, and
// records the key in the store for the matching response. The key is owned by
// this exchange alone and is not retained here beyond the store entry.
func (i *Initiator) Seal(plaintext []byte) (*envelope.Envelope, error) {
	key, err := aesgcm.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer zero(key)

	nonce, err := aesgcm.GenerateNonce()
	if err != nil {
		return nil, err
	}

	exchangeID := uuid.NewString()

	wrappedKey, err := keywrap.Wrap(i.publicKey, key)
	if err != nil {
		return nil, err
	}

	ciphertext, tag, err := aesgcm.Seal(key, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	// Record the key before the envelope can leave this process; a response
	// must never be able to arrive ahead of its correlation entry.
	if err := i.store.Put(exchangeID, key); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"exchange_id":   exchangeID,
		"payload_bytes": len(plaintext),
	}).Debug("sealed request envelope")

	return &envelope.Envelope{
		ExchangeID: exchangeID,
		WrappedKey: wrappedKey,
		Nonce:      nonce,
		Tag:        tag,
		Ciphertext: ciphertext,
	}, nil
}

// Open runs the response leg: it consumes the correlation entry for the
// envelope's exchange id and decrypts the ciphertext with it. The Take is
// destructive, so a second response for the same exchange always fails with
// ErrUnknownExchange, just like an expired or never-established one. That
// failure is terminal for the exchange; it is not retried.
func (i *Initiator) Open(env *envelope.Envelope) ([]byte, error) {
	key, err := i.store.Take(env.ExchangeID)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	plaintext, err := aesgcm.Open(key, env.Nonce, env.Ciphertext, env.Tag)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"exchange_id": env.ExchangeID,
		}).Warn("response envelope failed authentication")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"exchange_id": env.ExchangeID,
	}).Debug("opened response envelope")

	return plaintext, nil
}
