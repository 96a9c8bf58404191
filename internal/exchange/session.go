package exchange

import (
	"fmt"
	"sync"
)

// Session carries the per-exchange key material across the handler boundary on
// the responding side: from the request-leg decrypt, through the handler
// invocation, to the response-leg encrypt. One Session exists per in-flight
// exchange and is never shared or reused across exchanges.
//
// The transport boundary must call Close on every exit path, whether the
// handler succeeded or not, so key material does not outlive its exchange.
type Session struct {
	mu           sync.Mutex
	exchangeID   string
	key          []byte
	requestNonce []byte
	closed       bool
}

// ExchangeID returns the correlation token of this session's exchange.
func (s *Session) ExchangeID() string {
	return s.exchangeID
}

// Close releases the session, zeroing its key material. It is idempotent and
// any later use of the session fails.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	zero(s.key)
	zero(s.requestNonce)
	s.closed = true
}

// use hands the key and request nonce to fn while holding the session lock,
// failing if the session is already closed.
func (s *Session) use(fn func(key, requestNonce []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session for exchange %s is closed", s.exchangeID)
	}

	return fn(s.key, s.requestNonce)
}

// zero overwrites b in place so key material does not linger on the heap.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
