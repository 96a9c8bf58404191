package exchange

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pmylund/go-cache"

	"github.com/jetstack/sealx/internal/aesgcm"
)

const (
	// DefaultTTL bounds how long an unconsumed correlation entry survives.
	// An exchange whose response has not arrived within this window is dead;
	// its entry only wastes memory and is swept.
	DefaultTTL = 60 * time.Second

	// DefaultSweepInterval is how often expired entries are physically removed.
	// Deliberately coarser-grained than the TTL: worst-case staleness of a dead
	// entry is bounded to one sweep interval beyond its TTL, while reads never
	// see an expired entry at all (expiry is also checked on access).
	DefaultSweepInterval = 10 * time.Second
)

var (
	// ErrDuplicateExchange indicates an exchange id collision: an entry with
	// the same id is already present and unconsumed.
	ErrDuplicateExchange = errors.New("duplicate exchange id")

	// ErrUnknownExchange indicates a correlation miss: the entry expired, was
	// already consumed, or never existed.
	ErrUnknownExchange = errors.New("unknown exchange")
)

// Store maps in-flight exchange ids to their symmetric keys on the initiating
// side. Entries are strictly single-use: Take removes what it returns, so a
// key can never serve two exchanges. Safe for concurrent use.
type Store struct {
	// mu serializes Put and Take so that lookup-and-remove is atomic. The
	// cache's own lock only makes individual operations atomic, which is not
	// enough to stop two concurrent Takes from both seeing the same entry.
	mu      sync.Mutex
	entries *cache.Cache
}

// NewStore creates a Store whose entries expire after ttl and are swept every
// sweepInterval. Zero or negative values select the defaults.
func NewStore(ttl, sweepInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	return &Store{
		entries: cache.New(ttl, sweepInterval),
	}
}

// Put inserts the key for a new exchange. It fails with ErrDuplicateExchange
// if the id is already present and unconsumed.
func (s *Store) Put(exchangeID string, key []byte) error {
	if exchangeID == "" {
		return fmt.Errorf("exchange id cannot be empty")
	}

	if len(key) != aesgcm.KeySize {
		return fmt.Errorf("key must be %d bytes, got %d", aesgcm.KeySize, len(key))
	}

	// Keep our own copy; the caller is free to zero its slice after Put.
	entry := make([]byte, len(key))
	copy(entry, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.entries.Add(exchangeID, entry, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateExchange, exchangeID)
	}

	return nil
}

// Take atomically looks up and removes the key for an exchange. It fails with
// ErrUnknownExchange if the entry is absent, already consumed, or expired.
// Expiry is enforced here even if the sweeper has not run yet.
func (s *Store) Take(exchangeID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries.Get(exchangeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, exchangeID)
	}

	s.entries.Delete(exchangeID)

	return value.([]byte), nil
}

// Len reports the number of stored entries, including expired entries the
// sweeper has not removed yet.
func (s *Store) Len() int {
	return s.entries.ItemCount()
}
