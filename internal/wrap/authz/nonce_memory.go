package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
)

// InMemoryNonceStore tracks consumed nonces in process memory for tests/dev.
// Entries expire after ttl so the map does not grow unbounded; a proof older
// than the ttl would fail signature freshness checks upstream anyway.
type InMemoryNonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewInMemoryNonceStore constructs an empty nonce store.
func NewInMemoryNonceStore(ttl time.Duration) *InMemoryNonceStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemoryNonceStore{seen: make(map[string]time.Time), ttl: ttl}
}

func (s *InMemoryNonceStore) Consume(_ context.Context, nonce string) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.seen {
		if expiry.Before(now) {
			delete(s.seen, key)
		}
	}

	if _, ok := s.seen[nonce]; ok {
		return fmt.Errorf("nonce %s: %w", nonce, sentinel.ErrAlreadyUsed)
	}
	s.seen[nonce] = now.Add(s.ttl)
	return nil
}
