// Package events carries mint notifications to off-chain indexers.
//
// The notification is a side channel: nothing in the registry's state machine
// depends on it, and consumers must be idempotent against duplicate delivery.
// Delivery is at-least-once through a transactional outbox (see outbox.go and
// relay.go): the event row commits atomically with the wrap record, and the
// relay retries until the broker acknowledges.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zintarh/wrap-registry/pkg/domain"
)

// MintEvent is the minimal identifying payload for a successful mint.
type MintEvent struct {
	ID       uuid.UUID      `json:"id"`
	User     domain.Address `json:"user"`
	Period   domain.Period  `json:"period"`
	MintedAt time.Time      `json:"minted_at"`
}

// Publisher stages a mint event for delivery. Implementations that persist
// (the outbox) must honor the transaction in ctx so the event commits or rolls
// back with the wrap record.
type Publisher interface {
	Publish(ctx context.Context, event MintEvent) error
}

// MemorySink collects events in memory. It backs dev mode and lets tests
// assert on emissions without a broker.
type MemorySink struct {
	mu     sync.Mutex
	events []MintEvent
}

// NewMemorySink constructs an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event MintEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []MintEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MintEvent, len(s.events))
	copy(out, s.events)
	return out
}
