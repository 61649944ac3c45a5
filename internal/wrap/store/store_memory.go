package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/zintarh/wrap-registry/internal/wrap/models"
	"github.com/zintarh/wrap-registry/pkg/domain"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
)

// InMemory stores registry state in process memory for tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	admin   domain.Address
	records map[models.Key]models.WrapRecord
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[models.Key]models.WrapRecord)}
}

func (s *InMemory) HasAdmin(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.admin.IsZero(), nil
}

func (s *InMemory) FindAdmin(_ context.Context) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin.IsZero() {
		return "", fmt.Errorf("admin not set: %w", sentinel.ErrNotFound)
	}
	return s.admin, nil
}

func (s *InMemory) SetAdmin(_ context.Context, admin domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admin.IsZero() {
		return fmt.Errorf("admin already set: %w", sentinel.ErrConflict)
	}
	s.admin = admin
	return nil
}

func (s *InMemory) HasRecord(_ context.Context, key models.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok, nil
}

func (s *InMemory) FindRecord(_ context.Context, key models.Key) (*models.WrapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("wrap %s/%s: %w", key.User, key.Period, sentinel.ErrNotFound)
	}
	// Copy out so callers cannot reach the stored value.
	out := record
	return &out, nil
}

func (s *InMemory) PutRecord(_ context.Context, key models.Key, record *models.WrapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("wrap %s/%s: %w", key.User, key.Period, sentinel.ErrConflict)
	}
	s.records[key] = *record
	return nil
}

func (s *InMemory) CountByUser(_ context.Context, user domain.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.records {
		if key.User == user {
			count++
		}
	}
	return count, nil
}
