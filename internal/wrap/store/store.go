// Package store persists the registry admin and wrap records.
//
// Error contract, shared by all implementations:
// - FindAdmin / FindRecord return sentinel.ErrNotFound when absent
// - SetAdmin / PutRecord are presence-checked: they return sentinel.ErrConflict
//   (wrapped) if the admin or the (user, period) key already exists
// - infrastructure failures come back wrapped with context
//
// No business rules live here; the service enforces the state machine.
package store

import (
	"context"

	"github.com/zintarh/wrap-registry/internal/wrap/models"
	"github.com/zintarh/wrap-registry/pkg/domain"
)

// Store is the persistence abstraction behind the registry service.
type Store interface {
	HasAdmin(ctx context.Context) (bool, error)
	FindAdmin(ctx context.Context) (domain.Address, error)
	// SetAdmin persists the singleton admin. Callable only when absent.
	SetAdmin(ctx context.Context, admin domain.Address) error

	HasRecord(ctx context.Context, key models.Key) (bool, error)
	FindRecord(ctx context.Context, key models.Key) (*models.WrapRecord, error)
	// PutRecord inserts a record. Callable only when the key is absent;
	// there is deliberately no update or delete.
	PutRecord(ctx context.Context, key models.Key, record *models.WrapRecord) error

	// CountByUser returns the number of wraps ever minted for a user.
	CountByUser(ctx context.Context, user domain.Address) (int, error)
}
