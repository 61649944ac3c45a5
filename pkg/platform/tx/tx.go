// Package tx carries a SQL transaction through context so stores that share
// an invocation commit or roll back together.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Manager wraps mutating operations in a transaction boundary. Stores pick the
// transaction up via From, so every read and write inside fn shares one atomic
// scope: all of it commits or none of it does.
type Manager struct {
	db *sql.DB
}

// NewManager builds a Manager over the given database. A nil db yields a
// pass-through manager for memory-backed deployments.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// WithinTx runs fn inside a transaction injected into ctx. If fn returns an
// error the transaction rolls back and the error propagates unchanged, so the
// caller sees the invocation as if it never ran.
func (m *Manager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m == nil || m.db == nil {
		return fn(ctx)
	}
	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
