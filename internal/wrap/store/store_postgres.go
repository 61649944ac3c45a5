package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zintarh/wrap-registry/internal/wrap/models"
	"github.com/zintarh/wrap-registry/pkg/domain"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
	txcontext "github.com/zintarh/wrap-registry/pkg/platform/tx"
)

// Postgres persists registry state in PostgreSQL. Presence-checked writes are
// enforced by the schema (singleton check on registry_admin, primary key on
// wraps) plus ON CONFLICT DO NOTHING, so racing duplicate writes resolve to
// exactly one winner without advisory locks.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS registry_admin (
	singleton  boolean PRIMARY KEY DEFAULT true CHECK (singleton),
	address    text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wraps (
	user_address text NOT NULL,
	period       text NOT NULL,
	minted_at    bigint NOT NULL,
	data_hash    bytea NOT NULL CHECK (octet_length(data_hash) = 32),
	archetype    text NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (user_address, period)
);

CREATE INDEX IF NOT EXISTS wraps_user_idx ON wraps (user_address);
`

// Migrate creates the registry tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM registry_admin)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin presence: %w", err)
	}
	return exists, nil
}

func (s *Postgres) FindAdmin(ctx context.Context) (domain.Address, error) {
	var address string
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT address FROM registry_admin`).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("admin not set: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find admin: %w", err)
	}
	return domain.Address(address), nil
}

func (s *Postgres) SetAdmin(ctx context.Context, admin domain.Address) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO registry_admin (singleton, address)
		VALUES (true, $1)
		ON CONFLICT (singleton) DO NOTHING
	`, admin.String())
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("admin already set: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) HasRecord(ctx context.Context, key models.Key) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM wraps WHERE user_address = $1 AND period = $2)
	`, key.User.String(), key.Period.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wrap presence: %w", err)
	}
	return exists, nil
}

func (s *Postgres) FindRecord(ctx context.Context, key models.Key) (*models.WrapRecord, error) {
	var (
		mintedAt     int64
		dataHash     []byte
		archetypeStr string
		record       models.WrapRecord
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT minted_at, data_hash, archetype
		FROM wraps
		WHERE user_address = $1 AND period = $2
	`, key.User.String(), key.Period.String()).Scan(&mintedAt, &dataHash, &archetypeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wrap %s/%s: %w", key.User, key.Period, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find wrap: %w", err)
	}
	record.MintedAt = time.Unix(mintedAt, 0).UTC()
	copy(record.DataHash[:], dataHash)
	record.Archetype = domain.Archetype(archetypeStr)
	return &record, nil
}

func (s *Postgres) PutRecord(ctx context.Context, key models.Key, record *models.WrapRecord) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO wraps (user_address, period, minted_at, data_hash, archetype)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_address, period) DO NOTHING
	`, key.User.String(), key.Period.String(), record.MintedAt.Unix(), record.DataHash[:], record.Archetype.String())
	if err != nil {
		return fmt.Errorf("put wrap: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put wrap rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("wrap %s/%s: %w", key.User, key.Period, sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) CountByUser(ctx context.Context, user domain.Address) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM wraps WHERE user_address = $1
	`, user.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count wraps: %w", err)
	}
	return count, nil
}
