package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "github.com/zintarh/wrap-registry/pkg/platform/tx"
)

// Outbox implements Publisher with the transactional outbox pattern. The
// event row is inserted through the transaction carried in ctx, so it commits
// atomically with the wrap record; the relay drains acknowledged rows to the
// broker afterwards.
type Outbox struct {
	db *sql.DB
}

// NewOutbox constructs a PostgreSQL-backed outbox.
func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

const outboxSchema = `
CREATE TABLE IF NOT EXISTS mint_outbox (
	id           uuid PRIMARY KEY,
	payload      jsonb NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	published_at timestamptz
);

CREATE INDEX IF NOT EXISTS mint_outbox_unpublished_idx
	ON mint_outbox (created_at) WHERE published_at IS NULL;
`

// Migrate creates the outbox table if it does not exist.
func (o *Outbox) Migrate(ctx context.Context) error {
	if _, err := o.db.ExecContext(ctx, outboxSchema); err != nil {
		return fmt.Errorf("migrate outbox schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (o *Outbox) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return o.db
}

// payload is the JSON structure delivered to the broker.
type payload struct {
	ID       string `json:"id"`
	Event    string `json:"event"`
	User     string `json:"user"`
	Period   string `json:"period"`
	MintedAt int64  `json:"minted_at"`
}

func (o *Outbox) Publish(ctx context.Context, event MintEvent) error {
	body, err := json.Marshal(payload{
		ID:       event.ID.String(),
		Event:    "mint",
		User:     event.User.String(),
		Period:   event.Period.String(),
		MintedAt: event.MintedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal mint event: %w", err)
	}

	_, err = o.execer(ctx).ExecContext(ctx, `
		INSERT INTO mint_outbox (id, payload) VALUES ($1, $2)
	`, event.ID, body)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Entry is one staged event awaiting delivery.
type Entry struct {
	ID      uuid.UUID
	Payload []byte
	// User keys the broker record so one user's mints stay ordered.
	User string
}

// ListUnpublished returns up to limit staged events in commit order.
func (o *Outbox) ListUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, payload, payload->>'user'
		FROM mint_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Payload, &entry.User); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps entries as delivered. Idempotent: already-stamped rows
// are left untouched.
func (o *Outbox) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		_, err := o.db.ExecContext(ctx, `
			UPDATE mint_outbox SET published_at = $2
			WHERE id = $1 AND published_at IS NULL
		`, id, at)
		if err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}
