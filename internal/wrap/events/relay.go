package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Relay drains the outbox to a Kafka topic. It is the only background
// goroutine in the service; delivery is at-least-once and rows are stamped
// published only after the broker acknowledges.
type Relay struct {
	outbox   *Outbox
	client   *kgo.Client
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// NewRelay constructs a relay over an existing Kafka client.
func NewRelay(outbox *Outbox, client *kgo.Client, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		outbox:   outbox,
		client:   client,
		topic:    cfg.Topic,
		interval: cfg.PollInterval,
		batch:    cfg.BatchSize,
		logger:   logger,
	}
}

// EnsureTopic creates the mint topic if the broker does not know it yet.
func (r *Relay) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(r.client)
	_, err := adm.CreateTopic(ctx, partitions, replication, nil, r.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", r.topic, err)
	}
	return nil
}

// Run polls the outbox until ctx is cancelled. Errors are logged and retried
// on the next tick rather than crashing the relay; the outbox holds the
// events until delivery succeeds.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	entries, err := r.outbox.ListUnpublished(ctx, r.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		record := &kgo.Record{
			Topic: r.topic,
			// Key by user so one user's mints land in order.
			Key:   []byte(entry.User),
			Value: entry.Payload,
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Stop the batch; unacknowledged entries stay staged.
			if markErr := r.outbox.MarkPublished(ctx, published, time.Now()); markErr != nil {
				return markErr
			}
			return fmt.Errorf("produce mint event %s: %w", entry.ID, err)
		}
		published = append(published, entry.ID)
	}

	if err := r.outbox.MarkPublished(ctx, published, time.Now()); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "mint events published", "count", len(published))
	return nil
}
