// Package service implements the registry state machine: initialize, mint,
// query. Invariants are enforced here, before any storage write; the stores
// underneath are pure persistence.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zintarh/wrap-registry/internal/wrap/authz"
	"github.com/zintarh/wrap-registry/internal/wrap/events"
	"github.com/zintarh/wrap-registry/internal/wrap/metrics"
	"github.com/zintarh/wrap-registry/internal/wrap/models"
	"github.com/zintarh/wrap-registry/pkg/domain"
	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
	txcontext "github.com/zintarh/wrap-registry/pkg/platform/tx"
	"github.com/zintarh/wrap-registry/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Store is the persistence abstraction the service drives. See
// internal/wrap/store for the error contract.
type Store interface {
	HasAdmin(ctx context.Context) (bool, error)
	FindAdmin(ctx context.Context) (domain.Address, error)
	SetAdmin(ctx context.Context, admin domain.Address) error
	FindRecord(ctx context.Context, key models.Key) (*models.WrapRecord, error)
	PutRecord(ctx context.Context, key models.Key, record *models.WrapRecord) error
	CountByUser(ctx context.Context, user domain.Address) (int, error)
}

// Gate authorizes mutating calls. Failures must carry CodeUnauthorized.
type Gate interface {
	RequireAdminAuthorization(ctx context.Context, proof authz.Proof, binding authz.Binding) error
}

// EventPublisher stages mint notifications for off-chain indexers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.MintEvent) error
}

// Service orchestrates the registry. All mutations run inside the transaction
// manager's scope: one record write and one staged event, or nothing at all.
type Service struct {
	registryID string
	store      Store
	gate       Gate
	events     EventPublisher
	txm        *txcontext.Manager
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxManager(txm *txcontext.Manager) Option {
	return func(s *Service) {
		s.txm = txm
	}
}

// New constructs a Service. registryID names this registry instance and is
// part of every proof binding, so proofs cannot travel between deployments.
func New(registryID string, store Store, gate Gate, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		registryID: registryID,
		store:      store,
		gate:       gate,
		events:     publisher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize sets the singleton admin. Only the first call ever succeeds;
// every later call fails with already_initialized and leaves the stored admin
// untouched.
func (s *Service) Initialize(ctx context.Context, admin domain.Address) error {
	if admin.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "admin address is required")
	}

	err := s.withinTx(ctx, func(ctx context.Context) error {
		has, err := s.store.HasAdmin(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registry state")
		}
		if has {
			return dErrors.New(dErrors.CodeAlreadyInitialized, "registry is already initialized")
		}
		if err := s.store.SetAdmin(ctx, admin); err != nil {
			// A concurrent initialize can win between the check and the
			// write; the store's presence check is authoritative.
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyInitialized, "registry is already initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist admin")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "registry initialized",
		"request_id", requestcontext.RequestID(ctx),
		"admin", admin.String(),
	)
	return nil
}

// MintRequest carries the parameters of one mint invocation. The timestamp is
// deliberately absent: it always comes from the platform clock.
type MintRequest struct {
	To        domain.Address
	DataHash  domain.DataHash
	Archetype domain.Archetype
	Period    domain.Period
	Proof     authz.Proof
}

// Mint issues a wrap record for (req.To, req.Period). Exactly one storage
// write and one staged event happen, or none at all: every failure path runs
// before the transaction commits.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*models.WrapRecord, error) {
	start := time.Now()
	record, err := s.mint(ctx, req)
	if err != nil {
		s.incrementMintFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.incrementWrapsMinted()
	s.observeMint(start)

	s.logger.InfoContext(ctx, "wrap minted",
		"request_id", requestcontext.RequestID(ctx),
		"user", req.To.String(),
		"period", req.Period.String(),
		"archetype", req.Archetype.String(),
	)
	return record, nil
}

func (s *Service) mint(ctx context.Context, req MintRequest) (*models.WrapRecord, error) {
	if req.To.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient address is required")
	}
	if req.DataHash.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "data hash is required")
	}
	if req.Archetype == "" || req.Period == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "archetype and period are required")
	}

	// State check precedes authorization, matching the operation order the
	// registry guarantees: not_initialized, then unauthorized, then
	// wrap_already_exists.
	has, err := s.store.HasAdmin(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registry state")
	}
	if !has {
		return nil, dErrors.New(dErrors.CodeNotInitialized, "registry is not initialized")
	}

	binding := authz.Binding{
		RegistryID: s.registryID,
		User:       req.To,
		Period:     req.Period,
		DataHash:   req.DataHash,
	}
	if err := s.gate.RequireAdminAuthorization(ctx, req.Proof, binding); err != nil {
		return nil, err
	}

	var record *models.WrapRecord
	err = s.withinTx(ctx, func(ctx context.Context) error {
		key := models.Key{User: req.To, Period: req.Period}

		// The duplicate check is unconditional: a second mint for the same
		// key fails even with a different hash or archetype.
		existing, err := s.store.FindRecord(ctx, key)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for existing wrap")
		}
		if existing != nil {
			return dErrors.New(dErrors.CodeWrapAlreadyExists, "wrap already minted for this user and period")
		}

		record = &models.WrapRecord{
			// Platform clock only. Truncated to seconds to match the
			// record's wire shape.
			MintedAt:  requestcontext.Now(ctx).UTC().Truncate(time.Second),
			DataHash:  req.DataHash,
			Archetype: req.Archetype,
		}
		if err := s.store.PutRecord(ctx, key, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeWrapAlreadyExists, "wrap already minted for this user and period")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist wrap")
		}

		event := events.MintEvent{
			ID:       uuid.New(),
			User:     req.To,
			Period:   req.Period,
			MintedAt: record.MintedAt,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			// The event is staged inside the same transaction; failing here
			// rolls the record back too.
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to stage mint event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Query returns the wrap record for (user, period), or nil when none was
// minted. Absence is not an error: callers must treat nil as "not yet
// minted".
func (s *Service) Query(ctx context.Context, user domain.Address, period domain.Period) (*models.WrapRecord, error) {
	start := time.Now()
	record, err := s.store.FindRecord(ctx, models.Key{User: user, Period: period})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementQueries()
			s.observeQuery(start)
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wrap")
	}
	s.incrementQueries()
	s.observeQuery(start)
	return record, nil
}

// Admin returns the registry admin, failing with not_initialized before the
// first Initialize.
func (s *Service) Admin(ctx context.Context) (domain.Address, error) {
	admin, err := s.store.FindAdmin(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotInitialized, "registry is not initialized")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin")
	}
	return admin, nil
}

// UserCount returns the number of wraps ever minted for a user.
func (s *Service) UserCount(ctx context.Context, user domain.Address) (int, error) {
	count, err := s.store.CountByUser(ctx, user)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count wraps")
	}
	return count, nil
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txm == nil {
		return fn(ctx)
	}
	return s.txm.WithinTx(ctx, fn)
}

func (s *Service) incrementWrapsMinted() {
	if s.metrics != nil {
		s.metrics.IncrementWrapsMinted()
	}
}

func (s *Service) incrementMintFailure(code string) {
	if s.metrics != nil {
		s.metrics.IncrementMintFailure(code)
	}
}

func (s *Service) incrementQueries() {
	if s.metrics != nil {
		s.metrics.IncrementQueries()
	}
}

func (s *Service) observeMint(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMint(start)
	}
}

func (s *Service) observeQuery(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveQuery(start)
	}
}
