// Command server runs the wrap registry HTTP service.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/zintarh/wrap-registry/internal/platform/config"
	"github.com/zintarh/wrap-registry/internal/platform/httpserver"
	"github.com/zintarh/wrap-registry/internal/platform/jwttoken"
	"github.com/zintarh/wrap-registry/internal/platform/logger"
	"github.com/zintarh/wrap-registry/internal/platform/middleware"
	"github.com/zintarh/wrap-registry/internal/platform/postgres"
	platformredis "github.com/zintarh/wrap-registry/internal/platform/redis"
	"github.com/zintarh/wrap-registry/internal/wrap/authz"
	"github.com/zintarh/wrap-registry/internal/wrap/events"
	"github.com/zintarh/wrap-registry/internal/wrap/handler"
	"github.com/zintarh/wrap-registry/internal/wrap/metrics"
	"github.com/zintarh/wrap-registry/internal/wrap/service"
	"github.com/zintarh/wrap-registry/internal/wrap/store"
	txcontext "github.com/zintarh/wrap-registry/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		return err
	}

	nonces, closeNonces, err := buildNonceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNonces()

	gate := authz.NewGate(verifier, nonces, log)

	group, groupCtx := errgroup.WithContext(ctx)

	var (
		registryStore service.Store
		publisher     service.EventPublisher
		txm           *txcontext.Manager
	)
	switch cfg.StoreMode {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		pgStore := store.NewPostgres(db)
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating wrap store: %w", err)
		}
		outbox := events.NewOutbox(db)
		if err := outbox.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating outbox: %w", err)
		}

		registryStore = pgStore
		publisher = outbox
		txm = txcontext.NewManager(db)

		if len(cfg.KafkaBrokers) > 0 {
			client, err := kgo.NewClient(
				kgo.SeedBrokers(cfg.KafkaBrokers...),
				kgo.ProducerLinger(5*time.Millisecond),
			)
			if err != nil {
				return fmt.Errorf("building kafka client: %w", err)
			}
			defer client.Close()

			relay := events.NewRelay(outbox, client, events.RelayConfig{
				Topic:        cfg.KafkaTopic,
				PollInterval: cfg.RelayInterval,
				BatchSize:    cfg.RelayBatchSize,
			}, log)
			if err := relay.EnsureTopic(ctx, 3, 1); err != nil {
				return err
			}
			group.Go(func() error {
				err := relay.Run(groupCtx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		} else {
			log.Warn("no kafka brokers configured, mint events stay staged in the outbox")
		}
	case config.StoreMemory:
		registryStore = store.NewInMemory()

		inbox := make(chan events.MintEvent, 64)
		publisher = events.NewChannelPublisher(inbox)
		worker := events.NewWorker(&logSink{logger: log}, inbox)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	svc := service.New(cfg.RegistryID, registryStore, gate, publisher,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithTxManager(txm),
	)

	router := buildRouter(cfg, log, svc)

	server := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "store", string(cfg.StoreMode))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildVerifier(cfg config.Config, log *slog.Logger) (authz.Verifier, error) {
	if len(cfg.AdminKeys) == 0 {
		if cfg.StoreMode != config.StoreMemory {
			return nil, fmt.Errorf("WRAP_ADMIN_KEYS is required outside memory mode")
		}
		log.Warn("no admin keys configured, accepting any mint proof (dev only)")
		return authz.InsecureAllowAll{}, nil
	}

	keys := make(map[string]ed25519.PublicKey, len(cfg.AdminKeys))
	for kid, hexKey := range cfg.AdminKeys {
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("decoding admin key %q: %w", kid, err)
		}
		keys[kid] = ed25519.PublicKey(raw)
	}
	return authz.NewEd25519Verifier(keys)
}

func buildNonceStore(ctx context.Context, cfg config.Config) (authz.NonceStore, func(), error) {
	if cfg.RedisURL == "" {
		return authz.NewInMemoryNonceStore(0), func() {}, nil
	}
	client, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return authz.NewRedisNonceStore(client, 24*time.Hour), func() { _ = client.Close() }, nil
}

func buildRouter(cfg config.Config, log *slog.Logger, svc *service.Service) chi.Router {
	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Logger(log),
		middleware.Timeout(cfg.RequestTimeout),
	)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := handler.New(svc, log)
	if cfg.JWTSigningKey != "" {
		tokens := jwttoken.New([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.JWTTTL)
		router.Group(func(r chi.Router) {
			r.Use(middleware.RequireBearer(tokens, log))
			h.Register(r)
		})
	} else {
		log.Warn("no JWT signing key configured, registry routes are unauthenticated")
		h.Register(router)
	}

	return router
}

// logSink surfaces mint events in the logs when no broker is configured.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Publish(ctx context.Context, event events.MintEvent) error {
	s.logger.InfoContext(ctx, "wrap minted",
		"event_id", event.ID.String(),
		"user", event.User.String(),
		"period", event.Period.String(),
		"minted_at", event.MintedAt.UTC().Format(time.RFC3339),
	)
	return nil
}
