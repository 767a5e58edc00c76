package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/config"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/blob"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/sqlite"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"
	"github.com/boddenberg/invoicing-bfa-go/internal/syncer"

	"go.uber.org/zap"
)

// app is the assembled service graph for one backend.
type app struct {
	store     *service.Store
	session   *service.Session
	timer     *service.Timer
	documents *service.Documents
	metrics   *observability.Metrics
	blobDir   string
	closers   []func()
}

// Close releases the backend after pending remote writes have drained.
func (a *app) Close(ctx context.Context) {
	a.session.Close()
	_ = a.store.Flush(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backend struct {
	remote  port.RemoteStore
	auth    port.AuthProvider
	blobs   port.BlobStorage
	blobDir string
	closers []func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))

		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.SyncMaxConcurrency,
		}
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		auth := supabase.NewAuth(client, cfg.SupabaseJWTSecret)
		client.UseUserTokens(auth.AccessToken)
		return &backend{
			remote: client,
			auth:   auth,
			blobs:  supabase.NewStorage(client, cfg.SupabaseBucket),
		}, nil

	case config.BackendPostgres:
		logger.Info("using PostgreSQL as data backend")

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, int32(cfg.SyncMaxConcurrency+4))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		store := postgres.NewStore(pool, logger)
		return localBackend(cfg, logger, store, store, pool.Close)

	case config.BackendSQLite:
		logger.Info("using SQLite as data backend", zap.String("path", cfg.SQLitePath))

		store, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return localBackend(cfg, logger, store, store, func() { store.Close() })
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// localBackend pairs a database with the built-in auth provider and file blobs.
func localBackend(cfg *config.Config, logger *zap.Logger, remote port.RemoteStore, accounts port.AccountStore, closeFn func()) (*backend, error) {
	blobs, err := blob.NewDir(cfg.BlobDir, cfg.PublicBaseURL+"/files", logger)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &backend{
		remote:  remote,
		auth:    service.NewLocalAuth(accounts, cfg.JWTSecret, cfg.JWTAccessTTL, logger),
		blobs:   blobs,
		blobDir: blobs.Root(),
		closers: []func(){closeFn},
	}, nil
}

// buildApp opens the backend and assembles the services on top of it.
// The session is not started.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	outbox := syncer.NewOutbox(
		b.remote,
		syncer.PolicyFor(cfg.SyncMaxRetries, cfg.InitialBackoff),
		cfg.SyncMaxConcurrency,
		cfg.SyncTimeout,
		metrics,
		logger,
	)
	store := service.NewStore(b.remote, outbox, metrics, logger)

	return &app{
		store:     store,
		session:   service.NewSession(b.auth, store, cfg.SessionTimeout, logger),
		timer:     service.NewTimer(store),
		documents: service.NewDocuments(store, b.blobs, logger),
		metrics:   metrics,
		blobDir:   b.blobDir,
		closers:   b.closers,
	}, nil
}
