package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/handler"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/cache"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend", cfg.Backend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("sync_max_retries", cfg.SyncMaxRetries),
		zap.Int("sync_max_concurrency", cfg.SyncMaxConcurrency),
		zap.Duration("sync_timeout", cfg.SyncTimeout),
		zap.Duration("session_timeout", cfg.SessionTimeout),
		zap.Duration("token_cache_ttl", cfg.TokenCacheTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Services ---
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.session.Start(ctx)

	// --- Cache ---
	tokenCache := cache.New[domain.User](cfg.TokenCacheTTL)
	defer tokenCache.Close()

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Store:      a.store,
		Session:    a.session,
		Timer:      a.timer,
		Documents:  a.documents,
		TokenCache: tokenCache,
		BlobDir:    a.blobDir,
	}, a.metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		a.Close(context.Background())
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	// pending remote writes drain within the same deadline
	a.Close(shutdownCtx)

	logger.Info("server stopped")
	return nil
}
