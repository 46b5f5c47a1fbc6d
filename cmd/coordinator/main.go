// Command coordinator is the BuildIt coordinator binary: it wires the
// Postgres-backed repository, the scheduling/lifecycle services, the
// log relay, and the HTTP API server — adapters constructed first, then
// services, then the errgroup-coordinated run loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/AOSC-Dev/buildit/internal/adapters/collaborators"
	"github.com/AOSC-Dev/buildit/internal/adapters/postgres"
	"github.com/AOSC-Dev/buildit/internal/config"
	"github.com/AOSC-Dev/buildit/internal/core/ports"
	"github.com/AOSC-Dev/buildit/internal/core/services"
	"github.com/AOSC-Dev/buildit/internal/relay"
	"github.com/AOSC-Dev/buildit/pkg/api"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting buildit coordinator")

	if err := run(logger); err != nil {
		logger.Error("coordinator startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	clock := ports.SystemClock{}
	resolver := collaborators.PassthroughResolver{DefaultArchs: []string{"amd64", "arm64", "loongarch64", "noarch"}}
	notifier := collaborators.LoggingNotifier{Logger: logger}

	orchestrator := services.NewOrchestrator(logger, repo, resolver, notifier, clock)
	dispatcher := services.NewDispatcher(logger, repo, clock)
	completion := services.NewCompletionHandler(logger, repo, notifier)
	query := services.NewQueryService(logger, repo)
	liveness := services.NewLivenessMonitor(logger, repo, clock, cfg.LivenessTick, cfg.LivenessTimeout)
	relayHub := relay.NewHub(relay.NewLogger(logger), cfg.RelayBuffer)

	apiServer := api.NewServer(api.Config{
		Logger:          logger,
		Orchestrator:    orchestrator,
		Dispatcher:      dispatcher,
		Completion:      completion,
		Query:           query,
		Relay:           relayHub,
		Clock:           clock,
		WorkerSecret:    cfg.WorkerSecret,
		LivenessTimeout: cfg.LivenessTimeout,
		HandlerTimeout:  cfg.HandlerTimeout,
	})

	handler := apiServer.Handler()
	if len(cfg.CORSOrigins) > 0 {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		})
		handler = corsMiddleware.Handler(handler)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return liveness.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
