package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transcript-harvester/backend/internal/config"
	"github.com/transcript-harvester/backend/internal/control"
	"github.com/transcript-harvester/backend/internal/httpserver"
	"github.com/transcript-harvester/backend/internal/middleware"
	"github.com/transcript-harvester/backend/internal/store"
)

// Run bootstraps the transcript harvester backend.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or migrate")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	svcs, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.store.Close()

	logger.Info("running startup recovery")
	if err := svcs.queue.RecoverOnStartup(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}

	if err := svcs.pool.Start(ctx, cfg.DefaultMaxWorkers); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	mux := http.NewServeMux()
	control.RegisterRoutes(mux, svcs.deps)

	limiter := middleware.NewIPRateLimiter(20, time.Minute, 10, 10*time.Minute)
	handler := middleware.RequestLogger(logger)(middleware.RateLimit(limiter, mux))

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "port", cfg.AppPort)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	if err := svcs.pool.Stop(shutdownCtx, cfg.ShutdownBudget); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	return srv.Shutdown(shutdownCtx)
}

// runMigrations handles the migrate verbs. The schema itself is applied
// automatically inside store.Open (it is embedded in the binary), so "up"
// just confirms the store opens cleanly; "status" lists the supplementary
// migration files an operator has dropped in cfg.MigrationDir for their own
// tracking (e.g. data backfills run outside the embedded schema).
func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "status":
		names, err := store.Migrations(cfg.MigrationDir)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Printf("[x] %s\n", name)
		}
		return nil
	case "up", "":
		st, err := store.Open(ctx, cfg.DatabasePath, cfg.LockWaitBudget)
		if err != nil {
			return fmt.Errorf("apply embedded schema: %w", err)
		}
		defer st.Close()
		fmt.Println("schema up to date")
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
