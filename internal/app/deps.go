package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/transcript-harvester/backend/internal/config"
	"github.com/transcript-harvester/backend/internal/control"
	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/extractor"
	"github.com/transcript-harvester/backend/internal/ingestor"
	"github.com/transcript-harvester/backend/internal/mirror"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
	"github.com/transcript-harvester/backend/internal/workerpool"
)

// services aggregates every long-lived component serve needs to register
// routes, run startup recovery, launch the worker pool, and shut everything
// down cleanly.
type services struct {
	store *store.Store
	queue *queue.Manager
	pool  *workerpool.Pool
	deps  control.Dependencies
}

// buildServices wires the store, extractor adapter, optional transcript
// mirror, and every application service together. The embedded schema
// (applied inside store.Open) already seeds the settings singleton with
// sane defaults, so there is no separate seeding step here.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	st, err := store.Open(ctx, cfg.DatabasePath, cfg.LockWaitBudget)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	log := eventlog.New(st)
	q := queue.New(st, log)
	adapter := extractor.NewYTDLP(cfg.ExtractorBinary, cfg.ExtractorTimeout)

	setting, err := st.GetSetting(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	ing := ingestor.New(st, adapter, log)
	pool := workerpool.New(st, q, adapter, log)
	pool.BackoffFactor = setting.BackoffFactor

	if mirror.IsS3OutputDir(setting.OutputDir) {
		m, err := mirror.New(ctx, setting.OutputDir, "us-east-1", "")
		if err != nil {
			slog.Default().Warn("transcript mirror unavailable, continuing with local output only", "error", err)
		} else {
			pool.Mirror = m
		}
	}

	return &services{
		store: st,
		queue: q,
		pool:  pool,
		deps: control.Dependencies{
			Store:          st,
			Queue:          q,
			Ingestor:       ing,
			Pool:           pool,
			ShutdownBudget: cfg.ShutdownBudget,
		},
	}, nil
}
