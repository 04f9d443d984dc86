// Package workerpool is the Worker Pool (spec section 4.6): a supervisor
// running N workers, each looping claim -> fetch -> extract -> release,
// with exponential backoff on transient failure and a bounded shutdown
// budget so a restart never loses more than the in-flight claim.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/transcript-harvester/backend/internal/classifier"
	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/extractor"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
)

const (
	idlePoll      = time.Second
	maxBackoff    = 300 * time.Second
	preferredLang = "en"
)

// WorkerStatus is the per-worker snapshot reported by the control plane.
type WorkerStatus struct {
	ID              int
	Processed       int
	Failed          int
	Running         bool
	CurrentVideoID  *int64
	StartedAt       time.Time
	LastActivity    time.Time
}

// PoolStatus aggregates the whole worker pool plus derived queue metrics.
type PoolStatus struct {
	Running        bool
	NumWorkers     int
	ActiveWorkers  int
	TotalProcessed int
	TotalFailed    int
	Workers        []WorkerStatus
	Queue          models.QueueStats
}

// transcriptMirror is satisfied by *mirror.Mirror. It is declared locally so
// the worker pool only depends on the shape it needs, not the AWS SDK.
type transcriptMirror interface {
	Upload(ctx context.Context, channelID, videoID int64, language, content string) error
}

// Pool supervises a configurable number of workers pulling from the Queue
// Manager. It is safe to Start/Stop/Restart repeatedly across its lifetime.
type Pool struct {
	store   *store.Store
	queue   *queue.Manager
	adapter extractor.Adapter
	log     *eventlog.Logger

	// BackoffFactor is the exponential backoff base applied between a
	// transient failure and the worker's next claim (spec section 4.6).
	// Callers refresh it from Setting.BackoffFactor whenever settings change.
	BackoffFactor float64

	// Mirror additionally uploads each completed transcript to object
	// storage when Setting.OutputDir names an S3 location. Nil disables
	// mirroring entirely.
	Mirror transcriptMirror

	mu      sync.Mutex
	workers []*worker
	cancel  context.CancelFunc
	running bool
}

// New constructs a Pool. Workers are not started until Start is called.
func New(s *store.Store, q *queue.Manager, adapter extractor.Adapter, log *eventlog.Logger) *Pool {
	return &Pool{store: s, queue: q, adapter: adapter, log: log, BackoffFactor: 2.0}
}

// Start launches n workers. Calling Start while already running is a no-op
// other than refreshing the job-singleton's active_workers mirror.
func (p *Pool) Start(ctx context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return p.store.SetActiveWorkers(ctx, len(p.workers))
	}
	if n <= 0 {
		n = 1
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.workers = make([]*worker, n)

	for i := 0; i < n; i++ {
		w := &worker{
			id:        i + 1,
			pool:      p,
			startedAt: time.Now(),
		}
		p.workers[i] = w
		go w.run(workerCtx)
	}

	p.running = true
	return p.store.SetJobRunning(ctx, n)
}

// Stop raises the process-wide stop signal and waits up to budget for every
// worker to finish its current video, per spec section 4.6's graceful
// shutdown contract. Workers that do not finish in time are abandoned; their
// videos are recovered by RecoverOnStartup on the next launch.
func (p *Pool) Stop(ctx context.Context, budget time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	workers := p.workers
	p.running = false
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			w.wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(budget):
		p.log.Log(ctx, models.LogWarn, "graceful shutdown budget exceeded; leaving in-flight videos for startup recovery", nil)
	}
	return p.store.SetJobStopped(ctx)
}

// Restart stops the pool (if running) and starts it again with n workers.
func (p *Pool) Restart(ctx context.Context, n int, shutdownBudget time.Duration) error {
	if err := p.Stop(ctx, shutdownBudget); err != nil {
		return err
	}
	return p.Start(ctx, n)
}

// Status reports per-worker and aggregate pool metrics.
func (p *Pool) Status(ctx context.Context) (PoolStatus, error) {
	p.mu.Lock()
	running := p.running
	workers := append([]*worker(nil), p.workers...)
	p.mu.Unlock()

	status := PoolStatus{Running: running, NumWorkers: len(workers)}
	active := 0
	for _, w := range workers {
		ws := w.status()
		if ws.Running {
			active++
		}
		status.TotalProcessed += ws.Processed
		status.TotalFailed += ws.Failed
		status.Workers = append(status.Workers, ws)
	}
	status.ActiveWorkers = active

	qstats, err := p.queue.Stats(ctx, 0)
	if err != nil {
		return PoolStatus{}, fmt.Errorf("queue stats: %w", err)
	}
	status.Queue = qstats
	return status, nil
}

type worker struct {
	id        int
	pool      *Pool
	wg        sync.WaitGroup
	startedAt time.Time

	mu             sync.Mutex
	processed      int
	failed         int
	currentVideoID *int64
	lastActivity   time.Time
	active         bool
}

func (w *worker) wait() {
	w.wg.Wait()
}

func (w *worker) status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{
		ID:             w.id,
		Processed:      w.processed,
		Failed:         w.failed,
		Running:        w.active,
		CurrentVideoID: w.currentVideoID,
		StartedAt:      w.startedAt,
		LastActivity:   w.lastActivity,
	}
}

// run implements the per-worker loop from spec section 4.6.
func (w *worker) run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		video, ok, err := w.pool.queue.ClaimNext(ctx)
		if err != nil {
			w.pool.log.LogException(ctx, fmt.Errorf("worker %d claim: %w", w.id, err), nil)
			w.sleep(ctx, idlePoll)
			continue
		}
		if !ok {
			w.sleep(ctx, idlePoll)
			continue
		}

		w.mu.Lock()
		w.active = true
		w.currentVideoID = &video.ID
		w.lastActivity = time.Now()
		w.mu.Unlock()

		attempts := w.process(ctx, video)

		w.mu.Lock()
		w.active = false
		w.currentVideoID = nil
		w.lastActivity = time.Now()
		w.mu.Unlock()

		if attempts > 0 {
			w.sleep(ctx, w.pool.backoffDelay(attempts))
		}
	}
}

// process runs one claim->extract->release cycle and returns the video's
// post-release attempt count (0 when it terminated as completed, so the
// caller knows not to apply backoff).
func (w *worker) process(ctx context.Context, video models.Video) int {
	// Spec section 4.5 step 4: store handles are dropped before the
	// extractor call; nothing below this point touches w.pool.store until
	// the result is known.
	result, err := w.pool.adapter.FetchTranscript(ctx, video.URL, []string{preferredLang}, true)
	if err != nil {
		return w.handleFailure(ctx, video, err)
	}

	if err := w.pool.store.UpsertSubtitle(ctx, video.ID, result.Language, result.Content); err != nil {
		return w.handleFailure(ctx, video, err)
	}

	if w.pool.Mirror != nil {
		if err := w.pool.Mirror.Upload(ctx, video.ChannelID, video.ID, result.Language, result.Content); err != nil {
			w.pool.log.LogException(ctx, fmt.Errorf("mirror upload for video %d: %w", video.ID, err), &video.ID)
		}
	}

	if _, err := w.pool.queue.Release(ctx, video.ID, queue.OutcomeCompleted, "", false); err != nil {
		w.pool.log.LogException(ctx, fmt.Errorf("release completed video %d: %w", video.ID, err), &video.ID)
		return 0
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()
	return 0
}

func (w *worker) handleFailure(ctx context.Context, video models.Video, cause error) int {
	// store.ErrSubtitleTooLarge has no classifier marker of its own (it's a
	// store-side size check, not adapter error text); treat it as permanent
	// directly instead of burning the retry budget on an oversized fetch
	// that will exceed the ceiling again on every retry.
	permanent := errors.Is(cause, store.ErrSubtitleTooLarge) || classifier.Classify(cause.Error()) == classifier.Permanent

	result, err := w.pool.queue.Release(ctx, video.ID, queue.OutcomeFailed, cause.Error(), permanent)
	if err != nil {
		w.pool.log.LogException(ctx, fmt.Errorf("release failed video %d: %w", video.ID, err), &video.ID)
		return 0
	}

	w.mu.Lock()
	w.failed++
	w.mu.Unlock()

	if result.Status == models.VideoPending {
		return result.Attempts
	}
	return 0
}

func (w *worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// backoffDelay computes min(backoff_factor^attempts, 300s) per spec section
// 4.6, using the pool's current BackoffFactor.
func (p *Pool) backoffDelay(attempts int) time.Duration {
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	seconds := math.Pow(factor, float64(attempts))
	if seconds > maxBackoff.Seconds() {
		seconds = maxBackoff.Seconds()
	}
	return time.Duration(seconds * float64(time.Second))
}
