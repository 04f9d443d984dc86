// Package queue is the Queue Manager (spec section 4.3): the business-rule
// layer sitting on top of internal/store that decides, on every release,
// whether a video goes back to pending, completes, or fails terminally, and
// makes sure every one of those transitions is logged through eventlog.
package queue

import (
	"context"
	"fmt"

	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/store"
)

// Manager wraps a Store with the release/logging contract from spec section
// 4.3 and the startup recovery sequence from section 7.
type Manager struct {
	store *store.Store
	log   *eventlog.Logger
}

// New builds a Manager over the given store and logger.
func New(s *store.Store, log *eventlog.Logger) *Manager {
	return &Manager{store: s, log: log}
}

// ClaimNext atomically claims the oldest pending video, or reports that the
// queue is empty (spec properties P1, P2).
func (m *Manager) ClaimNext(ctx context.Context) (models.Video, bool, error) {
	video, ok, err := m.store.ClaimNext(ctx)
	if err != nil {
		return models.Video{}, false, fmt.Errorf("claim next video: %w", err)
	}
	return video, ok, nil
}

// Outcome describes what a worker learned while processing a claimed video.
type Outcome = store.ReleaseOutcome

const (
	OutcomeCompleted = store.ReleaseCompleted
	OutcomePending   = store.ReleasePending
	OutcomeFailed    = store.ReleaseFailed
)

// Release applies the outcome of processing a claimed video, logging a WARN
// on every retry increment and an ERROR on the terminal transition to
// failed, exactly as spec section 7(b)/(c) requires.
func (m *Manager) Release(ctx context.Context, videoID int64, outcome Outcome, errMessage string, permanent bool) (store.ReleaseResult, error) {
	result, err := m.store.Release(ctx, videoID, outcome, errMessage, permanent)
	if err != nil {
		return store.ReleaseResult{}, fmt.Errorf("release video %d: %w", videoID, err)
	}

	switch result.Status {
	case models.VideoFailed:
		m.log.Log(ctx, models.LogError, errMessage, &videoID)
	case models.VideoPending:
		if errMessage != "" {
			m.log.Log(ctx, models.LogWarn, errMessage, &videoID)
		}
	}
	return result, nil
}

// RecoverOnStartup runs the three-step recovery sequence from spec section
// 7: every processing row returns to pending, all retry counts on pending
// and processing rows are forgiven, then any video already holding a
// subtitle is elevated to completed.
func (m *Manager) RecoverOnStartup(ctx context.Context) error {
	reset, err := m.store.ResetProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset processing videos: %w", err)
	}
	if reset > 0 {
		m.log.Log(ctx, models.LogWarn, fmt.Sprintf("recovered %d video(s) stuck in processing at startup", reset), nil)
	}

	reconciled, err := m.store.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile completed videos: %w", err)
	}
	if reconciled > 0 {
		m.log.Log(ctx, models.LogInfo, fmt.Sprintf("reconciled %d video(s) already holding a transcript", reconciled), nil)
	}
	return nil
}

// RetryFailed resets a single failed video back to pending (spec property
// P7), clearing its error and attempt count.
func (m *Manager) RetryFailed(ctx context.Context, videoID int64) error {
	if err := m.store.RetryFailed(ctx, videoID); err != nil {
		return fmt.Errorf("retry video %d: %w", videoID, err)
	}
	m.log.Log(ctx, models.LogInfo, "video manually requeued for retry", &videoID)
	return nil
}

// Stats reports queue depth per status, optionally scoped to one channel.
func (m *Manager) Stats(ctx context.Context, channelID int64) (models.QueueStats, error) {
	stats, err := m.store.Stats(ctx, channelID)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}
