package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "app.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s, eventlog.New(s)), s
}

func TestRecoverOnStartupSequence(t *testing.T) {
	mgr, s := newTestManager(t)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Recover")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}

	stuckID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=stuck", "stuck")
	if err != nil {
		t.Fatalf("insert stuck video: %v", err)
	}
	doneID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=done", "done")
	if err != nil {
		t.Fatalf("insert done video: %v", err)
	}

	if _, _, err := mgr.ClaimNext(ctx); err != nil {
		t.Fatalf("claim stuck video: %v", err)
	}
	if _, _, err := mgr.ClaimNext(ctx); err != nil {
		t.Fatalf("claim done video: %v", err)
	}
	if err := s.UpsertSubtitle(ctx, doneID, "en", "already harvested"); err != nil {
		t.Fatalf("upsert subtitle: %v", err)
	}

	if err := mgr.RecoverOnStartup(ctx); err != nil {
		t.Fatalf("recover on startup: %v", err)
	}

	stuck, err := s.GetVideo(ctx, stuckID)
	if err != nil {
		t.Fatalf("get stuck video: %v", err)
	}
	if stuck.Status != models.VideoPending {
		t.Fatalf("expected stuck video reset to pending, got %s", stuck.Status)
	}

	done, err := s.GetVideo(ctx, doneID)
	if err != nil {
		t.Fatalf("get done video: %v", err)
	}
	if done.Status != models.VideoCompleted {
		t.Fatalf("expected done video reconciled to completed, got %s", done.Status)
	}
}

func TestReleaseLogsOnTerminalFailure(t *testing.T) {
	mgr, s := newTestManager(t)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Logging")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=x", "x")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}
	if _, _, err := mgr.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result, err := mgr.Release(ctx, videoID, OutcomeFailed, "private video", true)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if result.Status != models.VideoFailed {
		t.Fatalf("expected terminal failed, got %s", result.Status)
	}

	logs, err := s.ListLogs(ctx, store.LogFilter{Level: models.LogError})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "private video" {
		t.Fatalf("expected one ERROR log with the failure message, got %+v", logs)
	}
}

func TestRetryFailedLogsInfo(t *testing.T) {
	mgr, s := newTestManager(t)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@RetryLog")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=y", "y")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}
	if _, _, err := mgr.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := mgr.Release(ctx, videoID, OutcomeFailed, "unavailable", true); err != nil {
		t.Fatalf("release: %v", err)
	}

	if err := mgr.RetryFailed(ctx, videoID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.Status != models.VideoPending {
		t.Fatalf("expected pending after retry, got %s", video.Status)
	}
}
