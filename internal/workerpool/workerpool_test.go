package workerpool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/extractor"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
)

type fakeAdapter struct {
	fetch func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error)
}

func (f *fakeAdapter) ListChannel(ctx context.Context, channelURL string) (*string, []extractor.VideoEntry, error) {
	return nil, nil, errors.New("not used in this test")
}

func (f *fakeAdapter) FetchTranscript(ctx context.Context, videoURL string, preferredLangs []string, includeAuto bool) (extractor.TranscriptResult, error) {
	return f.fetch(ctx, videoURL)
}

func newTestPool(t *testing.T, adapter extractor.Adapter) (*Pool, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "app.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	log := eventlog.New(s)
	q := queue.New(s, log)
	return New(s, q, adapter, log), s
}

func waitForCondition(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPoolProcessesVideoToCompletion(t *testing.T) {
	adapter := &fakeAdapter{
		fetch: func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error) {
			return extractor.TranscriptResult{Language: "en", Content: "hello world"}, nil
		},
	}
	pool, s := newTestPool(t, adapter)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Pool")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=x", "x")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}

	if err := pool.Start(ctx, 2); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	defer pool.Stop(ctx, 5*time.Second)

	waitForCondition(t, 2*time.Second, func() bool {
		video, err := s.GetVideo(ctx, videoID)
		return err == nil && video.Status == models.VideoCompleted
	})

	subs, err := s.ListSubtitles(ctx, videoID)
	if err != nil {
		t.Fatalf("list subtitles: %v", err)
	}
	if len(subs) != 1 || subs[0].Content != "hello world" {
		t.Fatalf("expected persisted subtitle, got %+v", subs)
	}
}

func TestPoolAppliesBackoffOnTransientFailure(t *testing.T) {
	attempts := 0
	adapter := &fakeAdapter{
		fetch: func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error) {
			attempts++
			return extractor.TranscriptResult{}, errors.New("network timeout")
		},
	}
	pool, s := newTestPool(t, adapter)
	pool.BackoffFactor = 60 // large enough that a second claim won't happen before we stop
	ctx := context.Background()

	if err := s.UpdateSetting(ctx, models.Setting{MaxWorkers: 1, MaxRetries: 5, BackoffFactor: 2, OutputDir: "./subtitles"}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Backoff")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=y", "y")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}

	if err := pool.Start(ctx, 1); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	defer pool.Stop(ctx, time.Second)

	waitForCondition(t, 2*time.Second, func() bool {
		video, err := s.GetVideo(ctx, videoID)
		return err == nil && video.Attempts >= 1
	})

	time.Sleep(100 * time.Millisecond)
	if attempts != 1 {
		t.Fatalf("expected backoff to prevent a second claim within the test window, got %d attempts", attempts)
	}

	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.Status != models.VideoPending {
		t.Fatalf("expected video requeued as pending, got %s", video.Status)
	}
}

func TestPoolForcesPermanentFailureImmediately(t *testing.T) {
	adapter := &fakeAdapter{
		fetch: func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error) {
			return extractor.TranscriptResult{}, errors.New("this is a private video")
		},
	}
	pool, s := newTestPool(t, adapter)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Permanent")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=z", "z")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}

	if err := pool.Start(ctx, 1); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	defer pool.Stop(ctx, time.Second)

	waitForCondition(t, 2*time.Second, func() bool {
		video, err := s.GetVideo(ctx, videoID)
		return err == nil && video.Status == models.VideoFailed
	})
}

func TestPoolForcesOversizedTranscriptPermanentImmediately(t *testing.T) {
	oversized := make([]byte, models.MaxSubtitleContentBytes+1)
	for i := range oversized {
		oversized[i] = 'x'
	}
	adapter := &fakeAdapter{
		fetch: func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error) {
			return extractor.TranscriptResult{Language: "en", Content: string(oversized)}, nil
		},
	}
	pool, s := newTestPool(t, adapter)
	ctx := context.Background()

	channelID, _, err := s.UpsertChannel(ctx, "https://video.example/@Oversized")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(ctx, channelID, "https://video.example/watch?v=big", "big")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}

	if err := pool.Start(ctx, 1); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	defer pool.Stop(ctx, time.Second)

	waitForCondition(t, 2*time.Second, func() bool {
		video, err := s.GetVideo(ctx, videoID)
		return err == nil && video.Status == models.VideoFailed
	})

	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.Attempts != 1 {
		t.Fatalf("expected a single attempt before terminal failure, got %d", video.Attempts)
	}
}

func TestStopWithinBudgetMarksJobStopped(t *testing.T) {
	adapter := &fakeAdapter{
		fetch: func(ctx context.Context, videoURL string) (extractor.TranscriptResult, error) {
			return extractor.TranscriptResult{}, errors.New("no pending work")
		},
	}
	pool, s := newTestPool(t, adapter)
	ctx := context.Background()

	if err := pool.Start(ctx, 2); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	if err := pool.Stop(ctx, 2*time.Second); err != nil {
		t.Fatalf("stop pool: %v", err)
	}

	job, err := s.GetJob(ctx)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != models.JobIdle {
		t.Fatalf("expected idle job status after stop, got %s", job.Status)
	}
}
