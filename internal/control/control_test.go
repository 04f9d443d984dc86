package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/extractor"
	"github.com/transcript-harvester/backend/internal/ingestor"
	"github.com/transcript-harvester/backend/internal/queue"
	"github.com/transcript-harvester/backend/internal/store"
	"github.com/transcript-harvester/backend/internal/workerpool"
)

type noopAdapter struct{}

func (noopAdapter) ListChannel(ctx context.Context, channelURL string) (*string, []extractor.VideoEntry, error) {
	return nil, nil, errors.New("not configured in this test")
}

func (noopAdapter) FetchTranscript(ctx context.Context, videoURL string, preferredLangs []string, includeAuto bool) (extractor.TranscriptResult, error) {
	return extractor.TranscriptResult{}, errors.New("not configured in this test")
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	return newTestServerWithAdapter(t, noopAdapter{})
}

func newTestServerWithAdapter(t *testing.T, adapter extractor.Adapter) (*httptest.Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "app.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	log := eventlog.New(s)
	q := queue.New(s, log)
	ing := ingestor.New(s, adapter, log)
	pool := workerpool.New(s, q, adapter, log)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{Store: s, Queue: q, Ingestor: ing, Pool: pool, ShutdownBudget: time.Second})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, s
}

func TestCreateChannelRejectsInvalidURL(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"url": "not-a-channel-url"})
	resp, err := http.Post(srv.URL+"/channels", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

// blockingAdapter's ListChannel hangs until release is closed, so a test can
// hold a channel's enumeration in flight long enough to provoke a conflict.
type blockingAdapter struct {
	release chan struct{}
}

func (b *blockingAdapter) ListChannel(ctx context.Context, channelURL string) (*string, []extractor.VideoEntry, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, nil, nil
}

func (b *blockingAdapter) FetchTranscript(ctx context.Context, videoURL string, preferredLangs []string, includeAuto bool) (extractor.TranscriptResult, error) {
	return extractor.TranscriptResult{}, errors.New("not configured in this test")
}

func TestCreateChannelRejectsConcurrentIngestionOfSameChannel(t *testing.T) {
	adapter := &blockingAdapter{release: make(chan struct{})}
	defer close(adapter.release)
	srv, _ := newTestServerWithAdapter(t, adapter)

	body, _ := json.Marshal(map[string]string{"url": "https://video.example/@Busy"})
	first, err := http.Post(srv.URL+"/channels", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected first request to succeed with 200, got %d", first.StatusCode)
	}

	var gotConflict bool
	for i := 0; i < 50 && !gotConflict; i++ {
		second, err := http.Post(srv.URL+"/channels", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		if second.StatusCode == http.StatusConflict {
			gotConflict = true
		}
		second.Body.Close()
		if !gotConflict {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if !gotConflict {
		t.Fatal("expected a concurrent ingestion request to eventually be rejected with 409")
	}
}

func TestCreateChannelThenList(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"url": "https://video.example/@Acme"})
	resp, err := http.Post(srv.URL+"/channels", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	listResp, err := http.Get(srv.URL + "/channels")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer listResp.Body.Close()
	var channels []channelView
	if err := json.NewDecoder(listResp.Body).Decode(&channels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
}

func TestRetryRejectsNonFailedVideo(t *testing.T) {
	srv, s := newTestServer(t)

	channelID, _, err := s.UpsertChannel(context.Background(), "https://video.example/@Retry")
	if err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	videoID, _, err := s.InsertVideoIfAbsent(context.Background(), channelID, "https://video.example/watch?v=1", "v1")
	if err != nil {
		t.Fatalf("insert video: %v", err)
	}

	resp, err := http.Post(
		srv.URL+"/videos/"+itoa(videoID)+"/retry",
		"application/json", bytes.NewReader(nil),
	)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-failed video, got %d", resp.StatusCode)
	}
}

func TestUpdateSettingsRejectsOutOfRangeValues(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"max_workers":    100,
		"max_retries":    3,
		"backoff_factor": 2.0,
		"output_dir":     "./subtitles",
	})
	resp, err := http.Post(srv.URL+"/jobs/settings", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range max_workers, got %d", resp.StatusCode)
	}
}

func TestJobsStatusReflectsWorkerStart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/jobs/start", "application/json", bytes.NewReader([]byte(`{"num_workers":2}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	statusResp, err := http.Get(srv.URL + "/jobs/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer statusResp.Body.Close()
	var status jobStatusResponse
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "running" {
		t.Fatalf("expected running status, got %s", status.Status)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
