package extractor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestYTDLPListChannel(t *testing.T) {
	y := NewYTDLP("", time.Second)
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"title":"Acme Channel","entries":[
			{"id":"abc","webpage_url":"https://video.example/watch?v=abc","title":"First"},
			{"id":"def","url":"https://video.example/watch?v=def","title":"Second"}
		]}`), nil
	}

	title, entries, err := y.ListChannel(context.Background(), "https://video.example/@acme")
	if err != nil {
		t.Fatalf("list channel: %v", err)
	}
	if title == nil || *title != "Acme Channel" {
		t.Fatalf("expected channel title, got %v", title)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CanonicalURL() != "https://video.example/watch?v=abc" {
		t.Fatalf("unexpected canonical url: %s", entries[0].CanonicalURL())
	}
	if entries[1].CanonicalURL() != "https://video.example/watch?v=def" {
		t.Fatalf("unexpected canonical url: %s", entries[1].CanonicalURL())
	}
}

func TestYTDLPFetchTranscriptPrefersManualOverAuto(t *testing.T) {
	y := NewYTDLP("", time.Second)
	calls := 0
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte(`{
				"subtitles": {"en": [{"ext":"vtt"}]},
				"automatic_captions": {"en": [{"ext":"vtt"}], "fr": [{"ext":"vtt"}]}
			}`), nil
		}
		return []byte("WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello world\n"), nil
	}

	result, err := y.FetchTranscript(context.Background(), "https://video.example/watch?v=abc", []string{"en"}, true)
	if err != nil {
		t.Fatalf("fetch transcript: %v", err)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %s", result.Language)
	}
	if result.IsAutoGenerated {
		t.Fatalf("expected manual subtitle to be preferred over auto-generated")
	}
	if result.Content != "Hello world" {
		t.Fatalf("expected stripped VTT text, got %q", result.Content)
	}
}

func TestYTDLPFetchTranscriptFallsBackToAuto(t *testing.T) {
	y := NewYTDLP("", time.Second)
	calls := 0
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte(`{"subtitles": {}, "automatic_captions": {"en": [{"ext":"vtt"}]}}`), nil
		}
		return []byte("WEBVTT\n\nHi there\n"), nil
	}

	result, err := y.FetchTranscript(context.Background(), "https://video.example/watch?v=abc", []string{"en"}, true)
	if err != nil {
		t.Fatalf("fetch transcript: %v", err)
	}
	if !result.IsAutoGenerated {
		t.Fatalf("expected fallback to auto-generated captions")
	}
}

func TestYTDLPFetchTranscriptNoMatchingLanguage(t *testing.T) {
	y := NewYTDLP("", time.Second)
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"subtitles": {}, "automatic_captions": {}}`), nil
	}

	if _, err := y.FetchTranscript(context.Background(), "https://video.example/watch?v=abc", []string{"en"}, true); err == nil {
		t.Fatalf("expected an error when no subtitles are available")
	}
}

func TestRunWithRetryRetriesTransientFailures(t *testing.T) {
	y := NewYTDLP("", time.Second)
	y.BaseBackoff = time.Millisecond
	y.MaxAttempts = 3

	attempts := 0
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("temporary network error")
		}
		return []byte("ok"), nil
	}

	out, err := y.runWithRetry(context.Background(), []string{"--version"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if string(out) != "ok" {
		t.Fatalf("unexpected output: %s", out)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunWithRetrySurfacesLastErrorAfterBudget(t *testing.T) {
	y := NewYTDLP("", time.Second)
	y.BaseBackoff = time.Millisecond
	y.MaxAttempts = 2

	attempts := 0
	y.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		attempts++
		return nil, errors.New("private video")
	}

	_, err := y.runWithRetry(context.Background(), []string{"--version"})
	if err == nil {
		t.Fatalf("expected an error after exhausting attempts")
	}
	if attempts != 2 {
		t.Fatalf("expected exactly MaxAttempts=2 attempts, got %d", attempts)
	}
}
