package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes an external command and returns its stdout bytes.
// Swappable in tests so they never shell out to a real yt-dlp binary.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// YTDLP adapts the yt-dlp CLI to the Adapter interface. Every call makes up
// to MaxAttempts attempts with jittered exponential backoff between them, then surfaces
// the last error verbatim for the classifier to judge (spec section 6.3).
type YTDLP struct {
	Binary      string
	Run         CommandRunner
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

// NewYTDLP constructs a YTDLP adapter with sensible defaults filled in.
func NewYTDLP(binary string, timeout time.Duration) *YTDLP {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YTDLP{
		Binary:      binary,
		Run:         defaultCommandRunner,
		Timeout:     timeout,
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
	}
}

type channelEntryPayload struct {
	ID          string `json:"id"`
	WebpageURL  string `json:"webpage_url"`
	URL         string `json:"url"`
	Title       string `json:"title"`
}

type channelPayload struct {
	Title   string                `json:"title"`
	Entries []channelEntryPayload `json:"entries"`
}

// ListChannel shells out to `yt-dlp --flat-playlist --dump-single-json` for
// the channel URL and parses the resulting listing.
func (y *YTDLP) ListChannel(ctx context.Context, channelURL string) (*string, []VideoEntry, error) {
	args := []string{"--flat-playlist", "--dump-single-json", "--no-warnings", channelURL}

	out, err := y.runWithRetry(ctx, args)
	if err != nil {
		return nil, nil, fmt.Errorf("list channel: %w", err)
	}

	var payload channelPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, nil, fmt.Errorf("parse channel listing: %w", err)
	}

	entries := make([]VideoEntry, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		entries = append(entries, VideoEntry{
			ID:         e.ID,
			WebpageURL: e.WebpageURL,
			URL:        e.URL,
			Title:      e.Title,
		})
	}

	var title *string
	if payload.Title != "" {
		title = &payload.Title
	}
	return title, entries, nil
}

type subtitleTrack struct {
	Ext  string `json:"ext"`
	Name string `json:"name"`
}

type transcriptPayload struct {
	Subtitles        map[string][]subtitleTrack `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleTrack `json:"automatic_captions"`
}

// FetchTranscript shells out to yt-dlp to list available subtitle tracks,
// then downloads the best match for preferredLangs (falling back to
// auto-generated captions when includeAuto is true) and returns its text.
func (y *YTDLP) FetchTranscript(ctx context.Context, videoURL string, preferredLangs []string, includeAuto bool) (TranscriptResult, error) {
	listArgs := []string{"--dump-single-json", "--no-warnings", "--skip-download", videoURL}
	out, err := y.runWithRetry(ctx, listArgs)
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("fetch transcript listing: %w", err)
	}

	var payload transcriptPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return TranscriptResult{}, fmt.Errorf("parse transcript listing: %w", err)
	}

	lang, isAuto, found := selectLanguage(payload.Subtitles, payload.AutomaticCaptions, preferredLangs, includeAuto)
	if !found {
		return TranscriptResult{}, fmt.Errorf("no subtitles available for preferred languages %v", preferredLangs)
	}

	sub := "--write-subs"
	if isAuto {
		sub = "--write-auto-subs"
	}
	downloadArgs := []string{
		sub, "--sub-langs", lang, "--sub-format", "vtt",
		"--skip-download", "--no-warnings", "-o", "-", videoURL,
	}
	content, err := y.runWithRetry(ctx, downloadArgs)
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("download transcript: %w", err)
	}

	return TranscriptResult{
		Language:        lang,
		Content:         stripVTTMarkup(content),
		IsAutoGenerated: isAuto,
		AvailableLangs:  languageKeys(payload.Subtitles),
		AutoLangs:       languageKeys(payload.AutomaticCaptions),
	}, nil
}

func selectLanguage(subs, autoSubs map[string][]subtitleTrack, preferred []string, includeAuto bool) (lang string, isAuto bool, found bool) {
	for _, lang := range preferred {
		if _, ok := subs[lang]; ok {
			return lang, false, true
		}
	}
	if includeAuto {
		for _, lang := range preferred {
			if _, ok := autoSubs[lang]; ok {
				return lang, true, true
			}
		}
	}
	return "", false, false
}

func languageKeys(m map[string][]subtitleTrack) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func stripVTTMarkup(raw []byte) string {
	lines := strings.Split(string(raw), "\n")
	var text []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "WEBVTT" || strings.Contains(trimmed, "-->") {
			continue
		}
		if strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "Kind:") || strings.HasPrefix(trimmed, "Language:") {
			continue
		}
		text = append(text, trimmed)
	}
	return strings.Join(text, "\n")
}

func (y *YTDLP) runWithRetry(ctx context.Context, args []string) ([]byte, error) {
	run := y.Run
	if run == nil {
		run = defaultCommandRunner
	}
	maxAttempts := y.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		execCtx, cancel := context.WithTimeout(ctx, y.Timeout)
		out, err := run(execCtx, y.Binary, args...)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		backoff := y.BaseBackoff * time.Duration(1<<uint(attempt-1))
		jitter := time.Duration(rand.Int63n(int64(y.BaseBackoff) + 1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return nil, lastErr
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
