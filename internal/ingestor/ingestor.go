// Package ingestor is the Ingestor (spec section 4.5): it validates and
// normalizes channel URLs, upserts the Channel row synchronously, and hands
// the slow part — enumerating every video on the channel — to a detached,
// per-channel background task so the HTTP caller never waits on it.
package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/transcript-harvester/backend/internal/eventlog"
	"github.com/transcript-harvester/backend/internal/extractor"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/store"
)

// ErrInvalidChannelURL indicates the URL does not match any recognized
// channel-URL shape (spec section 4.5 step 1).
var ErrInvalidChannelURL = errors.New("url does not match a recognized channel shape")

// ErrIngestionInProgress is returned when a second ingestion is requested
// for a channel that already has one in flight (spec section 9's resolved
// open question: a per-channel in-flight ingestion lock).
var ErrIngestionInProgress = errors.New("ingestion already in progress for this channel")

var channelPathShapes = regexp.MustCompile(`^/(c|channel|user)/[^/]+/?$|^/@[^/]+/?$|^/playlist(\?|$)`)

// Ingestor drives channel ingestion. One instance is shared by the whole
// process; it tracks in-flight ingestion tasks per channel id.
type Ingestor struct {
	store        *store.Store
	adapter      extractor.Adapter
	log          *eventlog.Logger
	batchSize    int
	metadataWait time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
	wg       sync.WaitGroup
}

// New constructs an Ingestor.
func New(s *store.Store, adapter extractor.Adapter, log *eventlog.Logger) *Ingestor {
	return &Ingestor{
		store:        s,
		adapter:      adapter,
		log:          log,
		batchSize:    100,
		metadataWait: 2 * time.Minute,
		inFlight:     make(map[int64]struct{}),
	}
}

// ValidateChannelURL checks the URL against the recognized channel-URL
// shapes without mutating any state.
func ValidateChannelURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChannelURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: missing scheme or host", ErrInvalidChannelURL)
	}
	if !channelPathShapes.MatchString(parsed.Path + ifNonEmpty(parsed.RawQuery)) {
		return fmt.Errorf("%w: %s", ErrInvalidChannelURL, parsed.Path)
	}
	return nil
}

func ifNonEmpty(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	return "?" + rawQuery
}

// NormalizeChannelURL forces the canonical scheme, host, and strips
// redundant host prefixes (spec section 4.5 step 2).
func NormalizeChannelURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidChannelURL, err)
	}
	parsed.Scheme = "https"
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	parsed.Host = host
	parsed.Fragment = ""
	return parsed.String(), nil
}

// Ingest validates, normalizes, and upserts each channel URL, then kicks off
// a detached enumeration task per newly-or-already-known channel. It returns
// the channel ids synchronously; enumeration continues in the background.
//
// A URL whose channel already has an enumeration in flight does not abort
// the batch: the channel row is still upserted and its id still returned,
// but Ingest also returns an error wrapping ErrIngestionInProgress (naming
// the conflicting channel ids) so callers can surface the conflict — e.g.
// as an HTTP 409 — without losing the other URLs in the same request.
func (ing *Ingestor) Ingest(ctx context.Context, urls []string) ([]int64, error) {
	ids := make([]int64, 0, len(urls))
	var conflicts []int64
	for _, raw := range urls {
		if err := ValidateChannelURL(raw); err != nil {
			return nil, err
		}
		normalized, err := NormalizeChannelURL(raw)
		if err != nil {
			return nil, err
		}

		channelID, _, err := ing.store.UpsertChannel(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("upsert channel %s: %w", normalized, err)
		}
		ids = append(ids, channelID)

		if err := ing.startEnumeration(channelID, normalized); err != nil {
			if errors.Is(err, ErrIngestionInProgress) {
				conflicts = append(conflicts, channelID)
				continue
			}
			return nil, err
		}
	}
	if len(conflicts) > 0 {
		return ids, fmt.Errorf("%w: channel ids %v", ErrIngestionInProgress, conflicts)
	}
	return ids, nil
}

// startEnumeration launches the detached per-channel task, rejecting a
// second concurrent ingestion of the same channel.
func (ing *Ingestor) startEnumeration(channelID int64, channelURL string) error {
	ing.mu.Lock()
	if _, busy := ing.inFlight[channelID]; busy {
		ing.mu.Unlock()
		return ErrIngestionInProgress
	}
	ing.inFlight[channelID] = struct{}{}
	ing.mu.Unlock()

	ing.wg.Add(1)
	go func() {
		defer ing.wg.Done()
		defer func() {
			ing.mu.Lock()
			delete(ing.inFlight, channelID)
			ing.mu.Unlock()
		}()
		ing.enumerate(channelID, channelURL)
	}()
	return nil
}

// Wait blocks until every in-flight enumeration task has finished. Only tests
// call it; the serve path's shutdown does not wait for enumeration tasks.
func (ing *Ingestor) Wait() {
	ing.wg.Wait()
}

func (ing *Ingestor) enumerate(channelID int64, channelURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), ing.metadataWait)
	defer cancel()

	title, entries, err := ing.adapter.ListChannel(ctx, channelURL)
	if err != nil {
		ing.fail(ctx, channelID, fmt.Errorf("list channel %s: %w", channelURL, err))
		return
	}
	if title != nil && *title != "" {
		if err := ing.store.UpdateChannelName(ctx, channelID, *title); err != nil {
			ing.log.LogException(ctx, fmt.Errorf("update channel name: %w", err), nil)
		}
	}

	inserted := 0
	for i := 0; i < len(entries); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, entry := range entries[i:end] {
			videoURL := entry.CanonicalURL()
			if videoURL == "" {
				continue
			}
			if _, created, err := ing.store.InsertVideoIfAbsent(ctx, channelID, videoURL, entry.Title); err != nil {
				ing.fail(ctx, channelID, fmt.Errorf("insert video %s: %w", videoURL, err))
				return
			} else if created {
				inserted++
			}
		}
	}

	total, err := ing.store.CountVideosForChannel(ctx, channelID)
	if err != nil {
		ing.fail(ctx, channelID, fmt.Errorf("count videos for channel %d: %w", channelID, err))
		return
	}
	if err := ing.store.UpdateChannelTotalVideos(ctx, channelID, total); err != nil {
		ing.fail(ctx, channelID, fmt.Errorf("update total_videos for channel %d: %w", channelID, err))
		return
	}

	ing.log.Info(ctx, fmt.Sprintf("ingested %d new video(s) for channel %d (%d total)", inserted, channelID, total), nil)
}

func (ing *Ingestor) fail(ctx context.Context, channelID int64, err error) {
	if updateErr := ing.store.UpdateChannelName(ctx, channelID, models.NameFailed); updateErr != nil {
		slog.Default().Error("failed to mark channel ingestion failed", "channel_id", channelID, "error", updateErr)
	}
	ing.log.LogException(ctx, fmt.Errorf("channel %d ingestion: %w", channelID, err), nil)
}
