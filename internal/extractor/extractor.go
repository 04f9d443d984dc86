// Package extractor defines the Extractor Adapter boundary (spec section
// 6.3): the flaky third-party black box that knows how to enumerate a
// channel's videos and fetch a single video's transcript. Nothing upstream
// of this package cares whether that happens over a subprocess, an HTTP
// API, or an in-process fake used by tests.
package extractor

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when no adapter implementation is configured.
var ErrUnavailable = errors.New("extractor adapter unavailable")

// CanonicalHost is the domain used to synthesize a watch URL when a listing
// entry supplies nothing but a bare video ID (spec section 4.5 step 5).
const CanonicalHost = "video.example"

// VideoEntry is one row of a channel listing. Any of the identifying fields
// may be empty depending on what the underlying extractor surfaces;
// CanonicalURL falls back from WebpageURL to URL to a synthesized watch URL
// built from ID.
type VideoEntry struct {
	ID          string
	WebpageURL  string
	URL         string
	Title       string
}

// TranscriptResult is the successful outcome of FetchTranscript.
type TranscriptResult struct {
	Language        string
	Content         string
	IsAutoGenerated bool
	AvailableLangs  []string
	AutoLangs       []string
}

// Adapter is the Extractor Adapter contract from spec section 6.3. Errors
// returned from either method are plain, human-readable strings: the
// classifier package turns them into Transient/Permanent, not this package.
type Adapter interface {
	// ListChannel enumerates every publicly listed video on a channel. The
	// channel title is optional (nil when the extractor can't determine
	// one); the entry list is finite and ordered as the source presents it.
	ListChannel(ctx context.Context, channelURL string) (channelTitle *string, entries []VideoEntry, err error)

	// FetchTranscript returns the best-available transcript for a single
	// video, preferring preferredLangs in order and falling back to
	// auto-generated captions only when includeAuto is true.
	FetchTranscript(ctx context.Context, videoURL string, preferredLangs []string, includeAuto bool) (TranscriptResult, error)
}

// CanonicalURL picks the best available URL for a listing entry, preferring
// the fully-qualified webpage URL the extractor reports and falling back to
// a synthesized `https://<CanonicalHost>/watch?v=<id>` URL when the
// extractor supplied nothing but a bare video ID.
func (e VideoEntry) CanonicalURL() string {
	switch {
	case e.WebpageURL != "":
		return e.WebpageURL
	case e.URL != "":
		return e.URL
	case e.ID != "":
		return fmt.Sprintf("https://%s/watch?v=%s", CanonicalHost, e.ID)
	default:
		return ""
	}
}
