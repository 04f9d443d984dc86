// Package models defines the plain data structures persisted by the store.
package models

import "time"

// VideoStatus enumerates the lifecycle states a Video row can occupy.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// JobStatus enumerates the Job singleton's advisory lifecycle states.
type JobStatus string

const (
	JobIdle    JobStatus = "idle"
	JobRunning JobStatus = "running"
	JobPaused  JobStatus = "paused"
)

// LogLevel enumerates the severities accepted by the Logger.
type LogLevel string

const (
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// IngestionStatus describes the background channel-enumeration state
// surfaced by GET /channels/{id}/ingestion-status.
type IngestionStatus string

const (
	IngestionLoading   IngestionStatus = "loading"
	IngestionCompleted IngestionStatus = "completed"
	IngestionFailed    IngestionStatus = "failed"
)

// NameLoading and NameFailed are the sentinel values written to
// Channel.Name while ingestion is in flight or has fatally failed.
const (
	NameLoading = "Loading"
	NameFailed  = "[Ingestion Failed]"
)

// Channel represents a video-platform channel the operator asked to harvest.
type Channel struct {
	ID          int64
	URL         string
	Name        string
	TotalVideos int
	CreatedAt   time.Time
}

// Video represents one enumerated video belonging to a Channel.
type Video struct {
	ID          int64
	ChannelID   int64
	URL         string
	Title       string
	Status      VideoStatus
	Attempts    int
	LastError   string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// MaxSubtitleContentBytes bounds Subtitle.Content (SPEC_FULL.md
// SUPPLEMENTED FEATURES: documented ceiling, not silent truncation).
const MaxSubtitleContentBytes = 2 * 1024 * 1024

// Subtitle represents a harvested transcript for one (video, language) pair.
type Subtitle struct {
	ID           int64
	VideoID      int64
	Language     string
	Content      string
	DownloadedAt time.Time
}

// Job is the singleton advisory lifecycle marker for the worker pool.
type Job struct {
	Status        JobStatus
	ActiveWorkers int
	StartedAt     *time.Time
	StoppedAt     *time.Time
}

// Setting is the singleton (id=1) operator-tunable configuration row.
type Setting struct {
	MaxWorkers    int     `json:"max_workers"`
	MaxRetries    int     `json:"max_retries"`
	BackoffFactor float64 `json:"backoff_factor"`
	OutputDir     string  `json:"output_dir"`
}

// LogEntry is one append-only row in the logs table.
type LogEntry struct {
	ID        int64
	VideoID   *int64
	Level     LogLevel
	Message   string
	Timestamp time.Time
}

// QueueStats is the multiset of video counts by status, optionally scoped
// to one channel.
type QueueStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Total      int
}
