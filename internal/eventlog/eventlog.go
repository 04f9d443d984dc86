// Package eventlog is the Logger component (spec section 4.2). Every event
// is duplicated to the structured stderr logger and to the logs table, so
// an operator can `tail -f` the process or query history through the
// control API without the two views ever disagreeing.
package eventlog

import (
	"context"
	"log/slog"

	"github.com/transcript-harvester/backend/internal/logging"
	"github.com/transcript-harvester/backend/internal/models"
	"github.com/transcript-harvester/backend/internal/store"
)

// maxMessageBytes truncates over-long messages before they reach the logs
// table. slog still receives the untruncated message.
const maxMessageBytes = 4000

// Logger writes to both log/slog and the durable logs table.
type Logger struct {
	store *store.Store
}

// New wraps a Store so every Log call also persists a row.
func New(s *store.Store) *Logger {
	return &Logger{store: s}
}

// Log records an event at the given level, optionally attributed to a video.
// A failure to persist the row is itself logged to stderr and swallowed: the
// caller's primary operation must never fail because logging did.
func (l *Logger) Log(ctx context.Context, level models.LogLevel, message string, videoID *int64) {
	logger := logging.FromContext(ctx)
	attrs := []any{slog.String("level", string(level))}
	if videoID != nil {
		attrs = append(attrs, slog.Int64("video_id", *videoID))
	}

	switch level {
	case models.LogError:
		logger.Error(message, attrs...)
	case models.LogWarn:
		logger.Warn(message, attrs...)
	default:
		logger.Info(message, attrs...)
	}

	if l.store == nil {
		return
	}
	if err := l.store.InsertLog(ctx, level, truncate(message), videoID); err != nil {
		logger.Error("failed to persist log entry", slog.String("error", err.Error()))
	}
}

// Info is a convenience wrapper around Log at INFO level.
func (l *Logger) Info(ctx context.Context, message string, videoID *int64) {
	l.Log(ctx, models.LogInfo, message, videoID)
}

// Warn is a convenience wrapper around Log at WARN level.
func (l *Logger) Warn(ctx context.Context, message string, videoID *int64) {
	l.Log(ctx, models.LogWarn, message, videoID)
}

// LogException records an ERROR-level event derived from a Go error.
func (l *Logger) LogException(ctx context.Context, err error, videoID *int64) {
	if err == nil {
		return
	}
	l.Log(ctx, models.LogError, err.Error(), videoID)
}

func truncate(message string) string {
	if len(message) <= maxMessageBytes {
		return message
	}
	return message[:maxMessageBytes]
}
