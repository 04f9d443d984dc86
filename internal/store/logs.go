package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/transcript-harvester/backend/internal/models"
)

// InsertLog appends one row to the logs table. videoID may be nil for
// process-level events (startup recovery, reconciliation sweeps).
func (s *Store) InsertLog(ctx context.Context, level models.LogLevel, message string, videoID *int64) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO logs (video_id, level, message) VALUES (?, ?, ?)
    `, nullableInt64(videoID), string(level), message)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// LogFilter narrows ListLogs results.
type LogFilter struct {
	Level   models.LogLevel
	VideoID int64
	Limit   int
}

// ListLogs returns the most recent log rows matching the filter.
func (s *Store) ListLogs(ctx context.Context, filter LogFilter) ([]models.LogEntry, error) {
	query := `SELECT id, video_id, level, message, timestamp FROM logs`
	var (
		clauses []string
		args    []any
	)
	if filter.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, string(filter.Level))
	}
	if filter.VideoID != 0 {
		clauses = append(clauses, "video_id = ?")
		args = append(args, filter.VideoID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			entry   models.LogEntry
			videoID sql.NullInt64
			level   string
		)
		if err := rows.Scan(&entry.ID, &videoID, &level, &entry.Message, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry.Level = models.LogLevel(level)
		if videoID.Valid {
			v := videoID.Int64
			entry.VideoID = &v
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

// DeleteLogsOlderThan removes log rows older than the cutoff and returns
// the number of rows deleted (spec scenario S6).
func (s *Store) DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted log count: %w", err)
	}
	return int(n), nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
