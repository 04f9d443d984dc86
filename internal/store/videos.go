package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/transcript-harvester/backend/internal/models"
)

// VideoFilter narrows ListVideos results.
type VideoFilter struct {
	Status    models.VideoStatus
	ChannelID int64
	Limit     int
	Offset    int
}

// InsertVideoIfAbsent inserts a pending video row for url if it does not
// already exist (global uniqueness per spec section 3: "a video referenced
// by two channels is deduplicated"). Returns the row id and whether it was
// newly created; if the row already existed its channel_id is left
// untouched, so the first channel to reference a URL keeps ownership
// (spec scenario S5).
func (s *Store) InsertVideoIfAbsent(ctx context.Context, channelID int64, url, title string) (id int64, created bool, err error) {
	err = s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT id FROM videos WHERE url = ?`, url)
		var existing int64
		switch scanErr := row.Scan(&existing); {
		case scanErr == nil:
			id = existing
			created = false
			return nil
		case errors.Is(scanErr, sql.ErrNoRows):
			res, insErr := conn.ExecContext(ctx, `
                INSERT INTO videos (channel_id, url, title, status, attempts)
                VALUES (?, ?, ?, 'pending', 0)
            `, channelID, url, title)
			if insErr != nil {
				return fmt.Errorf("insert video: %w", insErr)
			}
			newID, idErr := res.LastInsertId()
			if idErr != nil {
				return fmt.Errorf("read new video id: %w", idErr)
			}
			id = newID
			created = true
			return nil
		default:
			return fmt.Errorf("lookup video by url: %w", scanErr)
		}
	})
	return id, created, err
}

// GetVideo fetches a video by id.
func (s *Store) GetVideo(ctx context.Context, id int64) (models.Video, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, channel_id, url, title, status, attempts, last_error, completed_at, created_at
        FROM videos WHERE id = ?
    `, id)
	return scanVideo(row)
}

// ListVideos returns videos matching the filter, newest-id-first within a
// page, for the GET /videos control-plane endpoint.
func (s *Store) ListVideos(ctx context.Context, filter VideoFilter) ([]models.Video, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ChannelID != 0 {
		clauses = append(clauses, "channel_id = ?")
		args = append(args, filter.ChannelID)
	}

	query := "SELECT id, channel_id, url, title, status, attempts, last_error, completed_at, created_at FROM videos"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		v, err := scanVideoRows(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// CountVideosForChannel returns the number of video rows currently owned by
// a channel, used to set Channel.TotalVideos to the authoritative count.
func (s *Store) CountVideosForChannel(ctx context.Context, channelID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos WHERE channel_id = ?`, channelID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count videos for channel: %w", err)
	}
	return count, nil
}

// DeleteVideo removes a video; subtitles cascade per schema.
func (s *Store) DeleteVideo(ctx context.Context, id int64) error {
	tag, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return rowsAffectedOrNotFound(tag)
}

// ClaimNext atomically transitions the lowest-id pending video to
// processing in a single statement (spec section 4.3, section 9): the
// UPDATE's own WHERE clause re-checks status='pending', so at most one
// concurrent caller observes rows_affected=1 for any given row (P1), and
// the subquery's ORDER BY id LIMIT 1 preserves FIFO ordering (P2).
func (s *Store) ClaimNext(ctx context.Context) (models.Video, bool, error) {
	var claimedID int64
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
            UPDATE videos
            SET status = 'processing'
            WHERE id = (
                SELECT id FROM videos WHERE status = 'pending' ORDER BY id LIMIT 1
            ) AND status = 'pending'
            RETURNING id
        `)
		switch err := row.Scan(&claimedID); {
		case err == nil:
			return nil
		case errors.Is(err, sql.ErrNoRows):
			claimedID = 0
			return nil
		default:
			return fmt.Errorf("claim next video: %w", err)
		}
	})
	if err != nil {
		return models.Video{}, false, err
	}
	if claimedID == 0 {
		return models.Video{}, false, nil
	}

	video, err := s.GetVideo(ctx, claimedID)
	if err != nil {
		return models.Video{}, false, err
	}
	return video, true, nil
}

// ReleaseOutcome is the terminal state Release should apply.
type ReleaseOutcome string

const (
	ReleaseCompleted ReleaseOutcome = "completed"
	ReleasePending   ReleaseOutcome = "pending"
	ReleaseFailed    ReleaseOutcome = "failed"
)

// ReleaseResult reports what Release actually did, so callers (the worker
// loop's backoff calculation) can observe the post-release attempts count.
type ReleaseResult struct {
	Status   models.VideoStatus
	Attempts int
}

// Release implements the spec section 4.3 release contract. permanent
// forces a failed outcome straight to the terminal status regardless of
// remaining retries (spec section 4.6 step 5's "permanent release
// variant").
func (s *Store) Release(ctx context.Context, videoID int64, outcome ReleaseOutcome, errMessage string, permanent bool) (ReleaseResult, error) {
	var result ReleaseResult

	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var maxRetries int
		if err := conn.QueryRowContext(ctx, `SELECT max_retries FROM settings WHERE id = 1`).Scan(&maxRetries); err != nil {
			return fmt.Errorf("load max_retries: %w", err)
		}

		var attempts int
		if err := conn.QueryRowContext(ctx, `SELECT attempts FROM videos WHERE id = ?`, videoID).Scan(&attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load video attempts: %w", err)
		}

		switch outcome {
		case ReleaseCompleted:
			if _, err := conn.ExecContext(ctx, `
                UPDATE videos SET status = 'completed', completed_at = ?, last_error = NULL WHERE id = ?
            `, time.Now().UTC(), videoID); err != nil {
				return fmt.Errorf("release completed: %w", err)
			}
			result = ReleaseResult{Status: models.VideoCompleted, Attempts: attempts}
			return nil

		case ReleasePending:
			if _, err := conn.ExecContext(ctx, `UPDATE videos SET status = 'pending' WHERE id = ?`, videoID); err != nil {
				return fmt.Errorf("release pending: %w", err)
			}
			result = ReleaseResult{Status: models.VideoPending, Attempts: attempts}
			return nil

		case ReleaseFailed:
			attempts++
			nextStatus := models.VideoPending
			if permanent || attempts >= maxRetries {
				nextStatus = models.VideoFailed
			}

			if _, err := conn.ExecContext(ctx, `
                UPDATE videos SET status = ?, attempts = ?, last_error = ? WHERE id = ?
            `, string(nextStatus), attempts, errMessage, videoID); err != nil {
				return fmt.Errorf("release failed: %w", err)
			}

			result = ReleaseResult{Status: nextStatus, Attempts: attempts}
			return nil

		default:
			return fmt.Errorf("release video %d: invalid outcome %q", videoID, outcome)
		}
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	return result, nil
}

// ResetProcessing forces every processing row back to pending and, per
// spec section 7 startup recovery step 2, resets attempts to zero for
// every pending|processing row. Returns the number of rows that were in
// processing (property P4).
func (s *Store) ResetProcessing(ctx context.Context) (int, error) {
	var reset int
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `UPDATE videos SET status = 'pending' WHERE status = 'processing'`)
		if err != nil {
			return fmt.Errorf("reset processing videos: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read reset count: %w", err)
		}
		reset = int(n)

		if _, err := conn.ExecContext(ctx, `
            UPDATE videos SET attempts = 0 WHERE status IN ('pending', 'processing')
        `); err != nil {
			return fmt.Errorf("reset attempts: %w", err)
		}
		return nil
	})
	return reset, err
}

// Reconcile elevates any video carrying at least one subtitle to completed
// (spec section 4.3, properties P5/P6). Idempotent.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	var completed int
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
            UPDATE videos
            SET status = 'completed', completed_at = CURRENT_TIMESTAMP
            WHERE status != 'completed'
              AND id IN (SELECT DISTINCT video_id FROM subtitles)
        `)
		if err != nil {
			return fmt.Errorf("reconcile video statuses: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read reconcile count: %w", err)
		}
		completed = int(n)
		return nil
	})
	return completed, err
}

// RetryFailed implements the operator retry contract (spec section 4.3,
// property P7): only a currently-failed video may be retried.
func (s *Store) RetryFailed(ctx context.Context, videoID int64) error {
	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var status string
		if err := conn.QueryRowContext(ctx, `SELECT status FROM videos WHERE id = ?`, videoID).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load video status: %w", err)
		}
		if status != string(models.VideoFailed) {
			return fmt.Errorf("retry video %d: %w (status is %q, not failed)", videoID, ErrConflict, status)
		}

		if _, err := conn.ExecContext(ctx, `
            UPDATE videos SET status = 'pending', attempts = 0, last_error = NULL WHERE id = ?
        `, videoID); err != nil {
			return fmt.Errorf("retry video: %w", err)
		}
		return nil
	})
}

// Stats returns queue counts, optionally scoped to one channel.
func (s *Store) Stats(ctx context.Context, channelID int64) (models.QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM videos`
	args := []any{}
	if channelID != 0 {
		query += ` WHERE channel_id = ?`
		args = append(args, channelID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("query queue stats: %w", err)
	}
	defer rows.Close()

	var stats models.QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.QueueStats{}, fmt.Errorf("scan queue stats: %w", err)
		}
		switch models.VideoStatus(status) {
		case models.VideoPending:
			stats.Pending = count
		case models.VideoProcessing:
			stats.Processing = count
		case models.VideoCompleted:
			stats.Completed = count
		case models.VideoFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return models.QueueStats{}, fmt.Errorf("iterate queue stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (models.Video, error) {
	v, err := scanVideoRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Video{}, ErrNotFound
	}
	return v, err
}

func scanVideoRows(row rowScanner) (models.Video, error) {
	var (
		v           models.Video
		lastError   sql.NullString
		completedAt sql.NullTime
		status      string
	)
	if err := row.Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &status, &v.Attempts, &lastError, &completedAt, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Video{}, err
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}
	v.Status = models.VideoStatus(status)
	v.LastError = lastError.String
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		v.CompletedAt = &t
	}
	return v, nil
}
