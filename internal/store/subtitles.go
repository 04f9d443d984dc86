package store

import (
	"context"
	"fmt"

	"github.com/transcript-harvester/backend/internal/models"
)

// ErrSubtitleTooLarge indicates a transcript exceeded the documented content
// ceiling (spec section 9's "explicit maximum size... documented, not
// silently truncated").
var ErrSubtitleTooLarge = fmt.Errorf("subtitle content exceeds %d byte limit", models.MaxSubtitleContentBytes)

// UpsertSubtitle inserts or overwrites the (video_id, language) subtitle row.
func (s *Store) UpsertSubtitle(ctx context.Context, videoID int64, language, content string) error {
	if len(content) > models.MaxSubtitleContentBytes {
		return ErrSubtitleTooLarge
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO subtitles (video_id, language, content, downloaded_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (video_id, language)
        DO UPDATE SET content = excluded.content, downloaded_at = CURRENT_TIMESTAMP
    `, videoID, language, content)
	if err != nil {
		return fmt.Errorf("upsert subtitle: %w", err)
	}
	return nil
}

// ListSubtitles returns every harvested transcript for a video.
func (s *Store) ListSubtitles(ctx context.Context, videoID int64) ([]models.Subtitle, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, video_id, language, content, downloaded_at
        FROM subtitles WHERE video_id = ? ORDER BY language
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query subtitles: %w", err)
	}
	defer rows.Close()

	var subtitles []models.Subtitle
	for rows.Next() {
		var sub models.Subtitle
		if err := rows.Scan(&sub.ID, &sub.VideoID, &sub.Language, &sub.Content, &sub.DownloadedAt); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		subtitles = append(subtitles, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtitles: %w", err)
	}
	return subtitles, nil
}
