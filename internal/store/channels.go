package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/transcript-harvester/backend/internal/models"
)

// UpsertChannel inserts a channel row for the normalized URL if one does not
// already exist, returning the row's id and whether it was newly created.
func (s *Store) UpsertChannel(ctx context.Context, url string) (id int64, created bool, err error) {
	err = s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT id FROM channels WHERE url = ?`, url)
		var existing int64
		switch scanErr := row.Scan(&existing); {
		case scanErr == nil:
			id = existing
			created = false
			return nil
		case errors.Is(scanErr, sql.ErrNoRows):
			res, insErr := conn.ExecContext(ctx, `
                INSERT INTO channels (url, name) VALUES (?, ?)
            `, url, models.NameLoading)
			if insErr != nil {
				return fmt.Errorf("insert channel: %w", insErr)
			}
			newID, idErr := res.LastInsertId()
			if idErr != nil {
				return fmt.Errorf("read new channel id: %w", idErr)
			}
			id = newID
			created = true
			return nil
		default:
			return fmt.Errorf("lookup channel by url: %w", scanErr)
		}
	})
	return id, created, err
}

// GetChannel fetches one channel by id.
func (s *Store) GetChannel(ctx context.Context, id int64) (models.Channel, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, url, name, total_videos, created_at FROM channels WHERE id = ?
    `, id)

	var ch models.Channel
	if err := row.Scan(&ch.ID, &ch.URL, &ch.Name, &ch.TotalVideos, &ch.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Channel{}, ErrNotFound
		}
		return models.Channel{}, fmt.Errorf("select channel: %w", err)
	}
	return ch, nil
}

// ListChannels returns every channel row, oldest first.
func (s *Store) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, url, name, total_videos, created_at FROM channels ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.URL, &ch.Name, &ch.TotalVideos, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// UpdateChannelName sets a channel's display name (used both for the
// reported title and for the Loading/Failed sentinels).
func (s *Store) UpdateChannelName(ctx context.Context, id int64, name string) error {
	tag, err := s.db.ExecContext(ctx, `UPDATE channels SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update channel name: %w", err)
	}
	return rowsAffectedOrNotFound(tag)
}

// UpdateChannelTotalVideos sets the authoritative enumerated-video count.
func (s *Store) UpdateChannelTotalVideos(ctx context.Context, id int64, total int) error {
	tag, err := s.db.ExecContext(ctx, `UPDATE channels SET total_videos = ? WHERE id = ?`, total, id)
	if err != nil {
		return fmt.Errorf("update channel total videos: %w", err)
	}
	return rowsAffectedOrNotFound(tag)
}

// DeleteChannel removes a channel; videos and subtitles cascade per schema.
func (s *Store) DeleteChannel(ctx context.Context, id int64) error {
	tag, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return rowsAffectedOrNotFound(tag)
}

func rowsAffectedOrNotFound(tag sql.Result) error {
	n, err := tag.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
