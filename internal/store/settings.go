package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/transcript-harvester/backend/internal/models"
)

// ErrInvalidSetting indicates an operator-supplied setting value is outside
// the bounds enforced by the settings table's CHECK constraints (spec
// section 3).
var ErrInvalidSetting = errors.New("setting value out of range")

// GetSetting reads the singleton settings row.
func (s *Store) GetSetting(ctx context.Context) (models.Setting, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT max_workers, max_retries, backoff_factor, output_dir FROM settings WHERE id = 1
    `)
	var setting models.Setting
	if err := row.Scan(&setting.MaxWorkers, &setting.MaxRetries, &setting.BackoffFactor, &setting.OutputDir); err != nil {
		return models.Setting{}, fmt.Errorf("select settings: %w", err)
	}
	return setting, nil
}

// UpdateSetting validates the supplied ranges in Go (so callers get a typed
// ErrInvalidSetting instead of a driver-specific CHECK constraint failure)
// and then persists them.
func (s *Store) UpdateSetting(ctx context.Context, setting models.Setting) error {
	switch {
	case setting.MaxWorkers < 1 || setting.MaxWorkers > 20:
		return fmt.Errorf("%w: max_workers must be between 1 and 20", ErrInvalidSetting)
	case setting.MaxRetries < 0 || setting.MaxRetries > 10:
		return fmt.Errorf("%w: max_retries must be between 0 and 10", ErrInvalidSetting)
	case setting.BackoffFactor < 1.0 || setting.BackoffFactor > 10.0:
		return fmt.Errorf("%w: backoff_factor must be between 1.0 and 10.0", ErrInvalidSetting)
	}

	_, err := s.db.ExecContext(ctx, `
        UPDATE settings SET max_workers = ?, max_retries = ?, backoff_factor = ?, output_dir = ? WHERE id = 1
    `, setting.MaxWorkers, setting.MaxRetries, setting.BackoffFactor, setting.OutputDir)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
