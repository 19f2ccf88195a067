package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ForumCursor returns the last seen thread id for a scrape source, zero if
// the source was never scraped.
func (s *Store) ForumCursor(ctx context.Context, source string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_id FROM forum_cursor WHERE source=?`, source).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("forum cursor %s: %w", source, err)
	}
	return last, nil
}

func (s *Store) SetForumCursor(ctx context.Context, source string, lastID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forum_cursor(source, last_id, updated_at) VALUES(?,?,?)
		 ON CONFLICT(source) DO UPDATE SET last_id=excluded.last_id, updated_at=excluded.updated_at`,
		source, lastID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set forum cursor %s: %w", source, err)
	}
	return nil
}
