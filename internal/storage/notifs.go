package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildbot/internal/notify"
	"guildbot/pkg/logx"
)

const notifCols = `id, role_id, channel_id, spec, tz, message, created_by, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, j notify.Job) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifs(`+notifCols+`) VALUES(?,?,?,?,?,?,?,?,?)`,
		j.ID, j.RoleID, j.ChannelID, j.Spec, j.TZ, j.Message, j.CreatedBy,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert notif %s: %w", j.ID, err)
	}
	return nil
}

// Update rewrites the mutable fields. Zero rows affected (unknown id) is not
// an error; callers check GetByID first when they care.
func (s *Store) Update(ctx context.Context, j notify.Job) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifs SET role_id=?, channel_id=?, spec=?, tz=?, message=?, updated_at=? WHERE id=?`,
		j.RoleID, j.ChannelID, j.Spec, j.TZ, j.Message,
		time.Now().UTC().Format(time.RFC3339), j.ID,
	)
	if err != nil {
		return fmt.Errorf("update notif %s: %w", j.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifs WHERE id=?`, id)
	if err != nil {
		return false, fmt.Errorf("delete notif %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*notify.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notifCols+` FROM notifs WHERE id=?`, id)
	j, err := s.scanNotif(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notif %s: %w", id, err)
	}
	return &j, nil
}

func (s *Store) ListAll(ctx context.Context) ([]notify.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+notifCols+` FROM notifs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notifs: %w", err)
	}
	defer rows.Close()

	var out []notify.Job
	for rows.Next() {
		j, err := s.scanNotif(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpsertPreset inserts the job or updates it in place, preserving the
// original created_by. Returns the stored row.
func (s *Store) UpsertPreset(ctx context.Context, j notify.Job) (notify.Job, error) {
	existing, err := s.GetByID(ctx, j.ID)
	if err != nil {
		return notify.Job{}, err
	}
	if existing == nil {
		if j.CreatedBy == "" {
			j.CreatedBy = notify.SystemCreator
		}
		if err := s.Insert(ctx, j); err != nil {
			return notify.Job{}, err
		}
	} else {
		j.CreatedBy = existing.CreatedBy
		if err := s.Update(ctx, j); err != nil {
			return notify.Job{}, err
		}
	}
	stored, err := s.GetByID(ctx, j.ID)
	if err != nil {
		return notify.Job{}, err
	}
	return *stored, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanNotif(r scanner) (notify.Job, error) {
	var j notify.Job
	var created, updated string
	err := r.Scan(&j.ID, &j.RoleID, &j.ChannelID, &j.Spec, &j.TZ, &j.Message, &j.CreatedBy, &created, &updated)
	if err != nil {
		return notify.Job{}, err
	}
	j.CreatedAt = s.parseStamp(j.ID, "created_at", created)
	j.UpdatedAt = s.parseStamp(j.ID, "updated_at", updated)
	return j, nil
}

// parseStamp tolerates a corrupted timestamp column: the job stays readable
// (and deletable), the bad value is logged and read back as the zero time.
func (s *Store) parseStamp(id, col, v string) time.Time {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		s.log.Warn("corrupt timestamp in notifs row",
			logx.String("id", id), logx.String("column", col), logx.Err(err))
		return time.Time{}
	}
	return ts
}
