package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/notify"
	"guildbot/pkg/logx"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(logx.Nop())
	require.NoError(t, err, "failed to open in-memory store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleJob(id string) notify.Job {
	return notify.Job{
		ID:        id,
		RoleID:    "role-1",
		ChannelID: "chan-1",
		Spec:      "30 9 * * *",
		TZ:        "Europe/Berlin",
		Message:   "{role} standup in 10 minutes",
		CreatedBy: "user-1",
	}
}

func TestInsertAndGetByID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleJob("j1")))

	got, err := s.GetByID(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "role-1", got.RoleID)
	assert.Equal(t, "30 9 * * *", got.Spec)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetByIDMissing(t *testing.T) {
	s := setupStore(t)

	got, err := s.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateMissingIsNoop(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	err := s.Update(ctx, sampleJob("ghost"))
	require.NoError(t, err, "update of a missing id must not error")

	got, err := s.GetByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got, "silent update must not create a row")
}

func TestDeleteReportsRemoval(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleJob("j1")))

	removed, err := s.Delete(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, removed, "second delete must report not found")
}

func TestListAllOrdered(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleJob("b")))
	require.NoError(t, s.Insert(ctx, sampleJob("a")))

	jobs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}

func TestUpsertPresetIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	v1 := sampleJob("preset_meeting")
	v1.CreatedBy = ""
	stored, err := s.UpsertPreset(ctx, v1)
	require.NoError(t, err)
	assert.Equal(t, notify.SystemCreator, stored.CreatedBy)

	v2 := v1
	v2.Spec = "0 18 * * 1-5"
	v2.RoleID = "role-2"
	v2.CreatedBy = "someone-else"
	stored, err = s.UpsertPreset(ctx, v2)
	require.NoError(t, err)
	assert.Equal(t, "0 18 * * 1-5", stored.Spec)
	assert.Equal(t, "role-2", stored.RoleID)
	assert.Equal(t, notify.SystemCreator, stored.CreatedBy, "upsert must preserve original creator")

	jobs, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "upsert must never duplicate rows")
}

func TestCorruptTimestampStillReadable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifs(`+notifCols+`) VALUES(?,?,?,?,?,?,?,?,?)`,
		"j1", "role-1", "chan-1", "30 9 * * *", "UTC", "m", "user-1",
		"not-a-timestamp", "also-garbage")
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "j1")
	require.NoError(t, err, "a bad timestamp must not make the row unreadable")
	require.NotNil(t, got)
	assert.Equal(t, "30 9 * * *", got.Spec)
	assert.True(t, got.CreatedAt.IsZero())
	assert.True(t, got.UpdatedAt.IsZero())

	removed, err := s.Delete(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, removed, "the row must stay deletable")
}

func TestForumCursorRoundtrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	last, err := s.ForumCursor(ctx, "main")
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, s.SetForumCursor(ctx, "main", 4120))
	require.NoError(t, s.SetForumCursor(ctx, "main", 4133))

	last, err = s.ForumCursor(ctx, "main")
	require.NoError(t, err)
	assert.EqualValues(t, 4133, last)
}
