package notify

import (
	"context"
	"strings"
	"time"
)

// RolePlaceholder is substituted with a live mention of the job's role at
// send time. Keeping the substitution out of the stored template lets the
// role be changed without rewriting the message.
const RolePlaceholder = "{role}"

// SystemCreator marks jobs owned by preset seeding rather than an operator.
const SystemCreator = "system"

// PresetIDPrefix namespaces seeded job ids.
const PresetIDPrefix = "preset_"

// Job is a persisted recurring notification: who to ping, where, when, what.
type Job struct {
	ID        string
	RoleID    string
	ChannelID string
	Spec      string // five-field cron expression
	TZ        string // IANA timezone, always paired with Spec
	Message   string
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j Job) IsPreset() bool { return strings.HasPrefix(j.ID, PresetIDPrefix) }

// Render resolves the message template for delivery.
func (j Job) Render() string {
	return strings.ReplaceAll(j.Message, RolePlaceholder, "<@&"+j.RoleID+">")
}

// Store is the persistence contract the notification domain needs.
// Implemented by internal/storage.
type Store interface {
	Insert(ctx context.Context, j Job) error
	// Update is a silent no-op when the id does not exist; callers that need
	// to tell "missing" from "updated" check GetByID first.
	Update(ctx context.Context, j Job) error
	// Delete reports whether a row was actually removed.
	Delete(ctx context.Context, id string) (bool, error)
	// GetByID returns (nil, nil) when the id does not exist.
	GetByID(ctx context.Context, id string) (*Job, error)
	ListAll(ctx context.Context) ([]Job, error)
	// UpsertPreset inserts j, or updates it in place preserving the original
	// created_by. Safe to call unconditionally on every process start.
	UpsertPreset(ctx context.Context, j Job) (Job, error)
}
