package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/bot"
	"guildbot/internal/config"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

// recResponder records what a handler sent back through the interaction.
type recResponder struct {
	deferred bool
	texts    []string
	buttons  []transport.Button
}

func (r *recResponder) Defer(_ context.Context, _ bool) error {
	r.deferred = true
	return nil
}

func (r *recResponder) Reply(_ context.Context, text string, _ bool, opt *transport.SendOptions) error {
	r.texts = append(r.texts, text)
	if opt != nil {
		r.buttons = append(r.buttons, opt.Buttons...)
	}
	return nil
}

func (r *recResponder) Edit(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func (r *recResponder) Choices(_ context.Context, _ []transport.Choice) error { return nil }

func (r *recResponder) last() string {
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func commandsFixture() (*Commands, *memStore, *fakeScheduler) {
	store := newMemStore()
	sched := &fakeScheduler{}
	reg := NewRegistry(sched, &fakeSender{}, logx.Nop())
	return NewCommands(store, reg, sched, logx.Nop()), store, sched
}

func notifyRequest(sub string, opts map[string]string) (*bot.Request, *recResponder) {
	rsp := &recResponder{}
	upd := transport.Update{
		Kind:       transport.UpdateCommand,
		GuildID:    "g1",
		ChannelID:  "chan-general",
		UserID:     "u1",
		Username:   "ops",
		Command:    "notify",
		Subcommand: sub,
		Options:    opts,
		Responder:  rsp,
	}
	mir := bot.NewMirrorer("", "", &fakeSender{}, logx.Nop())
	return &bot.Request{
		Update: upd,
		Reply:  mir.NewReply(config.MirrorPolicy{}, upd, logx.Nop()),
		Logger: logx.Nop(),
	}, rsp
}

func TestAddPersistsAndStartsJob(t *testing.T) {
	cmds, store, sched := commandsFixture()
	req, rsp := notifyRequest("add", map[string]string{
		"id": "standup", "role": "r1", "channel": "c1",
		"schedule": "30 9 * * 1-5", "tz": "Europe/Berlin", "message": "{role} standup time",
	})

	require.NoError(t, cmds.handle(context.Background(), req))

	j, err := store.GetByID(context.Background(), "standup")
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, "u1", j.CreatedBy)
	assert.Len(t, sched.live(), 1)
	assert.Contains(t, rsp.last(), "Scheduled `standup`")
}

func TestAddRejectsEmptyID(t *testing.T) {
	cmds, store, _ := commandsFixture()
	req, rsp := notifyRequest("add", map[string]string{
		"id": "  ", "role": "r1", "channel": "c1", "schedule": "0 9 * * *", "message": "m",
	})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "id is required")
	assert.Empty(t, store.rows)
}

func TestAddRejectsReservedPrefix(t *testing.T) {
	cmds, store, _ := commandsFixture()
	req, rsp := notifyRequest("add", map[string]string{
		"id": "preset_meeting", "role": "r1", "channel": "c1", "schedule": "0 9 * * *", "message": "m",
	})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "reserved")
	assert.Empty(t, store.rows)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))

	req, rsp := notifyRequest("add", map[string]string{
		"id": "standup", "role": "r2", "channel": "c2", "schedule": "0 10 * * *", "message": "m",
	})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "already exists")

	j, _ := store.GetByID(context.Background(), "standup")
	assert.Equal(t, "0 9 * * *", j.Spec, "the stored job must be untouched")
}

func TestAddRejectsInvalidSchedule(t *testing.T) {
	cmds, store, sched := commandsFixture()
	req, rsp := notifyRequest("add", map[string]string{
		"id": "oops", "role": "r1", "channel": "c1", "schedule": "bad spec", "message": "m",
	})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "Rejected:")
	assert.Empty(t, store.rows)
	assert.Empty(t, sched.live())
}

func TestEditUnknownID(t *testing.T) {
	cmds, _, _ := commandsFixture()
	req, rsp := notifyRequest("edit", map[string]string{"id": "ghost", "schedule": "0 9 * * *"})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "No job with id")
}

func TestEditKeepsAbsentOptions(t *testing.T) {
	cmds, store, sched := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))

	req, rsp := notifyRequest("edit", map[string]string{"id": "standup", "schedule": "30 10 * * *"})
	require.NoError(t, cmds.handle(context.Background(), req))

	j, _ := store.GetByID(context.Background(), "standup")
	assert.Equal(t, "30 10 * * *", j.Spec)
	assert.Equal(t, "r1", j.RoleID, "options not passed must keep stored values")
	assert.Equal(t, "{role} go", j.Message)
	require.Len(t, sched.live(), 1)
	assert.Equal(t, "30 10 * * *", sched.live()[0].spec, "the timer must pick up the new spec")
	assert.Contains(t, rsp.last(), "Updated `standup`")
}

func TestEditPresetWarnsAboutReseed(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job(PresetIDPrefix+"meeting", "0 9 * * *")))

	req, rsp := notifyRequest("edit", map[string]string{"id": PresetIDPrefix + "meeting", "schedule": "0 11 * * *"})
	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "re-derived from the environment")
}

func TestRemovePromptsForConfirmation(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))

	req, rsp := notifyRequest("remove", map[string]string{"id": "standup"})
	require.NoError(t, cmds.handle(context.Background(), req))

	require.Len(t, rsp.buttons, 2)
	assert.Equal(t, removeConfirmPrefix+"standup", rsp.buttons[0].CustomID)
	assert.True(t, rsp.buttons[0].Danger)
	assert.Equal(t, removeCancelPrefix+"standup", rsp.buttons[1].CustomID)

	j, _ := store.GetByID(context.Background(), "standup")
	assert.NotNil(t, j, "prompting must not delete anything yet")
}

func TestRemoveUnknownID(t *testing.T) {
	cmds, _, _ := commandsFixture()
	req, rsp := notifyRequest("remove", map[string]string{"id": "ghost"})

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "No job with id")
	assert.Empty(t, rsp.buttons)
}

func TestRemoveConfirmedDeletesAndStops(t *testing.T) {
	cmds, store, sched := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))
	require.NoError(t, cmds.reg.Start(job("standup", "0 9 * * *")))

	req, rsp := notifyRequest("remove", nil)
	require.NoError(t, cmds.removeConfirmed(context.Background(), req, "standup"))

	assert.Contains(t, rsp.last(), "Removed `standup`")
	assert.Empty(t, store.rows)
	assert.Empty(t, sched.live())
	assert.False(t, cmds.reg.Running("standup"))
}

func TestRemoveConfirmedOnGoneJob(t *testing.T) {
	cmds, _, _ := commandsFixture()
	req, rsp := notifyRequest("remove", nil)

	require.NoError(t, cmds.removeConfirmed(context.Background(), req, "standup"))
	assert.Contains(t, rsp.last(), "already gone")
}

func TestRemoveCancelledKeepsJob(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))

	req, rsp := notifyRequest("remove", nil)
	require.NoError(t, cmds.removeCancelled(context.Background(), req, "standup"))

	assert.Contains(t, rsp.last(), "Kept `standup`")
	j, _ := store.GetByID(context.Background(), "standup")
	assert.NotNil(t, j)
}

func TestListShowsRunState(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("running-one", "0 9 * * *")))
	require.NoError(t, store.Insert(context.Background(), job("stopped-one", "0 10 * * *")))
	require.NoError(t, cmds.reg.Start(job("running-one", "0 9 * * *")))

	req, rsp := notifyRequest("list", nil)
	require.NoError(t, cmds.handle(context.Background(), req))

	out := rsp.last()
	assert.Contains(t, out, "`running-one` - `0 9 * * *` (UTC) → <#c1> [running]")
	assert.Contains(t, out, "`stopped-one` - `0 10 * * *` (UTC) → <#c1> [stopped]")
}

func TestListEmpty(t *testing.T) {
	cmds, _, _ := commandsFixture()
	req, rsp := notifyRequest("list", nil)

	require.NoError(t, cmds.handle(context.Background(), req))
	assert.Contains(t, rsp.last(), "No notification jobs")
}

func TestAutocompleteFiltersBySubstring(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))
	require.NoError(t, store.Insert(context.Background(), job("digest", "0 17 * * 5")))

	req, _ := notifyRequest("edit", map[string]string{"id": "STAND"})
	req.Update.Focused = "id"

	choices := cmds.autocomplete(context.Background(), req)
	require.Len(t, choices, 1)
	assert.Equal(t, "standup", choices[0].Value)
	assert.Equal(t, "standup (0 9 * * *)", choices[0].Name)
}

func TestAutocompleteIgnoresOtherFields(t *testing.T) {
	cmds, store, _ := commandsFixture()
	require.NoError(t, store.Insert(context.Background(), job("standup", "0 9 * * *")))

	req, _ := notifyRequest("edit", map[string]string{"id": "s"})
	req.Update.Focused = "schedule"

	assert.Nil(t, cmds.autocomplete(context.Background(), req))
}
