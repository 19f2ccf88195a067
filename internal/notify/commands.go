package notify

import (
	"context"
	"fmt"
	"strings"

	"guildbot/internal/bot"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

const (
	// Button custom-id prefixes for the remove confirmation flow.
	removeConfirmPrefix = "notify:rm:"
	removeCancelPrefix  = "notify:cancel:"

	maxAutocompleteChoices = 25
)

// Commands implements the /notify command family: add, edit, remove (with a
// confirm button), list, plus id autocomplete.
type Commands struct {
	store Store
	reg   *Registry
	sched Scheduler
	log   logx.Logger
}

func NewCommands(store Store, reg *Registry, sched Scheduler, log logx.Logger) *Commands {
	return &Commands{store: store, reg: reg, sched: sched, log: log}
}

func (c *Commands) Command() bot.Command {
	return bot.Command{
		Name:         "notify",
		Description:  "Manage recurring notifications",
		Handle:       c.handle,
		Autocomplete: c.autocomplete,
	}
}

func (c *Commands) Buttons() []bot.ButtonRoute {
	return []bot.ButtonRoute{
		{Prefix: removeConfirmPrefix, Command: "notify", Subcommand: "remove", Handle: c.removeConfirmed},
		{Prefix: removeCancelPrefix, Command: "notify", Subcommand: "remove", Handle: c.removeCancelled},
	}
}

func (c *Commands) handle(ctx context.Context, req *bot.Request) error {
	switch req.Update.Subcommand {
	case "add":
		return c.add(ctx, req)
	case "edit":
		return c.edit(ctx, req)
	case "remove":
		return c.remove(ctx, req)
	case "list":
		return c.list(ctx, req)
	default:
		return fmt.Errorf("unknown notify subcommand %q", req.Update.Subcommand)
	}
}

func (c *Commands) add(ctx context.Context, req *bot.Request) error {
	if err := req.Reply.Defer(ctx); err != nil {
		return err
	}
	opts := req.Update.Options

	id := strings.TrimSpace(opts["id"])
	if id == "" {
		return req.Reply.Send(ctx, "A job id is required.")
	}
	if strings.HasPrefix(id, PresetIDPrefix) {
		return req.Reply.Send(ctx, "Ids starting with `"+PresetIDPrefix+"` are reserved for seeded jobs.")
	}
	existing, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return req.Reply.Send(ctx, "A job with id `"+id+"` already exists. Use `/notify edit`.")
	}

	j := Job{
		ID:        id,
		RoleID:    opts["role"],
		ChannelID: opts["channel"],
		Spec:      strings.TrimSpace(opts["schedule"]),
		TZ:        strings.TrimSpace(opts["tz"]),
		Message:   opts["message"],
		CreatedBy: req.Update.UserID,
	}
	if j.RoleID == "" || j.ChannelID == "" || j.Message == "" {
		return req.Reply.Send(ctx, "Role, channel and message are all required.")
	}
	if err := c.sched.Validate(j.Spec, j.TZ); err != nil {
		return req.Reply.Send(ctx, "Rejected: "+err.Error())
	}

	if err := c.store.Insert(ctx, j); err != nil {
		return err
	}
	if err := c.reg.Start(j); err != nil {
		return err
	}
	req.Logger.Info("job added", logx.String("id", id), logx.String("spec", j.Spec))
	return req.Reply.Send(ctx, fmt.Sprintf("Scheduled `%s`: `%s` (%s) → <#%s>.", id, j.Spec, tzLabel(j.TZ), j.ChannelID))
}

func (c *Commands) edit(ctx context.Context, req *bot.Request) error {
	if err := req.Reply.Defer(ctx); err != nil {
		return err
	}
	opts := req.Update.Options

	id := strings.TrimSpace(opts["id"])
	existing, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return req.Reply.Send(ctx, "No job with id `"+id+"`.")
	}

	// Absent options keep their stored values.
	j := *existing
	if v, ok := opts["role"]; ok && v != "" {
		j.RoleID = v
	}
	if v, ok := opts["channel"]; ok && v != "" {
		j.ChannelID = v
	}
	if v, ok := opts["schedule"]; ok && v != "" {
		j.Spec = strings.TrimSpace(v)
	}
	if v, ok := opts["tz"]; ok && v != "" {
		j.TZ = strings.TrimSpace(v)
	}
	if v, ok := opts["message"]; ok && v != "" {
		j.Message = v
	}
	if err := c.sched.Validate(j.Spec, j.TZ); err != nil {
		return req.Reply.Send(ctx, "Rejected: "+err.Error())
	}

	if err := c.store.Update(ctx, j); err != nil {
		return err
	}
	if err := c.reg.Start(j); err != nil {
		return err
	}
	req.Logger.Info("job edited", logx.String("id", id), logx.String("spec", j.Spec))

	msg := fmt.Sprintf("Updated `%s`: `%s` (%s).", id, j.Spec, tzLabel(j.TZ))
	if j.IsPreset() {
		msg += "\nNote: preset jobs are re-derived from the environment on restart."
	}
	return req.Reply.Send(ctx, msg)
}

func (c *Commands) remove(ctx context.Context, req *bot.Request) error {
	id := strings.TrimSpace(req.Update.Options["id"])
	existing, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return req.Reply.Send(ctx, "No job with id `"+id+"`.")
	}

	return req.Reply.Prompt(ctx,
		fmt.Sprintf("Remove `%s` (`%s`)?", id, existing.Spec),
		[]transport.Button{
			{Label: "Remove", CustomID: removeConfirmPrefix + id, Danger: true},
			{Label: "Keep", CustomID: removeCancelPrefix + id},
		})
}

func (c *Commands) removeConfirmed(ctx context.Context, req *bot.Request, id string) error {
	removed, err := c.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	c.reg.Stop(id)
	if !removed {
		return req.Reply.Send(ctx, "Job `"+id+"` was already gone.")
	}
	req.Logger.Info("job removed", logx.String("id", id))
	return req.Reply.Send(ctx, "Removed `"+id+"`.")
}

func (c *Commands) removeCancelled(ctx context.Context, req *bot.Request, id string) error {
	return req.Reply.Send(ctx, "Kept `"+id+"`.")
}

func (c *Commands) list(ctx context.Context, req *bot.Request) error {
	if err := req.Reply.Defer(ctx); err != nil {
		return err
	}
	jobs, err := c.store.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return req.Reply.Send(ctx, "No notification jobs configured.")
	}

	var b strings.Builder
	for _, j := range jobs {
		state := "stopped"
		if c.reg.Running(j.ID) {
			state = "running"
		}
		fmt.Fprintf(&b, "`%s` - `%s` (%s) → <#%s> [%s]\n", j.ID, j.Spec, tzLabel(j.TZ), j.ChannelID, state)
	}
	return req.Reply.Send(ctx, b.String())
}

// autocomplete suggests existing job ids for the edit/remove id option.
func (c *Commands) autocomplete(ctx context.Context, req *bot.Request) []transport.Choice {
	if req.Update.Focused != "id" {
		return nil
	}
	jobs, err := c.store.ListAll(ctx)
	if err != nil {
		req.Logger.Warn("autocomplete listing failed", logx.Err(err))
		return nil
	}

	partial := strings.ToLower(req.Update.Options["id"])
	var out []transport.Choice
	for _, j := range jobs {
		if partial != "" && !strings.Contains(strings.ToLower(j.ID), partial) {
			continue
		}
		out = append(out, transport.Choice{Name: j.ID + " (" + j.Spec + ")", Value: j.ID})
		if len(out) == maxAutocompleteChoices {
			break
		}
	}
	return out
}

func tzLabel(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
