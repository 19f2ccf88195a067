package bot

import (
	"context"
	"strings"

	"guildbot/internal/config"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

type MirrorMode int

const (
	MirrorNone MirrorMode = iota
	MirrorPlain
	MirrorPinged
)

// Decision is the per-invocation reply routing: computed once when the
// Reply is built and reused for defer and edit, since the platform fixes
// ephemerality at the first response.
type Decision struct {
	Ephemeral bool
	Mirror    MirrorMode
}

// MirrorKey builds the deny/allow lookup key. Keys are normalized here and
// in keySet so a stray space or case difference in policy.yaml cannot
// silently miss.
func MirrorKey(command, subcommand string) string {
	c := strings.ToLower(strings.TrimSpace(command))
	s := strings.ToLower(strings.TrimSpace(subcommand))
	if s == "" {
		return c
	}
	return c + ":" + s
}

type keySet map[string]struct{}

func newKeySet(keys []string) keySet {
	set := make(keySet, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// has matches the exact command:subcommand key or the bare command.
func (s keySet) has(command, subcommand string) bool {
	if _, ok := s[MirrorKey(command, subcommand)]; ok {
		return true
	}
	_, ok := s[MirrorKey(command, "")]
	return ok
}

// Mirrorer owns the fixed mirroring configuration: the officer (audit)
// channel and the role pinged on allow-listed mirrors.
type Mirrorer struct {
	officerChannel string
	pingRole       string
	sender         transport.Sender
	log            logx.Logger
}

func NewMirrorer(officerChannel, pingRole string, sender transport.Sender, log logx.Logger) *Mirrorer {
	return &Mirrorer{
		officerChannel: officerChannel,
		pingRole:       pingRole,
		sender:         sender,
		log:            log,
	}
}

// Decide is the pure policy function. Inside the officer channel the reply
// is public in place and nothing is mirrored; elsewhere the reply is
// ephemeral and a copy goes to the officer channel unless the key is denied.
// Deny wins over allow. With no officer channel configured there is nowhere
// to mirror, so replies stay ephemeral and unmirrored.
func (m *Mirrorer) Decide(pol config.MirrorPolicy, command, subcommand, channelID string) Decision {
	inOfficer := m.officerChannel != "" && channelID == m.officerChannel
	d := Decision{Ephemeral: !inOfficer}

	if !d.Ephemeral || m.officerChannel == "" {
		return d // public in place, or nowhere to mirror
	}

	deny := newKeySet(pol.Deny)
	if deny.has(command, subcommand) {
		return d
	}

	allow := newKeySet(pol.Allow)
	if allow.has(command, subcommand) && m.pingRole != "" {
		d.Mirror = MirrorPinged
	} else {
		d.Mirror = MirrorPlain
	}
	return d
}

// Reply carries one invocation's captured Decision through defer and the
// eventual edit. Build it once per interaction; never rebuild mid-handler.
type Reply struct {
	upd      transport.Update
	dec      Decision
	m        *Mirrorer
	log      logx.Logger
	deferred bool
	finished bool
}

func (m *Mirrorer) NewReply(pol config.MirrorPolicy, upd transport.Update, log logx.Logger) *Reply {
	return &Reply{
		upd: upd,
		dec: m.Decide(pol, upd.Command, upd.Subcommand, upd.ChannelID),
		m:   m,
		log: log,
	}
}

func (r *Reply) Decision() Decision { return r.dec }

// Defer sends the pre-reply placeholder with the captured visibility.
func (r *Reply) Defer(ctx context.Context) error {
	if err := r.upd.Responder.Defer(ctx, r.dec.Ephemeral); err != nil {
		return err
	}
	r.deferred = true
	return nil
}

// Send delivers the final content (reply, or edit after a defer) and then
// mirrors it per the captured decision. A mirror failure is logged and
// swallowed: the primary reply is already out.
func (r *Reply) Send(ctx context.Context, text string) error {
	var err error
	if r.deferred {
		err = r.upd.Responder.Edit(ctx, text)
	} else {
		err = r.upd.Responder.Reply(ctx, text, r.dec.Ephemeral, nil)
	}
	if err != nil {
		return err
	}
	r.finished = true
	r.mirror(ctx, text)
	return nil
}

// Prompt replies with interactive buttons. Prompts are transient UI, not
// outcomes, so they are never mirrored.
func (r *Reply) Prompt(ctx context.Context, text string, buttons []transport.Button) error {
	err := r.upd.Responder.Reply(ctx, text, r.dec.Ephemeral, &transport.SendOptions{Buttons: buttons})
	if err == nil {
		r.finished = true
	}
	return err
}

// Finished reports whether a final reply went out.
func (r *Reply) Finished() bool { return r.finished }

func (r *Reply) mirror(ctx context.Context, text string) {
	if r.dec.Mirror == MirrorNone {
		return
	}
	msg := "**/" + displayName(r.upd) + "** by " + r.upd.Username + ":\n" + text
	if r.dec.Mirror == MirrorPinged {
		msg = "<@&" + r.m.pingRole + "> " + msg
	}
	if err := r.m.sender.SendText(ctx, r.m.officerChannel, msg); err != nil {
		r.log.Warn("mirror delivery failed",
			logx.String("channel", r.m.officerChannel),
			logx.Err(err))
	}
}

func displayName(upd transport.Update) string {
	if upd.Subcommand != "" {
		return upd.Command + " " + upd.Subcommand
	}
	return upd.Command
}
