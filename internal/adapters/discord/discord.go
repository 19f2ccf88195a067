package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

type Config struct {
	Token string
	// GuildID scopes slash-command registration to one guild (instant
	// propagation). Empty registers globally.
	GuildID string
}

// Adapter owns the gateway session and converts SDK interactions into
// transport updates. It is the only package that imports the SDK.
type Adapter struct {
	cfg Config
	log logx.Logger

	sess *discordgo.Session

	runMu    sync.Mutex
	running  bool
	out      chan<- transport.Update
	unhandle func()
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	sess.Identify.Intents = discordgo.IntentsGuilds
	return &Adapter{cfg: cfg, log: log, sess: sess}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.out = out
	a.unhandle = a.sess.AddHandler(a.onInteraction)

	if err := a.sess.Open(); err != nil {
		a.unhandle()
		return fmt.Errorf("open gateway: %w", err)
	}
	if err := a.registerCommands(); err != nil {
		_ = a.sess.Close()
		a.unhandle()
		return fmt.Errorf("register commands: %w", err)
	}

	a.running = true
	a.log.Info("gateway connected", logx.String("user", a.sess.State.User.Username))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	if a.unhandle != nil {
		a.unhandle()
	}
	return a.sess.Close()
}

// SendText delivers a plain channel message. Role mentions are allowed so
// notification pings actually ping.
func (a *Adapter) SendText(ctx context.Context, channelID, text string) error {
	_, err := a.sess.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: text,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to %s: %w", channelID, err)
	}
	return nil
}

func (a *Adapter) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	upd, ok := a.lift(ic)
	if !ok {
		return
	}
	select {
	case a.out <- upd:
	default:
		a.log.Warn("interaction dropped, update channel full",
			logx.String("kind", string(upd.Kind)),
			logx.String("cmd", upd.Command))
	}
}

// lift converts an SDK interaction into the neutral update shape.
func (a *Adapter) lift(ic *discordgo.InteractionCreate) (transport.Update, bool) {
	upd := transport.Update{
		GuildID:   ic.GuildID,
		ChannelID: ic.ChannelID,
		Responder: &responder{s: a.sess, i: ic.Interaction, log: a.log},
	}
	if ic.Member != nil && ic.Member.User != nil {
		upd.UserID = ic.Member.User.ID
		upd.Username = ic.Member.User.Username
		upd.MemberRoles = ic.Member.Roles
	} else if ic.User != nil {
		upd.UserID = ic.User.ID
		upd.Username = ic.User.Username
	}

	switch ic.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		data := ic.ApplicationCommandData()
		upd.Kind = transport.UpdateCommand
		if ic.Type == discordgo.InteractionApplicationCommandAutocomplete {
			upd.Kind = transport.UpdateAutocomplete
		}
		upd.Command = data.Name
		opts := data.Options
		if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			upd.Subcommand = opts[0].Name
			opts = opts[0].Options
		}
		upd.Options = make(map[string]string, len(opts))
		for _, o := range opts {
			upd.Options[o.Name] = optString(o)
			if o.Focused {
				upd.Focused = o.Name
			}
		}
		return upd, true

	case discordgo.InteractionMessageComponent:
		upd.Kind = transport.UpdateComponent
		upd.ComponentID = ic.MessageComponentData().CustomID
		return upd, true
	}
	return transport.Update{}, false
}

// optString flattens an option value to its string form. Role, channel and
// user options carry their snowflake id as the value.
func optString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	if s, ok := o.Value.(string); ok {
		return s
	}
	return fmt.Sprint(o.Value)
}
