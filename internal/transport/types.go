package transport

import "context"

type UpdateKind string

const (
	UpdateCommand      UpdateKind = "command"
	UpdateAutocomplete UpdateKind = "autocomplete"
	UpdateComponent    UpdateKind = "component"
)

// Update is one inbound interaction, already lifted out of the SDK shape.
type Update struct {
	Kind UpdateKind

	GuildID   string // empty outside a guild (DM)
	ChannelID string

	UserID      string
	Username    string
	MemberRoles []string

	Command    string
	Subcommand string // empty if the command has no subcommand
	Options    map[string]string

	// Focused is the option currently being typed (autocomplete updates only).
	Focused string

	// ComponentID is the component custom id (component updates only).
	ComponentID string

	Responder Responder
}

type Choice struct {
	Name  string
	Value string
}

type Button struct {
	Label    string
	CustomID string
	Danger   bool
}

type SendOptions struct {
	Buttons []Button
}

// Responder answers a single interaction. The platform fixes ephemerality at
// the first response (defer or reply); Edit can only change content.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Reply(ctx context.Context, text string, ephemeral bool, opt *SendOptions) error
	Edit(ctx context.Context, text string) error
	Choices(ctx context.Context, choices []Choice) error
}

// Sender delivers a plain channel message outside any interaction
// (timer fires, mirrors, log sink).
type Sender interface {
	SendText(ctx context.Context, channelID, text string) error
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	Sender
}
