package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

// responder answers one interaction. Ephemerality is fixed by the first
// response; Edit only rewrites content.
type responder struct {
	s   *discordgo.Session
	i   *discordgo.Interaction
	log logx.Logger
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	}, discordgo.WithContext(ctx))
}

func (r *responder) Reply(ctx context.Context, text string, ephemeral bool, opt *transport.SendOptions) error {
	data := &discordgo.InteractionResponseData{
		Content: text,
		Flags:   flags(ephemeral),
	}
	if opt != nil && len(opt.Buttons) > 0 {
		data.Components = buttonRow(opt.Buttons)
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

func (r *responder) Edit(ctx context.Context, text string) error {
	_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
		Content: &text,
	}, discordgo.WithContext(ctx))
	return err
}

func (r *responder) Choices(ctx context.Context, choices []transport.Choice) error {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(choices))
	for _, c := range choices {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: out},
	}, discordgo.WithContext(ctx))
}

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func buttonRow(buttons []transport.Button) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		style := discordgo.SecondaryButton
		if b.Danger {
			style = discordgo.DangerButton
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			CustomID: b.CustomID,
			Style:    style,
		})
	}
	return []discordgo.MessageComponent{row}
}
