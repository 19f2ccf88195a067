package discord

import "github.com/bwmarrin/discordgo"

// Application command declarations. Kept next to the SDK because their
// option types are platform vocabulary; the generic router only sees names.
var appCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot is alive",
	},
	{
		Name:        "notify",
		Description: "Manage recurring notifications",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Create a recurring notification",
				Options: []*discordgo.ApplicationCommandOption{
					strOpt("id", "Stable job id", true, false),
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to ping", Required: true},
					{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Destination channel", Required: true},
					strOpt("schedule", "Five-field cron expression, e.g. 30 9 * * 1-5", true, false),
					strOpt("message", "Message template; {role} becomes the role mention", true, false),
					strOpt("tz", "IANA timezone (default UTC)", false, false),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "edit",
				Description: "Change an existing notification",
				Options: []*discordgo.ApplicationCommandOption{
					strOpt("id", "Job id", true, true),
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to ping"},
					{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Destination channel"},
					strOpt("schedule", "Five-field cron expression", false, false),
					strOpt("message", "Message template", false, false),
					strOpt("tz", "IANA timezone", false, false),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a notification",
				Options: []*discordgo.ApplicationCommandOption{
					strOpt("id", "Job id", true, true),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List configured notifications",
			},
		},
	},
}

func strOpt(name, desc string, required, autocomplete bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         name,
		Description:  desc,
		Required:     required,
		Autocomplete: autocomplete,
	}
}

func (a *Adapter) registerCommands() error {
	appID := a.sess.State.User.ID
	_, err := a.sess.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, appCommands)
	return err
}
