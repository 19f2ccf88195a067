package bot

import (
	"guildbot/internal/config"
	"guildbot/internal/transport"
)

// Allowed gates a command invocation against its access rule. An empty list
// leaves that dimension unrestricted. The channel check runs first and is
// independent of the role check; either failing denies. A restricted command
// invoked outside any guild (no member, no channel context worth trusting)
// is always denied.
func Allowed(rule config.AccessRule, upd transport.Update) bool {
	restricted := len(rule.Roles) > 0 || len(rule.Channels) > 0
	if upd.GuildID == "" && restricted {
		return false
	}
	if len(rule.Channels) > 0 && !containsStr(rule.Channels, upd.ChannelID) {
		return false
	}
	if len(rule.Roles) > 0 && !containsAny(rule.Roles, upd.MemberRoles) {
		return false
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsAny(list, held []string) bool {
	for _, h := range held {
		if containsStr(list, h) {
			return true
		}
	}
	return false
}
