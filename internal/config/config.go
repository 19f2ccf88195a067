package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Preset holds the environment inputs for one well-known notification.
// Any empty field disables the preset (seeding skips it silently).
type Preset struct {
	RoleID string `env:"ROLE_ID"`
	At     string `env:"AT"`   // HH:MM, 24h zero-padded
	Freq   string `env:"FREQ"` // daily|weekdays|weekends|sun..sat
}

func (p Preset) Complete() bool {
	return p.RoleID != "" && p.At != "" && p.Freq != ""
}

type Config struct {
	BotToken string `env:"DISCORD_TOKEN,notEmpty"`
	GuildID  string `env:"GUILD_ID"`

	DBPath     string `env:"DB_PATH" envDefault:"./guildbot.db"`
	PolicyPath string `env:"POLICY_PATH" envDefault:"./policy.yaml"`
	DashAddr   string `env:"DASH_ADDR" envDefault:"127.0.0.1:8710"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
	LogChannelID string `env:"LOG_CHANNEL_ID"`

	// OfficerChannelID is the audit channel: replies issued there are public,
	// replies issued elsewhere are ephemeral and mirrored into it.
	OfficerChannelID string `env:"OFFICER_CHANNEL_ID"`
	MirrorPingRole   string `env:"MIRROR_PING_ROLE_ID"`

	// Shared preset inputs.
	NotifyChannelID string `env:"NOTIFY_CHANNEL_ID"`
	Timezone        string `env:"NOTIFY_TZ" envDefault:"UTC"`

	PresetMeeting Preset `envPrefix:"PRESET_MEETING_"`
	PresetDigest  Preset `envPrefix:"PRESET_DIGEST_"`

	// Forum watcher.
	ForumBaseURL   string `env:"FORUM_BASE_URL"`
	ForumChannelID string `env:"FORUM_CHANNEL_ID"`
	ForumSchedule  string `env:"FORUM_SCHEDULE" envDefault:"*/15 * * * *"`
}

// Load reads .env (best-effort) and parses the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
