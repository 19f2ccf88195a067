package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildbot/internal/adapters/discord"
	"guildbot/internal/bot"
	"guildbot/internal/config"
	"guildbot/internal/dash"
	"guildbot/internal/notify"
	"guildbot/internal/scrape"
	"guildbot/internal/storage"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	ad, err := discord.New(discord.Config{
		Token:   cfg.BotToken,
		GuildID: cfg.GuildID,
	}, logx.NewConsole(cfg.LogLevel).With(logx.String("comp", "discord")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.LogLevel,
		Console: true,
		File:    logx.FileConfig{Enabled: cfg.LogFile != "", Path: cfg.LogFile},
		Discord: logx.DiscordConfig{
			Enabled:   cfg.LogChannelID != "",
			ChannelID: cfg.LogChannelID,
			MinLevel:  "warn",
		},
	}, ad)
	defer logSvc.Close()
	log = log.With(logx.String("comp", "app"))

	if err := run(ctx, cfg, ad, log); err != nil {
		log.Error("fatal", logx.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, ad *discord.Adapter, log logx.Logger) error {
	store, err := storage.Open(storage.Config{
		Path:        cfg.DBPath,
		BusyTimeout: 5 * time.Second,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	sched := notify.NewCronScheduler()
	reg := notify.NewRegistry(sched, ad, log.With(logx.String("comp", "registry")))
	defer reg.StopAll()

	// Presets first (upsert + start), then every persisted job wholesale.
	seeder := notify.NewSeeder(store, reg, cfg.NotifyChannelID, cfg.Timezone,
		log.With(logx.String("comp", "seeder")))
	seeder.Seed(ctx, presets(cfg))

	jobs, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	if err := reg.ReloadAll(jobs); err != nil {
		log.Warn("some persisted jobs were not started", logx.Err(err))
	}

	pol := config.NewPolicyManager(cfg.PolicyPath, log.With(logx.String("comp", "policy")))
	if err := pol.Load(); err != nil {
		log.Error("policy load failed, running unrestricted", logx.Err(err))
	}
	if err := pol.Watch(ctx); err != nil {
		log.Warn("policy hot reload unavailable", logx.Err(err))
	}

	mirror := bot.NewMirrorer(cfg.OfficerChannelID, cfg.MirrorPingRole, ad,
		log.With(logx.String("comp", "mirror")))
	router := bot.NewRouter(pol, mirror, log.With(logx.String("comp", "router")))

	notifCmds := notify.NewCommands(store, reg, sched, log.With(logx.String("comp", "notify")))
	router.Register(notifCmds.Command(), pingCommand())
	router.RegisterButtons(notifCmds.Buttons()...)

	dashSrv := dash.New(cfg.DashAddr, store, reg, log.With(logx.String("comp", "dash")))
	dashSrv.Start()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer scancel()
		_ = dashSrv.Stop(sctx)
	}()

	if cfg.ForumBaseURL != "" && cfg.ForumChannelID != "" {
		watcher := scrape.New(scrape.Config{
			BaseURL:   cfg.ForumBaseURL,
			ChannelID: cfg.ForumChannelID,
			Schedule:  cfg.ForumSchedule,
		}, store, ad, log.With(logx.String("comp", "scrape")))
		if err := watcher.Register(reg, cfg.Timezone); err != nil {
			log.Error("forum watcher not started", logx.Err(err))
		}
	}

	updates := make(chan transport.Update, 256)
	if err := ad.Start(ctx, updates); err != nil {
		return fmt.Errorf("start adapter: %w", err)
	}
	defer func() { _ = ad.Stop(context.Background()) }()

	log.Info("guildbot up", logx.Int("jobs", len(jobs)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd := <-updates:
			router.Handle(ctx, upd)
		}
	}
}

func presets(cfg config.Config) []notify.PresetSpec {
	return []notify.PresetSpec{
		{
			ID:      "preset_meeting",
			Message: "{role} officer meeting is coming up - agenda is in the pins.",
			Input: notify.PresetInput{
				RoleID: cfg.PresetMeeting.RoleID,
				At:     cfg.PresetMeeting.At,
				Freq:   cfg.PresetMeeting.Freq,
			},
		},
		{
			ID:      "preset_digest",
			Message: "{role} time for the community digest - drop your updates below.",
			Input: notify.PresetInput{
				RoleID: cfg.PresetDigest.RoleID,
				At:     cfg.PresetDigest.At,
				Freq:   cfg.PresetDigest.Freq,
			},
		},
	}
}

func pingCommand() bot.Command {
	return bot.Command{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Handle: func(ctx context.Context, req *bot.Request) error {
			return req.Reply.Send(ctx, "Pong.")
		},
	}
}
