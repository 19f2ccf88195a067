package notify

import (
	"context"

	"guildbot/pkg/logx"
)

// PresetInput is the per-preset environment configuration. Presets are
// strictly best-effort: any missing field disables that preset for this run.
type PresetInput struct {
	RoleID string
	At     string // HH:MM
	Freq   string // daily|weekdays|weekends|sun..sat
}

// PresetSpec is one well-known job the seeder keeps in existence.
type PresetSpec struct {
	ID      string // must carry PresetIDPrefix
	Message string
	Input   PresetInput
}

// Seeder upserts well-known jobs on every process start and (re)starts their
// timers. Re-seeding overwrites operator edits to preset jobs deliberately:
// the environment is the source of truth for presets. Operator-created jobs
// are never touched.
type Seeder struct {
	store     Store
	reg       *Registry
	channelID string
	tz        string
	log       logx.Logger
}

func NewSeeder(store Store, reg *Registry, channelID, tz string, log logx.Logger) *Seeder {
	return &Seeder{store: store, reg: reg, channelID: channelID, tz: tz, log: log}
}

// Seed processes each preset independently; one broken preset never blocks
// the others. Safe to call on every start.
func (s *Seeder) Seed(ctx context.Context, presets []PresetSpec) {
	if s.channelID == "" {
		s.log.Warn("preset seeding disabled: no destination channel configured")
		return
	}

	for _, p := range presets {
		in := p.Input
		if in.RoleID == "" || in.At == "" || in.Freq == "" {
			s.log.Debug("preset skipped, incomplete configuration", logx.String("id", p.ID))
			continue
		}
		spec, ok := HHMMToCron(in.At, in.Freq)
		if !ok {
			s.log.Warn("preset skipped, malformed schedule",
				logx.String("id", p.ID),
				logx.String("at", in.At),
				logx.String("freq", in.Freq))
			continue
		}

		job := Job{
			ID:        p.ID,
			RoleID:    in.RoleID,
			ChannelID: s.channelID,
			Spec:      spec,
			TZ:        s.tz,
			Message:   p.Message,
			CreatedBy: SystemCreator,
		}
		stored, err := s.store.UpsertPreset(ctx, job)
		if err != nil {
			s.log.Error("preset upsert failed", logx.String("id", p.ID), logx.Err(err))
			continue
		}
		if err := s.reg.Start(stored); err != nil {
			s.log.Error("preset start failed", logx.String("id", p.ID), logx.Err(err))
			continue
		}
		s.log.Info("preset seeded", logx.String("id", p.ID), logx.String("spec", spec))
	}
}
