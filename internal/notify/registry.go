package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

// Handle is one running periodic timer.
type Handle interface {
	Stop()
}

// Scheduler turns a cron spec plus timezone into a running timer. Kept
// minimal so the registry can be tested with a fake that fires on demand.
type Scheduler interface {
	Validate(spec, tz string) error
	Schedule(spec, tz string, fn func()) (Handle, error)
}

// CronScheduler backs each timer with its own cron runner so stopping one
// job never disturbs another.
type CronScheduler struct {
	parser cron.Parser
}

func NewCronScheduler() *CronScheduler {
	return &CronScheduler{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (s *CronScheduler) Validate(spec, tz string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	if _, err := loadLocation(tz); err != nil {
		return err
	}
	return nil
}

func (s *CronScheduler) Schedule(spec, tz string, fn func()) (Handle, error) {
	loc, err := loadLocation(tz)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	return cronHandle{c: c}, nil
}

type cronHandle struct{ c *cron.Cron }

func (h cronHandle) Stop() { h.c.Stop() }

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// RunningInfo describes one registered timer, for status surfaces.
type RunningInfo struct {
	ID   string `json:"id"`
	Spec string `json:"spec"`
	TZ   string `json:"tz"`
}

type entry struct {
	handle Handle
	spec   string
	tz     string
}

// Registry owns the jobId -> running timer map. Invariant: at most one live
// timer per id; a replace stops the old timer before the new one starts.
// All mutations are serialized by the mutex, so a command-handler edit and a
// bulk reload cannot interleave into a half-registered state.
type Registry struct {
	sched  Scheduler
	sender transport.Sender
	log    logx.Logger

	mu     sync.Mutex
	timers map[string]entry
}

func NewRegistry(sched Scheduler, sender transport.Sender, log logx.Logger) *Registry {
	return &Registry{
		sched:  sched,
		sender: sender,
		log:    log,
		timers: make(map[string]entry),
	}
}

// Start registers a delivery timer for the job, replacing any running timer
// with the same id.
func (r *Registry) Start(j Job) error {
	return r.StartFunc(j.ID, j.Spec, j.TZ, r.deliver(j))
}

// StartFunc registers an arbitrary callback under id. Used by Start and by
// schedule-driven subsystems that are not notifications (forum watcher).
func (r *Registry) StartFunc(id, spec, tz string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(id, spec, tz, fn)
}

func (r *Registry) startLocked(id, spec, tz string, fn func()) error {
	// Validate before touching the running timer, so a bad spec cannot take
	// down the job it was meant to replace.
	if err := r.sched.Validate(spec, tz); err != nil {
		return err
	}

	if old, ok := r.timers[id]; ok {
		old.handle.Stop()
		delete(r.timers, id)
	}

	h, err := r.sched.Schedule(spec, tz, r.recovered(id, fn))
	if err != nil {
		return err
	}
	r.timers[id] = entry{handle: h, spec: spec, tz: tz}
	return nil
}

// Stop cancels the timer for id. No-op if absent.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.timers[id]; ok {
		e.handle.Stop()
		delete(r.timers, id)
	}
}

// ReloadAll stops every registered timer and starts one per supplied job, in
// order. Jobs that fail validation are skipped (and reported joined); the
// registry afterwards contains exactly the valid supplied jobs.
func (r *Registry) ReloadAll(jobs []Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.timers {
		e.handle.Stop()
		delete(r.timers, id)
	}

	var errs []error
	for _, j := range jobs {
		if err := r.startLocked(j.ID, j.Spec, j.TZ, r.deliver(j)); err != nil {
			r.log.Warn("job skipped on reload", logx.String("id", j.ID), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", j.ID, err))
		}
	}
	return errors.Join(errs...)
}

// StopAll cancels every timer. Called on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.timers {
		e.handle.Stop()
		delete(r.timers, id)
	}
}

// Running reports whether a timer exists for id.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[id]
	return ok
}

// Snapshot lists registered timers, sorted by id.
func (r *Registry) Snapshot() []RunningInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunningInfo, 0, len(r.timers))
	for id, e := range r.timers {
		out = append(out, RunningInfo{ID: id, Spec: e.spec, TZ: e.tz})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// deliver renders the template at fire time (so role edits apply without a
// restart) and sends it. A failed send is transient: log and keep the timer.
func (r *Registry) deliver(j Job) func() {
	return func() {
		if err := r.sender.SendText(context.Background(), j.ChannelID, j.Render()); err != nil {
			r.log.Warn("notification delivery failed",
				logx.String("id", j.ID),
				logx.String("channel", j.ChannelID),
				logx.Err(err))
		}
	}
}

// recovered keeps a panicking callback from killing the cron goroutine.
func (r *Registry) recovered(id string, fn func()) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("job panicked",
					logx.String("id", id),
					logx.Any("panic", rec),
					logx.Stack(string(debug.Stack())))
			}
		}()
		fn()
	}
}
