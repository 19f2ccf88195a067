package config

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"guildbot/pkg/logx"
)

// Policy is the operator-editable part of the configuration: which commands
// get mirrored into the officer channel, and who may run what where.
type Policy struct {
	Mirror MirrorPolicy          `yaml:"mirror"`
	Access map[string]AccessRule `yaml:"access"` // keyed by command name
}

// MirrorPolicy entries are "command" or "command:subcommand" keys.
type MirrorPolicy struct {
	Deny  []string `yaml:"deny"`
	Allow []string `yaml:"allow"` // mirror with role ping
}

// AccessRule restricts a command to the listed roles and channels.
// An empty list leaves that dimension unrestricted.
type AccessRule struct {
	Roles    []string `yaml:"roles"`
	Channels []string `yaml:"channels"`
}

// PolicyManager loads policy.yaml and hot-reloads it on file change.
// A broken file on reload keeps the previous policy.
type PolicyManager struct {
	path string
	log  logx.Logger

	mu       sync.RWMutex
	cur      Policy
	lastHash uint64
}

func NewPolicyManager(path string, log logx.Logger) *PolicyManager {
	return &PolicyManager{path: path, log: log}
}

// Current returns the last successfully loaded policy.
func (m *PolicyManager) Current() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Load parses the policy file and commits it. A missing file commits an
// empty (fully permissive, no-mirror-tuning) policy.
func (m *PolicyManager) Load() error {
	b, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.log.Warn("policy file missing, running unrestricted", logx.String("path", m.path))
		m.commit(Policy{}, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read policy: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("parse policy %s: %w", m.path, err)
	}
	m.commit(p, hashBytes(b))
	return nil
}

func (m *PolicyManager) commit(p Policy, h uint64) {
	m.mu.Lock()
	m.cur = p
	m.lastHash = h
	m.mu.Unlock()
}

// Watch re-loads the policy whenever the file changes, until ctx ends.
// Editors produce bursts of write events; the content hash suppresses
// redundant reloads.
func (m *PolicyManager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// Let the editor finish its write burst.
				time.Sleep(150 * time.Millisecond)
				m.reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn("policy watcher error", logx.Err(err))
			}
		}
	}()
	return nil
}

func (m *PolicyManager) reload() {
	b, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warn("policy reload read failed, keeping previous", logx.Err(err))
		return
	}
	h := hashBytes(b)
	m.mu.RLock()
	same := h == m.lastHash
	m.mu.RUnlock()
	if same {
		return
	}

	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		m.log.Warn("policy reload parse failed, keeping previous", logx.Err(err))
		return
	}
	m.commit(p, h)
	m.log.Info("policy reloaded",
		logx.Int("deny", len(p.Mirror.Deny)),
		logx.Int("allow", len(p.Mirror.Allow)),
		logx.Int("access_rules", len(p.Access)))
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
