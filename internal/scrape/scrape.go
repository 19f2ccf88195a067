// Package scrape watches a third-party forum that exposes threads under
// sequential numeric ids. There is no feed to subscribe to; the watcher
// probes ids past the last seen one and announces the threads it finds.
package scrape

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"guildbot/internal/notify"
	"guildbot/internal/transport"
	"guildbot/pkg/logx"
)

// JobID is the watcher's id in the job registry.
const JobID = "forum_watch"

const defaultMaxProbes = 20

var titleRe = regexp.MustCompile(`(?is)<title>\s*(.*?)\s*</title>`)

type Config struct {
	BaseURL   string // threads live at BaseURL/threads/<id>
	Source    string // cursor key, defaults to "main"
	ChannelID string
	Schedule  string // five-field cron expression
	MaxProbes int    // per run, defaults to 20
}

// Cursor persists the last announced thread id. Implemented by
// internal/storage.
type Cursor interface {
	ForumCursor(ctx context.Context, source string) (int64, error)
	SetForumCursor(ctx context.Context, source string, lastID int64) error
}

type Watcher struct {
	cfg    Config
	cursor Cursor
	sender transport.Sender
	log    logx.Logger

	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config, cursor Cursor, sender transport.Sender, log logx.Logger) *Watcher {
	if cfg.Source == "" {
		cfg.Source = "main"
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = defaultMaxProbes
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Watcher{
		cfg:    cfg,
		cursor: cursor,
		sender: sender,
		log:    log,
		http:   &http.Client{Timeout: 10 * time.Second},
		// Forum operators notice impolite crawlers.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// Register installs the watcher as a schedule-driven job in the registry.
func (w *Watcher) Register(reg *notify.Registry, tz string) error {
	return reg.StartFunc(JobID, w.cfg.Schedule, tz, w.poll)
}

func (w *Watcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	last, err := w.cursor.ForumCursor(ctx, w.cfg.Source)
	if err != nil {
		w.log.Warn("forum cursor read failed", logx.Err(err))
		return
	}

	start := last
	for i := 0; i < w.cfg.MaxProbes; i++ {
		title, found, err := w.probe(ctx, last+1)
		if err != nil {
			// Network trouble: stop here, next run retries from the cursor.
			w.log.Warn("forum probe failed", logx.Int64("id", last+1), logx.Err(err))
			break
		}
		if !found {
			break
		}
		last++
		w.announce(ctx, last, title)
	}

	if last != start {
		if err := w.cursor.SetForumCursor(ctx, w.cfg.Source, last); err != nil {
			w.log.Error("forum cursor write failed", logx.Err(err))
		}
	}
}

// probe fetches one thread page. found is false on 404 (the id does not
// exist yet); any other non-200 status is an error.
func (w *Watcher) probe(ctx context.Context, id int64) (title string, found bool, err error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	url := fmt.Sprintf("%s/threads/%d", w.cfg.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("thread %d: unexpected status %d", id, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", false, err
	}
	if m := titleRe.FindSubmatch(body); m != nil {
		title = html.UnescapeString(strings.TrimSpace(string(m[1])))
	}
	if title == "" {
		title = fmt.Sprintf("thread %d", id)
	}
	return title, true, nil
}

func (w *Watcher) announce(ctx context.Context, id int64, title string) {
	msg := fmt.Sprintf("New forum thread: **%s**\n%s/threads/%d", title, w.cfg.BaseURL, id)
	if err := w.sender.SendText(ctx, w.cfg.ChannelID, msg); err != nil {
		w.log.Warn("forum announce failed", logx.Int64("id", id), logx.Err(err))
	}
}
