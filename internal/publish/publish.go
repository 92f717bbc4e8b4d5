// Package publish writes ICS feeds for all sessions to disk, once or on a
// cron schedule.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/robfig/cron/v3"

	"riftcal/internal/config"
	appLog "riftcal/internal/log"
	"riftcal/internal/metrics"
	"riftcal/internal/planner"
	"riftcal/internal/store"
)

// CombinedFeed is the file name of the feed holding every session.
const CombinedFeed = "all.ics"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Publisher renders sessions to <dir>/<sessionID>.ics and <dir>/all.ics.
// Runs are serialized.
type Publisher struct {
	store   store.SessionStore
	planner *planner.Planner
	dir     string
	name    string
	metrics metrics.Recorder

	mu sync.Mutex
}

// New creates a Publisher writing into dir. name is the X-WR-CALNAME of
// the combined feed.
func New(st store.SessionStore, p *planner.Planner, dir, name string, rec metrics.Recorder) *Publisher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Publisher{store: st, planner: p, dir: dir, name: name, metrics: rec}
}

// RunOnce publishes every session. Files are replaced atomically; feeds of
// deleted sessions are removed.
func (p *Publisher) RunOnce(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if err != nil {
			p.metrics.RecordPublish("error")
			appLog.Error("publish failed", err, "dir", p.dir)
			return
		}
		p.metrics.RecordPublish("success")
	}()

	sessions, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}

	keep := map[string]bool{CombinedFeed: true}
	var errs []error
	entries := p.planner.Occurrences(ctx, sessions...)
	for i, s := range sessions {
		file := FeedFileName(s.ID)
		keep[file] = true
		body := p.planner.Render(s.Name, entries[i:i+1])
		if err := config.WriteFileAtomic(filepath.Join(p.dir, file), []byte(body), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}

	all := p.planner.Render(p.name, entries)
	if err := config.WriteFileAtomic(filepath.Join(p.dir, CombinedFeed), []byte(all), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("combined feed: %w", err))
	}

	p.removeStale(keep)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	appLog.Info("feeds published", "dir", p.dir, "sessions", len(sessions))
	return nil
}

// Start schedules RunOnce with a standard 5-field cron spec evaluated in
// the planner's display timezone. The schedule stops when ctx is done.
func (p *Publisher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(p.planner.Location()))
	_, err := c.AddFunc(spec, func() {
		_ = p.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("publish schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("publish scheduler started", "cron", spec, "timezone", p.planner.Location().String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("publish scheduler stopped")
	}()
	return nil
}

// FeedFileName returns the per-session feed file name.
func FeedFileName(sessionID string) string {
	return unsafeName.ReplaceAllString(sessionID, "_") + ".ics"
}

func (p *Publisher) removeStale(keep map[string]bool) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".ics" || keep[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(p.dir, e.Name())); err != nil {
			appLog.Error("failed to remove stale feed", err, "file", e.Name())
		}
	}
}
