package ics

import (
	"context"
	"sync"
	"time"

	appLog "riftcal/internal/log"
	"riftcal/internal/model"
)

// DefaultRefreshInterval is how long parsed closure feeds are reused.
const DefaultRefreshInterval = 15 * time.Minute

// DefaultRetryInterval is how long to wait after every feed failed before
// fetching again.
const DefaultRetryInterval = time.Minute

// ClosureCalendar merges program-wide closure feeds into sessions'
// cancelled dates. Feeds are refetched at most once per refresh interval.
// The zero-source calendar (and a nil *ClosureCalendar) is a no-op.
type ClosureCalendar struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
	refresh time.Duration
	retry   time.Duration
	now     func() time.Time

	mu        sync.Mutex
	events    []ParsedEvent
	fetchedAt time.Time
	failedAt  time.Time
}

// NewClosureCalendar creates a ClosureCalendar reading sources through
// fetcher. loc is used for timed and floating closure events.
func NewClosureCalendar(fetcher *Fetcher, sources []Source, loc *time.Location) *ClosureCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return &ClosureCalendar{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
		refresh: DefaultRefreshInterval,
		retry:   DefaultRetryInterval,
		now:     time.Now,
	}
}

// Dates returns the closure dates within [from, to].
func (c *ClosureCalendar) Dates(ctx context.Context, from, to time.Time) []time.Time {
	if c == nil || len(c.sources) == 0 {
		return []time.Time{}
	}
	return ClosureDates(c.load(ctx), from, to, c.loc)
}

// Apply returns s with closure dates in its range added to CancelledDates.
// Feed failures leave s unchanged apart from what the cache still provides.
func (c *ClosureCalendar) Apply(ctx context.Context, s model.Session) model.Session {
	closed := c.Dates(ctx, s.StartDate, s.EndDate)
	if len(closed) == 0 {
		return s
	}
	merged := make([]time.Time, 0, len(s.CancelledDates)+len(closed))
	merged = append(merged, s.CancelledDates...)
	merged = append(merged, closed...)
	s.CancelledDates = merged
	return s
}

func (c *ClosureCalendar) load(ctx context.Context) []ParsedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.refresh {
		return c.events
	}
	if !c.failedAt.IsZero() && now.Sub(c.failedAt) < c.retry {
		return c.events
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)
	if len(results) == 0 && len(errs) > 0 {
		// Keep serving the previous events until the retry interval passes.
		c.failedAt = now
		appLog.Info("closure calendars unavailable", "failed", len(errs), "retry_in", c.retry.String())
		return c.events
	}

	events := make([]ParsedEvent, 0)
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body, c.loc)
		if err != nil {
			continue
		}
		events = append(events, parsed...)
	}
	appLog.Info("closure calendars loaded", "sources", len(results), "failed", len(errs), "events", len(events))

	c.events = events
	c.fetchedAt = now
	c.failedAt = time.Time{}
	return events
}
