// Package planner turns stored sessions into occurrences and feeds,
// applying closure calendars and recording expansion metrics.
package planner

import (
	"context"
	"time"

	"riftcal/internal/ics"
	"riftcal/internal/metrics"
	"riftcal/internal/model"
	"riftcal/internal/schedule"
)

// Planner expands sessions for the API and the feed publisher.
type Planner struct {
	closures *ics.ClosureCalendar
	expand   schedule.ExpandConfig
	metrics  metrics.Recorder
}

// New creates a Planner. closures may be nil; rec may be nil.
func New(closures *ics.ClosureCalendar, expand schedule.ExpandConfig, rec metrics.Recorder) *Planner {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if expand.DisplayLocation == nil {
		expand.DisplayLocation, _ = schedule.ResolveLocation("")
	}
	return &Planner{closures: closures, expand: expand, metrics: rec}
}

// Location returns the display timezone.
func (p *Planner) Location() *time.Location {
	return p.expand.DisplayLocation
}

// Expand returns every occurrence of s, with closure dates treated as
// cancellations.
func (p *Planner) Expand(ctx context.Context, s model.Session) schedule.ExpandResult {
	s = p.closures.Apply(ctx, s)
	res := schedule.ExpandOccurrences(s, p.expand)
	p.metrics.RecordExpansion(len(res.Occurrences), res.Truncated)
	return res
}

// Occurrences expands each session once, in order.
func (p *Planner) Occurrences(ctx context.Context, sessions ...model.Session) []ics.SessionOccurrences {
	entries := make([]ics.SessionOccurrences, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, ics.SessionOccurrences{
			Session:     s,
			Occurrences: p.Expand(ctx, s).Occurrences,
		})
	}
	return entries
}

// Render builds an ICS calendar named name from already expanded entries.
func (p *Planner) Render(name string, entries []ics.SessionOccurrences) string {
	return ics.BuildCalendar(name, entries, p.expand.DisplayLocation)
}

// Calendar renders sessions as one ICS calendar named name.
func (p *Planner) Calendar(ctx context.Context, name string, sessions ...model.Session) string {
	return p.Render(name, p.Occurrences(ctx, sessions...))
}
