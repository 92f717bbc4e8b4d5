package ics

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "riftcal/internal/log"
	"riftcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ClosureDates expands closure events into the calendar dates they cover
// within [from, to] (civil dates, inclusive). Timed events cover every
// date they touch in loc; all-day events cover [DTSTART, DTEND).
//
// RRULE with EXDATE is honored, and a RECURRENCE-ID override replaces the
// instance it names. The result is ascending with no duplicates.
func ClosureDates(events []ParsedEvent, from, to time.Time, loc *time.Location) []time.Time {
	from, to = model.DateOf(from), model.DateOf(to)
	if to.Before(from) {
		return []time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}

	overriddenByUID := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overriddenByUID[ev.UID] = append(overriddenByUID[ev.UID], *ev.Recurrence)
		}
	}

	covered := make(map[time.Time]bool)
	for _, ev := range events {
		starts := eventStarts(ev, overriddenByUID[ev.UID], from, to)
		dur := ev.End.Sub(ev.Start)
		for _, s := range starts {
			for _, d := range spanDates(s, s.Add(dur), ev.AllDay, loc) {
				if !d.Before(from) && !d.After(to) {
					covered[d] = true
				}
			}
		}
	}

	out := make([]time.Time, 0, len(covered))
	for d := range covered {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// eventStarts returns the instance start times of ev near [from, to].
// Overrides and single events yield their own start.
func eventStarts(ev ParsedEvent, overridden []time.Time, from, to time.Time) []time.Time {
	if ev.RawRRule == "" || ev.Recurrence != nil {
		return []time.Time{ev.Start}
	}

	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("closure: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []time.Time{ev.Start}
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("closure: failed to build RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []time.Time{ev.Start}
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}
	for _, rid := range overridden {
		set.ExDate(rid.In(ev.Start.Location()))
	}

	// Widen the window so instances starting before from but still running
	// into it, or shifted by zone offsets, are seen.
	slack := ev.End.Sub(ev.Start) + 48*time.Hour
	starts := set.Between(from.Add(-slack), to.Add(48*time.Hour), true)
	if len(starts) > defaultMaxOccurrencesPerEvent {
		appLog.Info("closure: truncated occurrences for UID", "uid", ev.UID, "cap", defaultMaxOccurrencesPerEvent)
		starts = starts[:defaultMaxOccurrencesPerEvent]
	}
	return starts
}

// spanDates lists the civil dates covered by [start, end).
func spanDates(start, end time.Time, allDay bool, loc *time.Location) []time.Time {
	var first, last time.Time
	if allDay {
		first = model.DateOf(start)
		last = model.DateOf(end).AddDate(0, 0, -1)
	} else {
		first = model.DateOf(start.In(loc))
		last = first
		if end.After(start) {
			last = model.DateOf(end.Add(-time.Nanosecond).In(loc))
		}
	}
	if last.Before(first) {
		last = first
	}

	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
