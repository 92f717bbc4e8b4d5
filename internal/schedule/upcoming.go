package schedule

import (
	"time"

	"riftcal/internal/model"
)

// DefaultUpcomingLimit is how many upcoming practices a drawer shows.
const DefaultUpcomingLimit = 5

const occurrenceLayout = "Mon Jan 2, 2006 3:04 PM"

// Upcoming keeps occurrences starting at or after now, in order, and
// returns at most limit of them. limit <= 0 means DefaultUpcomingLimit.
func Upcoming(occ []model.Occurrence, now time.Time, limit int) []model.Occurrence {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	out := make([]model.Occurrence, 0, limit)
	for _, o := range occ {
		if o.Start.Before(now) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out
}

// InLocation returns a copy of occ with Start/End shown in loc.
func InLocation(occ []model.Occurrence, loc *time.Location) []model.Occurrence {
	out := make([]model.Occurrence, len(occ))
	for i, o := range occ {
		o.Start = o.Start.In(loc)
		o.End = o.End.In(loc)
		out[i] = o
	}
	return out
}

// FormatOccurrence renders an occurrence for display in its own zone,
// e.g. "Mon Jan 1, 2024 4:00 PM - 5:30 PM EST".
func FormatOccurrence(o model.Occurrence) string {
	return o.Start.Format(occurrenceLayout) + " - " + o.End.Format("3:04 PM MST")
}
