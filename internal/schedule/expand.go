package schedule

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/teambition/rrule-go"

	appLog "riftcal/internal/log"
	"riftcal/internal/model"
)

const (
	defaultMaxOccurrences = 20000

	// DefaultDisplayZone is the zone practices are shown in when the
	// caller does not configure one.
	DefaultDisplayZone = "America/New_York"

	// monthlyStrideDays approximates a month as four weeks.
	monthlyStrideDays = 28
)

// ExpandConfig controls how a session is expanded.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrence start/end times are built in.
	// If nil, DefaultDisplayZone is used (falling back to UTC when tzdata is missing).
	DisplayLocation *time.Location

	// MaxOccurrences is a safety cap. Zero means defaultMaxOccurrences;
	// a negative value disables the cap.
	MaxOccurrences int
}

// ExpandResult wraps the expanded occurrences and whether the cap was hit.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Truncated   bool
}

// ExpandOccurrences computes every concrete occurrence of s:
//
//   - every date in [StartDate, EndDate] falling on one of DaysOfWeek
//   - biweekly keeps only even Monday-based weeks counted from StartDate's week
//   - monthly keeps only dates a multiple of 28 days after StartDate
//   - CancelledDates are removed by exact calendar date
//
// Invalid input (reversed range, no or unknown weekdays, bad times, unknown
// cadence) yields an empty result rather than an error. The result is
// sorted ascending with no duplicates.
func ExpandOccurrences(s model.Session, cfg ExpandConfig) ExpandResult {
	result := ExpandResult{Occurrences: []model.Occurrence{}}

	start := model.DateOf(s.StartDate)
	end := model.DateOf(s.EndDate)
	if s.StartDate.IsZero() || s.EndDate.IsZero() || end.Before(start) {
		return result
	}

	days, err := NormalizeDays(s.DaysOfWeek)
	if err != nil {
		appLog.Debug("expand: skipping session with unusable days", "session_id", s.ID, "err", err)
		return result
	}
	startClock, endClock, err := parseClockRange(s.StartTime, s.EndTime)
	if err != nil {
		appLog.Debug("expand: skipping session with unusable times", "session_id", s.ID, "err", err)
		return result
	}
	cadence, err := ParseCadence(string(s.Cadence))
	if err != nil {
		appLog.Debug("expand: skipping session with unknown cadence", "session_id", s.ID, "err", err)
		return result
	}

	opt := ruleOption(cadence, start, end, days)
	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("expand: failed to build rule", err, "session_id", s.ID)
		return result
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range s.CancelledDates {
		set.ExDate(model.DateOf(ex))
	}

	if cfg.MaxOccurrences == 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}
	loc := cfg.DisplayLocation
	if loc == nil {
		loc = defaultLocation()
	}

	dates := set.Between(start, end, true)
	if cfg.MaxOccurrences > 0 && len(dates) > cfg.MaxOccurrences {
		dates = dates[:cfg.MaxOccurrences]
		result.Truncated = true
		appLog.Info("expand: truncated occurrences for session", "session_id", s.ID, "cap", cfg.MaxOccurrences)
	}

	occ := make([]model.Occurrence, 0, len(dates))
	for _, d := range dates {
		occ = append(occ, model.Occurrence{
			SessionID:   s.ID,
			InstanceKey: d.Format(model.DateLayout),
			Summary:     s.Name,
			Location:    s.Location,
			Date:        d,
			Start:       startClock.on(d, loc),
			End:         endClock.on(d, loc),
		})
	}
	result.Occurrences = occ
	return result
}

// RRule returns the RRULE value ("FREQ=WEEKLY;...") equivalent to the
// session's cadence, without DTSTART.
func RRule(s model.Session) (string, error) {
	days, err := NormalizeDays(s.DaysOfWeek)
	if err != nil {
		return "", err
	}
	cadence, err := ParseCadence(string(s.Cadence))
	if err != nil {
		return "", err
	}
	opt := ruleOption(cadence, model.DateOf(s.StartDate), model.DateOf(s.EndDate), days)
	return opt.RRuleString(), nil
}

// ruleOption maps a cadence onto an RFC 5545 rule anchored at start.
// Weeks start on Monday so biweekly parity is counted on Monday-based weeks.
func ruleOption(c model.Cadence, start, end time.Time, days []Weekday) rrule.ROption {
	byDay := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, d.toRRule())
	}

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Wkst:      rrule.MO,
		Byweekday: byDay,
		Dtstart:   start,
		Until:     end,
	}
	switch c {
	case model.CadenceBiweekly:
		opt.Interval = 2
	case model.CadenceMonthly:
		opt.Freq = rrule.DAILY
		opt.Interval = monthlyStrideDays
	}
	return opt
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultDisplayZone)
	if err != nil {
		appLog.Error("failed to load default display zone; using UTC", err, "name", DefaultDisplayZone)
		return time.UTC
	}
	return loc
}

// ResolveLocation loads name, falling back to the default display zone.
func ResolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return defaultLocation(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load display timezone %q: %w", name, err)
	}
	return loc, nil
}
