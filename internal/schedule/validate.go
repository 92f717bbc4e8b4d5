package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"riftcal/internal/model"
)

const clockLayout = "15:04"

var (
	ErrEndBeforeStart   = errors.New("End date must be after start date")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrInvalidClock     = errors.New("time must be in HH:MM format")
	ErrInvalidCadence   = errors.New("repeat must be one of none, weekly, biweekly, monthly")
	ErrMissingDates     = errors.New("start date and end date are required")
)

// ParseCadence normalizes a repeat string. An empty value means none.
func ParseCadence(s string) (model.Cadence, error) {
	switch c := model.Cadence(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return model.CadenceNone, nil
	case model.CadenceNone, model.CadenceWeekly, model.CadenceBiweekly, model.CadenceMonthly:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCadence, s)
	}
}

// ValidateSession performs the form-level checks made before a session is
// saved. It returns the first problem found.
// PRE: s is populated from user input
// POST: nil means ExpandOccurrences will use every field as given
func ValidateSession(s model.Session) error {
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return ErrMissingDates
	}
	if model.DateOf(s.EndDate).Before(model.DateOf(s.StartDate)) {
		return ErrEndBeforeStart
	}
	if _, _, err := parseClockRange(s.StartTime, s.EndTime); err != nil {
		return err
	}
	if _, err := NormalizeDays(s.DaysOfWeek); err != nil {
		return err
	}
	if _, err := ParseCadence(string(s.Cadence)); err != nil {
		return err
	}
	return nil
}

// clock is a time of day in minutes since midnight.
type clock struct {
	hour, minute int
}

func parseClock(s string) (clock, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return clock{hour: t.Hour(), minute: t.Minute()}, nil
}

func parseClockRange(start, end string) (clock, clock, error) {
	st, err := parseClock(start)
	if err != nil {
		return clock{}, clock{}, err
	}
	en, err := parseClock(end)
	if err != nil {
		return clock{}, clock{}, err
	}
	if en.hour*60+en.minute <= st.hour*60+st.minute {
		return clock{}, clock{}, ErrInvalidTimeRange
	}
	return st, en, nil
}

// on combines a civil date with the clock in loc. A clock that falls in a
// daylight-saving gap moves forward by the gap, so 02:30 on a spring-forward
// day in America/New_York becomes 03:30 EDT.
func (c clock) on(date time.Time, loc *time.Location) time.Time {
	t := time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.minute, 0, 0, loc)
	if t.Hour() == c.hour && t.Minute() == c.minute {
		return t
	}
	_, before := t.Add(-12 * time.Hour).Zone()
	wall := time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.minute, 0, 0, time.UTC)
	return wall.Add(-time.Duration(before) * time.Second).In(loc)
}
