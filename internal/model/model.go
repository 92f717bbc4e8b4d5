package model

import "time"

// Cadence is the repeat rule governing which weeks of a session's date
// range produce occurrences.
type Cadence string

const (
	CadenceNone     Cadence = "none"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

// DateLayout is the wire/storage format of calendar dates.
const DateLayout = "2006-01-02"

// Session is a recurring practice definition as loaded from the store.
// StartDate, EndDate and CancelledDates are civil dates held as midnight UTC.
type Session struct {
	ID       string
	Name     string
	TeamID   string
	Location string

	StartDate time.Time
	EndDate   time.Time

	// StartTime / EndTime are local "HH:MM" (24-hour) strings.
	StartTime string
	EndTime   string

	// DaysOfWeek holds weekday spellings as entered; they are normalized
	// during expansion.
	DaysOfWeek []string
	Cadence    Cadence

	CancelledDates []time.Time
}

// Occurrence represents a single concrete instance of a session
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SessionID string

	// InstanceKey uniquely identifies one occurrence of a session,
	// derived from its calendar date.
	InstanceKey string

	Summary  string
	Location string

	// Date is the civil date (midnight UTC).
	Date time.Time

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Date returns the civil date y-m-d as midnight UTC.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf strips the clock from t, keeping t's own calendar date.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "2006-01-02" string into a civil date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
