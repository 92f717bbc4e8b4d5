package schedule

import (
	"errors"
	"strings"
)

var (
	ErrEmptyDaysOfWeek = errors.New("at least one day of the week is required")
	ErrEmptyDayToken   = errors.New("days of week contains an empty entry")
)

// ParseDaysOfWeek parses a comma-separated weekday list such as
// "Mon, miércoles ,friday". The result is deduplicated and ordered
// Monday..Sunday.
func ParseDaysOfWeek(raw string) ([]Weekday, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyDaysOfWeek
	}
	tokens := strings.Split(raw, ",")
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			return nil, ErrEmptyDayToken
		}
	}
	return NormalizeDays(tokens)
}

// ValidateDaysOfWeek reports whether raw parses cleanly. It is meant for
// form validation and never fails loudly.
func ValidateDaysOfWeek(raw string) bool {
	_, err := ParseDaysOfWeek(raw)
	return err == nil
}

// NormalizeDays normalizes a list of weekday spellings into a sorted,
// duplicate-free set.
func NormalizeDays(names []string) ([]Weekday, error) {
	if len(names) == 0 {
		return nil, ErrEmptyDaysOfWeek
	}
	var seen [7]bool
	for _, name := range names {
		wd, err := NormalizeWeekday(name)
		if err != nil {
			return nil, err
		}
		seen[wd] = true
	}
	return fromSet(seen), nil
}

// DaysArrayToString renders days in the lowercase storage form,
// e.g. "monday,wednesday".
func DaysArrayToString(days []Weekday) string {
	return joinDays(days, ",", Weekday.Key)
}

// FormatDaysOfWeek renders days for display, e.g. "Monday, Wednesday",
// always in Monday..Sunday order with duplicates removed.
func FormatDaysOfWeek(days []Weekday) string {
	return joinDays(days, ", ", Weekday.String)
}

// DayKeys returns the storage spellings of days in canonical order.
func DayKeys(days []Weekday) []string {
	canon := canonical(days)
	out := make([]string, 0, len(canon))
	for _, d := range canon {
		out = append(out, d.Key())
	}
	return out
}

func joinDays(days []Weekday, sep string, name func(Weekday) string) string {
	canon := canonical(days)
	parts := make([]string, 0, len(canon))
	for _, d := range canon {
		parts = append(parts, name(d))
	}
	return strings.Join(parts, sep)
}

// canonical drops invalid entries and duplicates and sorts Monday first.
func canonical(days []Weekday) []Weekday {
	var seen [7]bool
	for _, d := range days {
		if d.Valid() {
			seen[d] = true
		}
	}
	return fromSet(seen)
}

func fromSet(seen [7]bool) []Weekday {
	out := make([]Weekday, 0, 7)
	for i, ok := range seen {
		if ok {
			out = append(out, Weekday(i))
		}
	}
	return out
}
