package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Weekday is a canonical weekday index, Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ErrInvalidWeekday is matched by every *InvalidWeekdayError.
var ErrInvalidWeekday = errors.New("invalid weekday")

// InvalidWeekdayError reports a token that is not a recognized weekday spelling.
type InvalidWeekdayError struct {
	Input string
}

func (e *InvalidWeekdayError) Error() string {
	return fmt.Sprintf("invalid weekday: %q", e.Input)
}

func (e *InvalidWeekdayError) Is(target error) bool {
	return target == ErrInvalidWeekday
}

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// weekdaySpellings maps every accepted lowercase spelling to its index:
// English names, 3-letter English abbreviations and Spanish names.
var weekdaySpellings = map[string]Weekday{
	"monday": Monday, "mon": Monday, "lunes": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "martes": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "miércoles": Wednesday, "miercoles": Wednesday,
	"thursday": Thursday, "thu": Thursday, "jueves": Thursday,
	"friday": Friday, "fri": Friday, "viernes": Friday,
	"saturday": Saturday, "sat": Saturday, "sábado": Saturday, "sabado": Saturday,
	"sunday": Sunday, "sun": Sunday, "domingo": Sunday,
}

// NormalizeWeekday maps a weekday spelling to its canonical index.
func NormalizeWeekday(input string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if wd, ok := weekdaySpellings[key]; ok {
		return wd, nil
	}
	return 0, &InvalidWeekdayError{Input: input}
}

// String returns the canonical English name, e.g. "Monday".
func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// Key returns the lowercase storage form, e.g. "monday".
func (w Weekday) Key() string {
	return strings.ToLower(w.String())
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// WeekdayOf returns the Monday-first index of t's calendar day.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (w Weekday) toRRule() rrule.Weekday {
	return rruleWeekdays[w]
}
