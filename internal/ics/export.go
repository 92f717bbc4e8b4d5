package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"riftcal/internal/model"
)

const productID = "-//DisciplineRift//riftcal//EN"

// now is the DTSTAMP clock; tests pin it.
var now = time.Now

// SessionOccurrences pairs a session with its expanded occurrences.
type SessionOccurrences struct {
	Session     model.Session
	Occurrences []model.Occurrence
}

// BuildCalendar renders occurrences as a PUBLISH iCalendar named name.
// Each occurrence becomes one VEVENT with UID "<instanceKey>@<sessionID>",
// so re-published feeds update rather than duplicate events.
func BuildCalendar(name string, entries []SessionOccurrences, loc *time.Location) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	stamp := now().UTC()
	for _, e := range entries {
		desc := describe(e.Session)
		for _, o := range e.Occurrences {
			ev := cal.AddEvent(EventUID(o))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(o.Start)
			ev.SetEndAt(o.End)
			ev.SetSummary(o.Summary)
			if o.Location != "" {
				ev.SetLocation(o.Location)
			}
			if desc != "" {
				ev.SetDescription(desc)
			}
		}
	}
	return cal.Serialize()
}

// EventUID returns the stable VEVENT UID of an occurrence.
func EventUID(o model.Occurrence) string {
	return fmt.Sprintf("%s@%s", o.InstanceKey, o.SessionID)
}

func describe(s model.Session) string {
	var parts []string
	if s.TeamID != "" {
		parts = append(parts, "Team: "+s.TeamID)
	}
	if len(s.DaysOfWeek) > 0 {
		parts = append(parts, "Days: "+strings.Join(s.DaysOfWeek, ", "))
	}
	if s.Cadence != "" && s.Cadence != model.CadenceNone {
		parts = append(parts, "Repeats: "+string(s.Cadence))
	}
	return strings.Join(parts, "\n")
}
