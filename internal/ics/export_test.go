package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"riftcal/internal/model"
)

func TestBuildCalendar(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	ny, _ := time.LoadLocation("America/New_York")
	sess := model.Session{ID: "s1", Name: "Varsity", TeamID: "team-7", Location: "Gym A", DaysOfWeek: []string{"Monday"}, Cadence: model.CadenceWeekly}
	occ := []model.Occurrence{
		{
			SessionID: "s1", InstanceKey: "2024-01-01", Summary: "Varsity", Location: "Gym A",
			Date:  model.Date(2024, 1, 1),
			Start: time.Date(2024, 1, 1, 16, 0, 0, 0, ny),
			End:   time.Date(2024, 1, 1, 17, 30, 0, 0, ny),
		},
		{
			SessionID: "s1", InstanceKey: "2024-01-08", Summary: "Varsity", Location: "Gym A",
			Date:  model.Date(2024, 1, 8),
			Start: time.Date(2024, 1, 8, 16, 0, 0, 0, ny),
			End:   time.Date(2024, 1, 8, 17, 30, 0, 0, ny),
		},
	}

	out := BuildCalendar("DisciplineRift Practices", []SessionOccurrences{{Session: sess, Occurrences: occ}}, ny)

	for _, want := range []string{"METHOD:PUBLISH", "X-WR-CALNAME:DisciplineRift Practices", "X-WR-TIMEZONE:America/New_York"} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q", want)
		}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for i, ev := range events {
		if uid := ev.GetProperty(ical.ComponentPropertyUniqueId).Value; uid != EventUID(occ[i]) {
			t.Errorf("event %d UID = %q, want %q", i, uid, EventUID(occ[i]))
		}
		start, err := ev.GetStartAt()
		if err != nil || !start.Equal(occ[i].Start) {
			t.Errorf("event %d start = %v (%v), want %v", i, start, err, occ[i].Start)
		}
		end, err := ev.GetEndAt()
		if err != nil || !end.Equal(occ[i].End) {
			t.Errorf("event %d end = %v (%v), want %v", i, end, err, occ[i].End)
		}
		if loc := ev.GetProperty(ical.ComponentPropertyLocation); loc == nil || loc.Value != "Gym A" {
			t.Errorf("event %d location = %+v", i, loc)
		}
	}
	if EventUID(occ[0]) != "2024-01-01@s1" {
		t.Errorf("EventUID = %q", EventUID(occ[0]))
	}
}

func TestBuildCalendar_Empty(t *testing.T) {
	out := BuildCalendar("", nil, nil)
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Errorf("unexpected calendar:\n%s", out)
	}
}
