package ics

import (
	"strings"
	"testing"
	"time"
)

// crlf turns a readable fixture into a wire-format calendar.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

const closureFixture = `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//District//Closures//EN
BEGIN:VEVENT
UID:mlk@district
DTSTART;VALUE=DATE:20240115
DTEND;VALUE=DATE:20240116
SUMMARY:MLK Day
END:VEVENT
BEGIN:VEVENT
UID:break@district
DTSTART;VALUE=DATE:20240122
DTEND;VALUE=DATE:20240125
SUMMARY:Facility maintenance
END:VEVENT
BEGIN:VEVENT
UID:fridays@district
DTSTART;VALUE=DATE:20240105
DTEND;VALUE=DATE:20240106
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;VALUE=DATE:20240112
SUMMARY:Gym closed Fridays
END:VEVENT
BEGIN:VEVENT
UID:storm@district
DTSTART;TZID=America/New_York:20240130T220000
DTEND;TZID=America/New_York:20240131T010000
SUMMARY:Overnight storm closure
END:VEVENT
BEGIN:VEVENT
SUMMARY:No UID here
DTSTART:20240101T120000Z
END:VEVENT
END:VCALENDAR
`

func TestParseICS(t *testing.T) {
	src := Source{ID: "district", URL: "https://example.com/c.ics"}
	events, err := ParseICS(src, crlf(closureFixture), time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4 (event without UID skipped)", len(events))
	}

	byUID := make(map[string]ParsedEvent)
	for _, ev := range events {
		byUID[ev.UID] = ev
		if ev.Source.ID != "district" {
			t.Errorf("%s: Source = %+v", ev.UID, ev.Source)
		}
	}

	mlk := byUID["mlk@district"]
	if !mlk.AllDay || !mlk.Start.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("mlk = %+v", mlk)
	}
	if mlk.Summary != "MLK Day" {
		t.Errorf("Summary = %q", mlk.Summary)
	}

	fridays := byUID["fridays@district"]
	if fridays.RawRRule != "FREQ=WEEKLY;COUNT=4" {
		t.Errorf("RawRRule = %q", fridays.RawRRule)
	}
	if len(fridays.ExDates) != 1 || !fridays.ExDates[0].Equal(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ExDates = %v", fridays.ExDates)
	}

	storm := byUID["storm@district"]
	if storm.AllDay {
		t.Error("storm should be timed")
	}
	if storm.Start.Location().String() != "America/New_York" {
		t.Errorf("storm location = %s", storm.Start.Location())
	}
	if got := storm.End.Sub(storm.Start); got != 3*time.Hour {
		t.Errorf("storm duration = %v", got)
	}
}

func TestParseICS_Empty(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil, nil); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestParseICSTime(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	tests := []struct {
		in     string
		want   time.Time
		allDay bool
	}{
		{"20240101T090000Z", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), false},
		{"20240101T090000", time.Date(2024, 1, 1, 9, 0, 0, 0, ny), false},
		{"20240101", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		got, allDay, err := parseICSTime(tt.in, ny)
		if err != nil {
			t.Errorf("parseICSTime(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) || allDay != tt.allDay {
			t.Errorf("parseICSTime(%q) = %v, %v; want %v, %v", tt.in, got, allDay, tt.want, tt.allDay)
		}
	}
	if _, _, err := parseICSTime("  ", ny); err == nil {
		t.Error("expected error for blank value")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc.ics?token=s3cret")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if strings.Contains(redactURL("not a url"), "not a url") {
		t.Error("unparseable URL leaked")
	}
}
