package ics

import (
	"testing"
	"time"

	"riftcal/internal/model"
)

func dayList(dates []time.Time) []int {
	out := make([]int, len(dates))
	for i, d := range dates {
		out[i] = d.Day()
	}
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestClosureDates_Fixture(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	events, err := ParseICS(Source{ID: "district"}, crlf(closureFixture), ny)
	if err != nil {
		t.Fatal(err)
	}

	got := ClosureDates(events, model.Date(2024, 1, 1), model.Date(2024, 1, 31), ny)
	want := []int{5, 15, 19, 22, 23, 24, 26, 30, 31}
	if !sameInts(dayList(got), want) {
		t.Errorf("ClosureDates = %v, want days %v", got, want)
	}
	for _, d := range got {
		if d.Location() != time.UTC || d.Hour() != 0 {
			t.Errorf("date %v is not a civil date", d)
		}
	}
}

func TestClosureDates_WindowClipsSpans(t *testing.T) {
	ev := ParsedEvent{
		UID:    "winter",
		Start:  model.Date(2023, 12, 20),
		End:    model.Date(2024, 1, 3),
		AllDay: true,
	}
	got := ClosureDates([]ParsedEvent{ev}, model.Date(2024, 1, 1), model.Date(2024, 1, 31), time.UTC)
	if !sameInts(dayList(got), []int{1, 2}) {
		t.Errorf("ClosureDates = %v", got)
	}
}

func TestClosureDates_OverrideMovesInstance(t *testing.T) {
	rid := model.Date(2024, 1, 8)
	events := []ParsedEvent{
		{UID: "mondays", Start: model.Date(2024, 1, 1), End: model.Date(2024, 1, 2), AllDay: true, RawRRule: "FREQ=WEEKLY;COUNT=3"},
		{UID: "mondays", Start: model.Date(2024, 1, 9), End: model.Date(2024, 1, 10), AllDay: true, Recurrence: &rid},
	}
	got := ClosureDates(events, model.Date(2024, 1, 1), model.Date(2024, 1, 31), time.UTC)
	if !sameInts(dayList(got), []int{1, 9, 15}) {
		t.Errorf("ClosureDates = %v, want days [1 9 15]", got)
	}
}

func TestClosureDates_BadRRuleFallsBackToFirstInstance(t *testing.T) {
	ev := ParsedEvent{UID: "x", Start: model.Date(2024, 1, 10), End: model.Date(2024, 1, 11), AllDay: true, RawRRule: "FREQ=SOMETIMES"}
	got := ClosureDates([]ParsedEvent{ev}, model.Date(2024, 1, 1), model.Date(2024, 1, 31), time.UTC)
	if !sameInts(dayList(got), []int{10}) {
		t.Errorf("ClosureDates = %v", got)
	}
}

func TestClosureDates_ReversedWindow(t *testing.T) {
	ev := ParsedEvent{UID: "x", Start: model.Date(2024, 1, 10), End: model.Date(2024, 1, 11), AllDay: true}
	if got := ClosureDates([]ParsedEvent{ev}, model.Date(2024, 2, 1), model.Date(2024, 1, 1), nil); len(got) != 0 {
		t.Errorf("ClosureDates = %v, want empty", got)
	}
}
