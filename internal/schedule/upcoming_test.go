package schedule

import (
	"testing"
	"time"

	"riftcal/internal/model"
)

func TestUpcoming_FiltersPastAndLimits(t *testing.T) {
	s := januarySession([]string{"mon", "wed", "fri"}, model.CadenceWeekly)
	occ := ExpandOccurrences(s, utcConfig()).Occurrences

	// Exactly the start of the Jan 10 practice counts as upcoming.
	now := time.Date(2024, time.January, 10, 16, 0, 0, 0, time.UTC)
	got := Upcoming(occ, now, 0)

	if len(got) != DefaultUpcomingLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultUpcomingLimit)
	}
	if want := []int{10, 12, 15, 17, 19}; !equalInts(dayNumbers(got), want) {
		t.Errorf("days = %v, want %v", dayNumbers(got), want)
	}
}

func TestUpcoming_ExplicitLimitAndExhaustion(t *testing.T) {
	occ := ExpandOccurrences(januarySession([]string{"monday"}, model.CadenceWeekly), utcConfig()).Occurrences

	now := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	if got := Upcoming(occ, now, 10); !equalInts(dayNumbers(got), []int{22, 29}) {
		t.Errorf("days = %v, want [22 29]", dayNumbers(got))
	}
	if got := Upcoming(occ, now, 1); !equalInts(dayNumbers(got), []int{22}) {
		t.Errorf("days = %v, want [22]", dayNumbers(got))
	}
	if got := Upcoming(occ, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 5); len(got) != 0 {
		t.Errorf("expected nothing upcoming, got %v", dayNumbers(got))
	}
}

func TestInLocationAndFormat(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	occ := ExpandOccurrences(januarySession([]string{"monday"}, model.CadenceWeekly), ExpandConfig{DisplayLocation: est}).Occurrences

	utc := InLocation(occ, time.UTC)
	if utc[0].Start.Hour() != 21 {
		t.Errorf("UTC hour = %d, want 21", utc[0].Start.Hour())
	}
	if occ[0].Start.Location() != est {
		t.Error("InLocation mutated its input")
	}

	if got, want := FormatOccurrence(occ[0]), "Mon Jan 1, 2024 4:00 PM - 5:30 PM EST"; got != want {
		t.Errorf("FormatOccurrence = %q, want %q", got, want)
	}
}

func equalInts(a, b []int) bool {
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
