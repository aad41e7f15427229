package availability

import (
	"testing"
	"time"
)

func TestGenerateSlots_Grid(t *testing.T) {
	// Mon 09:00-12:00, 30 minute meetings on the 15 minute grid: starts run
	// 09:00 through 11:30. No 11:45 start, since 11:45+30 > 12:00.
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window := Interval{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)}

	slots := GenerateSlots([]Interval{window}, 30*time.Minute, 15*time.Minute)
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("first start = %s, want 09:00", slots[0].Start)
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(day.Add(11*time.Hour + 30*time.Minute)) {
		t.Fatalf("last start = %s, want 11:30", last.Start)
	}
	for _, s := range slots {
		if s.Start.Before(window.Start) || s.End.After(window.End) {
			t.Fatalf("slot [%s, %s) escapes window", s.Start, s.End)
		}
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Fatalf("slot duration = %s", s.End.Sub(s.Start))
		}
	}
}

func TestGenerateSlots_MultipleWindowsConcatenated(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := []Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
	}

	slots := GenerateSlots(windows, 60*time.Minute, 15*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day.Add(9 * time.Hour)) || !slots[1].Start.Equal(day.Add(14 * time.Hour)) {
		t.Fatalf("slots out of window order: %v", slots)
	}
}

func TestGenerateSlots_DegenerateInputs(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	window := Interval{Start: day, End: day.Add(time.Hour)}

	if got := GenerateSlots([]Interval{window}, 0, 15*time.Minute); got != nil {
		t.Fatalf("zero duration: got %v", got)
	}
	if got := GenerateSlots([]Interval{window}, 30*time.Minute, 0); got != nil {
		t.Fatalf("zero step: got %v", got)
	}
	// Window shorter than the duration yields nothing.
	if got := GenerateSlots([]Interval{window}, 2*time.Hour, 15*time.Minute); len(got) != 0 {
		t.Fatalf("oversized duration: got %v", got)
	}
	// Inverted window yields nothing.
	if got := GenerateSlots([]Interval{{Start: window.End, End: window.Start}}, 30*time.Minute, 15*time.Minute); len(got) != 0 {
		t.Fatalf("inverted window: got %v", got)
	}
}
