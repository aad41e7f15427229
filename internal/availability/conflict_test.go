package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
)

func slotAt(day time.Time, startMin, durMin int) Slot {
	start := day.Add(time.Duration(startMin) * time.Minute)
	return Slot{Start: start, End: start.Add(time.Duration(durMin) * time.Minute), Available: true}
}

func TestFilterConflicts_BufferExpansion(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(6 * time.Hour)
	cfg := model.EventType{DurationMinutes: 15, MaxBookingWindowDays: 30}

	// Existing booking 10:00-10:30 with 15 minute buffers on both sides
	// blocks [09:45, 10:45).
	existing := []model.Booking{{
		SubjectID:           uuid.New(),
		StartTime:           day.Add(10 * time.Hour),
		EndTime:             day.Add(10*time.Hour + 30*time.Minute),
		BufferBeforeMinutes: 15,
		BufferAfterMinutes:  15,
		Status:              model.BookingStatusConfirmed,
	}}

	cases := []struct {
		name     string
		startMin int
		durMin   int
		want     bool
	}{
		{"09:50-10:05 inside expansion", 9*60 + 50, 15, false},
		{"10:45-11:15 touches expansion end", 10*60 + 45, 30, true},
		{"09:30-09:45 touches expansion start", 9*60 + 30, 15, true},
		{"09:40-09:55 crosses expansion start", 9*60 + 40, 15, false},
		{"well clear", 13 * 60, 30, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterConflicts([]Slot{slotAt(day, tc.startMin, tc.durMin)}, existing, cfg, now)
			if got[0].Available != tc.want {
				t.Fatalf("available = %v, want %v", got[0].Available, tc.want)
			}
		})
	}
}

func TestFilterConflicts_OnlyActiveStatusesBlock(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day
	cfg := model.EventType{DurationMinutes: 30, MaxBookingWindowDays: 30}
	slot := slotAt(day, 10*60, 30)

	for _, status := range []model.BookingStatus{
		model.BookingStatusPending,
		model.BookingStatusConfirmed,
		model.BookingStatusCancelled,
		model.BookingStatusCompleted,
		model.BookingStatusNoShow,
	} {
		existing := []model.Booking{{
			StartTime: slot.Start,
			EndTime:   slot.End,
			Status:    status,
		}}
		got := FilterConflicts([]Slot{slot}, existing, cfg, now)
		if got[0].Available == status.Blocks() {
			t.Fatalf("status %s: available = %v", status, got[0].Available)
		}
	}
}

func TestFilterConflicts_MinimumNotice(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(9 * time.Hour)
	cfg := model.EventType{DurationMinutes: 30, MinimumNoticeMinutes: 120, MaxBookingWindowDays: 30}

	got := FilterConflicts([]Slot{
		slotAt(day, 10*60, 30),      // 10:00, only 1h of notice
		slotAt(day, 11*60, 30),      // 11:00, exactly 2h of notice
		slotAt(day, 11*60+15, 30),   // 11:15
	}, nil, cfg, now)

	if got[0].Available {
		t.Fatal("slot inside notice period should be unavailable")
	}
	if !got[1].Available || !got[2].Available {
		t.Fatalf("slots at/after the notice boundary should be available: %v", got)
	}
}

func TestFilterConflicts_BookingWindowHorizon(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cfg := model.EventType{DurationMinutes: 30, MaxBookingWindowDays: 14}

	inside := Slot{Start: now.AddDate(0, 0, 13), End: now.AddDate(0, 0, 13).Add(30 * time.Minute), Available: true}
	beyond := Slot{Start: now.AddDate(0, 0, 15), End: now.AddDate(0, 0, 15).Add(30 * time.Minute), Available: true}

	got := FilterConflicts([]Slot{inside, beyond}, nil, cfg, now)
	if !got[0].Available {
		t.Fatal("slot inside the booking window should be available")
	}
	if got[1].Available {
		t.Fatal("slot beyond the booking window should be unavailable")
	}
}

func TestFilterConflicts_PreservesFlaggedSet(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg := model.EventType{DurationMinutes: 30, MaxBookingWindowDays: 30}
	slots := []Slot{slotAt(now, 10*60, 30), slotAt(now, 11*60, 30)}
	existing := []model.Booking{{
		StartTime: now.Add(10 * time.Hour),
		EndTime:   now.Add(10*time.Hour + 30*time.Minute),
		Status:    model.BookingStatusPending,
	}}

	got := FilterConflicts(slots, existing, cfg, now)
	if len(got) != len(slots) {
		t.Fatalf("flagged set shrank: %d -> %d", len(slots), len(got))
	}
	if got[0].Available || !got[1].Available {
		t.Fatalf("unexpected flags: %v", got)
	}
	open := OnlyAvailable(got)
	if len(open) != 1 || !open[0].Start.Equal(slots[1].Start) {
		t.Fatalf("OnlyAvailable = %v", open)
	}
}
