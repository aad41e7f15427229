package availability

import (
	"time"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// FilterConflicts flags each candidate slot against the existing bookings and
// the event type's notice/window policy, returning the full set with
// Available updated. Each existing booking is expanded by its own buffers
// before the overlap test; only pending/confirmed bookings block. A slot is
// also flagged unavailable when it starts before now+minimumNotice or after
// the booking window horizon.
func FilterConflicts(slots []Slot, bookings []model.Booking, cfg model.EventType, now time.Time) []Slot {
	notice := now.Add(time.Duration(cfg.MinimumNoticeMinutes) * time.Minute)
	horizon := now.AddDate(0, 0, cfg.MaxBookingWindowDays)

	out := make([]Slot, len(slots))
	for i, s := range slots {
		if s.Available {
			if s.Start.Before(notice) {
				s.Available = false
			} else if cfg.MaxBookingWindowDays > 0 && s.Start.After(horizon) {
				s.Available = false
			} else if conflictsAny(s, bookings) {
				s.Available = false
			}
		}
		out[i] = s
	}
	return out
}

func conflictsAny(s Slot, bookings []model.Booking) bool {
	for _, b := range bookings {
		if !b.Status.Blocks() {
			continue
		}
		blockedStart, blockedEnd := b.BlockedInterval()
		if timeutil.Overlaps(s.Start, s.End, blockedStart, blockedEnd) {
			return true
		}
	}
	return false
}
