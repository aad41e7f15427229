package availability

import "time"

// DefaultStep is the slot grid granularity. Slots are quantized to this grid,
// not to every possible offset; clients depend on the stable grid.
const DefaultStep = 15 * time.Minute

// Slot is one fixed-duration candidate interval. Slots are ephemeral: they
// exist only within a single resolution call and are never persisted.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// GenerateSlots walks each window from its start in step increments and emits
// every [t, t+duration) that fits entirely inside the window. Windows are
// processed in order, so the result is per-window chronological.
func GenerateSlots(windows []Interval, duration, step time.Duration) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	var slots []Slot
	for _, w := range windows {
		if !w.End.After(w.Start) {
			continue
		}
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			slots = append(slots, Slot{Start: t, End: t.Add(duration), Available: true})
		}
	}
	return slots
}

// OnlyAvailable narrows a flagged slot set to the bookable ones.
func OnlyAvailable(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
