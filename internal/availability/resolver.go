package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// Interval is a half-open [Start, End) time range. Both bounds are absolute
// instants; wall-clock interpretation happens when the resolver applies the
// subject's home timezone.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScheduleStore reads a subject's recurring rules and date overrides.
type ScheduleStore interface {
	WeeklyRulesForWeekday(ctx context.Context, subjectID uuid.UUID, weekday time.Weekday) ([]model.WeeklyRule, error)
	DateOverride(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) (model.DateOverride, bool, error)
}

// Resolver turns a subject's schedule configuration into concrete open
// windows for a calendar day.
type Resolver struct {
	store ScheduleStore
}

func NewResolver(store ScheduleStore) *Resolver {
	return &Resolver{store: store}
}

// OpenWindows returns the subject's open windows on day, as instants in the
// subject's home timezone. A date override replaces the weekly rules for the
// whole day; an override with IsAvailable=false blocks the day entirely. A
// day with no override and no matching weekly rule is a day off: empty
// result, not an error.
func (r *Resolver) OpenWindows(ctx context.Context, subject model.Subject, day timeutil.CivilDate) ([]Interval, error) {
	loc, err := timeutil.LoadLocation(subject.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	override, found, err := r.store.DateOverride(ctx, subject.ID, day)
	if err != nil {
		return nil, err
	}
	if found {
		if !override.IsAvailable {
			return nil, nil
		}
		return []Interval{{
			Start: day.At(override.StartMinute, loc),
			End:   day.At(override.EndMinute, loc),
		}}, nil
	}

	rules, err := r.store.WeeklyRulesForWeekday(ctx, subject.ID, day.Weekday())
	if err != nil {
		return nil, err
	}
	windows := make([]Interval, 0, len(rules))
	for _, rule := range rules {
		windows = append(windows, Interval{
			Start: day.At(rule.StartMinute, loc),
			End:   day.At(rule.EndMinute, loc),
		})
	}
	return windows, nil
}
