package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// SubjectStore reads the engine's read-only profile inputs.
type SubjectStore interface {
	Subject(ctx context.Context, id uuid.UUID) (model.Subject, error)
	EventType(ctx context.Context, id uuid.UUID) (model.EventType, error)
}

// BookingReader returns active (pending/confirmed) bookings whose
// buffer-expanded interval overlaps [from, to).
type BookingReader interface {
	ActiveBookingsOverlapping(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]model.Booking, error)
}

// WindowCache is an optional short-TTL read-through cache for resolved open
// windows. Staleness here only affects slot visibility, never booking
// correctness: admission re-validates against the store independently.
type WindowCache interface {
	Get(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) ([]Interval, bool)
	Set(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate, windows []Interval)
	Invalidate(ctx context.Context, subjectID uuid.UUID)
}

// Service composes the resolver, slot generator and conflict filter into the
// engine's read path.
type Service struct {
	subjects SubjectStore
	resolver *Resolver
	bookings BookingReader
	cache    WindowCache
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(subjects SubjectStore, resolver *Resolver, bookings BookingReader, cache WindowCache, logger *slog.Logger) *Service {
	return &Service{
		subjects: subjects,
		resolver: resolver,
		bookings: bookings,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) EventType(ctx context.Context, id uuid.UUID) (model.EventType, error) {
	return s.subjects.EventType(ctx, id)
}

func (s *Service) Subject(ctx context.Context, id uuid.UUID) (model.Subject, error) {
	return s.subjects.Subject(ctx, id)
}

// OpenSlots returns the bookable slots for one subject on one calendar day.
func (s *Service) OpenSlots(ctx context.Context, subjectID, eventTypeID uuid.UUID, day timeutil.CivilDate) ([]Slot, error) {
	subject, err := s.subjects.Subject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.subjects.EventType(ctx, eventTypeID)
	if err != nil {
		return nil, err
	}
	return s.SlotsFor(ctx, subject, cfg, day)
}

// SlotsFor is the per-subject building block shared with team resolution.
// The returned slots are all available; the flagged intermediate set stays
// internal.
func (s *Service) SlotsFor(ctx context.Context, subject model.Subject, cfg model.EventType, day timeutil.CivilDate) ([]Slot, error) {
	windows, err := s.openWindows(ctx, subject, day)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	duration := time.Duration(cfg.DurationMinutes) * time.Minute
	candidates := GenerateSlots(windows, duration, DefaultStep)
	if len(candidates) == 0 {
		return nil, nil
	}

	from, to := windowSpan(windows)
	existing, err := s.bookings.ActiveBookingsOverlapping(ctx, subject.ID, from, to)
	if err != nil {
		return nil, err
	}

	return OnlyAvailable(FilterConflicts(candidates, existing, cfg, s.now())), nil
}

func (s *Service) openWindows(ctx context.Context, subject model.Subject, day timeutil.CivilDate) ([]Interval, error) {
	if s.cache != nil {
		if windows, ok := s.cache.Get(ctx, subject.ID, day); ok {
			return windows, nil
		}
	}
	windows, err := s.resolver.OpenWindows(ctx, subject, day)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, subject.ID, day, windows)
	}
	return windows, nil
}

func windowSpan(windows []Interval) (time.Time, time.Time) {
	from, to := windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start.Before(from) {
			from = w.Start
		}
		if w.End.After(to) {
			to = w.End
		}
	}
	return from, to
}
