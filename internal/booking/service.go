package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/outbox"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// admitTimeout bounds the admission path; it sits on the user-facing booking
// submission flow. On timeout the outcome is unknown: callers must re-check
// booking existence before retrying, a timeout does not prove non-creation.
const admitTimeout = 5 * time.Second

// Store is the booking persistence contract. CreateBooking must be atomic
// with its outbox event and must reject, with model.ErrSlotTaken, any insert
// whose buffer-expanded range overlaps an existing pending/confirmed booking
// for the same subject. That exclusion is enforced at the data-store level so
// concurrent admissions racing on the same window cannot both succeed.
type Store interface {
	ActiveBookingsOverlapping(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking, evt outbox.Event) error
	CancelBooking(ctx context.Context, id uuid.UUID, reason string) (model.Booking, error)
	ListBookings(ctx context.Context, subjectID uuid.UUID, from, to time.Time, limit int) ([]model.Booking, error)
}

// ConfigStore resolves the event configuration an admission request is made
// under.
type ConfigStore interface {
	EventType(ctx context.Context, id uuid.UUID) (model.EventType, error)
}

// Service is the booking admission controller. It performs no retries of its
// own: ErrSlotTaken means "slot taken, pick another", not a transient error.
type Service struct {
	store  Store
	config ConfigStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, config ConfigStore, logger *slog.Logger) *Service {
	return &Service{store: store, config: config, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AdmitRequest is a caller's claim on one candidate slot.
type AdmitRequest struct {
	SubjectID   uuid.UUID
	EventTypeID uuid.UUID
	TeamID      *uuid.UUID
	GuestName   string
	GuestEmail  string
	StartTime   time.Time
	EndTime     time.Time
}

// Admit validates the requested slot against the live conflict set and
// commits the booking. Conflicts are re-derived at admission time, never
// reused from an earlier availability read: that read is inherently a stale
// snapshot. The final authority is the store's exclusion constraint; the
// in-process re-check just produces a cheaper, earlier rejection.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, admitTimeout)
	defer cancel()

	cfg, err := s.config.EventType(ctx, req.EventTypeID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.validate(req, cfg); err != nil {
		return model.Booking{}, err
	}

	conflicts, err := s.store.ActiveBookingsOverlapping(ctx, req.SubjectID, req.StartTime, req.EndTime)
	if err != nil {
		return model.Booking{}, err
	}
	for _, b := range conflicts {
		blockedStart, blockedEnd := b.BlockedInterval()
		if timeutil.Overlaps(req.StartTime, req.EndTime, blockedStart, blockedEnd) {
			return model.Booking{}, model.ErrSlotTaken
		}
	}

	b := model.Booking{
		ID:                  uuid.New(),
		SubjectID:           req.SubjectID,
		EventTypeID:         cfg.ID,
		TeamID:              req.TeamID,
		GuestName:           req.GuestName,
		GuestEmail:          req.GuestEmail,
		StartTime:           req.StartTime.UTC(),
		EndTime:             req.EndTime.UTC(),
		BufferBeforeMinutes: cfg.BufferBeforeMinutes,
		BufferAfterMinutes:  cfg.BufferAfterMinutes,
		Status:              model.BookingStatusConfirmed,
	}

	evt, err := createdEvent(b)
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.store.CreateBooking(ctx, &b, evt); err != nil {
		// A store-level exclusion rejection is the same outcome as losing
		// the in-process re-check; callers see one conflict error.
		return model.Booking{}, err
	}

	s.logger.Info("booking admitted",
		"booking_id", b.ID,
		"subject_id", b.SubjectID,
		"start", b.StartTime.Format(time.RFC3339),
	)
	return b, nil
}

func (s *Service) validate(req AdmitRequest, cfg model.EventType) error {
	if !req.EndTime.After(req.StartTime) {
		return fmt.Errorf("%w: end_time must be after start_time", model.ErrInvalidInput)
	}
	wantDuration := time.Duration(cfg.DurationMinutes) * time.Minute
	if req.EndTime.Sub(req.StartTime) != wantDuration {
		return fmt.Errorf("%w: slot duration must be %d minutes", model.ErrInvalidInput, cfg.DurationMinutes)
	}
	if req.GuestName == "" {
		return fmt.Errorf("%w: guest_name is required", model.ErrInvalidInput)
	}

	now := s.now()
	if req.StartTime.Before(now.Add(time.Duration(cfg.MinimumNoticeMinutes) * time.Minute)) {
		return fmt.Errorf("%w: slot starts inside the minimum notice period", model.ErrInvalidInput)
	}
	if cfg.MaxBookingWindowDays > 0 && req.StartTime.After(now.AddDate(0, 0, cfg.MaxBookingWindowDays)) {
		return fmt.Errorf("%w: slot is beyond the booking window", model.ErrInvalidInput)
	}
	return nil
}

// Cancel releases a booking's window. Cancelling an already-cancelled
// booking is a no-op returning the current state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (model.Booking, error) {
	b, err := s.store.CancelBooking(ctx, id, reason)
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID, "subject_id", b.SubjectID)
	return b, nil
}

func (s *Service) List(ctx context.Context, subjectID uuid.UUID, from, to time.Time, limit int) ([]model.Booking, error) {
	return s.store.ListBookings(ctx, subjectID, from, to, limit)
}

func createdEvent(b model.Booking) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"booking_id":  b.ID.String(),
		"subject_id":  b.SubjectID.String(),
		"guest_email": b.GuestEmail,
		"start_time":  b.StartTime.Format(time.RFC3339),
		"end_time":    b.EndTime.Format(time.RFC3339),
		"status":      string(b.Status),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID.String(),
		EventType:     outbox.EventBookingCreated,
		Payload:       payload,
	}, nil
}
