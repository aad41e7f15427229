package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/outbox"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// memStore enforces the same exclusion contract the database constraint
// provides: the overlap check and the insert happen under one lock, so
// concurrent admissions cannot both pass it.
type memStore struct {
	mu       sync.Mutex
	bookings []model.Booking
	events   []outbox.Event
}

func (m *memStore) ActiveBookingsOverlapping(_ context.Context, subjectID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.SubjectID != subjectID || !b.Status.Blocks() {
			continue
		}
		bs, be := b.BlockedInterval()
		if timeutil.Overlaps(bs, be, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *model.Booking, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	newStart, newEnd := b.BlockedInterval()
	for _, existing := range m.bookings {
		if existing.SubjectID != b.SubjectID || !existing.Status.Blocks() {
			continue
		}
		es, ee := existing.BlockedInterval()
		if timeutil.Overlaps(newStart, newEnd, es, ee) {
			return model.ErrSlotTaken
		}
	}
	b.CreatedAt = time.Now()
	m.bookings = append(m.bookings, *b)
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) CancelBooking(_ context.Context, id uuid.UUID, _ string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			if m.bookings[i].Status != model.BookingStatusCancelled {
				now := time.Now()
				m.bookings[i].Status = model.BookingStatusCancelled
				m.bookings[i].CancelledAt = &now
			}
			return m.bookings[i], nil
		}
	}
	return model.Booking{}, model.ErrNotFound
}

func (m *memStore) ListBookings(_ context.Context, subjectID uuid.UUID, _, _ time.Time, _ int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.SubjectID == subjectID {
			out = append(out, b)
		}
	}
	return out, nil
}

type memConfigStore struct {
	eventTypes map[uuid.UUID]model.EventType
}

func (m *memConfigStore) EventType(_ context.Context, id uuid.UUID) (model.EventType, error) {
	et, ok := m.eventTypes[id]
	if !ok {
		return model.EventType{}, model.ErrNotFound
	}
	return et, nil
}

func newTestService(t *testing.T) (*Service, *memStore, uuid.UUID, model.EventType) {
	t.Helper()
	subjectID := uuid.New()
	cfg := model.EventType{
		ID:                   uuid.New(),
		SubjectID:            subjectID,
		DurationMinutes:      30,
		BufferBeforeMinutes:  15,
		BufferAfterMinutes:   15,
		MaxBookingWindowDays: 60,
	}
	store := &memStore{}
	svc := NewService(store, &memConfigStore{eventTypes: map[uuid.UUID]model.EventType{cfg.ID: cfg}}, slog.Default()).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	return svc, store, subjectID, cfg
}

func admitReq(subjectID uuid.UUID, cfg model.EventType, start time.Time) AdmitRequest {
	return AdmitRequest{
		SubjectID:   subjectID,
		EventTypeID: cfg.ID,
		GuestName:   "Pat Guest",
		GuestEmail:  "pat@example.com",
		StartTime:   start,
		EndTime:     start.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
	}
}

func TestAdmit_Success(t *testing.T) {
	svc, store, subjectID, cfg := newTestService(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	b, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, start))
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.BookingStatusConfirmed {
		t.Fatalf("status = %s", b.Status)
	}
	if b.BufferBeforeMinutes != 15 || b.BufferAfterMinutes != 15 {
		t.Fatalf("buffers not captured from event config: %+v", b)
	}
	if len(store.events) != 1 || store.events[0].EventType != outbox.EventBookingCreated {
		t.Fatalf("expected one created event, got %v", store.events)
	}
}

func TestAdmit_ConflictWithinBuffer(t *testing.T) {
	svc, _, subjectID, cfg := newTestService(t)
	first := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, first)); err != nil {
		t.Fatal(err)
	}

	// 10:45 starts exactly when the first booking's after-buffer ends: fine.
	if _, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, first.Add(45*time.Minute))); err != nil {
		t.Fatalf("boundary-touching slot rejected: %v", err)
	}
	// 09:20-09:50 overlaps the expanded interval [09:45, 10:45).
	_, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, first.Add(-40*time.Minute)))
	if !errors.Is(err, model.ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestAdmit_InputErrors(t *testing.T) {
	svc, _, subjectID, cfg := newTestService(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*AdmitRequest)
	}{
		{"end before start", func(r *AdmitRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }},
		{"wrong duration", func(r *AdmitRequest) { r.EndTime = r.StartTime.Add(45 * time.Minute) }},
		{"missing guest name", func(r *AdmitRequest) { r.GuestName = "" }},
		{"beyond booking window", func(r *AdmitRequest) {
			r.StartTime = r.StartTime.AddDate(0, 0, 90)
			r.EndTime = r.StartTime.Add(30 * time.Minute)
		}},
		{"in the past", func(r *AdmitRequest) {
			r.StartTime = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			r.EndTime = r.StartTime.Add(30 * time.Minute)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := admitReq(subjectID, cfg, start)
			tc.mutate(&req)
			_, err := svc.Admit(context.Background(), req)
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	t.Run("unknown event type", func(t *testing.T) {
		req := admitReq(subjectID, cfg, start)
		req.EventTypeID = uuid.New()
		_, err := svc.Admit(context.Background(), req)
		if !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestAdmit_ConcurrentOverlapping_ExactlyOneWins(t *testing.T) {
	svc, store, subjectID, cfg := newTestService(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each goroutine wants a slot shifted by one grid step; all of
			// them mutually overlap once buffers are applied.
			s := start.Add(time.Duration(i%3) * 15 * time.Minute)
			_, errs[i] = svc.Admit(context.Background(), admitReq(subjectID, cfg, s))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, model.ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1 (conflicts = %d)", wins, conflicts)
	}
	if len(store.bookings) != 1 {
		t.Fatalf("store holds %d bookings, want 1", len(store.bookings))
	}
}

func TestAdmit_ConcurrentDisjoint_AllSucceed(t *testing.T) {
	svc, store, subjectID, cfg := newTestService(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Two hours apart: no pair overlaps even after buffer expansion.
			s := base.Add(time.Duration(i) * 2 * time.Hour)
			_, errs[i] = svc.Admit(context.Background(), admitReq(subjectID, cfg, s))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if len(store.bookings) != n {
		t.Fatalf("store holds %d bookings, want %d", len(store.bookings), n)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	svc, _, subjectID, cfg := newTestService(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, start))
	if err != nil {
		t.Fatal(err)
	}

	first, err := svc.Cancel(context.Background(), b.ID, "guest request")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != model.BookingStatusCancelled || first.CancelledAt == nil {
		t.Fatalf("cancel state: %+v", first)
	}

	second, err := svc.Cancel(context.Background(), b.ID, "again")
	if err != nil {
		t.Fatal(err)
	}
	if !second.CancelledAt.Equal(*first.CancelledAt) {
		t.Fatal("second cancel should not move cancelled_at")
	}

	// The freed window admits a new booking.
	if _, err := svc.Admit(context.Background(), admitReq(subjectID, cfg, start)); err != nil {
		t.Fatalf("window not freed after cancellation: %v", err)
	}
}
