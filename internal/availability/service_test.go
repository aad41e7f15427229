package availability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

type fakeSubjectStore struct {
	subjects   map[uuid.UUID]model.Subject
	eventTypes map[uuid.UUID]model.EventType
}

func (f *fakeSubjectStore) Subject(_ context.Context, id uuid.UUID) (model.Subject, error) {
	s, ok := f.subjects[id]
	if !ok {
		return model.Subject{}, model.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubjectStore) EventType(_ context.Context, id uuid.UUID) (model.EventType, error) {
	et, ok := f.eventTypes[id]
	if !ok {
		return model.EventType{}, model.ErrNotFound
	}
	return et, nil
}

// fakeBookingReader mirrors the SQL contract: only pending/confirmed rows
// whose buffer-expanded interval overlaps [from, to).
type fakeBookingReader struct {
	bookings []*model.Booking
}

func (f *fakeBookingReader) ActiveBookingsOverlapping(_ context.Context, subjectID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.SubjectID != subjectID || !b.Status.Blocks() {
			continue
		}
		bs, be := b.BlockedInterval()
		if timeutil.Overlaps(bs, be, from, to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type countingCache struct {
	data map[string][]Interval
	hits int
	sets int
}

func cacheKey(id uuid.UUID, day timeutil.CivilDate) string { return id.String() + ":" + day.String() }

func (c *countingCache) Get(_ context.Context, id uuid.UUID, day timeutil.CivilDate) ([]Interval, bool) {
	w, ok := c.data[cacheKey(id, day)]
	if ok {
		c.hits++
	}
	return w, ok
}

func (c *countingCache) Set(_ context.Context, id uuid.UUID, day timeutil.CivilDate, windows []Interval) {
	c.sets++
	c.data[cacheKey(id, day)] = windows
}

func (c *countingCache) Invalidate(_ context.Context, id uuid.UUID) {
	for k := range c.data {
		if len(k) >= 36 && k[:36] == id.String() {
			delete(c.data, k)
		}
	}
}

func newTestService(t *testing.T, bookings *fakeBookingReader) (*Service, model.Subject, model.EventType) {
	t.Helper()
	subject := model.Subject{ID: uuid.New(), Timezone: "UTC"}
	cfg := model.EventType{
		ID:                   uuid.New(),
		SubjectID:            subject.ID,
		DurationMinutes:      30,
		MaxBookingWindowDays: 60,
	}
	subjects := &fakeSubjectStore{
		subjects:   map[uuid.UUID]model.Subject{subject.ID: subject},
		eventTypes: map[uuid.UUID]model.EventType{cfg.ID: cfg},
	}
	schedule := &fakeScheduleStore{
		rules: map[time.Weekday][]model.WeeklyRule{
			time.Monday: {{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60}},
		},
	}
	svc := NewService(subjects, NewResolver(schedule), bookings, nil, slog.Default()).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	return svc, subject, cfg
}

func TestOpenSlots_EndToEnd(t *testing.T) {
	reader := &fakeBookingReader{}
	svc, subject, cfg := newTestService(t, reader)

	slots, err := svc.OpenSlots(context.Background(), subject.ID, cfg.ID, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots for 09:00-12:00/30min, got %d", len(slots))
	}
}

func TestOpenSlots_CancellationFreesWindow(t *testing.T) {
	booked := &model.Booking{
		ID:        uuid.New(),
		StartTime: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		Status:    model.BookingStatusConfirmed,
	}
	reader := &fakeBookingReader{bookings: []*model.Booking{booked}}
	svc, subject, cfg := newTestService(t, reader)
	booked.SubjectID = subject.ID

	before, err := svc.OpenSlots(context.Background(), subject.ID, cfg.ID, monday)
	if err != nil {
		t.Fatal(err)
	}

	booked.Status = model.BookingStatusCancelled
	after, err := svc.OpenSlots(context.Background(), subject.ID, cfg.ID, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) <= len(before) {
		t.Fatalf("cancellation should free slots: before=%d after=%d", len(before), len(after))
	}
	if len(after) != 11 {
		t.Fatalf("expected full grid after cancellation, got %d", len(after))
	}
}

func TestOpenSlots_UnknownSubject(t *testing.T) {
	svc, _, cfg := newTestService(t, &fakeBookingReader{})
	_, err := svc.OpenSlots(context.Background(), uuid.New(), cfg.ID, monday)
	if err != model.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenSlots_CacheReadThrough(t *testing.T) {
	reader := &fakeBookingReader{}
	svc, subject, cfg := newTestService(t, reader)
	cache := &countingCache{data: map[string][]Interval{}}
	svc.cache = cache

	for i := 0; i < 3; i++ {
		if _, err := svc.OpenSlots(context.Background(), subject.ID, cfg.ID, monday); err != nil {
			t.Fatal(err)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("resolver should populate the cache once, sets=%d", cache.sets)
	}
	if cache.hits != 2 {
		t.Fatalf("subsequent reads should hit the cache, hits=%d", cache.hits)
	}
}
