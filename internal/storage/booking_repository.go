package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/outbox"
	"github.com/rkarimov/bookwise/libs/db"
)

const bookingColumns = `
	id, subject_id, event_type_id, team_id, guest_name, guest_email,
	start_time, end_time, buffer_before_minutes, buffer_after_minutes,
	status, cancelled_at, created_at`

// BookingRepository owns the bookings table. The no-overlap guarantee lives
// in the table's exclusion constraint, not here: inserts racing on the same
// window are arbitrated by Postgres and the loser surfaces as
// model.ErrSlotTaken.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

// ActiveBookingsOverlapping returns pending/confirmed bookings whose
// buffer-expanded interval overlaps [from, to). The expansion happens in SQL
// with each row's own stored buffers, so callers get exactly the conflict
// set the exclusion constraint also sees.
func (r *BookingRepository) ActiveBookingsOverlapping(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE subject_id = $1
			AND status IN ('pending', 'confirmed')
			AND (start_time - make_interval(mins => buffer_before_minutes)) < $3
			AND (end_time + make_interval(mins => buffer_after_minutes)) > $2
		ORDER BY start_time ASC
	`, subjectID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// CreateBooking inserts the booking and its outbox event atomically. The
// insert is the admission decision point: a 23P01 exclusion violation means
// another admission won the window after our pre-check.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *model.Booking, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, subject_id, event_type_id, team_id, guest_name, guest_email,
			 start_time, end_time, buffer_before_minutes, buffer_after_minutes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, b.ID, b.SubjectID, b.EventTypeID, b.TeamID, b.GuestName, b.GuestEmail,
		b.StartTime, b.EndTime, b.BufferBeforeMinutes, b.BufferAfterMinutes, b.Status,
	).Scan(&b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.ErrSlotTaken
		}
		return err
	}

	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CancelBooking transitions a booking to cancelled and emits the
// cancellation event. Cancelling twice is a no-op returning current state;
// the cancelled row immediately leaves the exclusion constraint's scope, so
// the window frees on the next read.
func (r *BookingRepository) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b model.Booking
	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err := scanBooking(row, &b); err != nil {
		if IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
		}
		return model.Booking{}, err
	}

	if b.Status == model.BookingStatusCancelled {
		return b, tx.Commit(ctx)
	}
	if !b.Status.Blocks() {
		return model.Booking{}, fmt.Errorf("%w: booking in status %s cannot be cancelled", model.ErrInvalidInput, b.Status)
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &cancelledAt

	payload, err := json.Marshal(map[string]any{
		"booking_id":   b.ID.String(),
		"subject_id":   b.SubjectID.String(),
		"start_time":   b.StartTime.UTC().Format(time.RFC3339),
		"end_time":     b.EndTime.UTC().Format(time.RFC3339),
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
		"reason":       reason,
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID.String(),
		EventType:     outbox.EventBookingCancelled,
		Payload:       payload,
	}); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) ListBookings(ctx context.Context, subjectID uuid.UUID, from, to time.Time, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if from.IsZero() || to.IsZero() {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE subject_id = $1
			ORDER BY start_time DESC
			LIMIT $2
		`, subjectID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE subject_id = $1 AND start_time < $3 AND end_time > $2
			ORDER BY start_time ASC
			LIMIT $4
		`, subjectID, from, to, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanBooking(row pgx.Row, b *model.Booking) error {
	return row.Scan(
		&b.ID,
		&b.SubjectID,
		&b.EventTypeID,
		&b.TeamID,
		&b.GuestName,
		&b.GuestEmail,
		&b.StartTime,
		&b.EndTime,
		&b.BufferBeforeMinutes,
		&b.BufferAfterMinutes,
		&b.Status,
		&b.CancelledAt,
		&b.CreatedAt,
	)
}
