package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
	"github.com/rkarimov/bookwise/libs/db"
)

// ScheduleRepository reads the engine's profile inputs (subjects, event
// configurations) and owns the availability store (weekly rules, date
// overrides).
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Subject(ctx context.Context, id uuid.UUID) (model.Subject, error) {
	var s model.Subject
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, timezone
		FROM subjects
		WHERE id = $1
	`, id).Scan(&s.ID, &s.DisplayName, &s.Timezone)
	if err != nil {
		if IsNotFound(err) {
			return model.Subject{}, fmt.Errorf("subject %s: %w", id, model.ErrNotFound)
		}
		return model.Subject{}, err
	}
	return s, nil
}

func (r *ScheduleRepository) EventType(ctx context.Context, id uuid.UUID) (model.EventType, error) {
	var et model.EventType
	err := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, name, duration_minutes, buffer_before_minutes,
			buffer_after_minutes, minimum_notice_minutes, max_booking_window_days
		FROM event_types
		WHERE id = $1
	`, id).Scan(
		&et.ID,
		&et.SubjectID,
		&et.Name,
		&et.DurationMinutes,
		&et.BufferBeforeMinutes,
		&et.BufferAfterMinutes,
		&et.MinimumNoticeMinutes,
		&et.MaxBookingWindowDays,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.EventType{}, fmt.Errorf("event type %s: %w", id, model.ErrNotFound)
		}
		return model.EventType{}, err
	}
	return et, nil
}

func (r *ScheduleRepository) WeeklyRulesForWeekday(ctx context.Context, subjectID uuid.UUID, weekday time.Weekday) ([]model.WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, weekday, start_minute, end_minute
		FROM weekly_rules
		WHERE subject_id = $1 AND weekday = $2
		ORDER BY start_minute ASC
	`, subjectID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyRule
	for rows.Next() {
		var rule model.WeeklyRule
		var wd int
		if err := rows.Scan(&rule.ID, &rule.SubjectID, &wd, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(wd)
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) DateOverride(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) (model.DateOverride, bool, error) {
	var ov model.DateOverride
	var dayValue time.Time
	var startMinute, endMinute *int
	err := r.pool.QueryRow(ctx, `
		SELECT subject_id, day, is_available, start_minute, end_minute
		FROM date_overrides
		WHERE subject_id = $1 AND day = $2
	`, subjectID, day.String()).Scan(&ov.SubjectID, &dayValue, &ov.IsAvailable, &startMinute, &endMinute)
	if err != nil {
		if IsNotFound(err) {
			return model.DateOverride{}, false, nil
		}
		return model.DateOverride{}, false, err
	}
	ov.Day = timeutil.DateOf(dayValue)
	if startMinute != nil {
		ov.StartMinute = *startMinute
	}
	if endMinute != nil {
		ov.EndMinute = *endMinute
	}
	return ov, true, nil
}

// ReplaceWeeklyRules swaps a subject's entire weekly schedule in one
// transaction: full replace semantics, not an incremental patch.
func (r *ScheduleRepository) ReplaceWeeklyRules(ctx context.Context, subjectID uuid.UUID, rules []model.WeeklyRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_rules WHERE subject_id = $1`, subjectID); err != nil {
		return err
	}
	for _, rule := range rules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_rules (subject_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, subjectID, int(rule.Weekday), rule.StartMinute, rule.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpsertDateOverride pins availability for one calendar day; at most one
// override per subject per day.
func (r *ScheduleRepository) UpsertDateOverride(ctx context.Context, ov model.DateOverride) error {
	var startMinute, endMinute *int
	if ov.IsAvailable {
		startMinute, endMinute = &ov.StartMinute, &ov.EndMinute
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO date_overrides (subject_id, day, is_available, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject_id, day) DO UPDATE
		SET is_available = EXCLUDED.is_available,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, ov.SubjectID, ov.Day.String(), ov.IsAvailable, startMinute, endMinute)
	return err
}

func (r *ScheduleRepository) DeleteDateOverride(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM date_overrides
		WHERE subject_id = $1 AND day = $2
	`, subjectID, day.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("override for %s on %s: %w", subjectID, day, model.ErrNotFound)
	}
	return nil
}
