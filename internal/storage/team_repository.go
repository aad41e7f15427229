package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/libs/db"
)

type TeamRepository struct {
	pool *db.Pool
}

func NewTeamRepository(pool *db.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

func (r *TeamRepository) Team(ctx context.Context, id uuid.UUID) (model.Team, error) {
	var t model.Team
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM teams
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		if IsNotFound(err) {
			return model.Team{}, fmt.Errorf("team %s: %w", id, model.ErrNotFound)
		}
		return model.Team{}, err
	}
	return t, nil
}

// Members returns a team's members in stable id order.
func (r *TeamRepository) Members(ctx context.Context, teamID uuid.UUID) ([]model.Subject, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.display_name, s.timezone
		FROM team_members m
		JOIN subjects s ON s.id = m.subject_id
		WHERE m.team_id = $1
		ORDER BY s.id ASC
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.Timezone); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ActiveBookingCounts returns, per member, the number of pending/confirmed
// bookings starting at or after since. The round-robin policy ranks members
// by these counts.
func (r *TeamRepository) ActiveBookingCounts(ctx context.Context, teamID uuid.UUID, since time.Time) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.subject_id, count(*)
		FROM bookings b
		JOIN team_members m ON m.subject_id = b.subject_id
		WHERE m.team_id = $1
			AND b.status IN ('pending', 'confirmed')
			AND b.start_time >= $2
		GROUP BY b.subject_id
	`, teamID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}
