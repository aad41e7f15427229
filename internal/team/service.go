package team

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/booking"
	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// rotationWindow is how far back the round-robin assignment policy counts a
// member's active bookings when balancing load.
const rotationWindow = 30 * 24 * time.Hour

// MemberStore reads team membership and the booking counts the rotation
// policy ranks members by.
type MemberStore interface {
	Team(ctx context.Context, id uuid.UUID) (model.Team, error)
	Members(ctx context.Context, teamID uuid.UUID) ([]model.Subject, error)
	ActiveBookingCounts(ctx context.Context, teamID uuid.UUID, since time.Time) (map[uuid.UUID]int, error)
}

// Service combines per-member availability into team slots. Mode is a fixed
// input per request; it never transitions.
type Service struct {
	members MemberStore
	slots   *availability.Service
	booking *booking.Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(members MemberStore, slots *availability.Service, bookingSvc *booking.Service, logger *slog.Logger) *Service {
	return &Service{
		members: members,
		slots:   slots,
		booking: bookingSvc,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TeamSlots resolves each member's available slots independently, then
// combines them per mode: collective keeps only slots every member can take;
// round-robin offers the union, since any one member can take the meeting.
// Zero surviving slots is a valid empty answer, not an error.
func (s *Service) TeamSlots(ctx context.Context, teamID, eventTypeID uuid.UUID, day timeutil.CivilDate, mode model.SchedulingMode) ([]availability.Slot, error) {
	perMember, err := s.memberSlots(ctx, teamID, eventTypeID, day)
	if err != nil {
		return nil, err
	}

	switch mode {
	case model.ModeCollective:
		return intersect(perMember), nil
	case model.ModeRoundRobin:
		return union(perMember), nil
	default:
		return nil, fmt.Errorf("%w: unknown scheduling mode %q", model.ErrInvalidInput, mode)
	}
}

// BookRoundRobin commits a guest's chosen slot against one deterministically
// selected member. Policy: of the members whose own availability contains the
// exact slot, pick the one with the fewest active bookings in the trailing
// rotation window; ties break on the lowest member id. Admission against the
// chosen member still goes through the full conflict re-check.
func (s *Service) BookRoundRobin(ctx context.Context, teamID uuid.UUID, req booking.AdmitRequest) (model.Booking, error) {
	assignee, err := s.PickAssignee(ctx, teamID, req.EventTypeID, req.StartTime, req.EndTime)
	if err != nil {
		return model.Booking{}, err
	}

	req.SubjectID = assignee.ID
	req.TeamID = &teamID
	b, err := s.booking.Admit(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("round-robin booking assigned",
		"team_id", teamID,
		"subject_id", assignee.ID,
		"booking_id", b.ID,
	)
	return b, nil
}

// PickAssignee returns the member the rotation policy selects for the given
// slot. The result is a pure function of membership, member availability and
// the trailing booking counts, so repeated calls under the same state pick
// the same member.
func (s *Service) PickAssignee(ctx context.Context, teamID, eventTypeID uuid.UUID, start, end time.Time) (model.Subject, error) {
	if _, err := s.members.Team(ctx, teamID); err != nil {
		return model.Subject{}, err
	}
	members, err := s.members.Members(ctx, teamID)
	if err != nil {
		return model.Subject{}, err
	}
	if len(members) == 0 {
		return model.Subject{}, fmt.Errorf("%w: team has no members", model.ErrNotFound)
	}
	cfg, err := s.slots.EventType(ctx, eventTypeID)
	if err != nil {
		return model.Subject{}, err
	}

	var eligible []model.Subject
	for _, member := range members {
		// The slot instant maps to a calendar day only in the member's
		// own timezone; an evening slot in a zone trailing UTC falls on
		// the next UTC date.
		loc, err := timeutil.LoadLocation(member.Timezone)
		if err != nil {
			return model.Subject{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
		memberSlots, err := s.slots.SlotsFor(ctx, member, cfg, timeutil.DateOf(start.In(loc)))
		if err != nil {
			return model.Subject{}, err
		}
		if containsSlot(memberSlots, start, end) {
			eligible = append(eligible, member)
		}
	}
	if len(eligible) == 0 {
		return model.Subject{}, model.ErrSlotTaken
	}

	counts, err := s.members.ActiveBookingCounts(ctx, teamID, s.now().Add(-rotationWindow))
	if err != nil {
		return model.Subject{}, err
	}

	best := eligible[0]
	for _, candidate := range eligible[1:] {
		cCount, bCount := counts[candidate.ID], counts[best.ID]
		if cCount < bCount || (cCount == bCount && candidate.ID.String() < best.ID.String()) {
			best = candidate
		}
	}
	return best, nil
}

func (s *Service) memberSlots(ctx context.Context, teamID, eventTypeID uuid.UUID, day timeutil.CivilDate) ([][]availability.Slot, error) {
	if _, err := s.members.Team(ctx, teamID); err != nil {
		return nil, err
	}
	members, err := s.members.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: team has no members", model.ErrNotFound)
	}
	cfg, err := s.slots.EventType(ctx, eventTypeID)
	if err != nil {
		return nil, err
	}

	perMember := make([][]availability.Slot, 0, len(members))
	for _, member := range members {
		memberSlots, err := s.slots.SlotsFor(ctx, member, cfg, day)
		if err != nil {
			return nil, err
		}
		perMember = append(perMember, memberSlots)
	}
	return perMember, nil
}

func slotKey(start, end time.Time) string {
	return start.UTC().Format(time.RFC3339) + "/" + end.UTC().Format(time.RFC3339)
}

func containsSlot(slots []availability.Slot, start, end time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}

// intersect keeps slots present, by exact (start, end) equality, in every
// member's set. If any member has no slots that day the result is empty.
func intersect(perMember [][]availability.Slot) []availability.Slot {
	if len(perMember) == 0 {
		return nil
	}
	slots := make(map[string]availability.Slot)
	seen := make(map[string]int)
	for _, memberSlots := range perMember {
		inMember := make(map[string]struct{})
		for _, s := range memberSlots {
			k := slotKey(s.Start, s.End)
			if _, dup := inMember[k]; dup {
				continue
			}
			inMember[k] = struct{}{}
			slots[k] = s
			seen[k]++
		}
	}
	var out []availability.Slot
	for k, s := range slots {
		if seen[k] == len(perMember) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out
}

// union merges and de-duplicates all members' slots.
func union(perMember [][]availability.Slot) []availability.Slot {
	merged := make(map[string]availability.Slot)
	for _, memberSlots := range perMember {
		for _, s := range memberSlots {
			merged[slotKey(s.Start, s.End)] = s
		}
	}
	out := make([]availability.Slot, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sortSlots(out)
	return out
}

func sortSlots(slots []availability.Slot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
}
