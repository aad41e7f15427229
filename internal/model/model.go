package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/timeutil"
)

// Subject is a calendar owner. Timezone is the authoritative frame for
// interpreting the subject's weekly rules and date overrides.
type Subject struct {
	ID          uuid.UUID
	DisplayName string
	Timezone    string
}

// WeeklyRule is one recurring open window on a weekday. A subject may have
// several rules on the same weekday; rules are replaced wholesale when the
// subject edits their weekly schedule.
type WeeklyRule struct {
	ID          int64
	SubjectID   uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// DateOverride pins availability for one calendar day. It fully replaces the
// weekly rules for that day: either the day is blocked, or the single
// start/end window is the day's availability.
type DateOverride struct {
	SubjectID   uuid.UUID
	Day         timeutil.CivilDate
	IsAvailable bool
	StartMinute int
	EndMinute   int
}

// EventType carries the per-event booking configuration. It is a read-only
// input to the engine; callers own its lifecycle.
type EventType struct {
	ID                   uuid.UUID
	SubjectID            uuid.UUID
	Name                 string
	DurationMinutes      int
	BufferBeforeMinutes  int
	BufferAfterMinutes   int
	MinimumNoticeMinutes int
	MaxBookingWindowDays int
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Blocks reports whether a booking in this status occupies calendar time.
func (s BookingStatus) Blocks() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID                  uuid.UUID
	SubjectID           uuid.UUID
	EventTypeID         uuid.UUID
	TeamID              *uuid.UUID
	GuestName           string
	GuestEmail          string
	StartTime           time.Time
	EndTime             time.Time
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	Status              BookingStatus
	CancelledAt         *time.Time
	CreatedAt           time.Time
}

// BlockedInterval is the booking's occupied range expanded by its own buffers.
// The buffer belongs to the meeting already on the calendar, not to whatever
// candidate is being tested against it.
func (b Booking) BlockedInterval() (time.Time, time.Time) {
	start := b.StartTime.Add(-time.Duration(b.BufferBeforeMinutes) * time.Minute)
	end := b.EndTime.Add(time.Duration(b.BufferAfterMinutes) * time.Minute)
	return start, end
}

type Team struct {
	ID   uuid.UUID
	Name string
}

// SchedulingMode selects how a team's member calendars combine.
type SchedulingMode string

const (
	ModeCollective SchedulingMode = "collective"
	ModeRoundRobin SchedulingMode = "round_robin"
)
