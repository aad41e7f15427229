package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/booking"
	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/team"
)

type BookingHandler struct {
	bookings *booking.Service
	teams    *team.Service
	logger   *slog.Logger
}

func NewBookingHandler(bookings *booking.Service, teams *team.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, teams: teams, logger: logger}
}

type createBookingRequest struct {
	SubjectID   string `json:"subject_id"`
	TeamID      string `json:"team_id"`
	EventTypeID string `json:"event_type_id"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	SubjectID   string `json:"subject_id"`
	TeamID      string `json:"team_id,omitempty"`
	GuestName   string `json:"guest_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// Create answers POST /api/v1/bookings. With subject_id set it admits the
// booking directly against that subject; with team_id set instead, the
// round-robin rotation picks the assignee before admission.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	req.TeamID = strings.TrimSpace(req.TeamID)
	req.GuestName = strings.TrimSpace(req.GuestName)

	if (req.SubjectID == "") == (req.TeamID == "") {
		http.Error(w, "exactly one of subject_id or team_id is required", http.StatusBadRequest)
		return
	}

	eventTypeID, err := uuid.Parse(strings.TrimSpace(req.EventTypeID))
	if err != nil {
		http.Error(w, "invalid event_type_id", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	admit := booking.AdmitRequest{
		EventTypeID: eventTypeID,
		GuestName:   req.GuestName,
		GuestEmail:  strings.TrimSpace(req.GuestEmail),
		StartTime:   startTime,
		EndTime:     endTime,
	}

	var b model.Booking
	if req.TeamID != "" {
		teamID, err := uuid.Parse(req.TeamID)
		if err != nil {
			http.Error(w, "invalid team_id", http.StatusBadRequest)
			return
		}
		b, err = h.teams.BookRoundRobin(r.Context(), teamID, admit)
		if err != nil {
			h.logBookingError(err, "team round-robin booking failed")
			writeServiceError(w, err)
			return
		}
	} else {
		subjectID, err := uuid.Parse(req.SubjectID)
		if err != nil {
			http.Error(w, "invalid subject_id", http.StatusBadRequest)
			return
		}
		admit.SubjectID = subjectID
		b, err = h.bookings.Admit(r.Context(), admit)
		if err != nil {
			h.logBookingError(err, "booking admission failed")
			writeServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, renderBooking(b))
}

// Cancel answers POST /api/v1/bookings/cancel. Cancelling an already
// cancelled booking returns its current state unchanged.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		http.Error(w, "invalid booking_id", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.Cancel(r.Context(), bookingID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.logBookingError(err, "booking cancellation failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBooking(b))
}

// List answers GET /api/v1/bookings for one subject, most recent first when
// no range is given, chronological within an explicit from/to range.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subjectID, ok := queryUUID(w, r, "subject_id")
	if !ok {
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = t
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.bookings.List(r.Context(), subjectID, from, to, limit)
	if err != nil {
		h.logBookingError(err, "booking list failed")
		writeServiceError(w, err)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, renderBooking(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) logBookingError(err error, msg string) {
	// Conflict and validation outcomes are normal traffic, not failures.
	if model.IsDomainError(err) {
		return
	}
	h.logger.Error(msg, "err", err)
}

func renderBooking(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID: b.ID.String(),
		SubjectID: b.SubjectID.String(),
		GuestName: b.GuestName,
		StartTime: b.StartTime.UTC().Format(time.RFC3339),
		EndTime:   b.EndTime.UTC().Format(time.RFC3339),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.TeamID != nil {
		item.TeamID = b.TeamID.String()
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}
