package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/team"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

type SlotHandler struct {
	slots  *availability.Service
	teams  *team.Service
	logger *slog.Logger
}

func NewSlotHandler(slots *availability.Service, teams *team.Service, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{slots: slots, teams: teams, logger: logger}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Subject answers GET /api/v1/slots: the bookable slots for one subject on
// one calendar day. Slots are absolute instants; the timezone query param
// only changes how the instants are rendered.
func (h *SlotHandler) Subject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subjectID, ok := queryUUID(w, r, "subject_id")
	if !ok {
		return
	}
	eventTypeID, ok := queryUUID(w, r, "event_type_id")
	if !ok {
		return
	}
	day, ok := queryDate(w, r)
	if !ok {
		return
	}
	loc, ok := queryLocation(w, r)
	if !ok {
		return
	}

	slots, err := h.slots.OpenSlots(r.Context(), subjectID, eventTypeID, day)
	if err != nil {
		h.logger.Error("slot resolution failed", "err", err, "subject_id", subjectID)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSlots(slots, loc))
}

// Team answers GET /api/v1/teams/slots. Mode selects how member calendars
// combine; it defaults to collective.
func (h *SlotHandler) Team(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	teamID, ok := queryUUID(w, r, "team_id")
	if !ok {
		return
	}
	eventTypeID, ok := queryUUID(w, r, "event_type_id")
	if !ok {
		return
	}
	day, ok := queryDate(w, r)
	if !ok {
		return
	}
	loc, ok := queryLocation(w, r)
	if !ok {
		return
	}

	mode := model.SchedulingMode(strings.TrimSpace(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = model.ModeCollective
	}

	slots, err := h.teams.TeamSlots(r.Context(), teamID, eventTypeID, day, mode)
	if err != nil {
		h.logger.Error("team slot resolution failed", "err", err, "team_id", teamID)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSlots(slots, loc))
}

func renderSlots(slots []availability.Slot, loc *time.Location) []slotItem {
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.In(loc).Format(time.RFC3339),
			EndTime:   s.End.In(loc).Format(time.RFC3339),
		})
	}
	return items
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		http.Error(w, name+" is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryDate(w http.ResponseWriter, r *http.Request) (timeutil.CivilDate, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return timeutil.CivilDate{}, false
	}
	day, err := timeutil.ParseCivilDate(raw)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return timeutil.CivilDate{}, false
	}
	return day, true
}

func queryLocation(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("timezone"))
	if raw == "" {
		return time.UTC, true
	}
	loc, err := timeutil.LoadLocation(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return loc, true
}
