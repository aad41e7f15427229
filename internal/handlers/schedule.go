package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

// ScheduleWriter is the schedule write path. ReplaceWeeklyRules swaps the
// subject's entire weekly schedule in one transaction; partial edits are not
// offered, the client always sends the full rule set.
type ScheduleWriter interface {
	ReplaceWeeklyRules(ctx context.Context, subjectID uuid.UUID, rules []model.WeeklyRule) error
	UpsertDateOverride(ctx context.Context, ov model.DateOverride) error
	DeleteDateOverride(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) error
}

type ScheduleHandler struct {
	store  ScheduleWriter
	cache  availability.WindowCache
	logger *slog.Logger
}

func NewScheduleHandler(store ScheduleWriter, cache availability.WindowCache, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, cache: cache, logger: logger}
}

type weeklyRuleItem struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type replaceWeeklyRequest struct {
	SubjectID string           `json:"subject_id"`
	Rules     []weeklyRuleItem `json:"rules"`
}

type overrideRequest struct {
	SubjectID   string `json:"subject_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// Weekly answers PUT /api/v1/schedule/weekly. An empty rules array is valid
// and clears the subject's recurring availability.
func (h *ScheduleHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req replaceWeeklyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	subjectID, err := uuid.Parse(strings.TrimSpace(req.SubjectID))
	if err != nil {
		http.Error(w, "invalid subject_id", http.StatusBadRequest)
		return
	}

	rules := make([]model.WeeklyRule, 0, len(req.Rules))
	for _, item := range req.Rules {
		if item.Weekday < 0 || item.Weekday > 6 {
			http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
			return
		}
		startMinute, err := timeutil.ParseClock(item.Start)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		endMinute, err := timeutil.ParseClock(item.End)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if startMinute >= endMinute {
			http.Error(w, "rule start must be before end", http.StatusBadRequest)
			return
		}
		rules = append(rules, model.WeeklyRule{
			SubjectID:   subjectID,
			Weekday:     time.Weekday(item.Weekday),
			StartMinute: startMinute,
			EndMinute:   endMinute,
		})
	}

	if err := h.store.ReplaceWeeklyRules(r.Context(), subjectID, rules); err != nil {
		h.logger.Error("weekly schedule replace failed", "err", err, "subject_id", subjectID)
		writeServiceError(w, err)
		return
	}
	h.invalidate(r.Context(), subjectID)

	// Echo the normalized schedule so clients see the stored wall-clock form.
	stored := make([]weeklyRuleItem, 0, len(rules))
	for _, rule := range rules {
		stored = append(stored, weeklyRuleItem{
			Weekday: int(rule.Weekday),
			Start:   timeutil.FormatClock(rule.StartMinute),
			End:     timeutil.FormatClock(rule.EndMinute),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": stored})
}

// Overrides answers PUT and DELETE on /api/v1/schedule/overrides. A PUT
// pins one calendar day, replacing that day's weekly rules entirely; DELETE
// restores the weekly schedule for the day.
func (h *ScheduleHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.upsertOverride(w, r)
	case http.MethodDelete:
		h.deleteOverride(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) upsertOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	subjectID, err := uuid.Parse(strings.TrimSpace(req.SubjectID))
	if err != nil {
		http.Error(w, "invalid subject_id", http.StatusBadRequest)
		return
	}
	day, err := timeutil.ParseCivilDate(strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	ov := model.DateOverride{
		SubjectID:   subjectID,
		Day:         day,
		IsAvailable: req.IsAvailable,
	}
	if req.IsAvailable {
		startMinute, err := timeutil.ParseClock(req.Start)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		endMinute, err := timeutil.ParseClock(req.End)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if startMinute >= endMinute {
			http.Error(w, "override start must be before end", http.StatusBadRequest)
			return
		}
		ov.StartMinute = startMinute
		ov.EndMinute = endMinute
	}

	if err := h.store.UpsertDateOverride(r.Context(), ov); err != nil {
		h.logger.Error("date override upsert failed", "err", err, "subject_id", subjectID)
		writeServiceError(w, err)
		return
	}
	h.invalidate(r.Context(), subjectID)

	writeJSON(w, http.StatusOK, map[string]string{"date": day.String()})
}

func (h *ScheduleHandler) deleteOverride(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := queryUUID(w, r, "subject_id")
	if !ok {
		return
	}
	day, ok := queryDate(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDateOverride(r.Context(), subjectID, day); err != nil {
		if !model.IsDomainError(err) {
			h.logger.Error("date override delete failed", "err", err, "subject_id", subjectID)
		}
		writeServiceError(w, err)
		return
	}
	h.invalidate(r.Context(), subjectID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) invalidate(ctx context.Context, subjectID uuid.UUID) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, subjectID)
	}
}
