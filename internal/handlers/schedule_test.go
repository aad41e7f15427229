package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/model"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

type fakeScheduleWriter struct {
	rules       []model.WeeklyRule
	override    *model.DateOverride
	deleteErr   error
	deletedDays []timeutil.CivilDate
}

func (f *fakeScheduleWriter) ReplaceWeeklyRules(_ context.Context, _ uuid.UUID, rules []model.WeeklyRule) error {
	f.rules = rules
	return nil
}

func (f *fakeScheduleWriter) UpsertDateOverride(_ context.Context, ov model.DateOverride) error {
	f.override = &ov
	return nil
}

func (f *fakeScheduleWriter) DeleteDateOverride(_ context.Context, _ uuid.UUID, day timeutil.CivilDate) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedDays = append(f.deletedDays, day)
	return nil
}

type spyCache struct {
	invalidated []uuid.UUID
}

func (c *spyCache) Get(context.Context, uuid.UUID, timeutil.CivilDate) ([]availability.Interval, bool) {
	return nil, false
}
func (c *spyCache) Set(context.Context, uuid.UUID, timeutil.CivilDate, []availability.Interval) {}
func (c *spyCache) Invalidate(_ context.Context, subjectID uuid.UUID) {
	c.invalidated = append(c.invalidated, subjectID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWeeklyReplaceParsesClockTimes(t *testing.T) {
	store := &fakeScheduleWriter{}
	cache := &spyCache{}
	h := NewScheduleHandler(store, cache, discardLogger())

	subjectID := uuid.New()
	body := `{"subject_id":"` + subjectID.String() + `","rules":[
		{"weekday":1,"start":"09:00","end":"12:00"},
		{"weekday":1,"start":"13:00","end":"17:00"}
	]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/schedule/weekly", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Weekly(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if len(store.rules) != 2 {
		t.Fatalf("stored %d rules, want 2", len(store.rules))
	}
	if store.rules[0].StartMinute != 9*60 || store.rules[0].EndMinute != 12*60 {
		t.Fatalf("first rule = %d..%d minutes, want 540..720", store.rules[0].StartMinute, store.rules[0].EndMinute)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != subjectID {
		t.Fatalf("cache invalidations = %v, want one for %s", cache.invalidated, subjectID)
	}
	var resp struct {
		Rules []weeklyRuleItem `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rules) != 2 || resp.Rules[0].Start != "09:00" || resp.Rules[1].End != "17:00" {
		t.Fatalf("echoed rules = %+v", resp.Rules)
	}
}

func TestWeeklyReplaceRejectsInvertedWindow(t *testing.T) {
	store := &fakeScheduleWriter{}
	h := NewScheduleHandler(store, nil, discardLogger())

	body := `{"subject_id":"` + uuid.NewString() + `","rules":[{"weekday":1,"start":"12:00","end":"09:00"}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/schedule/weekly", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Weekly(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.rules != nil {
		t.Fatal("no rules should be written on validation failure")
	}
}

func TestOverridePutBlockedDayNeedsNoTimes(t *testing.T) {
	store := &fakeScheduleWriter{}
	h := NewScheduleHandler(store, nil, discardLogger())

	body := `{"subject_id":"` + uuid.NewString() + `","date":"2026-03-17","is_available":false}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/schedule/overrides", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Overrides(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if store.override == nil || store.override.IsAvailable {
		t.Fatalf("override = %+v, want blocked day", store.override)
	}
	if store.override.Day != (timeutil.CivilDate{Year: 2026, Month: 3, Day: 17}) {
		t.Fatalf("override day = %v", store.override.Day)
	}
}

func TestOverrideDeleteMapsNotFound(t *testing.T) {
	store := &fakeScheduleWriter{deleteErr: model.ErrNotFound}
	h := NewScheduleHandler(store, nil, discardLogger())

	target := "/api/v1/schedule/overrides?subject_id=" + uuid.NewString() + "&date=2026-03-17"
	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rec := httptest.NewRecorder()

	h.Overrides(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestQueryLocationDefaultsToUTC(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	rec := httptest.NewRecorder()

	loc, ok := queryLocation(rec, req)
	if !ok || loc.String() != "UTC" {
		t.Fatalf("loc = %v ok = %v, want UTC", loc, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/slots?timezone=Not%2FAZone", nil)
	rec = httptest.NewRecorder()
	if _, ok := queryLocation(rec, req); ok {
		t.Fatal("bogus timezone should be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
