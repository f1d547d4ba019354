/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Employee and holiday profile CRUD, validation and error mapping
- Recurring shift preview, creation, cutover and deactivation
- Shift lifecycle and per-shift compliance
- Payroll calculation, batch runs and the status workflow

All tests run the full router against an in-memory SQLite store.
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/recurrence"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cal, err := calendar.NewProvider("BW")
	require.NoError(t, err)

	h := NewHandler(store, cal, core.DefaultPolicy(), logging.Discard())
	h.Now = func() time.Time { return testNow }
	h.Payroll.Now = h.Now
	return h
}

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	h := setupTestHandler(t)
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msg...)...)
}

const carerJSON = `{"id": "emp-1", "name": "Anna Becker", "contract_type": "part_time", "hourly_rate": 10}`

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_CreateGetList(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/employees", `{
		"id": "emp-1", "name": "Anna Becker", "contract_type": "part_time",
		"hourly_rate": "14.50", "monthly_hours_limit": 80,
		"contracts": [
			{"valid_from": "2025-01-01", "valid_to": "2025-07-01", "hourly_rate": 14.5},
			{"valid_from": "2025-07-01", "hourly_rate": 15.25}
		]
	}`)
	requireStatus(t, rec, http.StatusCreated)

	rec = do(t, router, http.MethodGet, "/api/employees/emp-1", "")
	requireStatus(t, rec, http.StatusOK)
	got := decodeAs[EmployeeDTO](t, rec)
	assert.Equal(t, "Anna Becker", got.Name)
	require.NotNil(t, got.HourlyRate)
	assertDec(t, "14.5", *got.HourlyRate)
	require.NotNil(t, got.Active)
	assert.True(t, *got.Active, "active defaults to true")
	require.Len(t, got.Contracts, 2)
	assert.Equal(t, "2025-07-01", got.Contracts[0].ValidFrom, "newest contract first")

	rec = do(t, router, http.MethodGet, "/api/employees", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decodeAs[[]EmployeeDTO](t, rec), 1)
}

func TestEmployees_ValidationErrors(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/employees", `{"contract_type": "freelance"}`)
	requireStatus(t, rec, http.StatusBadRequest)
	resp := decodeAs[ErrorResponse](t, rec)
	assert.Equal(t, "is required", resp.Fields["name"])
	assert.Contains(t, resp.Fields["contract_type"], "must be one of")

	rec = do(t, router, http.MethodPost, "/api/employees", `{"name": "X", "contract_type": "minijob", "hourly_rate": -1}`)
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, decodeAs[ErrorResponse](t, rec).Fields, "hourly_rate")

	rec = do(t, router, http.MethodPost, "/api/employees", `{"name": "X", "contract_type": "minijob", "salary": 1}`)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestEmployees_NotFound(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodGet, "/api/employees/ghost", "")
	requireStatus(t, rec, http.StatusNotFound)
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestHolidays_ByRegionAndYear(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/holidays?region=BW&year=2025", "")
	requireStatus(t, rec, http.StatusOK)
	holidays := decodeAs[[]calendar.Holiday](t, rec)

	names := map[string]string{}
	for _, hol := range holidays {
		names[hol.Date.String()] = hol.Name
	}
	assert.Equal(t, "Pfingstmontag", names["2025-06-09"])
	assert.Equal(t, "Fronleichnam", names["2025-06-19"])

	rec = do(t, router, http.MethodGet, "/api/holidays?region=XX&year=2025", "")
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestProfiles_SaveAndActivate(t *testing.T) {
	_, router := setupTestServer(t)

	first := `{"id": "p1", "name": "BW 2025", "region": "bw", "active": true,
		"vacation_periods": [{"name": "Osterferien", "start_date": "2025-04-14", "end_date": "2025-04-26"}],
		"custom_holidays": [{"name": "Teamtag", "date": "2025-05-02"}]}`
	requireStatus(t, do(t, router, http.MethodPost, "/api/holiday-profiles", first), http.StatusCreated)
	second := `{"id": "p2", "name": "BY 2025", "region": "BY", "active": true, "vacation_periods": [], "custom_holidays": []}`
	requireStatus(t, do(t, router, http.MethodPost, "/api/holiday-profiles", second), http.StatusCreated)

	rec := do(t, router, http.MethodGet, "/api/holiday-profiles/p1", "")
	requireStatus(t, rec, http.StatusOK)
	p1 := decodeAs[HolidayProfileDTO](t, rec)
	assert.Equal(t, "BW", p1.Region)
	assert.False(t, p1.Active, "activating p2 deactivates p1")
	require.Len(t, p1.VacationPeriods, 1)
	assert.Equal(t, "2025-04-26", p1.VacationPeriods[0].End)
}

func TestProfiles_RejectsInvertedVacation(t *testing.T) {
	_, router := setupTestServer(t)
	body := `{"name": "BW", "region": "BW", "active": true,
		"vacation_periods": [{"name": "x", "start_date": "2025-04-26", "end_date": "2025-04-14"}], "custom_holidays": []}`
	rec := do(t, router, http.MethodPost, "/api/holiday-profiles", body)
	requireStatus(t, rec, http.StatusBadRequest)
}

// =============================================================================
// RECURRING SHIFTS
// =============================================================================

const tuesdayRuleJSON = `{
	"id": "rule-tue", "weekday": 1, "start_time": "08:00", "end_time": "12:00",
	"break_minutes": 0, "employee_id": "emp-1",
	"valid_from": "2025-03-01", "valid_until": "2025-03-31", "skip_public_holidays": true
}`

func TestRecurring_PreviewMatchesCreate(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	profile := `{"id": "p1", "name": "BW", "region": "BW", "active": true,
		"vacation_periods": [{"name": "Fasnet", "start_date": "2025-03-17", "end_date": "2025-03-21"}],
		"custom_holidays": [{"name": "Teamtag", "date": "2025-03-25"}]}`
	requireStatus(t, do(t, router, http.MethodPost, "/api/holiday-profiles", profile), http.StatusCreated)

	// WHEN: previewing
	rec := do(t, router, http.MethodPost, "/api/recurring-shifts/preview", tuesdayRuleJSON)
	requireStatus(t, rec, http.StatusOK)
	preview := decodeAs[recurrence.Preview](t, rec)

	// THEN: Tuesdays 4, 11 generate; 18 vacation and 25 custom are skipped
	assert.Equal(t, 2, preview.GeneratedCount)
	assert.Equal(t, 2, preview.SkippedCount)

	// WHEN: creating
	rec = do(t, router, http.MethodPost, "/api/recurring-shifts", tuesdayRuleJSON)
	requireStatus(t, rec, http.StatusCreated)
	created := decodeAs[GenerateResponse](t, rec)

	// THEN: the same counts, and the shifts are stored
	assert.Len(t, created.Created, preview.GeneratedCount)
	assert.Len(t, created.Skipped, preview.SkippedCount)
	assert.True(t, created.Rule.Active)

	rec = do(t, router, http.MethodGet, "/api/shifts?recurring_shift_id=rule-tue", "")
	requireStatus(t, rec, http.StatusOK)
	stored := decodeAs[[]ShiftDTO](t, rec)
	require.Len(t, stored, 2)
	assert.Equal(t, "2025-03-04", stored[0].Date)
	assert.Equal(t, "planned", stored[0].Status)
	assert.Equal(t, "4.00", stored[0].NetHours)
}

func TestRecurring_CreateRejectsBadRule(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/recurring-shifts", `{"weekday": 9, "start_time": "8am", "end_time": "12:00",
		"valid_from": "2025-03-01", "valid_until": "2025-03-31"}`)
	requireStatus(t, rec, http.StatusBadRequest)
	fields := decodeAs[ErrorResponse](t, rec).Fields
	assert.Contains(t, fields, "weekday")
	assert.Contains(t, fields, "start_time")

	rec = do(t, router, http.MethodPost, "/api/recurring-shifts", `{"weekday": 1, "start_time": "08:00", "end_time": "09:00",
		"break_minutes": 90, "valid_from": "2025-03-01", "valid_until": "2025-03-31"}`)
	requireStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, decodeAs[ErrorResponse](t, rec).Fields, "break_minutes")
}

func TestRecurring_UpdateFromKeepsConfirmedShifts(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	created := decodeAs[GenerateResponse](t, do(t, router, http.MethodPost, "/api/recurring-shifts", tuesdayRuleJSON))
	require.Len(t, created.Created, 4, "Tuesdays 4, 11, 18, 25")

	// GIVEN: the shift on the 18th is confirmed
	confirmedID := created.Created[2].ID
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/"+confirmedID+"/status", `{"status": "confirmed"}`), http.StatusOK)

	// WHEN: changing the start time from the 12th on
	rec := do(t, router, http.MethodPost, "/api/recurring-shifts/rule-tue/update-from",
		`{"from_date": "2025-03-12", "start_time": "09:00"}`)
	requireStatus(t, rec, http.StatusOK)
	result := decodeAs[UpdateFromResponse](t, rec)

	// THEN: only the planned 25th is replaced; the 18th is protected
	assert.Equal(t, 1, result.Deleted)
	require.Len(t, result.Generated, 1)
	assert.Equal(t, "2025-03-25", result.Generated[0].Date)
	assert.Equal(t, "09:00", result.Generated[0].StartTime)
	assert.Equal(t, "09:00", result.Rule.StartTime)

	rec = do(t, router, http.MethodGet, "/api/shifts/"+confirmedID, "")
	requireStatus(t, rec, http.StatusOK)
	kept := decodeAs[ShiftDTO](t, rec)
	assert.Equal(t, "08:00", kept.StartTime)
	assert.Equal(t, "confirmed", kept.Status)

	rec = do(t, router, http.MethodGet, "/api/shifts?recurring_shift_id=rule-tue&start=2025-03-01&end=2025-03-11", "")
	requireStatus(t, rec, http.StatusOK)
	for _, s := range decodeAs[[]ShiftDTO](t, rec) {
		assert.Equal(t, "08:00", s.StartTime, "shifts before the cutover are untouched")
	}
}

func TestRecurring_DeactivateAndGenerateInactive(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/recurring-shifts", tuesdayRuleJSON), http.StatusCreated)

	rec := do(t, router, http.MethodDelete, "/api/recurring-shifts/rule-tue", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, 4, decodeAs[DeactivateResponse](t, rec).Deleted)

	rec = do(t, router, http.MethodGet, "/api/recurring-shifts?active=true", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decodeAs[[]RecurringRuleDTO](t, rec))

	rec = do(t, router, http.MethodPost, "/api/recurring-shifts/rule-tue/generate",
		`{"start_date": "2025-03-01", "end_date": "2025-03-31"}`)
	requireStatus(t, rec, http.StatusConflict)

	rec = do(t, router, http.MethodDelete, "/api/recurring-shifts/nope", "")
	requireStatus(t, rec, http.StatusNotFound)
}

func TestRecurring_GenerateRejectsInvertedRange(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/recurring-shifts", tuesdayRuleJSON), http.StatusCreated)

	rec := do(t, router, http.MethodPost, "/api/recurring-shifts/rule-tue/generate",
		`{"start_date": "2025-03-31", "end_date": "2025-03-01"}`)
	requireStatus(t, rec, http.StatusBadRequest)
}

// =============================================================================
// SHIFTS AND COMPLIANCE
// =============================================================================

func TestShifts_StatusLifecycle(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`), http.StatusCreated)

	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/s1/status", `{"status": "confirmed"}`), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/s1/status", `{"status": "completed"}`), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/s1/status", `{"status": "planned"}`), http.StatusConflict)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/s1/status", `{"status": "done"}`), http.StatusBadRequest)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/ghost/status", `{"status": "confirmed"}`), http.StatusNotFound)
}

func TestShifts_UnknownEmployeeRejected(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"date": "2025-03-03", "start_time": "08:00", "end_time": "12:00", "employee_id": "ghost"}`)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestShifts_RestPeriodEvaluatedOnSave(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)

	// GIVEN: a late shift ending 22:00
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "late", "date": "2025-03-03", "start_time": "14:00", "end_time": "22:00", "break_minutes": 30, "employee_id": "emp-1"}`), http.StatusCreated)

	// WHEN: the next shift starts 08:00 the following day (10h rest)
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "early", "date": "2025-03-04", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`)
	requireStatus(t, rec, http.StatusCreated)
	early := decodeAs[ShiftDTO](t, rec)

	// THEN
	require.NotNil(t, early.Flags)
	assert.False(t, early.Flags.RestPeriodOK)
	require.NotNil(t, early.Flags.RestHours)
	assertDec(t, "10", *early.Flags.RestHours)
	assert.Len(t, early.Flags.Violations, 1)

	// WHEN: the late shift moves two hours earlier (12h rest)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "late", "date": "2025-03-03", "start_time": "12:00", "end_time": "20:00", "break_minutes": 30, "employee_id": "emp-1"}`), http.StatusOK)

	// THEN: the early shift was re-checked along with it
	rec = do(t, router, http.MethodGet, "/api/shifts/early", "")
	requireStatus(t, rec, http.StatusOK)
	assert.True(t, decodeAs[ShiftDTO](t, rec).Flags.RestPeriodOK)

	rec = do(t, router, http.MethodPost, "/api/shifts/early/compliance", "")
	requireStatus(t, rec, http.StatusOK)
	assert.True(t, decodeAs[ShiftDTO](t, rec).Flags.RestPeriodOK)
}

func TestShifts_EarlierShiftSavedLaterRechecksFollowingShift(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)

	// GIVEN: a Tuesday morning shift with nothing before it
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "tue", "date": "2025-03-04", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`)
	requireStatus(t, rec, http.StatusCreated)
	assert.True(t, decodeAs[ShiftDTO](t, rec).Flags.RestPeriodOK)

	// WHEN: a Monday late shift ending 22:00 is added afterwards
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "mon", "date": "2025-03-03", "start_time": "16:00", "end_time": "22:00", "employee_id": "emp-1"}`), http.StatusCreated)

	// THEN: the Tuesday shift now shows the 10h rest
	rec = do(t, router, http.MethodGet, "/api/shifts/tue", "")
	requireStatus(t, rec, http.StatusOK)
	tue := decodeAs[ShiftDTO](t, rec)
	assert.False(t, tue.Flags.RestPeriodOK)
	require.NotNil(t, tue.Flags.RestHours)
	assertDec(t, "10", *tue.Flags.RestHours)

	// WHEN: the Monday shift is cancelled
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/mon/status", `{"status": "cancelled"}`), http.StatusOK)

	// THEN: the Tuesday shift has no prior any more
	rec = do(t, router, http.MethodGet, "/api/shifts/tue", "")
	requireStatus(t, rec, http.StatusOK)
	tue = decodeAs[ShiftDTO](t, rec)
	assert.True(t, tue.Flags.RestPeriodOK)
	assert.Empty(t, tue.Flags.Violations)
}

func TestShifts_MovingShiftAwayRechecksOldNeighbour(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "mon", "date": "2025-03-03", "start_time": "16:00", "end_time": "22:00", "employee_id": "emp-1"}`), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "tue", "date": "2025-03-04", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`), http.StatusCreated)

	// WHEN: the late shift moves to the following week
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "mon", "date": "2025-03-10", "start_time": "16:00", "end_time": "22:00", "employee_id": "emp-1"}`), http.StatusOK)

	// THEN
	rec := do(t, router, http.MethodGet, "/api/shifts/tue", "")
	requireStatus(t, rec, http.StatusOK)
	assert.True(t, decodeAs[ShiftDTO](t, rec).Flags.RestPeriodOK)
}

func TestShifts_EditFollowsLifecycle(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	const planned = `{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1", "status": "planned"}`

	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts", planned), http.StatusCreated)

	// planned -> completed skips confirmation
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1", "status": "completed"}`)
	requireStatus(t, rec, http.StatusConflict)

	// planned -> confirmed is a regular move
	rec = do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "13:00", "employee_id": "emp-1", "status": "confirmed"}`)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "confirmed", decodeAs[ShiftDTO](t, rec).Status)

	// confirmed cannot go back to planned
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts", planned), http.StatusConflict)

	// an edit without status keeps the stored one
	rec = do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "12:30", "employee_id": "emp-1"}`)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "confirmed", decodeAs[ShiftDTO](t, rec).Status)
}

func TestShifts_TerminalShiftsCannotBeEdited(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)

	// GIVEN: a shift created as completed
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1", "status": "completed"}`), http.StatusCreated)

	// WHEN / THEN: re-posting it as planned is refused and the stored shift is unchanged
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-03", "start_time": "09:00", "end_time": "12:00", "employee_id": "emp-1", "status": "planned"}`)
	requireStatus(t, rec, http.StatusConflict)
	assert.Contains(t, rec.Body.String(), "completed")

	rec = do(t, router, http.MethodGet, "/api/shifts/s1", "")
	requireStatus(t, rec, http.StatusOK)
	stored := decodeAs[ShiftDTO](t, rec)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, "08:00", stored.StartTime)

	// a same-status edit of a cancelled shift is refused as well
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s2", "date": "2025-03-04", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts/s2/status", `{"status": "cancelled"}`), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s2", "date": "2025-03-04", "start_time": "08:00", "end_time": "11:00", "employee_id": "emp-1"}`), http.StatusConflict)
}

func TestShifts_BreakRuleAndOverrideOnEdit(t *testing.T) {
	h, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)

	// 7h span with 20 min break: too short
	rec := do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-05", "start_time": "08:00", "end_time": "15:20", "break_minutes": 20, "employee_id": "emp-1"}`)
	requireStatus(t, rec, http.StatusCreated)
	assert.False(t, decodeAs[ShiftDTO](t, rec).Flags.BreakOK)

	rec = do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "s1", "date": "2025-03-05", "start_time": "08:00", "end_time": "15:30", "break_minutes": 30, "employee_id": "emp-1"}`)
	requireStatus(t, rec, http.StatusOK)
	assert.True(t, decodeAs[ShiftDTO](t, rec).Flags.BreakOK)

	// editing a generated shift marks it as an override
	created := decodeAs[GenerateResponse](t, do(t, router, http.MethodPost, "/api/recurring-shifts", tuesdayRuleJSON))
	gen := created.Created[0]
	body := `{"id": "` + gen.ID + `", "date": "` + gen.Date + `", "start_time": "09:00", "end_time": "12:00", "employee_id": "emp-1"}`
	rec = do(t, router, http.MethodPost, "/api/shifts", body)
	requireStatus(t, rec, http.StatusOK)
	edited := decodeAs[ShiftDTO](t, rec)
	assert.True(t, edited.IsOverride)
	assert.Equal(t, "rule-tue", edited.RuleID)

	stored, err := h.Store.GetShift(t.Context(), core.ShiftID(gen.ID))
	require.NoError(t, err)
	assert.True(t, stored.IsProtected())
}

func TestCompliance_Sweep(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "a", "date": "2025-04-20", "start_time": "08:00", "end_time": "12:00", "employee_id": "emp-1"}`), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/shifts",
		`{"id": "b", "date": "2025-04-22", "start_time": "08:00", "end_time": "16:00", "employee_id": "emp-1"}`), http.StatusCreated)

	rec := do(t, router, http.MethodPost, "/api/compliance/sweep", `{"start_date": "2025-04-01", "end_date": "2025-04-30"}`)
	requireStatus(t, rec, http.StatusOK)
	result := decodeAs[SweepResponse](t, rec)

	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Violations, "8h without break")
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Flags.IsSunday, "Easter Sunday 2025")
	assert.True(t, result.Results[0].Flags.IsHoliday)
	assert.Equal(t, "Ostersonntag", result.Results[0].Flags.HolidayName)
}

// =============================================================================
// PAYROLL
// =============================================================================

// seedConfirmedShifts creates n confirmed 08:00-13:00 shifts on consecutive
// March 2025 weekdays starting Monday the 3rd.
func seedConfirmedShifts(t *testing.T, h *Handler, employeeID core.EmployeeID, n int) {
	t.Helper()
	shifts := make([]core.Shift, n)
	for i := range shifts {
		shifts[i] = core.Shift{
			ID:         core.ShiftID(string(employeeID) + "-" + core.MustDate("2025-03-03").AddDays(i).String()),
			Date:       core.MustDate("2025-03-03").AddDays(i),
			Start:      core.MustClock("08:00"),
			End:        core.MustClock("13:00"),
			EmployeeID: employeeID,
			Status:     core.ShiftConfirmed,
			Flags:      core.DefaultFlags(),
		}
	}
	require.NoError(t, h.Store.SaveShifts(t.Context(), shifts))
}

func TestPayroll_CalculateAndWorkflow(t *testing.T) {
	h, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	seedConfirmedShifts(t, h, "emp-1", 5)

	rec := do(t, router, http.MethodPost, "/api/payroll/calculate", `{"employee_id": "emp-1", "month": "2025-03"}`)
	requireStatus(t, rec, http.StatusOK)
	entry := decodeAs[PayrollEntryDTO](t, rec)
	assertDec(t, "25", entry.ActualHours)
	assertDec(t, "25", entry.PaidHours)
	assertDec(t, "250", entry.TotalGross)
	assert.Equal(t, "draft", entry.Status)
	assert.Equal(t, testNow.Format(time.RFC3339), entry.CalculatedAt)

	// recalculating a draft keeps its ID
	again := decodeAs[PayrollEntryDTO](t, do(t, router, http.MethodPost, "/api/payroll/calculate", `{"employee_id": "emp-1", "month": "2025-03"}`))
	assert.Equal(t, entry.ID, again.ID)

	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/pay", ""), http.StatusConflict)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/approve", ""), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/calculate", `{"employee_id": "emp-1", "month": "2025-03"}`), http.StatusConflict)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/reset", ""), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/approve", ""), http.StatusOK)

	rec = do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/pay", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "paid", decodeAs[PayrollEntryDTO](t, rec).Status)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/"+entry.ID+"/reset", ""), http.StatusConflict)

	rec = do(t, router, http.MethodGet, "/api/employees/emp-1/payroll?year=2025", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decodeAs[[]PayrollEntryDTO](t, rec), 1)

	requireStatus(t, do(t, router, http.MethodGet, "/api/payroll/nope", ""), http.StatusNotFound)
}

func TestPayroll_Errors(t *testing.T) {
	_, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees",
		`{"id": "no-rate", "name": "No Rate", "contract_type": "minijob"}`), http.StatusCreated)

	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/calculate",
		`{"employee_id": "no-rate", "month": "2025-03"}`), http.StatusUnprocessableEntity)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/calculate",
		`{"employee_id": "ghost", "month": "2025-03"}`), http.StatusNotFound)
	requireStatus(t, do(t, router, http.MethodPost, "/api/payroll/calculate",
		`{"employee_id": "no-rate", "month": "March"}`), http.StatusBadRequest)
}

func TestPayroll_CalculateAllReportsFailuresNextToEntries(t *testing.T) {
	h, router := setupTestServer(t)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees", carerJSON), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/employees",
		`{"id": "emp-2", "name": "No Rate", "contract_type": "minijob"}`), http.StatusCreated)
	seedConfirmedShifts(t, h, "emp-1", 2)

	rec := do(t, router, http.MethodPost, "/api/payroll/calculate-all", `{"month": "2025-03"}`)
	requireStatus(t, rec, http.StatusOK)
	batch := decodeAs[BatchResponse](t, rec)

	require.Len(t, batch.Entries, 1)
	assert.Equal(t, "emp-1", batch.Entries[0].EmployeeID)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "emp-2", batch.Failures[0].EmployeeID)

	// a second run with skip_existing leaves emp-1 alone
	batch = decodeAs[BatchResponse](t, do(t, router, http.MethodPost, "/api/payroll/calculate-all", `{"month": "2025-03", "skip_existing": true}`))
	assert.Equal(t, []string{"emp-1"}, batch.Skipped)
	assert.Empty(t, batch.Entries)
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicy_Get(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodGet, "/api/policy", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"night_start":"23:00"`)
}
