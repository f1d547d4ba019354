/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Employees, rules and shifts are created
	- Compliance flags are computed
	- Payroll entries and carryover match the story the scenario tells

These tests double as end-to-end checks across recurrence, compliance and
payroll.
*/
package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/core"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	requireStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "`+id+`"}`), http.StatusOK)
}

func shiftsOf(t *testing.T, router http.Handler, employeeID string) []ShiftDTO {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/api/shifts?employee_id="+employeeID, "")
	requireStatus(t, rec, http.StatusOK)
	return decodeAs[[]ShiftDTO](t, rec)
}

func violationsContaining(shifts []ShiftDTO, substr string) int {
	n := 0
	for _, s := range shifts {
		if s.Flags == nil {
			continue
		}
		for _, v := range s.Flags.Violations {
			if strings.Contains(v, substr) {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// CATALOGUE
// =============================================================================

func TestScenarios_ListAndCurrent(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", "")
	requireStatus(t, rec, http.StatusOK)
	list := decodeAs[[]ScenarioDTO](t, rec)
	require.Len(t, list, 4)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	loadScenario(t, router, "minijob-limit")
	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "minijob-limit", decodeAs[ScenarioDTO](t, rec).ID)
}

func TestScenarios_UnknownAndDuplicate(t *testing.T) {
	_, router := setupTestServer(t)

	requireStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`), http.StatusNotFound)

	loadScenario(t, router, "rest-violation")
	requireStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "rest-violation"}`), http.StatusConflict)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_CareWeek(t *testing.T) {
	h, router := setupTestServer(t)
	loadScenario(t, router, "care-week")

	// Mondays lose Pfingstmontag, the Pfingstferien take 10-20 June and the
	// team outing takes the 27th.
	shifts := shiftsOf(t, router, "scn-anna")
	require.Len(t, shifts, 6)
	for _, s := range shifts {
		assert.Equal(t, "completed", s.Status, s.Date)
		assert.True(t, s.Flags.BreakOK, s.Date)
	}

	entry, err := h.Store.GetPayrollEntry(t.Context(), "scn-anna", core.NewMonth(2025, 6))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 6, entry.ShiftCount)
	assertDec(t, "33", entry.ActualHours)
	assertDec(t, "478.5", entry.BaseWage)
}

func TestScenario_NightCarryover(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "night-carryover")

	rec := do(t, router, http.MethodGet, "/api/employees/scn-jonas/payroll?year=2025", "")
	requireStatus(t, rec, http.StatusOK)
	entries := decodeAs[[]PayrollEntryDTO](t, rec)
	require.Len(t, entries, 2)

	var june PayrollEntryDTO
	for _, e := range entries {
		if e.Month.String() == "2025-06" {
			june = e
		}
	}
	require.NotEmpty(t, june.ID)
	assertDec(t, "20", june.PaidHours)
	assert.True(t, june.CarryoverHours.IsPositive(), "May overflow arrives in June")
	assert.True(t, june.NewCarryover.IsPositive())
	assert.True(t, june.SurchargeHours.Night.IsPositive())
	assert.True(t, june.SurchargeHours.Weekend.IsPositive())
	assert.True(t, june.SurchargeHours.Sunday.IsZero(), "shifts count on the day they start")

	rec = do(t, router, http.MethodGet, "/api/employees/scn-jonas/carryover?month=2025-07", "")
	requireStatus(t, rec, http.StatusOK)
	balance := decodeAs[CarryoverResponse](t, rec)
	assert.True(t, balance.Balance.Equal(june.NewCarryover))
	assert.Len(t, balance.History, 2)
}

func TestScenario_MinijobLimit(t *testing.T) {
	h, router := setupTestServer(t)
	loadScenario(t, router, "minijob-limit")

	entry, err := h.Store.GetPayrollEntry(t.Context(), "scn-lena", core.NewMonth(2025, 6))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.TotalGross.GreaterThan(h.Policy.Compliance.MinijobMonthlyLimit))

	shifts := shiftsOf(t, router, "scn-lena")
	require.NotEmpty(t, shifts)
	assert.Equal(t, len(shifts), violationsContaining(shifts, "minijob monthly limit exceeded"))
	for _, s := range shifts {
		assert.False(t, s.Flags.MinijobLimitOK, s.Date)
	}
}

func TestScenario_RestViolation(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "rest-violation")

	byID := map[string]ShiftDTO{}
	for _, s := range shiftsOf(t, router, "scn-mehmet") {
		byID[s.ID] = s
	}
	require.Len(t, byID, 3)

	assert.True(t, byID["scn-mehmet-late"].Flags.RestPeriodOK)
	assert.False(t, byID["scn-mehmet-early"].Flags.RestPeriodOK)
	assert.Equal(t, 1, violationsContaining([]ShiftDTO{byID["scn-mehmet-early"]}, "rest period too short"))
	assert.False(t, byID["scn-mehmet-long"].Flags.BreakOK)
	assert.Equal(t, 1, violationsContaining([]ShiftDTO{byID["scn-mehmet-long"]}, "break too short"))
}
