/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	caregiving data. Each scenario creates employees, a holiday profile and
	recurring rules, generates shifts, confirms them, runs compliance and
	calculates payroll, so every screen has something to show.

AVAILABLE SCENARIOS:

	care-week:       Part-time carer, weekday mornings around Pentecost
	night-carryover: Monthly hour limit with overnight shifts carried forward
	minijob-limit:   Minijob carer whose June gross breaks the monthly limit
	rest-violation:  Late shift followed by an early shift, and a long shift
	                 without a break

HOW SCENARIOS WORK:
 1. Refuse to load when a scenario employee already exists
 2. Save the holiday profile and employees
 3. Create recurring rules (shifts are generated with the rule)
 4. Confirm or complete the generated shifts
 5. Run a compliance sweep and calculate payroll

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "night-carryover"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: Services used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/core"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "care-week",
		Name:        "Care Week",
		Description: "Part-time carer on Mon/Wed/Fri mornings in June 2025, Whit Monday skipped",
		Category:    "generation",
	},
	{
		ID:          "night-carryover",
		Name:        "Night Shifts with Carryover",
		Description: "20h monthly limit, overnight Saturday shifts, excess hours carried into June",
		Category:    "payroll",
	},
	{
		ID:          "minijob-limit",
		Name:        "Minijob Limit",
		Description: "Minijob carer whose June gross exceeds the monthly limit",
		Category:    "compliance",
	},
	{
		ID:          "rest-violation",
		Name:        "Rest Period Violation",
		Description: "Late shift followed by an early shift, plus a 7h shift without break",
		Category:    "compliance",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "care-week":
		err = h.loadCareWeekScenario(ctx)
	case "night-carryover":
		err = h.loadNightCarryoverScenario(ctx)
	case "minijob-limit":
		err = h.loadMinijobLimitScenario(ctx)
	case "rest-violation":
		err = h.loadRestViolationScenario(ctx)
	default:
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q does not exist", req.ScenarioID))
		return
	}
	if err != nil {
		writeServiceError(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO: care-week
// =============================================================================

func (h *Handler) loadCareWeekScenario(ctx context.Context) error {
	emp := core.Employee{
		ID:           "scn-anna",
		Name:         "Anna Becker",
		ContractType: core.ContractPartTime,
		HourlyRate:   decPtr("14.50"),
		VacationDays: 28,
		Active:       true,
	}
	if err := h.seedEmployees(ctx, emp); err != nil {
		return err
	}
	if err := h.Store.SaveProfile(ctx, bw2025Profile()); err != nil {
		return err
	}

	june := core.NewMonth(2025, 6)
	var created []core.Shift
	for _, day := range []core.Weekday{core.Monday, core.Wednesday, core.Friday} {
		shifts, err := h.seedRule(ctx, core.RecurringShiftRule{
			ID:                 core.RuleID(fmt.Sprintf("scn-anna-%d", day)),
			Weekday:            day,
			Start:              core.MustClock("07:00"),
			End:                core.MustClock("13:00"),
			BreakMinutes:       30,
			EmployeeID:         emp.ID,
			ValidFrom:          june.Start(),
			ValidUntil:         june.End(),
			SkipPublicHolidays: true,
			Label:              "Morgenpflege",
		})
		if err != nil {
			return err
		}
		created = append(created, shifts...)
	}

	if err := h.setStatus(ctx, created, core.ShiftCompleted); err != nil {
		return err
	}
	return h.settle(ctx, june, emp.ID)
}

// =============================================================================
// SCENARIO: night-carryover
// =============================================================================

func (h *Handler) loadNightCarryoverScenario(ctx context.Context) error {
	emp := core.Employee{
		ID:                "scn-jonas",
		Name:              "Jonas Wagner",
		ContractType:      core.ContractPartTime,
		HourlyRate:        decPtr("15.00"),
		MonthlyHoursLimit: decPtr("20"),
		Active:            true,
	}
	if err := h.seedEmployees(ctx, emp); err != nil {
		return err
	}

	may, june := core.NewMonth(2025, 5), core.NewMonth(2025, 6)
	shifts, err := h.seedRule(ctx, core.RecurringShiftRule{
		ID:           "scn-jonas-sat",
		Weekday:      core.Saturday,
		Start:        core.MustClock("22:00"),
		End:          core.MustClock("06:00"),
		BreakMinutes: 30,
		EmployeeID:   emp.ID,
		ValidFrom:    may.Start(),
		ValidUntil:   june.End(),
		Label:        "Nachtwache",
	})
	if err != nil {
		return err
	}

	if err := h.setStatus(ctx, shifts, core.ShiftConfirmed); err != nil {
		return err
	}
	// May must be stored before June reads its carryover
	if err := h.settle(ctx, may, emp.ID); err != nil {
		return err
	}
	return h.settle(ctx, june, emp.ID)
}

// =============================================================================
// SCENARIO: minijob-limit
// =============================================================================

func (h *Handler) loadMinijobLimitScenario(ctx context.Context) error {
	emp := core.Employee{
		ID:           "scn-lena",
		Name:         "Lena Schulz",
		ContractType: core.ContractMinijob,
		HourlyRate:   decPtr("13.00"),
		Active:       true,
	}
	if err := h.seedEmployees(ctx, emp); err != nil {
		return err
	}

	june := core.NewMonth(2025, 6)
	var created []core.Shift
	for _, day := range []core.Weekday{core.Tuesday, core.Thursday} {
		shifts, err := h.seedRule(ctx, core.RecurringShiftRule{
			ID:           core.RuleID(fmt.Sprintf("scn-lena-%d", day)),
			Weekday:      day,
			Start:        core.MustClock("14:00"),
			End:          core.MustClock("20:00"),
			BreakMinutes: 0,
			EmployeeID:   emp.ID,
			ValidFrom:    june.Start(),
			ValidUntil:   june.End(),
			Label:        "Betreuung Nachmittag",
		})
		if err != nil {
			return err
		}
		created = append(created, shifts...)
	}

	if err := h.setStatus(ctx, created, core.ShiftConfirmed); err != nil {
		return err
	}
	return h.settle(ctx, june, emp.ID)
}

// =============================================================================
// SCENARIO: rest-violation
// =============================================================================

func (h *Handler) loadRestViolationScenario(ctx context.Context) error {
	emp := core.Employee{
		ID:           "scn-mehmet",
		Name:         "Mehmet Yilmaz",
		ContractType: core.ContractFullTime,
		HourlyRate:   decPtr("16.20"),
		Active:       true,
	}
	if err := h.seedEmployees(ctx, emp); err != nil {
		return err
	}

	shifts := []core.Shift{
		{
			ID: "scn-mehmet-late", Date: core.MustDate("2025-06-02"),
			Start: core.MustClock("14:00"), End: core.MustClock("22:00"), BreakMinutes: 30,
		},
		{
			ID: "scn-mehmet-early", Date: core.MustDate("2025-06-03"),
			Start: core.MustClock("06:00"), End: core.MustClock("14:00"), BreakMinutes: 30,
		},
		{
			ID: "scn-mehmet-long", Date: core.MustDate("2025-06-05"),
			Start: core.MustClock("08:00"), End: core.MustClock("15:00"), BreakMinutes: 0,
		},
	}
	for i := range shifts {
		shifts[i].EmployeeID = emp.ID
		shifts[i].Status = core.ShiftConfirmed
		shifts[i].Flags = core.DefaultFlags()
	}
	if err := h.Store.SaveShifts(ctx, shifts); err != nil {
		return err
	}
	return h.settle(ctx, core.NewMonth(2025, 6), emp.ID)
}

// =============================================================================
// HELPERS
// =============================================================================

// seedEmployees refuses to load over an earlier run of the same scenario.
func (h *Handler) seedEmployees(ctx context.Context, employees ...core.Employee) error {
	for _, e := range employees {
		_, err := h.Store.GetEmployee(ctx, e.ID)
		switch {
		case err == nil:
			return &core.ConflictError{Resource: "employee", Key: string(e.ID), Reason: "scenario already loaded"}
		case !core.IsNotFound(err):
			return err
		}
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedRule(ctx context.Context, rule core.RecurringShiftRule) ([]core.Shift, error) {
	_, result, err := h.Generator.Create(ctx, rule, rule.Validity())
	if err != nil {
		return nil, err
	}
	return result.Created, nil
}

// setStatus walks each shift forward to status through the lifecycle.
func (h *Handler) setStatus(ctx context.Context, shifts []core.Shift, status core.ShiftStatus) error {
	out := make([]core.Shift, len(shifts))
	for i, s := range shifts {
		if s.Status == core.ShiftPlanned && status == core.ShiftCompleted {
			s.Status = core.ShiftConfirmed
		}
		if s.Status != status && !s.Status.CanTransitionTo(status) {
			return fmt.Errorf("shift %s: cannot move from %s to %s", s.ID, s.Status, status)
		}
		s.Status = status
		out[i] = s
	}
	return h.Store.SaveShifts(ctx, out)
}

// settle runs compliance over the month and then payroll for the employee.
func (h *Handler) settle(ctx context.Context, month core.Month, employeeID core.EmployeeID) error {
	if _, err := h.Compliance.Sweep(ctx, month.Period()); err != nil {
		return err
	}
	_, err := h.Payroll.Calculate(ctx, employeeID, month)
	return err
}

func bw2025Profile() core.HolidayProfile {
	return core.HolidayProfile{
		ID:     "scn-bw-2025",
		Name:   "Baden-Württemberg 2025",
		Region: "BW",
		Active: true,
		VacationPeriods: []core.VacationPeriod{
			{Name: "Pfingstferien", Start: core.MustDate("2025-06-10"), End: core.MustDate("2025-06-20"), Color: "#f4a261"},
		},
		CustomHolidays: []core.CustomHoliday{
			{Name: "Betriebsausflug", Date: core.MustDate("2025-06-27"), Color: "#2a9d8f"},
		},
	}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
