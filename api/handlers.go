/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes shift generation, compliance and payroll via REST. Handles HTTP
  request/response, JSON serialization and validation, and delegates to the
  recurrence, compliance and payroll services.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List employees (?active=true)
    POST   /api/employees                      Create or replace an employee
    GET    /api/employees/{id}                 Get employee
    GET    /api/employees/{id}/carryover       Carryover balance (?month=) and history
    GET    /api/employees/{id}/payroll         Payroll entries (?year=)

  Calendar:
    GET    /api/holidays                       Statutory holidays (?region=&year=)
    GET    /api/holiday-profiles               List profiles
    POST   /api/holiday-profiles               Create or replace a profile
    GET    /api/holiday-profiles/{id}          Get profile

  Recurring shifts:
    GET    /api/recurring-shifts               List rules (?active=true)
    POST   /api/recurring-shifts               Create a rule and generate its shifts
    POST   /api/recurring-shifts/preview       Count what generation would do
    GET    /api/recurring-shifts/{id}          Get rule
    POST   /api/recurring-shifts/{id}/generate Generate over a window
    POST   /api/recurring-shifts/{id}/update-from  Change the rule from a date on
    DELETE /api/recurring-shifts/{id}          Deactivate and drop planned shifts

  Shifts and compliance:
    GET    /api/shifts                         List (?employee_id=&recurring_shift_id=&start=&end=&status=)
    POST   /api/shifts                         Create or edit a shift
    GET    /api/shifts/{id}                    Get shift
    POST   /api/shifts/{id}/status             Move through the shift lifecycle
    POST   /api/shifts/{id}/compliance         Re-evaluate one shift
    POST   /api/compliance/sweep               Re-evaluate a date window

  Payroll:
    POST   /api/payroll/calculate              One employee and month
    POST   /api/payroll/calculate-all          All active employees for a month
    GET    /api/payroll/{id}                   Get entry
    POST   /api/payroll/{id}/approve|pay|reset Status workflow

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (locked payroll entry, illegal status move, inactive rule)
  - 422: Payroll impossible (missing hourly rate)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/compliance"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/payroll"
	"github.com/warp/shift-engine/recurrence"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         core.Store
	Calendar      *calendar.Provider
	Policy        core.Policy
	PolicyFactory *factory.PolicyFactory
	Generator     *recurrence.Generator
	Compliance    *compliance.Service
	Payroll       *payroll.Service
	Ledger        *core.CarryoverLedger
	Logger        *slog.Logger

	Now   func() time.Time
	NewID func() string

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services around one store and policy. Payroll
// notifies compliance after each stored entry so minijob flags settle.
func NewHandler(store core.Store, cal *calendar.Provider, policy core.Policy, logger *slog.Logger) *Handler {
	comp := compliance.NewService(store, cal, policy.Compliance, logger)
	pay := payroll.NewService(store, cal, policy, logger)
	pay.Reconciler = comp

	return &Handler{
		Store:         store,
		Calendar:      cal,
		Policy:        policy,
		PolicyFactory: factory.NewPolicyFactory(),
		Generator:     recurrence.NewGenerator(store, cal, logger),
		Compliance:    comp,
		Payroll:       pay,
		Ledger:        core.NewCarryoverLedger(store, policy.Carryover),
		Logger:        logger,
		Now:           time.Now,
		NewID:         uuid.NewString,
		validate:      newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees, or only active ones with ?active=true.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	employees, err := h.Store.ListEmployees(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), core.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// SaveEmployee creates an employee, or replaces it when the ID exists.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeDTO
	if !h.decode(w, r, &req) {
		return
	}
	emp, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid employee", err)
		return
	}
	if emp.ID == "" {
		emp.ID = core.EmployeeID(h.NewID())
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeServiceError(w, r, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetCarryover returns the balance entering ?month (default: current month)
// and the full ledger history.
func (h *Handler) GetCarryover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID := core.EmployeeID(chi.URLParam(r, "id"))

	month := core.DateOf(h.Now()).MonthKey()
	if s := r.URL.Query().Get("month"); s != "" {
		m, err := parseMonthField("month", s)
		if err != nil {
			writeServiceError(w, r, "Invalid month", err)
			return
		}
		month = m
	}

	if _, err := h.Store.GetEmployee(ctx, employeeID); err != nil {
		writeServiceError(w, r, "Failed to get employee", err)
		return
	}
	balance, err := h.Ledger.Balance(ctx, employeeID, month)
	if err != nil {
		writeServiceError(w, r, "Failed to read carryover", err)
		return
	}
	history, err := h.Ledger.History(ctx, employeeID)
	if err != nil {
		writeServiceError(w, r, "Failed to read carryover", err)
		return
	}

	writeJSON(w, http.StatusOK, CarryoverResponse{
		EmployeeID: string(employeeID),
		Month:      month,
		Balance:    balance,
		History:    toCarryoverDTOs(history),
	})
}

// ListEmployeePayroll returns the employee's entries, optionally for ?year.
func (h *Handler) ListEmployeePayroll(w http.ResponseWriter, r *http.Request) {
	year := 0
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	entries, err := h.Store.ListPayrollEntries(r.Context(), core.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		writeServiceError(w, r, "Failed to list payroll entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTOs(entries))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns the statutory holidays of a region and year.
// GET /api/holidays?region=BW&year=2025
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		region = string(h.Calendar.DefaultRegion())
	}
	year := h.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	holidays, err := h.Calendar.Holidays(region, year)
	if err != nil {
		writeServiceError(w, r, "Failed to list holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}

// ListProfiles returns all holiday profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to list holiday profiles", err)
		return
	}
	dtos := make([]HolidayProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProfile returns one holiday profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProfile(r.Context(), core.ProfileID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get holiday profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// SaveProfile creates or replaces a holiday profile. Activating it
// deactivates every other profile.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req HolidayProfileDTO
	if !h.decode(w, r, &req) {
		return
	}
	p, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid holiday profile", err)
		return
	}
	if p.ID == "" {
		p.ID = core.ProfileID(h.NewID())
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeServiceError(w, r, "Failed to save holiday profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p))
}

// =============================================================================
// RECURRING SHIFT HANDLERS
// =============================================================================

// ListRules returns recurring rules, or only active ones with ?active=true.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	rules, err := h.Store.ListRules(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, "Failed to list recurring shifts", err)
		return
	}
	dtos := make([]RecurringRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns one recurring rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Store.GetRule(r.Context(), core.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get recurring shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// PreviewRule reports generated and skipped counts without writing.
// POST /api/recurring-shifts/preview
func (h *Handler) PreviewRule(w http.ResponseWriter, r *http.Request) {
	var req RecurringRuleDTO
	if !h.decode(w, r, &req) {
		return
	}
	rule, rng, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid recurring shift", err)
		return
	}

	preview, err := h.Generator.Preview(r.Context(), rule, rng)
	if err != nil {
		writeServiceError(w, r, "Failed to preview recurring shift", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// CreateRule stores a rule and generates its shifts over range_start..
// range_end (default: the validity window) in one transaction.
// POST /api/recurring-shifts
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RecurringRuleDTO
	if !h.decode(w, r, &req) {
		return
	}
	rule, rng, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid recurring shift", err)
		return
	}

	created, result, err := h.Generator.Create(r.Context(), rule, rng)
	if err != nil {
		writeServiceError(w, r, "Failed to create recurring shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, GenerateResponse{
		Rule:    toRuleDTO(created),
		Created: toShiftDTOs(result.Created),
		Skipped: nonNilSkipped(result.Skipped),
	})
}

// GenerateRule generates shifts of a stored rule over a window.
// POST /api/recurring-shifts/{id}/generate
func (h *Handler) GenerateRule(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	rng, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid range", err)
		return
	}

	rule, err := h.Store.GetRule(r.Context(), core.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get recurring shift", err)
		return
	}
	result, err := h.Generator.Generate(r.Context(), rule, rng)
	if err != nil {
		writeServiceError(w, r, "Failed to generate shifts", err)
		return
	}
	writeJSON(w, http.StatusCreated, GenerateResponse{
		Rule:    toRuleDTO(rule),
		Created: toShiftDTOs(result.Created),
		Skipped: nonNilSkipped(result.Skipped),
	})
}

// UpdateRuleFrom applies a "from this date on" change.
// POST /api/recurring-shifts/{id}/update-from
func (h *Handler) UpdateRuleFrom(w http.ResponseWriter, r *http.Request) {
	var req UpdateFromRequest
	if !h.decode(w, r, &req) {
		return
	}
	from, overrides, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid update", err)
		return
	}

	result, err := h.Generator.UpdateFrom(r.Context(), core.RuleID(chi.URLParam(r, "id")), from, overrides)
	if err != nil {
		writeServiceError(w, r, "Failed to update recurring shift", err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateFromResponse{
		Rule:      toRuleDTO(result.Rule),
		Deleted:   result.Deleted,
		Generated: toShiftDTOs(result.Generated),
		Skipped:   nonNilSkipped(result.Skipped),
	})
}

// DeactivateRule soft-deletes a rule and removes its planned shifts.
// DELETE /api/recurring-shifts/{id}
func (h *Handler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Generator.Deactivate(r.Context(), core.RuleID(id))
	if err != nil {
		writeServiceError(w, r, "Failed to deactivate recurring shift", err)
		return
	}
	writeJSON(w, http.StatusOK, DeactivateResponse{RuleID: id, Deleted: deleted})
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// ListShifts returns shifts matching the query filters. start and end must
// be given together.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ShiftFilter{
		EmployeeID: core.EmployeeID(q.Get("employee_id")),
		RuleID:     core.RuleID(q.Get("recurring_shift_id")),
	}

	if q.Get("start") != "" || q.Get("end") != "" {
		rng, err := RangeRequest{Start: q.Get("start"), End: q.Get("end")}.toCore()
		if err != nil {
			writeServiceError(w, r, "Invalid range", err)
			return
		}
		filter.Period = &rng
	}
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st, err := core.ParseShiftStatus(strings.TrimSpace(part))
			if err != nil {
				writeServiceError(w, r, "Invalid status", err)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	shifts, err := h.Store.ListShifts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// GetShift returns one shift.
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Store.GetShift(r.Context(), core.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// SaveShift creates a one-off shift or edits an existing one, then
// evaluates its compliance flags and those of the employee's next shift.
// Editing a generated shift marks it as an override so later regeneration
// leaves it alone. Completed and cancelled shifts cannot be edited, and a
// status change on edit follows the same lifecycle as UpdateShiftStatus.
func (h *Handler) SaveShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ShiftDTO
	if !h.decode(w, r, &req) {
		return
	}
	shift, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid shift", err)
		return
	}

	status := http.StatusCreated
	var previous *core.Shift
	err = h.Store.WithTx(ctx, func(tx core.Store) error {
		if shift.ID == "" {
			shift.ID = core.ShiftID(h.NewID())
		} else {
			existing, err := tx.GetShift(ctx, shift.ID)
			switch {
			case err == nil:
				if err := checkShiftEdit(existing, req.Status, shift.Status); err != nil {
					return err
				}
				status = http.StatusOK
				previous = &existing
				shift.RuleID = existing.RuleID
				shift.IsOverride = existing.IsOverride || existing.RuleID != ""
				if req.Status == "" {
					shift.Status = existing.Status
				}
			case !errors.Is(err, core.ErrShiftNotFound):
				return err
			}
		}
		if shift.EmployeeID != "" {
			if _, err := tx.GetEmployee(ctx, shift.EmployeeID); err != nil {
				return err
			}
		}
		if err := shift.Validate(); err != nil {
			return err
		}
		return tx.SaveShifts(ctx, []core.Shift{shift})
	})
	if err != nil {
		writeServiceError(w, r, "Failed to save shift", err)
		return
	}

	evaluated, err := h.Compliance.EvaluateShift(ctx, shift.ID)
	if err != nil {
		writeServiceError(w, r, "Failed to evaluate shift", err)
		return
	}
	changed := []core.Shift{evaluated}
	if previous != nil {
		changed = append(changed, *previous)
	}
	if _, err := h.Compliance.EvaluateNeighbours(ctx, changed...); err != nil {
		writeServiceError(w, r, "Failed to evaluate following shift", err)
		return
	}
	writeJSON(w, status, toShiftDTO(evaluated))
}

// checkShiftEdit refuses edits to terminal shifts and status changes the
// lifecycle does not allow. requested is empty when the edit keeps the
// stored status.
func checkShiftEdit(existing core.Shift, requested string, next core.ShiftStatus) error {
	if existing.Status.IsTerminal() {
		return &core.ConflictError{
			Resource: "shift",
			Key:      string(existing.ID),
			Reason:   fmt.Sprintf("shift is %s and can no longer be edited", existing.Status),
			Err:      core.ErrInvalidTransition,
		}
	}
	if requested == "" || next == existing.Status || existing.Status.CanTransitionTo(next) {
		return nil
	}
	return &core.ConflictError{
		Resource: "shift",
		Key:      string(existing.ID),
		Reason:   fmt.Sprintf("cannot move from %s to %s", existing.Status, next),
		Err:      core.ErrInvalidTransition,
	}
}

// UpdateShiftStatus moves a shift along planned -> confirmed -> completed or
// into one of the cancelled states.
// POST /api/shifts/{id}/status
func (h *Handler) UpdateShiftStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ShiftStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	next, err := core.ParseShiftStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, "Invalid status", err)
		return
	}

	id := core.ShiftID(chi.URLParam(r, "id"))
	var out core.Shift
	err = h.Store.WithTx(ctx, func(tx core.Store) error {
		shift, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if !shift.Status.CanTransitionTo(next) {
			return &core.ConflictError{
				Resource: "shift",
				Key:      string(id),
				Reason:   fmt.Sprintf("cannot move from %s to %s", shift.Status, next),
				Err:      core.ErrInvalidTransition,
			}
		}
		if shift.IsOpen() && next != core.ShiftCancelled {
			return &core.ValidationError{Field: "employee_id", Reason: "assign the shift before confirming it"}
		}
		shift.Status = next
		out = shift
		return tx.SaveShifts(ctx, []core.Shift{shift})
	})
	if err != nil {
		writeServiceError(w, r, "Failed to update shift status", err)
		return
	}
	// a cancelled shift no longer counts as the next shift's prior
	if _, err := h.Compliance.EvaluateNeighbours(ctx, out); err != nil {
		writeServiceError(w, r, "Failed to evaluate following shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(out))
}

// =============================================================================
// COMPLIANCE HANDLERS
// =============================================================================

// EvaluateShift recomputes and stores one shift's compliance flags.
// POST /api/shifts/{id}/compliance
func (h *Handler) EvaluateShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Compliance.EvaluateShift(r.Context(), core.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to evaluate shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// SweepCompliance re-evaluates every shift in a window.
// POST /api/compliance/sweep
func (h *Handler) SweepCompliance(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	rng, err := req.toCore()
	if err != nil {
		writeServiceError(w, r, "Invalid range", err)
		return
	}

	result, err := h.Compliance.Sweep(r.Context(), rng)
	if err != nil {
		writeServiceError(w, r, "Failed to run compliance sweep", err)
		return
	}
	resp := SweepResponse{Checked: result.Checked, Violations: result.Violations, Results: make([]ShiftResultDTO, len(result.Results))}
	for i, res := range result.Results {
		resp.Results[i] = ShiftResultDTO{
			ShiftID:    string(res.ShiftID),
			Date:       res.Date.String(),
			EmployeeID: string(res.EmployeeID),
			Flags:      toFlagsDTO(res.Flags),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CalculatePayroll computes and stores one employee's draft entry.
// POST /api/payroll/calculate
func (h *Handler) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	var req CalculatePayrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	month, err := parseMonthField("month", req.Month)
	if err != nil {
		writeServiceError(w, r, "Invalid month", err)
		return
	}

	entry, err := h.Payroll.Calculate(r.Context(), core.EmployeeID(req.EmployeeID), month)
	if err != nil {
		writeServiceError(w, r, "Failed to calculate payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(entry))
}

// CalculateAllPayroll runs payroll for every active employee. Per-employee
// failures are reported in the body; the request itself succeeds.
// POST /api/payroll/calculate-all
func (h *Handler) CalculateAllPayroll(w http.ResponseWriter, r *http.Request) {
	var req CalculateAllRequest
	if !h.decode(w, r, &req) {
		return
	}
	month, err := parseMonthField("month", req.Month)
	if err != nil {
		writeServiceError(w, r, "Invalid month", err)
		return
	}

	result, err := h.Payroll.CalculateAll(r.Context(), month, payroll.BatchOptions{SkipExisting: req.SkipExisting})
	var agg *core.AggregateError
	if err != nil && !errors.As(err, &agg) {
		writeServiceError(w, r, "Failed to calculate payroll", err)
		return
	}

	resp := BatchResponse{
		Month:    month,
		Entries:  toPayrollDTOs(result.Entries),
		Skipped:  make([]string, len(result.Skipped)),
		Failures: []FailureDTO{},
	}
	for i, id := range result.Skipped {
		resp.Skipped[i] = string(id)
	}
	if agg != nil {
		for _, f := range agg.Failures {
			resp.Failures = append(resp.Failures, FailureDTO{EmployeeID: string(f.EmployeeID), Error: f.Err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPayrollEntry returns one entry by ID.
func (h *Handler) GetPayrollEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Store.GetPayrollEntryByID(r.Context(), core.PayrollEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to get payroll entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(entry))
}

// ApprovePayroll moves a draft entry to approved.
func (h *Handler) ApprovePayroll(w http.ResponseWriter, r *http.Request) {
	h.transitionPayroll(w, r, h.Payroll.Approve)
}

// PayPayroll moves an approved entry to paid.
func (h *Handler) PayPayroll(w http.ResponseWriter, r *http.Request) {
	h.transitionPayroll(w, r, h.Payroll.MarkPaid)
}

// ResetPayroll moves an approved entry back to draft.
func (h *Handler) ResetPayroll(w http.ResponseWriter, r *http.Request) {
	h.transitionPayroll(w, r, h.Payroll.ResetToDraft)
}

func (h *Handler) transitionPayroll(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error)) {
	entry, err := move(r.Context(), core.PayrollEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, r, "Failed to update payroll status", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(entry))
}

// =============================================================================
// POLICY
// =============================================================================

// GetPolicy returns the policy the server runs with.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PolicyDTO{Config: h.PolicyFactory.ToJSON(h.Policy)})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads the JSON body into dst and validates its tags. It writes the
// 400 response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors to status codes. Unexpected errors
// are logged with the request logger and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, core.ErrMissingHourlyRate):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Fields:  map[string]string{ve.Field: ve.Reason},
		})
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case core.IsConflict(err), errors.Is(err, core.ErrDuplicateCarryover):
		writeError(w, http.StatusConflict, message, err)
	default:
		logging.Service(r.Context(), nil, "api", r.Method+" "+r.URL.Path).
			Error(message, "error", err, "kind", logging.ErrorKind(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = validationMessage(fe)
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match the format " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	default:
		return "is invalid"
	}
}

func nonNilSkipped(s []recurrence.SkippedDate) []recurrence.SkippedDate {
	if s == nil {
		return []recurrence.SkippedDate{}
	}
	return s
}
