package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
)

// PriorLookbackDays bounds the search for the previous shift. A shift ending
// further back cannot violate any realistic minimum rest period.
const PriorLookbackDays = 7

// Service loads inputs from the store, evaluates and persists flags.
type Service struct {
	Store     core.Store
	Calendar  calendar.Classifier
	Validator *Validator
	Logger    *slog.Logger
}

func NewService(store core.Store, cal calendar.Classifier, policy core.CompliancePolicy, logger *slog.Logger) *Service {
	return &Service{Store: store, Calendar: cal, Validator: NewValidator(policy), Logger: logger}
}

// EvaluateShift recomputes and stores the flags of one shift.
func (s *Service) EvaluateShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	var out core.Shift
	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		shift, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		profile, err := tx.ActiveProfile(ctx)
		if err != nil {
			return err
		}
		shift.Flags, err = s.evaluate(ctx, tx, shift, profile)
		if err != nil {
			return err
		}
		out = shift
		return tx.SaveShifts(ctx, []core.Shift{shift})
	})
	if err != nil {
		return core.Shift{}, err
	}

	if out.Flags.HasViolations() {
		logging.Service(ctx, s.Logger, "compliance", "evaluate", "shift_id", id).
			Warn("shift has violations", "violations", out.Flags.Violations)
	}
	return out, nil
}

// EvaluateNeighbours re-evaluates the shifts whose rest period depends on the
// given ones: for each, the employee's next non-cancelled shift on a later
// day within PriorLookbackDays. Pass both the old and the new version of an
// edited shift so a shift that lost its prior is refreshed too. The given
// shifts themselves are left alone.
func (s *Service) EvaluateNeighbours(ctx context.Context, shifts ...core.Shift) ([]core.Shift, error) {
	var out []core.Shift
	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		profile, err := tx.ActiveProfile(ctx)
		if err != nil {
			return err
		}
		seen := make(map[core.ShiftID]bool, len(shifts))
		for _, sh := range shifts {
			seen[sh.ID] = true
		}
		for _, sh := range shifts {
			if sh.IsOpen() {
				continue
			}
			next, err := nextShift(ctx, tx, sh)
			if err != nil {
				return err
			}
			if next == nil || seen[next.ID] {
				continue
			}
			seen[next.ID] = true
			if next.Flags, err = s.evaluate(ctx, tx, *next, profile); err != nil {
				return fmt.Errorf("shift %s: %w", next.ID, err)
			}
			out = append(out, *next)
		}
		if len(out) == 0 {
			return nil
		}
		return tx.SaveShifts(ctx, out)
	})
	if err != nil {
		return nil, err
	}

	for _, sh := range out {
		if sh.Flags.HasViolations() {
			logging.Service(ctx, s.Logger, "compliance", "evaluate_neighbours", "shift_id", sh.ID).
				Warn("shift has violations", "violations", sh.Flags.Violations)
		}
	}
	return out, nil
}

// ShiftResult is one evaluated shift of a sweep.
type ShiftResult struct {
	ShiftID    core.ShiftID         `json:"shift_id"`
	Date       core.Date            `json:"date"`
	EmployeeID core.EmployeeID      `json:"employee_id,omitempty"`
	Flags      core.ComplianceFlags `json:"flags"`
}

type SweepResult struct {
	Checked    int           `json:"checked"`
	Violations int           `json:"violations"`
	Results    []ShiftResult `json:"results"`
}

// Sweep re-evaluates every non-cancelled shift in rng and stores the flags.
func (s *Service) Sweep(ctx context.Context, rng core.Period) (SweepResult, error) {
	if err := rng.Validate(); err != nil {
		return SweepResult{}, err
	}
	log := logging.Service(ctx, s.Logger, "compliance", "sweep", "period", rng.String())

	result := SweepResult{Results: []ShiftResult{}}
	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		shifts, err := tx.ListShifts(ctx, core.ShiftFilter{Period: &rng})
		if err != nil {
			return err
		}
		updated, err := s.evaluateAll(ctx, tx, shifts)
		if err != nil {
			return err
		}
		for _, sh := range updated {
			result.Checked++
			if sh.Flags.HasViolations() {
				result.Violations++
			}
			result.Results = append(result.Results, ShiftResult{
				ShiftID: sh.ID, Date: sh.Date, EmployeeID: sh.EmployeeID, Flags: sh.Flags,
			})
		}
		return tx.SaveShifts(ctx, updated)
	})
	if err != nil {
		log.Error("sweep failed", "error", err, "kind", logging.ErrorKind(err))
		return SweepResult{}, err
	}

	log.Info("sweep finished", "checked", result.Checked, "violations", result.Violations)
	return result, nil
}

// Reconcile re-evaluates a minijob employee's shifts of the entry's month now
// that the month gross is known, replacing provisional minijob flags.
// Returns the number of shifts re-evaluated.
func (s *Service) Reconcile(ctx context.Context, entry core.PayrollEntry) (int, error) {
	emp, err := s.Store.GetEmployee(ctx, entry.EmployeeID)
	if err != nil {
		return 0, err
	}
	if emp.EffectiveTerms(entry.Month).ContractType != core.ContractMinijob {
		return 0, nil
	}

	count := 0
	err = s.Store.WithTx(ctx, func(tx core.Store) error {
		period := entry.Month.Period()
		shifts, err := tx.ListShifts(ctx, core.ShiftFilter{EmployeeID: entry.EmployeeID, Period: &period})
		if err != nil {
			return err
		}
		updated, err := s.evaluateAll(ctx, tx, shifts)
		if err != nil {
			return err
		}
		count = len(updated)
		return tx.SaveShifts(ctx, updated)
	})
	if err != nil {
		return 0, err
	}

	logging.Service(ctx, s.Logger, "compliance", "reconcile",
		"employee_id", entry.EmployeeID, "month", entry.Month.String()).
		Debug("minijob flags reconciled", "shifts", count)
	return count, nil
}

// =============================================================================
// INPUT LOADING
// =============================================================================

func (s *Service) evaluateAll(ctx context.Context, store core.Store, shifts []core.Shift) ([]core.Shift, error) {
	profile, err := store.ActiveProfile(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Shift
	for _, sh := range shifts {
		if sh.Status.IsCancelled() {
			continue
		}
		sh.Flags, err = s.evaluate(ctx, store, sh, profile)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", sh.ID, err)
		}
		out = append(out, sh)
	}
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, store core.Store, shift core.Shift, profile *core.HolidayProfile) (core.ComplianceFlags, error) {
	in := Input{Shift: shift, Day: s.Calendar.Classify(shift.Date, profile)}

	if !shift.IsOpen() {
		emp, err := store.GetEmployee(ctx, shift.EmployeeID)
		if err != nil {
			return core.ComplianceFlags{}, err
		}
		in.Employee = &emp

		if in.Prior, err = priorShift(ctx, store, shift); err != nil {
			return core.ComplianceFlags{}, err
		}
		if in.MonthGross, in.YearGross, err = grossFigures(ctx, store, shift.EmployeeID, shift.Date.MonthKey()); err != nil {
			return core.ComplianceFlags{}, err
		}
	}
	return s.Validator.Evaluate(in), nil
}

// priorShift returns the employee's latest non-cancelled shift on an earlier
// day, by end time.
func priorShift(ctx context.Context, store core.ShiftStore, shift core.Shift) (*core.Shift, error) {
	window := core.NewPeriod(shift.Date.AddDays(-PriorLookbackDays), shift.Date.AddDays(-1))
	candidates, err := store.ListShifts(ctx, core.ShiftFilter{EmployeeID: shift.EmployeeID, Period: &window})
	if err != nil {
		return nil, err
	}
	var prior *core.Shift
	for i := range candidates {
		c := &candidates[i]
		if c.ID == shift.ID || c.Status.IsCancelled() {
			continue
		}
		if prior == nil || prior.EndsAt().MinutesUntil(c.EndsAt()) > 0 {
			prior = c
		}
	}
	return prior, nil
}

// nextShift returns the employee's earliest non-cancelled shift on a later
// day, by start time. It is the shift whose prior may be the given one.
func nextShift(ctx context.Context, store core.ShiftStore, shift core.Shift) (*core.Shift, error) {
	window := core.NewPeriod(shift.Date.AddDays(1), shift.Date.AddDays(PriorLookbackDays))
	candidates, err := store.ListShifts(ctx, core.ShiftFilter{EmployeeID: shift.EmployeeID, Period: &window})
	if err != nil {
		return nil, err
	}
	var next *core.Shift
	for i := range candidates {
		c := &candidates[i]
		if c.ID == shift.ID || c.Status.IsCancelled() {
			continue
		}
		if next == nil || c.StartsAt().MinutesUntil(next.StartsAt()) > 0 {
			next = c
		}
	}
	return next, nil
}

// grossFigures reads the month gross (nil if not calculated) and the
// year-to-date gross up to and including the month.
func grossFigures(ctx context.Context, store core.PayrollStore, employeeID core.EmployeeID, m core.Month) (*decimal.Decimal, decimal.Decimal, error) {
	entries, err := store.ListPayrollEntries(ctx, employeeID, m.Year)
	if err != nil {
		return nil, decimal.Zero, err
	}
	var month *decimal.Decimal
	ytd := decimal.Zero
	for _, e := range entries {
		if m.Before(e.Month) {
			continue
		}
		ytd = ytd.Add(e.TotalGross)
		if e.Month == m {
			month = core.DecimalPtr(e.TotalGross)
		}
	}
	return month, ytd, nil
}
