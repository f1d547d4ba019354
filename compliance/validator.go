/*
Package compliance checks shifts against German working-time and minijob rules.

PURPOSE:
  Computes the ComplianceFlags of a shift: rest period since the previous
  shift (ArbZG §5), mandatory breaks (ArbZG §4), the minijob earnings ceiling
  and the day flags (holiday, weekend, Sunday).

RESULTS ARE DATA:
  A violated rule never produces an error. It sets the matching *OK flag to
  false and adds a human-readable message to Violations; softer findings go
  to Warnings. Flags are computed wholesale from explicit inputs, so
  evaluating the same input twice yields the same flags.

MINIJOB AND PAYROLL:
  The monthly ceiling is measured against the month's payroll gross. Before
  payroll has run that number does not exist; the flag is then true and
  marked provisional. Service.Reconcile re-evaluates the month once payroll
  has produced the figure.

SEE ALSO:
  - service.go: Loading inputs, sweeps, reconciliation
  - core/policy.go: CompliancePolicy thresholds
*/
package compliance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
)

// Input is everything Evaluate looks at.
type Input struct {
	Shift core.Shift
	// Prior is the employee's latest non-cancelled shift before this one.
	Prior *core.Shift
	// Employee is nil for open shifts.
	Employee *core.Employee
	// MonthGross is the month's payroll gross, nil while not calculated.
	MonthGross *decimal.Decimal
	// YearGross is the year-to-date gross of calculated months.
	YearGross decimal.Decimal
	Day       calendar.Classification
}

// Validator evaluates single shifts. It is pure and safe for concurrent use.
type Validator struct {
	Policy core.CompliancePolicy
}

func NewValidator(policy core.CompliancePolicy) *Validator {
	return &Validator{Policy: policy}
}

// Evaluate computes fresh flags for in.Shift.
func (v *Validator) Evaluate(in Input) core.ComplianceFlags {
	flags := calendar.WithDayFlags(core.DefaultFlags(), in.Shift.Date, in.Day)
	flags.Warnings = []string{}
	flags.Violations = []string{}

	v.checkRest(in, &flags)
	v.checkBreak(in, &flags)
	if in.Employee != nil {
		v.checkMinijob(in, &flags)
	}
	if flags.IsHoliday {
		flags.Warnings = append(flags.Warnings, fmt.Sprintf("public holiday: %s", flags.HolidayName))
	}
	return flags
}

// =============================================================================
// REST PERIOD
// =============================================================================

func (v *Validator) checkRest(in Input, flags *core.ComplianceFlags) {
	if in.Prior == nil {
		return
	}
	gap := in.Prior.EndsAt().MinutesUntil(in.Shift.StartsAt())
	rest := core.MinutesToHours(gap).Round(2)
	flags.RestHours = &rest

	if rest.LessThan(v.Policy.MinRestHours) {
		flags.RestPeriodOK = false
		flags.Violations = append(flags.Violations, fmt.Sprintf(
			"rest period too short: %sh (minimum %sh)", rest.StringFixed(1), v.Policy.MinRestHours.String()))
	}
}

// =============================================================================
// BREAKS
// =============================================================================

func (v *Validator) checkBreak(in Input, flags *core.ComplianceFlags) {
	work := in.Shift.NetHours()
	required := v.Policy.RequiredBreak(work)
	if in.Shift.BreakMinutes >= required {
		return
	}
	flags.BreakOK = false
	flags.Violations = append(flags.Violations, fmt.Sprintf(
		"break too short: %d min for %sh of work (minimum %d min)",
		in.Shift.BreakMinutes, work.StringFixed(2), required))
}

// =============================================================================
// MINIJOB
// =============================================================================

func (v *Validator) checkMinijob(in Input, flags *core.ComplianceFlags) {
	terms := in.Employee.EffectiveTerms(in.Shift.Date.MonthKey())
	if terms.ContractType != core.ContractMinijob {
		return
	}

	if in.MonthGross == nil {
		flags.MinijobProvisional = true
	} else if in.MonthGross.GreaterThan(v.Policy.MinijobMonthlyLimit) {
		flags.MinijobLimitOK = false
		flags.Violations = append(flags.Violations, fmt.Sprintf(
			"minijob monthly limit exceeded: %s EUR (limit %s EUR)",
			in.MonthGross.StringFixed(2), v.Policy.MinijobMonthlyLimit.StringFixed(2)))
	}

	annual := v.Policy.MinijobAnnualLimit
	if terms.AnnualSalaryLimit != nil {
		annual = *terms.AnnualSalaryLimit
	}
	if annual.IsZero() {
		return
	}
	switch {
	case in.YearGross.GreaterThan(annual):
		flags.Warnings = append(flags.Warnings, fmt.Sprintf(
			"minijob annual limit exceeded: %s EUR (limit %s EUR)",
			in.YearGross.StringFixed(2), annual.StringFixed(2)))
	case in.YearGross.GreaterThanOrEqual(annual.Mul(v.Policy.AnnualWarnRatio)):
		flags.Warnings = append(flags.Warnings, fmt.Sprintf(
			"minijob annual limit nearly reached: %s of %s EUR",
			in.YearGross.StringFixed(2), annual.StringFixed(2)))
	}
}
