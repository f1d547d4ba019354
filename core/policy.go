/*
policy.go - Configurable rates and thresholds

PURPOSE:
  Every number the engine applies (surcharge percentages, band windows,
  minijob ceilings, rest-period and break thresholds, carryover expiry) lives
  in a policy object passed to the component that needs it. Nothing is a
  package-level constant, so a jurisdiction or a new year only needs a new
  policy, and tests can run against synthetic ones.

KEY TYPES:
  Policy:           Bundle for one jurisdiction/year (what factory/ parses)
  PayrollPolicy:    Surcharge rates and band windows
  CompliancePolicy: Rest period, break tiers, minijob limits
  CarryoverPolicy:  Expiry of carried-over hours

EXAMPLE:
  policy := core.DefaultPolicy()          // DE, 2025 values
  policy.Payroll.Rates[core.BandNight] = decimal.RequireFromString("0.30")

SEE ALSO:
  - factory/policy.go: JSON representation
  - payroll/calculator.go, compliance/validator.go: consumers
*/
package core

import (
	"github.com/shopspring/decimal"
)

// Policy bundles all rule sets for one jurisdiction and year.
type Policy struct {
	ID         string
	Name       string
	Region     string
	Year       int
	Payroll    PayrollPolicy
	Compliance CompliancePolicy
	Carryover  CarryoverPolicy
}

// =============================================================================
// PAYROLL POLICY
// =============================================================================

type PayrollPolicy struct {
	// Rates are fractions of the hourly rate (0.25 = 25 %).
	Rates map[SurchargeBand]decimal.Decimal

	// Time bands on the wall clock.
	EarlyEnd   ClockTime // early: [00:00, EarlyEnd)
	LateStart  ClockTime // late: [LateStart, 24:00)
	NightStart ClockTime // night: [NightStart, 24:00) + [00:00, NightEnd)
	NightEnd   ClockTime

	// DefaultAnnualSalaryLimit applies to minijob employees without their own.
	DefaultAnnualSalaryLimit decimal.Decimal
}

func (p PayrollPolicy) Rate(b SurchargeBand) decimal.Decimal {
	if r, ok := p.Rates[b]; ok {
		return r
	}
	return decimal.Zero
}

// =============================================================================
// COMPLIANCE POLICY
// =============================================================================

// BreakTier requires MinBreakMinutes once net work exceeds AboveHours.
type BreakTier struct {
	AboveHours      decimal.Decimal
	MinBreakMinutes int
}

type CompliancePolicy struct {
	MinRestHours decimal.Decimal
	// BreakTiers must be ordered by AboveHours ascending.
	BreakTiers []BreakTier

	MinijobMonthlyLimit decimal.Decimal
	MinijobAnnualLimit  decimal.Decimal
	// AnnualWarnRatio triggers a "nearly reached" warning (0.95 = 95 %).
	AnnualWarnRatio decimal.Decimal
}

// RequiredBreak returns the minimum break for the given net work hours.
func (p CompliancePolicy) RequiredBreak(workHours decimal.Decimal) int {
	required := 0
	for _, tier := range p.BreakTiers {
		if workHours.GreaterThan(tier.AboveHours) {
			required = tier.MinBreakMinutes
		}
	}
	return required
}

// =============================================================================
// CARRYOVER POLICY
// =============================================================================

// CarryoverPolicy controls how long carried-over hours stay effective.
// ExpiresAfterMonths == 0 means carryover never expires. Expiry has no
// product definition yet; the zero value is the supported configuration.
type CarryoverPolicy struct {
	ExpiresAfterMonths int
}

// IsExpired reports whether rec no longer applies to month m.
func (p CarryoverPolicy) IsExpired(rec CarryoverRecord, m Month) bool {
	if p.ExpiresAfterMonths <= 0 {
		return false
	}
	return rec.FromMonth.MonthsBetween(m) > p.ExpiresAfterMonths
}

// =============================================================================
// DEFAULTS - Germany, 2025 (§3b EStG surcharges, ArbZG §4/§5, minijob 556 €)
// =============================================================================

func DefaultPolicy() Policy {
	return Policy{
		ID:         "de-2025",
		Name:       "Germany 2025",
		Region:     "BW",
		Year:       2025,
		Payroll:    DefaultPayrollPolicy(),
		Compliance: DefaultCompliancePolicy(),
		Carryover:  CarryoverPolicy{},
	}
}

func DefaultPayrollPolicy() PayrollPolicy {
	return PayrollPolicy{
		Rates: map[SurchargeBand]decimal.Decimal{
			BandEarly:   decimal.RequireFromString("0.125"),
			BandLate:    decimal.RequireFromString("0.125"),
			BandNight:   decimal.RequireFromString("0.25"),
			BandWeekend: decimal.RequireFromString("0.25"),
			BandSunday:  decimal.RequireFromString("0.50"),
			BandHoliday: decimal.RequireFromString("1.25"),
		},
		EarlyEnd:                 NewClockTime(6, 0),
		LateStart:                NewClockTime(20, 0),
		NightStart:               NewClockTime(23, 0),
		NightEnd:                 NewClockTime(6, 0),
		DefaultAnnualSalaryLimit: decimal.RequireFromString("6672.00"),
	}
}

func DefaultCompliancePolicy() CompliancePolicy {
	return CompliancePolicy{
		MinRestHours: decimal.NewFromInt(11),
		BreakTiers: []BreakTier{
			{AboveHours: decimal.NewFromInt(6), MinBreakMinutes: 30},
			{AboveHours: decimal.NewFromInt(9), MinBreakMinutes: 45},
		},
		MinijobMonthlyLimit: decimal.RequireFromString("556.00"),
		MinijobAnnualLimit:  decimal.RequireFromString("6672.00"),
		AnnualWarnRatio:     decimal.RequireFromString("0.95"),
	}
}
