/*
Package core provides the data model of the shift engine.

PURPOSE:
  Plain records shared by the generator, the compliance validator and the
  payroll calculator: employees, holiday profiles, recurring rules, shifts,
  payroll entries and carryover records. Components consume and produce these
  records; how they are stored is decided by a Store implementation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe string IDs
  - Employee: contract type, hourly rate, limits, contract history
  - HolidayProfile: vacation periods and custom days of a jurisdiction
  - RecurringShiftRule: weekday-based recurrence with a validity window
  - Shift: one dated shift with its ComplianceFlags value object

DESIGN PRINCIPLES:
  1. Precision: hours and money use decimal.Decimal
  2. Closed enums: statuses live in status.go with exhaustive switches
  3. Flags are replaced wholesale, never patched field by field

SEE ALSO:
  - status.go: Shift and payroll lifecycles
  - payroll.go: PayrollEntry and CarryoverRecord
  - policy.go: Configurable thresholds and rates
*/
package core

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ShiftID string
type RuleID string
type ProfileID string
type PayrollEntryID string
type CarryoverID string

// =============================================================================
// EMPLOYEE
// =============================================================================

type ContractType string

const (
	ContractMinijob  ContractType = "minijob"
	ContractPartTime ContractType = "part_time"
	ContractFullTime ContractType = "full_time"
)

func (c ContractType) Valid() bool {
	switch c {
	case ContractMinijob, ContractPartTime, ContractFullTime:
		return true
	default:
		return false
	}
}

// Employee is read-only input to every calculation.
type Employee struct {
	ID                EmployeeID
	Name              string
	ContractType      ContractType
	HourlyRate        *decimal.Decimal
	MonthlyHoursLimit *decimal.Decimal
	AnnualSalaryLimit *decimal.Decimal
	VacationDays      int
	Active            bool

	// Contracts holds historical terms. Payroll uses the entry valid on the
	// first day of the month and falls back to the fields above.
	Contracts []ContractTerms
}

// ContractTerms are the pay-relevant terms valid in [ValidFrom, ValidTo).
// A nil ValidTo means open-ended.
type ContractTerms struct {
	ValidFrom         Date
	ValidTo           *Date
	ContractType      ContractType
	HourlyRate        decimal.Decimal
	MonthlyHoursLimit *decimal.Decimal
	AnnualSalaryLimit *decimal.Decimal
}

// EffectiveTerms resolves the terms that apply to a month.
func (e Employee) EffectiveTerms(m Month) ContractTerms {
	start := m.Start()
	for _, c := range e.Contracts {
		if c.ValidFrom.After(start) {
			continue
		}
		if c.ValidTo != nil && !c.ValidTo.After(start) {
			continue
		}
		terms := c
		if terms.ContractType == "" {
			terms.ContractType = e.ContractType
		}
		return terms
	}

	terms := ContractTerms{
		ContractType:      e.ContractType,
		MonthlyHoursLimit: e.MonthlyHoursLimit,
		AnnualSalaryLimit: e.AnnualSalaryLimit,
	}
	if e.HourlyRate != nil {
		terms.HourlyRate = *e.HourlyRate
	}
	return terms
}

// HasHourlyRate reports whether a rate can be resolved for the month.
func (e Employee) HasHourlyRate(m Month) bool {
	start := m.Start()
	for _, c := range e.Contracts {
		if !c.ValidFrom.After(start) && (c.ValidTo == nil || c.ValidTo.After(start)) {
			return !c.HourlyRate.IsNegative()
		}
	}
	return e.HourlyRate != nil && !e.HourlyRate.IsNegative()
}

// =============================================================================
// HOLIDAY PROFILE
// =============================================================================

// HolidayProfile is a named, jurisdiction-tagged set of vacation periods and
// custom days. At most one profile is active at a time.
type HolidayProfile struct {
	ID              ProfileID
	Name            string
	Region          string
	Active          bool
	VacationPeriods []VacationPeriod
	CustomHolidays  []CustomHoliday
}

// VacationPeriod is inclusive on both ends.
type VacationPeriod struct {
	Name  string
	Start Date
	End   Date
	Color string
}

func (v VacationPeriod) Contains(d Date) bool {
	return Period{Start: v.Start, End: v.End}.Contains(d)
}

type CustomHoliday struct {
	Name  string
	Date  Date
	Color string
}

// =============================================================================
// RECURRING SHIFT RULE
// =============================================================================

// RecurringShiftRule expands into one shift per matching weekday inside
// [ValidFrom, ValidUntil]. Rules are deactivated, never hard-deleted, so the
// shift -> rule link survives.
type RecurringShiftRule struct {
	ID                 RuleID
	Weekday            Weekday
	Start              ClockTime
	End                ClockTime
	BreakMinutes       int
	EmployeeID         EmployeeID
	TemplateID         string
	ValidFrom          Date
	ValidUntil         Date
	HolidayProfileID   ProfileID
	SkipPublicHolidays bool
	Label              string
	Active             bool
}

func (r RecurringShiftRule) Validity() Period {
	return Period{Start: r.ValidFrom, End: r.ValidUntil}
}

func (r RecurringShiftRule) Validate() error {
	if !r.Weekday.Valid() {
		return &ValidationError{Field: "weekday", Reason: "must be 0 (Monday) .. 6 (Sunday)"}
	}
	if r.Start < 0 || r.Start >= MinutesPerDay || r.End < 0 || r.End >= MinutesPerDay {
		return &ValidationError{Field: "start_time/end_time", Reason: "out of range"}
	}
	if r.BreakMinutes < 0 {
		return &ValidationError{Field: "break_minutes", Reason: "must not be negative"}
	}
	if r.BreakMinutes >= SpanMinutes(r.Start, r.End) {
		return &ValidationError{Field: "break_minutes", Reason: "must be shorter than the shift"}
	}
	if r.ValidFrom.IsZero() || r.ValidUntil.IsZero() {
		return &ValidationError{Field: "valid_from/valid_until", Reason: "required"}
	}
	return nil
}

// =============================================================================
// SHIFT
// =============================================================================

// Shift is one dated work shift. EmployeeID is empty for open shifts, which
// are always planned.
type Shift struct {
	ID           ShiftID
	Date         Date
	Start        ClockTime
	End          ClockTime
	BreakMinutes int
	EmployeeID   EmployeeID
	TemplateID   string
	Status       ShiftStatus
	RuleID       RuleID
	IsOverride   bool
	Flags        ComplianceFlags
	ActualStart  *ClockTime
	ActualEnd    *ClockTime
	Notes        string

	HoursCarriedOver decimal.Decimal
}

func (s Shift) IsOpen() bool { return s.EmployeeID == "" }

// Times returns the confirmed real times when both are recorded, else the plan.
func (s Shift) Times() (ClockTime, ClockTime) {
	if s.ActualStart != nil && s.ActualEnd != nil {
		return *s.ActualStart, *s.ActualEnd
	}
	return s.Start, s.End
}

// SpanMinutes is the wall-clock length including breaks.
func (s Shift) SpanMinutes() int {
	start, end := s.Times()
	return SpanMinutes(start, end)
}

// NetMinutes is the worked time: span minus break, never negative.
func (s Shift) NetMinutes() int {
	net := s.SpanMinutes() - s.BreakMinutes
	if net < 0 {
		return 0
	}
	return net
}

// NetHours is NetMinutes expressed in hours, unrounded.
func (s Shift) NetHours() decimal.Decimal {
	return MinutesToHours(s.NetMinutes())
}

// StartsAt and EndsAt give absolute instants; EndsAt rolls over midnight.
func (s Shift) StartsAt() Instant {
	start, _ := s.Times()
	return Instant{Date: s.Date, Minute: int(start)}
}

func (s Shift) EndsAt() Instant {
	start, end := s.Times()
	return Instant{Date: s.Date, Minute: int(start) + SpanMinutes(start, end)}
}

// IsProtected reports shifts a cutover regeneration must not touch.
func (s Shift) IsProtected() bool {
	return s.IsOverride || s.Status != ShiftPlanned
}

func (s Shift) Validate() error {
	if s.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if !s.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	if s.IsOpen() && s.Status != ShiftPlanned {
		return &ValidationError{Field: "employee_id", Reason: "only planned shifts may be unassigned"}
	}
	if s.BreakMinutes < 0 {
		return &ValidationError{Field: "break_minutes", Reason: "must not be negative"}
	}
	if s.Start < 0 || s.Start >= MinutesPerDay || s.End < 0 || s.End >= MinutesPerDay {
		return &ValidationError{Field: "start_time/end_time", Reason: "out of range"}
	}
	return nil
}

// Instant is a minute offset from a date's midnight. Offsets past 1440 belong
// to the following day.
type Instant struct {
	Date   Date
	Minute int
}

// MinutesUntil returns the minutes from i to o.
func (i Instant) MinutesUntil(o Instant) int {
	return DaysBetween(i.Date, o.Date)*MinutesPerDay + o.Minute - i.Minute
}

// =============================================================================
// COMPLIANCE FLAGS - Immutable value object, recomputed wholesale
// =============================================================================

type ComplianceFlags struct {
	IsHoliday   bool
	HolidayName string
	IsWeekend   bool
	IsSunday    bool

	RestPeriodOK bool
	// RestHours is nil when there was no prior shift to measure against.
	RestHours *decimal.Decimal

	BreakOK bool

	MinijobLimitOK bool
	// MinijobProvisional is set while the month's payroll has not been
	// calculated yet; the minijob flag is informational until then.
	MinijobProvisional bool

	Warnings   []string
	Violations []string
}

// DefaultFlags is the state of a shift nobody has evaluated yet.
func DefaultFlags() ComplianceFlags {
	return ComplianceFlags{RestPeriodOK: true, BreakOK: true, MinijobLimitOK: true}
}

func (f ComplianceFlags) HasViolations() bool { return len(f.Violations) > 0 }

// =============================================================================
// HOURS
// =============================================================================

var sixty = decimal.NewFromInt(60)

func MinutesToHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty)
}

func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
