/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the core records (which carry no JSON tags) from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients (some also accepted as input)
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

FORMATS:
  Dates "2006-01-02", months "2006-01", clock times "15:04".
  Hours and money are decimals; they are accepted as JSON numbers or strings
  and always written as strings.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required, formats, enums). Domain rules such as "break shorter than the
  shift" are checked by the core types after conversion.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/recurrence"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO is an employee in requests and responses.
type EmployeeDTO struct {
	ID                string             `json:"id" validate:"omitempty,max=64"`
	Name              string             `json:"name" validate:"required,max=200"`
	ContractType      string             `json:"contract_type" validate:"required,oneof=minijob part_time full_time"`
	HourlyRate        *decimal.Decimal   `json:"hourly_rate,omitempty"`
	MonthlyHoursLimit *decimal.Decimal   `json:"monthly_hours_limit,omitempty"`
	AnnualSalaryLimit *decimal.Decimal   `json:"annual_salary_limit,omitempty"`
	VacationDays      int                `json:"vacation_days" validate:"min=0,max=366"`
	Active            *bool              `json:"active,omitempty"`
	Contracts         []ContractTermsDTO `json:"contracts,omitempty" validate:"omitempty,dive"`
}

// ContractTermsDTO is one dated contract version.
type ContractTermsDTO struct {
	ValidFrom         string           `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidTo           *string          `json:"valid_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ContractType      string           `json:"contract_type,omitempty" validate:"omitempty,oneof=minijob part_time full_time"`
	HourlyRate        decimal.Decimal  `json:"hourly_rate"`
	MonthlyHoursLimit *decimal.Decimal `json:"monthly_hours_limit,omitempty"`
	AnnualSalaryLimit *decimal.Decimal `json:"annual_salary_limit,omitempty"`
}

// CarryoverRecordDTO is one ledger record.
type CarryoverRecordDTO struct {
	ID        string          `json:"id"`
	FromMonth core.Month      `json:"from_month"`
	ToMonth   core.Month      `json:"to_month"`
	Hours     decimal.Decimal `json:"hours"`
	Reason    string          `json:"reason,omitempty"`
	Sequence  int64           `json:"sequence"`
	CreatedAt string          `json:"created_at"`
}

// CarryoverResponse is the balance entering a month plus the full history.
type CarryoverResponse struct {
	EmployeeID string               `json:"employee_id"`
	Month      core.Month           `json:"month"`
	Balance    decimal.Decimal      `json:"balance"`
	History    []CarryoverRecordDTO `json:"history"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// HolidayProfileDTO is a holiday profile in requests and responses.
type HolidayProfileDTO struct {
	ID              string              `json:"id" validate:"omitempty,max=64"`
	Name            string              `json:"name" validate:"required,max=200"`
	Region          string              `json:"region" validate:"required,len=2"`
	Active          bool                `json:"active"`
	VacationPeriods []VacationPeriodDTO `json:"vacation_periods" validate:"dive"`
	CustomHolidays  []CustomHolidayDTO  `json:"custom_holidays" validate:"dive"`
}

type VacationPeriodDTO struct {
	Name  string `json:"name" validate:"required"`
	Start string `json:"start_date" validate:"required,datetime=2006-01-02"`
	End   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Color string `json:"color,omitempty"`
}

type CustomHolidayDTO struct {
	Name  string `json:"name" validate:"required"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Color string `json:"color,omitempty"`
}

// =============================================================================
// RECURRING SHIFTS
// =============================================================================

// RecurringRuleDTO is a recurring rule in requests and responses. On
// creation RangeStart/RangeEnd bound the first generation run and default
// to the rule's validity.
type RecurringRuleDTO struct {
	ID                 string `json:"id" validate:"omitempty,max=64"`
	Weekday            *int   `json:"weekday" validate:"required,min=0,max=6"`
	StartTime          string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime            string `json:"end_time" validate:"required,datetime=15:04"`
	BreakMinutes       int    `json:"break_minutes" validate:"min=0"`
	EmployeeID         string `json:"employee_id,omitempty"`
	TemplateID         string `json:"template_id,omitempty"`
	ValidFrom          string `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidUntil         string `json:"valid_until" validate:"required,datetime=2006-01-02"`
	HolidayProfileID   string `json:"holiday_profile_id,omitempty"`
	SkipPublicHolidays bool   `json:"skip_public_holidays"`
	Label              string `json:"label,omitempty"`
	Active             bool   `json:"active"`

	RangeStart string `json:"range_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RangeEnd   string `json:"range_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RangeRequest is an inclusive date window.
type RangeRequest struct {
	Start string `json:"start_date" validate:"required,datetime=2006-01-02"`
	End   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// UpdateFromRequest changes a rule from FromDate onwards. Absent fields are
// unchanged; an empty employee_id turns future shifts into open shifts.
type UpdateFromRequest struct {
	FromDate           string  `json:"from_date" validate:"required,datetime=2006-01-02"`
	StartTime          *string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime            *string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	BreakMinutes       *int    `json:"break_minutes,omitempty" validate:"omitempty,min=0"`
	EmployeeID         *string `json:"employee_id,omitempty"`
	TemplateID         *string `json:"template_id,omitempty"`
	HolidayProfileID   *string `json:"holiday_profile_id,omitempty"`
	SkipPublicHolidays *bool   `json:"skip_public_holidays,omitempty"`
	Label              *string `json:"label,omitempty"`
	ValidUntil         *string `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// GenerateResponse answers both create-and-generate and generate.
type GenerateResponse struct {
	Rule    RecurringRuleDTO         `json:"rule"`
	Created []ShiftDTO               `json:"created"`
	Skipped []recurrence.SkippedDate `json:"skipped"`
}

type UpdateFromResponse struct {
	Rule      RecurringRuleDTO         `json:"rule"`
	Deleted   int                      `json:"deleted"`
	Generated []ShiftDTO               `json:"generated"`
	Skipped   []recurrence.SkippedDate `json:"skipped"`
}

type DeactivateResponse struct {
	RuleID  string `json:"rule_id"`
	Deleted int    `json:"deleted"`
}

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftDTO is a shift in requests and responses. Flags are read-only.
type ShiftDTO struct {
	ID           string    `json:"id" validate:"omitempty,max=64"`
	Date         string    `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string    `json:"end_time" validate:"required,datetime=15:04"`
	BreakMinutes int       `json:"break_minutes" validate:"min=0"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	TemplateID   string    `json:"template_id,omitempty"`
	Status       string    `json:"status,omitempty" validate:"omitempty,oneof=planned confirmed completed cancelled cancelled_absence"`
	RuleID       string    `json:"recurring_shift_id,omitempty"`
	IsOverride   bool      `json:"is_override"`
	ActualStart  *string   `json:"actual_start,omitempty" validate:"omitempty,datetime=15:04"`
	ActualEnd    *string   `json:"actual_end,omitempty" validate:"omitempty,datetime=15:04"`
	Notes        string    `json:"notes,omitempty"`
	NetHours     string    `json:"net_hours,omitempty"`
	Flags        *FlagsDTO `json:"compliance,omitempty"`
}

// FlagsDTO mirrors core.ComplianceFlags.
type FlagsDTO struct {
	IsHoliday          bool             `json:"is_holiday"`
	HolidayName        string           `json:"holiday_name,omitempty"`
	IsWeekend          bool             `json:"is_weekend"`
	IsSunday           bool             `json:"is_sunday"`
	RestPeriodOK       bool             `json:"rest_period_ok"`
	RestHours          *decimal.Decimal `json:"rest_hours,omitempty"`
	BreakOK            bool             `json:"break_ok"`
	MinijobLimitOK     bool             `json:"minijob_limit_ok"`
	MinijobProvisional bool             `json:"minijob_provisional,omitempty"`
	Warnings           []string         `json:"warnings"`
	Violations         []string         `json:"violations"`
}

type ShiftStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planned confirmed completed cancelled cancelled_absence"`
}

// SweepResponse is the outcome of a compliance sweep.
type SweepResponse struct {
	Checked    int              `json:"checked"`
	Violations int              `json:"violations"`
	Results    []ShiftResultDTO `json:"results"`
}

type ShiftResultDTO struct {
	ShiftID    string   `json:"shift_id"`
	Date       string   `json:"date"`
	EmployeeID string   `json:"employee_id,omitempty"`
	Flags      FlagsDTO `json:"compliance"`
}

// =============================================================================
// PAYROLL
// =============================================================================

type CalculatePayrollRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Month      string `json:"month" validate:"required,datetime=2006-01"`
}

type CalculateAllRequest struct {
	Month        string `json:"month" validate:"required,datetime=2006-01"`
	SkipExisting bool   `json:"skip_existing"`
}

// PayrollEntryDTO mirrors core.PayrollEntry; money and hours rounded to 2
// decimals by the calculator.
type PayrollEntryDTO struct {
	ID                   string           `json:"id"`
	EmployeeID           string           `json:"employee_id"`
	Month                core.Month       `json:"month"`
	PlannedHours         *decimal.Decimal `json:"planned_hours,omitempty"`
	ActualHours          decimal.Decimal  `json:"actual_hours"`
	CarryoverHours       decimal.Decimal  `json:"carryover_hours"`
	PaidHours            decimal.Decimal  `json:"paid_hours"`
	NewCarryover         decimal.Decimal  `json:"new_carryover"`
	SurchargeHours       SurchargesDTO    `json:"surcharge_hours"`
	SurchargeAmounts     SurchargesDTO    `json:"surcharge_amounts"`
	HourlyRate           decimal.Decimal  `json:"hourly_rate"`
	BaseWage             decimal.Decimal  `json:"base_wage"`
	TotalGross           decimal.Decimal  `json:"total_gross"`
	YTDGross             decimal.Decimal  `json:"ytd_gross"`
	AnnualLimitRemaining *decimal.Decimal `json:"annual_limit_remaining,omitempty"`
	ShiftCount           int              `json:"shift_count"`
	Status               string           `json:"status"`
	Warnings             []string         `json:"warnings"`
	Notes                string           `json:"notes,omitempty"`
	CalculatedAt         string           `json:"calculated_at"`
}

type SurchargesDTO struct {
	Early   decimal.Decimal `json:"early"`
	Late    decimal.Decimal `json:"late"`
	Night   decimal.Decimal `json:"night"`
	Weekend decimal.Decimal `json:"weekend"`
	Sunday  decimal.Decimal `json:"sunday"`
	Holiday decimal.Decimal `json:"holiday"`
}

// BatchResponse is the outcome of calculate-all. Failures do not fail the
// request; they are listed next to the successful entries.
type BatchResponse struct {
	Month    core.Month        `json:"month"`
	Entries  []PayrollEntryDTO `json:"entries"`
	Skipped  []string          `json:"skipped"`
	Failures []FailureDTO      `json:"failures"`
}

type FailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// =============================================================================
// POLICY, SCENARIOS, ERRORS
// =============================================================================

// PolicyDTO is the policy the server runs with.
type PolicyDTO struct {
	Config factory.PolicyJSON `json:"config"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS - core -> DTO
// =============================================================================

func toEmployeeDTO(e core.Employee) EmployeeDTO {
	active := e.Active
	dto := EmployeeDTO{
		ID:                string(e.ID),
		Name:              e.Name,
		ContractType:      string(e.ContractType),
		HourlyRate:        e.HourlyRate,
		MonthlyHoursLimit: e.MonthlyHoursLimit,
		AnnualSalaryLimit: e.AnnualSalaryLimit,
		VacationDays:      e.VacationDays,
		Active:            &active,
	}
	for _, c := range e.Contracts {
		terms := ContractTermsDTO{
			ValidFrom:         c.ValidFrom.String(),
			ContractType:      string(c.ContractType),
			HourlyRate:        c.HourlyRate,
			MonthlyHoursLimit: c.MonthlyHoursLimit,
			AnnualSalaryLimit: c.AnnualSalaryLimit,
		}
		if c.ValidTo != nil {
			terms.ValidTo = strPtr(c.ValidTo.String())
		}
		dto.Contracts = append(dto.Contracts, terms)
	}
	return dto
}

func toProfileDTO(p core.HolidayProfile) HolidayProfileDTO {
	dto := HolidayProfileDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		Region:          p.Region,
		Active:          p.Active,
		VacationPeriods: []VacationPeriodDTO{},
		CustomHolidays:  []CustomHolidayDTO{},
	}
	for _, v := range p.VacationPeriods {
		dto.VacationPeriods = append(dto.VacationPeriods, VacationPeriodDTO{
			Name: v.Name, Start: v.Start.String(), End: v.End.String(), Color: v.Color,
		})
	}
	for _, c := range p.CustomHolidays {
		dto.CustomHolidays = append(dto.CustomHolidays, CustomHolidayDTO{
			Name: c.Name, Date: c.Date.String(), Color: c.Color,
		})
	}
	return dto
}

func toRuleDTO(r core.RecurringShiftRule) RecurringRuleDTO {
	weekday := int(r.Weekday)
	return RecurringRuleDTO{
		ID:                 string(r.ID),
		Weekday:            &weekday,
		StartTime:          r.Start.String(),
		EndTime:            r.End.String(),
		BreakMinutes:       r.BreakMinutes,
		EmployeeID:         string(r.EmployeeID),
		TemplateID:         r.TemplateID,
		ValidFrom:          r.ValidFrom.String(),
		ValidUntil:         r.ValidUntil.String(),
		HolidayProfileID:   string(r.HolidayProfileID),
		SkipPublicHolidays: r.SkipPublicHolidays,
		Label:              r.Label,
		Active:             r.Active,
	}
}

func toShiftDTO(s core.Shift) ShiftDTO {
	flags := toFlagsDTO(s.Flags)
	dto := ShiftDTO{
		ID:           string(s.ID),
		Date:         s.Date.String(),
		StartTime:    s.Start.String(),
		EndTime:      s.End.String(),
		BreakMinutes: s.BreakMinutes,
		EmployeeID:   string(s.EmployeeID),
		TemplateID:   s.TemplateID,
		Status:       string(s.Status),
		RuleID:       string(s.RuleID),
		IsOverride:   s.IsOverride,
		Notes:        s.Notes,
		NetHours:     s.NetHours().StringFixed(2),
		Flags:        &flags,
	}
	if s.ActualStart != nil {
		dto.ActualStart = strPtr(s.ActualStart.String())
	}
	if s.ActualEnd != nil {
		dto.ActualEnd = strPtr(s.ActualEnd.String())
	}
	return dto
}

func toShiftDTOs(shifts []core.Shift) []ShiftDTO {
	out := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		out[i] = toShiftDTO(s)
	}
	return out
}

func toFlagsDTO(f core.ComplianceFlags) FlagsDTO {
	return FlagsDTO{
		IsHoliday:          f.IsHoliday,
		HolidayName:        f.HolidayName,
		IsWeekend:          f.IsWeekend,
		IsSunday:           f.IsSunday,
		RestPeriodOK:       f.RestPeriodOK,
		RestHours:          f.RestHours,
		BreakOK:            f.BreakOK,
		MinijobLimitOK:     f.MinijobLimitOK,
		MinijobProvisional: f.MinijobProvisional,
		Warnings:           nonNilStrings(f.Warnings),
		Violations:         nonNilStrings(f.Violations),
	}
}

func toSurchargesDTO(s core.Surcharges) SurchargesDTO {
	return SurchargesDTO{
		Early: s.Early, Late: s.Late, Night: s.Night,
		Weekend: s.Weekend, Sunday: s.Sunday, Holiday: s.Holiday,
	}
}

func toPayrollDTO(e core.PayrollEntry) PayrollEntryDTO {
	return PayrollEntryDTO{
		ID:                   string(e.ID),
		EmployeeID:           string(e.EmployeeID),
		Month:                e.Month,
		PlannedHours:         e.PlannedHours,
		ActualHours:          e.ActualHours,
		CarryoverHours:       e.CarryoverHours,
		PaidHours:            e.PaidHours,
		NewCarryover:         e.NewCarryover,
		SurchargeHours:       toSurchargesDTO(e.SurchargeHours),
		SurchargeAmounts:     toSurchargesDTO(e.SurchargeAmounts),
		HourlyRate:           e.HourlyRate,
		BaseWage:             e.BaseWage,
		TotalGross:           e.TotalGross,
		YTDGross:             e.YTDGross,
		AnnualLimitRemaining: e.AnnualLimitRemaining,
		ShiftCount:           e.ShiftCount,
		Status:               string(e.Status),
		Warnings:             nonNilStrings(e.Warnings),
		Notes:                e.Notes,
		CalculatedAt:         e.CalculatedAt.Format(time.RFC3339),
	}
}

func toPayrollDTOs(entries []core.PayrollEntry) []PayrollEntryDTO {
	out := make([]PayrollEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = toPayrollDTO(e)
	}
	return out
}

func toCarryoverDTOs(recs []core.CarryoverRecord) []CarryoverRecordDTO {
	out := make([]CarryoverRecordDTO, len(recs))
	for i, r := range recs {
		out[i] = CarryoverRecordDTO{
			ID:        string(r.ID),
			FromMonth: r.FromMonth,
			ToMonth:   r.ToMonth,
			Hours:     r.Hours,
			Reason:    r.Reason,
			Sequence:  r.Sequence,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func strPtr(s string) *string {
	return &s
}

// =============================================================================
// CONVERSIONS - DTO -> core
// =============================================================================

func parseDateField(field, s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Reason: "expected YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func parseClockField(field, s string) (core.ClockTime, error) {
	c, err := core.ParseClockTime(s)
	if err != nil {
		return 0, &core.ValidationError{Field: field, Reason: "expected HH:MM", Err: err}
	}
	return c, nil
}

func parseMonthField(field, s string) (core.Month, error) {
	m, err := core.ParseMonth(s)
	if err != nil {
		return core.Month{}, &core.ValidationError{Field: field, Reason: "expected YYYY-MM", Err: err}
	}
	return m, nil
}

func nonNegative(field string, d *decimal.Decimal) error {
	if d != nil && d.IsNegative() {
		return &core.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func (dto EmployeeDTO) toCore() (core.Employee, error) {
	if err := nonNegative("hourly_rate", dto.HourlyRate); err != nil {
		return core.Employee{}, err
	}
	if err := nonNegative("monthly_hours_limit", dto.MonthlyHoursLimit); err != nil {
		return core.Employee{}, err
	}
	if err := nonNegative("annual_salary_limit", dto.AnnualSalaryLimit); err != nil {
		return core.Employee{}, err
	}

	e := core.Employee{
		ID:                core.EmployeeID(dto.ID),
		Name:              dto.Name,
		ContractType:      core.ContractType(dto.ContractType),
		HourlyRate:        dto.HourlyRate,
		MonthlyHoursLimit: dto.MonthlyHoursLimit,
		AnnualSalaryLimit: dto.AnnualSalaryLimit,
		VacationDays:      dto.VacationDays,
		Active:            dto.Active == nil || *dto.Active,
	}
	for i, c := range dto.Contracts {
		field := fmt.Sprintf("contracts[%d]", i)
		from, err := parseDateField(field+".valid_from", c.ValidFrom)
		if err != nil {
			return core.Employee{}, err
		}
		terms := core.ContractTerms{
			ValidFrom:         from,
			ContractType:      core.ContractType(c.ContractType),
			HourlyRate:        c.HourlyRate,
			MonthlyHoursLimit: c.MonthlyHoursLimit,
			AnnualSalaryLimit: c.AnnualSalaryLimit,
		}
		if c.ValidTo != nil {
			to, err := parseDateField(field+".valid_to", *c.ValidTo)
			if err != nil {
				return core.Employee{}, err
			}
			if !to.After(from) {
				return core.Employee{}, &core.ValidationError{Field: field + ".valid_to", Reason: "must be after valid_from"}
			}
			terms.ValidTo = &to
		}
		if c.HourlyRate.IsNegative() {
			return core.Employee{}, &core.ValidationError{Field: field + ".hourly_rate", Reason: "must not be negative"}
		}
		e.Contracts = append(e.Contracts, terms)
	}
	// newest terms first, so EffectiveTerms finds the latest valid version
	sort.Slice(e.Contracts, func(i, j int) bool { return e.Contracts[i].ValidFrom.After(e.Contracts[j].ValidFrom) })
	return e, nil
}

func (dto HolidayProfileDTO) toCore() (core.HolidayProfile, error) {
	region, err := calendar.ParseRegion(dto.Region)
	if err != nil {
		return core.HolidayProfile{}, err
	}
	p := core.HolidayProfile{
		ID:     core.ProfileID(dto.ID),
		Name:   dto.Name,
		Region: string(region),
		Active: dto.Active,
	}
	for i, v := range dto.VacationPeriods {
		field := fmt.Sprintf("vacation_periods[%d]", i)
		start, err := parseDateField(field+".start_date", v.Start)
		if err != nil {
			return core.HolidayProfile{}, err
		}
		end, err := parseDateField(field+".end_date", v.End)
		if err != nil {
			return core.HolidayProfile{}, err
		}
		if end.Before(start) {
			return core.HolidayProfile{}, &core.ValidationError{Field: field, Reason: "end_date before start_date", Err: core.ErrInvalidPeriod}
		}
		p.VacationPeriods = append(p.VacationPeriods, core.VacationPeriod{Name: v.Name, Start: start, End: end, Color: v.Color})
	}
	for i, c := range dto.CustomHolidays {
		d, err := parseDateField(fmt.Sprintf("custom_holidays[%d].date", i), c.Date)
		if err != nil {
			return core.HolidayProfile{}, err
		}
		p.CustomHolidays = append(p.CustomHolidays, core.CustomHoliday{Name: c.Name, Date: d, Color: c.Color})
	}
	return p, nil
}

// toCore converts the rule and the window of its first generation run.
func (dto RecurringRuleDTO) toCore() (core.RecurringShiftRule, core.Period, error) {
	var (
		rule core.RecurringShiftRule
		err  error
	)
	rule.ID = core.RuleID(dto.ID)
	if dto.Weekday != nil {
		rule.Weekday = core.Weekday(*dto.Weekday)
	}
	if rule.Start, err = parseClockField("start_time", dto.StartTime); err != nil {
		return rule, core.Period{}, err
	}
	if rule.End, err = parseClockField("end_time", dto.EndTime); err != nil {
		return rule, core.Period{}, err
	}
	if rule.ValidFrom, err = parseDateField("valid_from", dto.ValidFrom); err != nil {
		return rule, core.Period{}, err
	}
	if rule.ValidUntil, err = parseDateField("valid_until", dto.ValidUntil); err != nil {
		return rule, core.Period{}, err
	}
	rule.BreakMinutes = dto.BreakMinutes
	rule.EmployeeID = core.EmployeeID(dto.EmployeeID)
	rule.TemplateID = dto.TemplateID
	rule.HolidayProfileID = core.ProfileID(dto.HolidayProfileID)
	rule.SkipPublicHolidays = dto.SkipPublicHolidays
	rule.Label = dto.Label
	rule.Active = dto.Active

	rng := rule.Validity()
	if dto.RangeStart != "" {
		if rng.Start, err = parseDateField("range_start", dto.RangeStart); err != nil {
			return rule, core.Period{}, err
		}
	}
	if dto.RangeEnd != "" {
		if rng.End, err = parseDateField("range_end", dto.RangeEnd); err != nil {
			return rule, core.Period{}, err
		}
	}
	return rule, rng, nil
}

func (req RangeRequest) toCore() (core.Period, error) {
	start, err := parseDateField("start_date", req.Start)
	if err != nil {
		return core.Period{}, err
	}
	end, err := parseDateField("end_date", req.End)
	if err != nil {
		return core.Period{}, err
	}
	p := core.NewPeriod(start, end)
	return p, p.Validate()
}

func (req UpdateFromRequest) toCore() (core.Date, recurrence.Overrides, error) {
	var o recurrence.Overrides
	from, err := parseDateField("from_date", req.FromDate)
	if err != nil {
		return core.Date{}, o, err
	}
	if req.StartTime != nil {
		c, err := parseClockField("start_time", *req.StartTime)
		if err != nil {
			return core.Date{}, o, err
		}
		o.Start = &c
	}
	if req.EndTime != nil {
		c, err := parseClockField("end_time", *req.EndTime)
		if err != nil {
			return core.Date{}, o, err
		}
		o.End = &c
	}
	if req.ValidUntil != nil {
		d, err := parseDateField("valid_until", *req.ValidUntil)
		if err != nil {
			return core.Date{}, o, err
		}
		o.ValidUntil = &d
	}
	if req.EmployeeID != nil {
		id := core.EmployeeID(*req.EmployeeID)
		o.EmployeeID = &id
	}
	if req.HolidayProfileID != nil {
		id := core.ProfileID(*req.HolidayProfileID)
		o.HolidayProfileID = &id
	}
	o.BreakMinutes = req.BreakMinutes
	o.TemplateID = req.TemplateID
	o.SkipPublicHolidays = req.SkipPublicHolidays
	o.Label = req.Label
	return from, o, nil
}

func (dto ShiftDTO) toCore() (core.Shift, error) {
	var (
		s   core.Shift
		err error
	)
	s.ID = core.ShiftID(dto.ID)
	if s.Date, err = parseDateField("date", dto.Date); err != nil {
		return s, err
	}
	if s.Start, err = parseClockField("start_time", dto.StartTime); err != nil {
		return s, err
	}
	if s.End, err = parseClockField("end_time", dto.EndTime); err != nil {
		return s, err
	}
	if dto.ActualStart != nil {
		c, err := parseClockField("actual_start", *dto.ActualStart)
		if err != nil {
			return s, err
		}
		s.ActualStart = &c
	}
	if dto.ActualEnd != nil {
		c, err := parseClockField("actual_end", *dto.ActualEnd)
		if err != nil {
			return s, err
		}
		s.ActualEnd = &c
	}
	s.BreakMinutes = dto.BreakMinutes
	s.EmployeeID = core.EmployeeID(dto.EmployeeID)
	s.TemplateID = dto.TemplateID
	s.Status = core.ShiftPlanned
	if dto.Status != "" {
		if s.Status, err = core.ParseShiftStatus(dto.Status); err != nil {
			return s, err
		}
	}
	s.Notes = dto.Notes
	s.Flags = core.DefaultFlags()
	return s, nil
}
