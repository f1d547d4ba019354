/*
Package payroll computes monthly payroll entries with German surcharges.

PURPOSE:
  Turns an employee's confirmed and completed shifts of one month into a
  PayrollEntry: worked hours, surcharge hours and amounts per band, the
  hours actually paid after the monthly limit and carryover, gross pay and
  year-to-date figures.

SURCHARGE BANDS:
  Time bands are measured on the wall-clock span of a shift (breaks are not
  placed on the clock):
    early    [00:00, 06:00)
    late     [20:00, 24:00)
    night    [23:00, 06:00) across midnight
  Day bands apply to the whole shift's net hours, by shift date:
    weekend  Saturday
    sunday   Sunday
    holiday  statutory public holiday
  Bands stack. An hour that is both Sunday and night earns both.

PRECISION:
  All durations are accumulated as integer minutes. Conversion to hours and
  money happens once per entry, and rounding to 2 decimals happens only on
  the fields of the returned entry.

CARRYOVER:
  paid = worked + incoming carryover
  With a monthly limit: new carryover = paid - limit, paid = min(paid, limit)
  Without a limit:      new carryover = 0 (or the negative rest, see below)
  Paid hours never go below zero; a negative rest is carried instead.

SEE ALSO:
  - service.go: Loading inputs, persistence, locking, batch runs
  - core/ledger.go: Carryover records
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
)

// Input is everything Calculate looks at.
type Input struct {
	Employee core.Employee
	Month    core.Month
	// Shifts may contain any status; only payable confirmed/completed shifts
	// of the month are counted.
	Shifts  []core.Shift
	Profile *core.HolidayProfile
	// IncomingCarryover is the ledger balance carried into Month.
	IncomingCarryover decimal.Decimal
	// PriorYTDGross is the gross of the same year's earlier months.
	PriorYTDGross decimal.Decimal
}

// Calculator is pure: the same input always yields the same entry.
type Calculator struct {
	Policy   core.PayrollPolicy
	Calendar calendar.Classifier
}

func NewCalculator(policy core.PayrollPolicy, cal calendar.Classifier) *Calculator {
	return &Calculator{Policy: policy, Calendar: cal}
}

// Counted reports whether a shift contributes to payroll.
func Counted(s core.Shift) bool {
	return s.Status.IsPayable()
}

// Calculate builds the entry for in.Month. ID, Status and CalculatedAt are
// left for the caller.
func (c *Calculator) Calculate(in Input) (core.PayrollEntry, error) {
	if !in.Employee.HasHourlyRate(in.Month) {
		return core.PayrollEntry{}, &core.ValidationError{
			Field:  "hourly_rate",
			Reason: fmt.Sprintf("employee %s has no hourly rate for %s", in.Employee.ID, in.Month),
			Err:    core.ErrMissingHourlyRate,
		}
	}
	terms := in.Employee.EffectiveTerms(in.Month)
	rate := terms.HourlyRate

	// 1. Minutes
	totalMinutes := 0
	bandMinutes := make(map[core.SurchargeBand]int, len(core.AllBands))
	count := 0
	period := in.Month.Period()
	for _, s := range in.Shifts {
		if !Counted(s) || !period.Contains(s.Date) || s.EmployeeID != in.Employee.ID {
			continue
		}
		count++
		net := s.NetMinutes()
		totalMinutes += net

		for band, m := range c.timeBandMinutes(s) {
			bandMinutes[band] += m
		}
		class := c.Calendar.Classify(s.Date, in.Profile)
		if s.Date.IsSaturday() {
			bandMinutes[core.BandWeekend] += net
		}
		if s.Date.IsSunday() {
			bandMinutes[core.BandSunday] += net
		}
		if class.IsPublicHoliday() {
			bandMinutes[core.BandHoliday] += net
		}
	}

	// 2. Hours and amounts
	worked := core.MinutesToHours(totalMinutes)
	var surchargeHours, surchargeAmounts core.Surcharges
	for _, band := range core.AllBands {
		m := decimal.NewFromInt(int64(bandMinutes[band]))
		surchargeHours.Set(band, m.Div(sixty))
		surchargeAmounts.Set(band, m.Mul(rate).Mul(c.Policy.Rate(band)).Div(sixty))
	}

	// 3. Paid hours and carryover
	paid := worked.Add(in.IncomingCarryover)
	newCarryover := decimal.Zero
	if terms.MonthlyHoursLimit != nil {
		limit := *terms.MonthlyHoursLimit
		newCarryover = paid.Sub(limit)
		paid = decimal.Min(paid, limit)
	}
	if paid.IsNegative() {
		if terms.MonthlyHoursLimit == nil {
			newCarryover = paid
		}
		paid = decimal.Zero
	}

	// 4. Money
	gross := paid.Mul(rate).Add(surchargeAmounts.Total()).Round(2)
	ytd := in.PriorYTDGross.Add(gross)

	entry := core.PayrollEntry{
		EmployeeID:       in.Employee.ID,
		Month:            in.Month,
		PlannedHours:     terms.MonthlyHoursLimit,
		ActualHours:      worked.Round(2),
		CarryoverHours:   in.IncomingCarryover.Round(2),
		PaidHours:        paid.Round(2),
		NewCarryover:     newCarryover.Round(2),
		SurchargeHours:   surchargeHours.Rounded(),
		SurchargeAmounts: surchargeAmounts.Rounded(),
		HourlyRate:       rate,
		BaseWage:         worked.Mul(rate).Round(2),
		TotalGross:       gross,
		YTDGross:         ytd.Round(2),
		ShiftCount:       count,
		Warnings:         []string{},
	}

	if terms.ContractType == core.ContractMinijob {
		annual := c.Policy.DefaultAnnualSalaryLimit
		if terms.AnnualSalaryLimit != nil {
			annual = *terms.AnnualSalaryLimit
		}
		remaining := annual.Sub(ytd).Round(2)
		entry.AnnualLimitRemaining = &remaining
		if remaining.IsNegative() {
			entry.Warnings = append(entry.Warnings, fmt.Sprintf("annual salary limit exceeded by %s EUR", remaining.Neg().StringFixed(2)))
		}
	}
	if count == 0 {
		entry.Warnings = append(entry.Warnings, "no confirmed or completed shifts in month")
	}
	if entry.NewCarryover.IsNegative() {
		entry.Warnings = append(entry.Warnings, fmt.Sprintf("%s hours short of the monthly limit carried into %s", entry.NewCarryover.Neg().StringFixed(2), in.Month.Next()))
	}
	return entry, nil
}

var sixty = decimal.NewFromInt(60)

// =============================================================================
// TIME BANDS
// =============================================================================

type window struct{ from, to int }

func overlap(a, b window) int {
	lo, hi := max(a.from, b.from), min(a.to, b.to)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// bandWindows returns the band's windows within one day, in minutes from
// that day's midnight.
func (c *Calculator) bandWindows(band core.SurchargeBand) []window {
	p := c.Policy
	switch band {
	case core.BandEarly:
		return []window{{0, int(p.EarlyEnd)}}
	case core.BandLate:
		return []window{{int(p.LateStart), core.MinutesPerDay}}
	case core.BandNight:
		if p.NightStart > p.NightEnd {
			return []window{{0, int(p.NightEnd)}, {int(p.NightStart), core.MinutesPerDay}}
		}
		return []window{{int(p.NightStart), int(p.NightEnd)}}
	default:
		return nil
	}
}

var timeBands = []core.SurchargeBand{core.BandEarly, core.BandLate, core.BandNight}

// timeBandMinutes intersects the shift's wall-clock span with every time
// band on the shift day and the following day.
func (c *Calculator) timeBandMinutes(s core.Shift) map[core.SurchargeBand]int {
	start, _ := s.Times()
	span := window{from: int(start), to: int(start) + s.SpanMinutes()}

	out := make(map[core.SurchargeBand]int, len(timeBands))
	for _, band := range timeBands {
		total := 0
		for day := 0; day <= 1; day++ {
			offset := day * core.MinutesPerDay
			for _, w := range c.bandWindows(band) {
				total += overlap(span, window{w.from + offset, w.to + offset})
			}
		}
		out[band] = total
	}
	return out
}
