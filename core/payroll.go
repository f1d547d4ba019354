package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SURCHARGE BANDS
// =============================================================================

// SurchargeBand names a surcharge bucket. Bands stack: one hour may accrue
// several bands at once (a Sunday night hour is both "night" and "sunday").
type SurchargeBand string

const (
	BandEarly   SurchargeBand = "early"
	BandLate    SurchargeBand = "late"
	BandNight   SurchargeBand = "night"
	BandWeekend SurchargeBand = "weekend"
	BandSunday  SurchargeBand = "sunday"
	BandHoliday SurchargeBand = "holiday"
)

// AllBands lists the bands in reporting order.
var AllBands = []SurchargeBand{BandEarly, BandLate, BandNight, BandWeekend, BandSunday, BandHoliday}

// Surcharges holds one value per band (hours or amounts).
type Surcharges struct {
	Early   decimal.Decimal
	Late    decimal.Decimal
	Night   decimal.Decimal
	Weekend decimal.Decimal
	Sunday  decimal.Decimal
	Holiday decimal.Decimal
}

func (s Surcharges) Get(b SurchargeBand) decimal.Decimal {
	switch b {
	case BandEarly:
		return s.Early
	case BandLate:
		return s.Late
	case BandNight:
		return s.Night
	case BandWeekend:
		return s.Weekend
	case BandSunday:
		return s.Sunday
	case BandHoliday:
		return s.Holiday
	default:
		return decimal.Zero
	}
}

func (s *Surcharges) Set(b SurchargeBand, v decimal.Decimal) {
	switch b {
	case BandEarly:
		s.Early = v
	case BandLate:
		s.Late = v
	case BandNight:
		s.Night = v
	case BandWeekend:
		s.Weekend = v
	case BandSunday:
		s.Sunday = v
	case BandHoliday:
		s.Holiday = v
	}
}

func (s Surcharges) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range AllBands {
		total = total.Add(s.Get(b))
	}
	return total
}

// Equal compares every bucket by value.
func (s Surcharges) Equal(o Surcharges) bool {
	for _, b := range AllBands {
		if !s.Get(b).Equal(o.Get(b)) {
			return false
		}
	}
	return true
}

// Rounded returns a copy with every bucket rounded to 2 decimals.
func (s Surcharges) Rounded() Surcharges {
	var out Surcharges
	for _, b := range AllBands {
		out.Set(b, s.Get(b).Round(2))
	}
	return out
}

// =============================================================================
// PAYROLL ENTRY - One per (employee, month)
// =============================================================================

type PayrollEntry struct {
	ID         PayrollEntryID
	EmployeeID EmployeeID
	Month      Month

	// PlannedHours is the monthly limit in force, nil when unlimited.
	PlannedHours   *decimal.Decimal
	ActualHours    decimal.Decimal
	CarryoverHours decimal.Decimal
	PaidHours      decimal.Decimal
	NewCarryover   decimal.Decimal

	SurchargeHours   Surcharges
	SurchargeAmounts Surcharges

	HourlyRate decimal.Decimal
	BaseWage   decimal.Decimal
	TotalGross decimal.Decimal
	YTDGross   decimal.Decimal
	// AnnualLimitRemaining is only tracked for minijob employees.
	AnnualLimitRemaining *decimal.Decimal

	ShiftCount   int
	Status       PayrollStatus
	Warnings     []string
	Notes        string
	CalculatedAt time.Time
}

// SameFigures reports whether two entries carry the same computed figures.
// Identity, status, notes and CalculatedAt are ignored.
func (e PayrollEntry) SameFigures(o PayrollEntry) bool {
	if e.EmployeeID != o.EmployeeID || e.Month != o.Month || e.ShiftCount != o.ShiftCount {
		return false
	}
	if !equalPtr(e.PlannedHours, o.PlannedHours) || !equalPtr(e.AnnualLimitRemaining, o.AnnualLimitRemaining) {
		return false
	}
	for _, pair := range [][2]decimal.Decimal{
		{e.ActualHours, o.ActualHours},
		{e.CarryoverHours, o.CarryoverHours},
		{e.PaidHours, o.PaidHours},
		{e.NewCarryover, o.NewCarryover},
		{e.HourlyRate, o.HourlyRate},
		{e.BaseWage, o.BaseWage},
		{e.TotalGross, o.TotalGross},
		{e.YTDGross, o.YTDGross},
	} {
		if !pair[0].Equal(pair[1]) {
			return false
		}
	}
	if !e.SurchargeHours.Equal(o.SurchargeHours) || !e.SurchargeAmounts.Equal(o.SurchargeAmounts) {
		return false
	}
	return slices.Equal(e.Warnings, o.Warnings)
}

func equalPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// PayrollKey is the unique key of a payroll entry.
type PayrollKey struct {
	EmployeeID EmployeeID
	Month      Month
}

func (e PayrollEntry) Key() PayrollKey {
	return PayrollKey{EmployeeID: e.EmployeeID, Month: e.Month}
}

// =============================================================================
// CARRYOVER RECORD - Append-only ledger row
// =============================================================================

type CarryoverRecord struct {
	ID         CarryoverID
	EmployeeID EmployeeID
	FromMonth  Month
	ToMonth    Month
	Hours      decimal.Decimal
	Reason     string
	// Sequence orders records of the same employee; the store assigns it.
	Sequence  int64
	CreatedAt time.Time
}
