package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/payroll"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

var march = core.NewMonth(2025, time.March)

func worker(id core.EmployeeID) core.Employee {
	return core.Employee{
		ID:           id,
		Name:         "Worker " + string(id),
		ContractType: core.ContractPartTime,
		HourlyRate:   core.DecimalPtr(dec("10")),
		Active:       true,
	}
}

func confirmed(id, date, start, end string, breakMin int) core.Shift {
	return core.Shift{
		ID:           core.ShiftID(id),
		Date:         core.MustDate(date),
		Start:        core.MustClock(start),
		End:          core.MustClock(end),
		BreakMinutes: breakMin,
		EmployeeID:   "emp-1",
		Status:       core.ShiftConfirmed,
		Flags:        core.DefaultFlags(),
	}
}

func calculator(t *testing.T) *payroll.Calculator {
	t.Helper()
	cal, err := calendar.NewProvider("BW")
	require.NoError(t, err)
	return payroll.NewCalculator(core.DefaultPayrollPolicy(), cal)
}

// =============================================================================
// TIME BANDS
// =============================================================================

func TestCalculate_OvernightShiftBands(t *testing.T) {
	// GIVEN: Tuesday 22:00 -> Wednesday 06:00 without break, 10 EUR/h
	// WHEN: March is calculated
	// THEN: 8h worked; night 23-06 = 7h, early 00-06 = 6h, late 22-24 = 2h

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts:   []core.Shift{confirmed("s1", "2025-03-11", "22:00", "06:00", 0)},
	})
	require.NoError(t, err)

	assertDec(t, "8", entry.ActualHours)
	assertDec(t, "7", entry.SurchargeHours.Night)
	assertDec(t, "6", entry.SurchargeHours.Early)
	assertDec(t, "2", entry.SurchargeHours.Late)
	assertDec(t, "0", entry.SurchargeHours.Sunday)

	assertDec(t, "17.50", entry.SurchargeAmounts.Night)
	assertDec(t, "7.50", entry.SurchargeAmounts.Early)
	assertDec(t, "2.50", entry.SurchargeAmounts.Late)
	assertDec(t, "80", entry.BaseWage)
	assertDec(t, "107.50", entry.TotalGross)
	assert.Equal(t, 1, entry.ShiftCount)
	assert.Empty(t, entry.Warnings)
}

func TestCalculate_SundayNightStacks(t *testing.T) {
	// GIVEN: Sunday 23:00 -> Monday 02:00
	// THEN: Sunday band counts the full net 3h, night 3h, both paid

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts:   []core.Shift{confirmed("s1", "2025-03-09", "23:00", "02:00", 0)},
	})
	require.NoError(t, err)

	assertDec(t, "3", entry.ActualHours)
	assertDec(t, "3", entry.SurchargeHours.Sunday)
	assertDec(t, "3", entry.SurchargeHours.Night)
	assertDec(t, "2", entry.SurchargeHours.Early)
	assertDec(t, "1", entry.SurchargeHours.Late)
	assertDec(t, "0", entry.SurchargeHours.Weekend)
	assertDec(t, "15", entry.SurchargeAmounts.Sunday)
	assertDec(t, "7.50", entry.SurchargeAmounts.Night)
}

func TestCalculate_HolidayOnSundayIsAdditive(t *testing.T) {
	// Easter Sunday 2025, 08:00-16:00 with 30 min break: 7.5h net
	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    core.NewMonth(2025, time.April),
		Shifts:   []core.Shift{confirmed("s1", "2025-04-20", "08:00", "16:00", 30)},
	})
	require.NoError(t, err)

	assertDec(t, "7.5", entry.SurchargeHours.Sunday)
	assertDec(t, "7.5", entry.SurchargeHours.Holiday)
	assertDec(t, "37.50", entry.SurchargeAmounts.Sunday)
	assertDec(t, "93.75", entry.SurchargeAmounts.Holiday)
	assertDec(t, "206.25", entry.TotalGross)
}

func TestCalculate_SaturdayUsesWeekendBand(t *testing.T) {
	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts:   []core.Shift{confirmed("s1", "2025-03-08", "08:00", "12:00", 0)},
	})
	require.NoError(t, err)
	assertDec(t, "4", entry.SurchargeHours.Weekend)
	assertDec(t, "0", entry.SurchargeHours.Sunday)
	assertDec(t, "10", entry.SurchargeAmounts.Weekend)
}

// =============================================================================
// SHIFT SELECTION
// =============================================================================

func TestCalculate_CountsOnlyPayableShiftsOfMonthAndEmployee(t *testing.T) {
	planned := confirmed("planned", "2025-03-12", "08:00", "12:00", 0)
	planned.Status = core.ShiftPlanned
	cancelled := confirmed("cancelled", "2025-03-13", "08:00", "12:00", 0)
	cancelled.Status = core.ShiftCancelledAbsence
	completed := confirmed("completed", "2025-03-14", "08:00", "12:00", 0)
	completed.Status = core.ShiftCompleted
	other := confirmed("other", "2025-03-14", "08:00", "12:00", 0)
	other.EmployeeID = "emp-2"

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts: []core.Shift{
			confirmed("c", "2025-03-11", "08:00", "12:00", 0),
			confirmed("april", "2025-04-01", "08:00", "12:00", 0),
			planned, cancelled, completed, other,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.ShiftCount)
	assertDec(t, "8", entry.ActualHours)
}

func TestCalculate_ActualTimesOverridePlan(t *testing.T) {
	s := confirmed("s1", "2025-03-11", "08:00", "12:00", 0)
	start, end := core.MustClock("08:00"), core.MustClock("13:30")
	s.ActualStart, s.ActualEnd = &start, &end

	entry, err := calculator(t).Calculate(payroll.Input{Employee: worker("emp-1"), Month: march, Shifts: []core.Shift{s}})
	require.NoError(t, err)
	assertDec(t, "5.5", entry.ActualHours)
	assertDec(t, "55", entry.TotalGross)
}

func TestCalculate_NoShiftsYieldsZeroEntry(t *testing.T) {
	entry, err := calculator(t).Calculate(payroll.Input{Employee: worker("emp-1"), Month: march})
	require.NoError(t, err)
	assert.True(t, entry.ActualHours.IsZero())
	assert.True(t, entry.TotalGross.IsZero())
	assert.Equal(t, 0, entry.ShiftCount)
	assert.Contains(t, entry.Warnings, "no confirmed or completed shifts in month")
}

func TestCalculate_MissingRateIsValidationError(t *testing.T) {
	emp := worker("emp-1")
	emp.HourlyRate = nil

	_, err := calculator(t).Calculate(payroll.Input{Employee: emp, Month: march})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrMissingHourlyRate)
}

// =============================================================================
// CARRYOVER AND LIMITS
// =============================================================================

func TestCalculate_MonthlyLimitCarriesSurplus(t *testing.T) {
	emp := worker("emp-1")
	emp.MonthlyHoursLimit = core.DecimalPtr(dec("20"))

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee:          emp,
		Month:             march,
		Shifts:            []core.Shift{confirmed("s1", "2025-03-11", "08:00", "14:00", 0)},
		IncomingCarryover: dec("16"),
	})
	require.NoError(t, err)

	assertDec(t, "6", entry.ActualHours)
	assertDec(t, "16", entry.CarryoverHours)
	assertDec(t, "20", entry.PaidHours)
	assertDec(t, "2", entry.NewCarryover)
	assertDec(t, "60", entry.BaseWage)
	assertDec(t, "200", entry.TotalGross)
	require.NotNil(t, entry.PlannedHours)
	assertDec(t, "20", *entry.PlannedHours)
}

func TestCalculate_NegativePaidClampsAndCarriesRest(t *testing.T) {
	entry, err := calculator(t).Calculate(payroll.Input{
		Employee:          worker("emp-1"),
		Month:             march,
		Shifts:            []core.Shift{confirmed("s1", "2025-03-11", "08:00", "10:00", 0)},
		IncomingCarryover: dec("-5"),
	})
	require.NoError(t, err)
	assertDec(t, "0", entry.PaidHours)
	assertDec(t, "-3", entry.NewCarryover)
	assertDec(t, "0", entry.TotalGross)
	require.Len(t, entry.Warnings, 1)
	assert.Contains(t, entry.Warnings[0], "3.00 hours short")
}

func TestCalculate_ContractHistoryPicksTermsOfMonth(t *testing.T) {
	emp := worker("emp-1")
	emp.Contracts = []core.ContractTerms{
		{ValidFrom: core.MustDate("2025-01-01"), ValidTo: datePtr("2025-03-01"), HourlyRate: dec("12")},
		{ValidFrom: core.MustDate("2025-03-01"), HourlyRate: dec("14")},
	}
	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: emp,
		Month:    march,
		Shifts:   []core.Shift{confirmed("s1", "2025-03-11", "08:00", "10:00", 0)},
	})
	require.NoError(t, err)
	assertDec(t, "14", entry.HourlyRate)
	assertDec(t, "28", entry.TotalGross)
}

func datePtr(s string) *core.Date {
	d := core.MustDate(s)
	return &d
}

// =============================================================================
// MINIJOB
// =============================================================================

func TestCalculate_MinijobAnnualRemaining(t *testing.T) {
	emp := worker("emp-1")
	emp.ContractType = core.ContractMinijob

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee:      emp,
		Month:         march,
		Shifts:        []core.Shift{confirmed("s1", "2025-03-11", "08:00", "12:00", 0)},
		PriorYTDGross: dec("1000"),
	})
	require.NoError(t, err)
	assertDec(t, "1040", entry.YTDGross)
	require.NotNil(t, entry.AnnualLimitRemaining)
	assertDec(t, "5632", *entry.AnnualLimitRemaining)
	assert.Empty(t, entry.Warnings)
}

func TestCalculate_MinijobAnnualLimitExceededWarns(t *testing.T) {
	emp := worker("emp-1")
	emp.ContractType = core.ContractMinijob
	emp.AnnualSalaryLimit = core.DecimalPtr(dec("1000"))

	entry, err := calculator(t).Calculate(payroll.Input{
		Employee:      emp,
		Month:         march,
		Shifts:        []core.Shift{confirmed("s1", "2025-03-11", "08:00", "12:00", 0)},
		PriorYTDGross: dec("990"),
	})
	require.NoError(t, err)
	assertDec(t, "-30", *entry.AnnualLimitRemaining)
	require.Len(t, entry.Warnings, 1)
	assert.Contains(t, entry.Warnings[0], "exceeded by 30.00 EUR")
}

func TestCalculate_NonMinijobHasNoRemaining(t *testing.T) {
	entry, err := calculator(t).Calculate(payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts:   []core.Shift{confirmed("s1", "2025-03-11", "08:00", "12:00", 0)},
	})
	require.NoError(t, err)
	assert.Nil(t, entry.AnnualLimitRemaining)
}

func TestCalculate_IsDeterministic(t *testing.T) {
	in := payroll.Input{
		Employee: worker("emp-1"),
		Month:    march,
		Shifts: []core.Shift{
			confirmed("s1", "2025-03-09", "23:00", "02:00", 0),
			confirmed("s2", "2025-03-11", "07:10", "15:55", 35),
		},
	}
	first, err := calculator(t).Calculate(in)
	require.NoError(t, err)
	second, err := calculator(t).Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
