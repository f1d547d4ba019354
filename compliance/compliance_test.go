package compliance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/compliance"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/core/store"
	"github.com/warp/shift-engine/logging"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mkShift(id, date, start, end string, breakMin int) core.Shift {
	return core.Shift{
		ID:           core.ShiftID(id),
		Date:         core.MustDate(date),
		Start:        core.MustClock(start),
		End:          core.MustClock(end),
		BreakMinutes: breakMin,
		EmployeeID:   "emp-1",
		Status:       core.ShiftPlanned,
		Flags:        core.DefaultFlags(),
	}
}

func minijobber() core.Employee {
	return core.Employee{
		ID:           "emp-1",
		Name:         "Mia",
		ContractType: core.ContractMinijob,
		HourlyRate:   core.DecimalPtr(dec("13.50")),
		Active:       true,
	}
}

func validator() *compliance.Validator {
	return compliance.NewValidator(core.DefaultCompliancePolicy())
}

// =============================================================================
// REST PERIOD
// =============================================================================

func TestEvaluate_RestPeriod(t *testing.T) {
	cases := []struct {
		name      string
		prior     core.Shift
		wantOK    bool
		wantHours string
	}{
		{"late evening then early morning", mkShift("p", "2025-03-10", "14:00", "22:00", 30), false, "10"},
		{"evening then morning", mkShift("p", "2025-03-10", "12:00", "20:00", 30), true, "12"},
		{"overnight prior rolls into next day", mkShift("p", "2025-03-09", "22:00", "06:00", 30), true, "26"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prior := tc.prior
			flags := validator().Evaluate(compliance.Input{
				Shift: mkShift("s", "2025-03-11", "08:00", "12:00", 0),
				Prior: &prior,
			})
			assert.Equal(t, tc.wantOK, flags.RestPeriodOK)
			require.NotNil(t, flags.RestHours)
			assert.True(t, flags.RestHours.Equal(dec(tc.wantHours)), "rest %s", flags.RestHours)
		})
	}
}

func TestEvaluate_NoPriorShiftRestIsOK(t *testing.T) {
	flags := validator().Evaluate(compliance.Input{Shift: mkShift("s", "2025-03-11", "08:00", "12:00", 0)})
	assert.True(t, flags.RestPeriodOK)
	assert.Nil(t, flags.RestHours)
}

// =============================================================================
// BREAKS
// =============================================================================

func TestEvaluate_BreakTiers(t *testing.T) {
	cases := []struct {
		name     string
		start    string
		end      string
		breakMin int
		wantOK   bool
	}{
		{"7h with 20 min", "08:00", "15:00", 20, false},
		{"7h with 30 min", "08:00", "15:00", 30, true},
		{"exactly 6h net needs nothing", "08:00", "14:00", 0, true},
		{"10h with 30 min", "08:00", "18:00", 30, false},
		{"10h with 45 min", "08:00", "18:00", 45, true},
		{"overnight 8h with 30 min", "22:00", "06:00", 30, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flags := validator().Evaluate(compliance.Input{Shift: mkShift("s", "2025-03-11", tc.start, tc.end, tc.breakMin)})
			assert.Equal(t, tc.wantOK, flags.BreakOK)
			assert.Equal(t, !tc.wantOK, flags.HasViolations())
		})
	}
}

// =============================================================================
// MINIJOB
// =============================================================================

func TestEvaluate_MinijobProvisionalBeforePayroll(t *testing.T) {
	emp := minijobber()
	flags := validator().Evaluate(compliance.Input{
		Shift:    mkShift("s", "2025-03-11", "08:00", "12:00", 0),
		Employee: &emp,
	})
	assert.True(t, flags.MinijobLimitOK)
	assert.True(t, flags.MinijobProvisional)
	assert.False(t, flags.HasViolations())
}

func TestEvaluate_MinijobMonthlyLimit(t *testing.T) {
	emp := minijobber()
	base := compliance.Input{Shift: mkShift("s", "2025-03-11", "08:00", "12:00", 0), Employee: &emp}

	within := base
	within.MonthGross = core.DecimalPtr(dec("556.00"))
	flags := validator().Evaluate(within)
	assert.True(t, flags.MinijobLimitOK)
	assert.False(t, flags.MinijobProvisional)

	over := base
	over.MonthGross = core.DecimalPtr(dec("556.01"))
	flags = validator().Evaluate(over)
	assert.False(t, flags.MinijobLimitOK)
	assert.Len(t, flags.Violations, 1)
}

func TestEvaluate_MinijobAnnualWarnings(t *testing.T) {
	emp := minijobber()
	in := compliance.Input{Shift: mkShift("s", "2025-11-11", "08:00", "12:00", 0), Employee: &emp, MonthGross: core.DecimalPtr(dec("500"))}

	in.YearGross = dec("6000")
	assert.Empty(t, validator().Evaluate(in).Warnings)

	in.YearGross = dec("6400")
	flags := validator().Evaluate(in)
	require.Len(t, flags.Warnings, 1)
	assert.Contains(t, flags.Warnings[0], "nearly reached")

	in.YearGross = dec("6700")
	flags = validator().Evaluate(in)
	require.Len(t, flags.Warnings, 1)
	assert.Contains(t, flags.Warnings[0], "exceeded")
	assert.True(t, flags.MinijobLimitOK, "annual figures only warn")
}

func TestEvaluate_NonMinijobIgnoresLimits(t *testing.T) {
	emp := minijobber()
	emp.ContractType = core.ContractPartTime
	flags := validator().Evaluate(compliance.Input{
		Shift:      mkShift("s", "2025-03-11", "08:00", "12:00", 0),
		Employee:   &emp,
		MonthGross: core.DecimalPtr(dec("2000")),
		YearGross:  dec("20000"),
	})
	assert.True(t, flags.MinijobLimitOK)
	assert.False(t, flags.MinijobProvisional)
	assert.Empty(t, flags.Warnings)
}

// =============================================================================
// DAY FLAGS AND IDEMPOTENCE
// =============================================================================

func TestEvaluate_HolidayFlagsAndIdempotence(t *testing.T) {
	cal, err := calendar.NewProvider("BW")
	require.NoError(t, err)
	d := core.MustDate("2025-12-25")
	in := compliance.Input{
		Shift: mkShift("s", d.String(), "08:00", "16:00", 30),
		Day:   cal.Classify(d, nil),
	}

	first := validator().Evaluate(in)
	second := validator().Evaluate(in)
	assert.Equal(t, first, second)
	assert.True(t, first.IsHoliday)
	assert.Equal(t, "1. Weihnachtstag", first.HolidayName)
	assert.False(t, first.IsWeekend)
	assert.Contains(t, first.Warnings, "public holiday: 1. Weihnachtstag")
}

// =============================================================================
// SERVICE
// =============================================================================

func newTestService(t *testing.T) (*compliance.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	cal, err := calendar.NewProvider("BW")
	require.NoError(t, err)
	require.NoError(t, mem.SaveEmployee(context.Background(), minijobber()))
	return compliance.NewService(mem, cal, core.DefaultCompliancePolicy(), logging.Discard()), mem
}

func TestService_EvaluateShiftFindsPriorAndStoresFlags(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	cancelled := mkShift("c", "2025-03-10", "20:00", "23:00", 0)
	cancelled.Status = core.ShiftCancelled
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{
		mkShift("prior", "2025-03-10", "14:00", "22:00", 30),
		cancelled,
		mkShift("s", "2025-03-11", "06:00", "12:00", 0),
	}))

	got, err := svc.EvaluateShift(ctx, "s")
	require.NoError(t, err)
	assert.False(t, got.Flags.RestPeriodOK)
	assert.True(t, got.Flags.RestHours.Equal(dec("8")))
	assert.True(t, got.Flags.MinijobProvisional)

	stored, err := mem.GetShift(ctx, "s")
	require.NoError(t, err)
	assert.False(t, stored.Flags.RestPeriodOK)
}

func TestService_EvaluateShiftNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.EvaluateShift(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrShiftNotFound)
}

func TestService_EvaluateNeighboursRechecksNextShiftOnly(t *testing.T) {
	// GIVEN: Tuesday and Wednesday early shifts evaluated before the Monday late shift existed
	// WHEN: The Monday late shift is added and its neighbours re-evaluated
	// THEN: Only Tuesday is refreshed, with the short rest

	ctx := context.Background()
	svc, mem := newTestService(t)
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{
		mkShift("tue", "2025-03-11", "06:00", "12:00", 0),
		mkShift("wed", "2025-03-12", "06:00", "12:00", 0),
	}))
	_, err := svc.EvaluateShift(ctx, "tue")
	require.NoError(t, err)

	mon := mkShift("mon", "2025-03-10", "14:00", "22:00", 30)
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{mon}))

	updated, err := svc.EvaluateNeighbours(ctx, mon)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, core.ShiftID("tue"), updated[0].ID)

	stored, err := mem.GetShift(ctx, "tue")
	require.NoError(t, err)
	assert.False(t, stored.Flags.RestPeriodOK)
	assert.True(t, stored.Flags.RestHours.Equal(dec("8")))
}

func TestService_EvaluateNeighboursSkipsOpenAndDistantShifts(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	open := mkShift("open", "2025-03-10", "14:00", "22:00", 30)
	open.EmployeeID = ""
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{
		mkShift("far", "2025-03-20", "06:00", "12:00", 0),
		open,
	}))

	updated, err := svc.EvaluateNeighbours(ctx, open, mkShift("mon", "2025-03-10", "14:00", "22:00", 30))
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestService_SweepSkipsCancelledAndCounts(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	cancelled := mkShift("c", "2025-03-12", "08:00", "18:00", 0)
	cancelled.Status = core.ShiftCancelledAbsence
	open := mkShift("open", "2025-03-13", "08:00", "16:00", 0)
	open.EmployeeID = ""
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{
		mkShift("a", "2025-03-10", "08:00", "15:00", 20),
		mkShift("b", "2025-03-11", "08:00", "12:00", 0),
		cancelled,
		open,
	}))

	result, err := svc.Sweep(ctx, core.NewPeriod(core.MustDate("2025-03-01"), core.MustDate("2025-03-31")))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 2, result.Violations, "7h without enough break, and the open 8h shift without break")
}

func TestService_ReconcileFinalizesMinijobFlag(t *testing.T) {
	// GIVEN: A minijob shift evaluated before payroll (provisional)
	// WHEN: Payroll produced 600 EUR for the month and Reconcile runs
	// THEN: The flag is final and false

	ctx := context.Background()
	svc, mem := newTestService(t)
	require.NoError(t, mem.SaveShifts(ctx, []core.Shift{mkShift("s", "2025-03-11", "08:00", "12:00", 0)}))

	first, err := svc.EvaluateShift(ctx, "s")
	require.NoError(t, err)
	assert.True(t, first.Flags.MinijobProvisional)

	entry := core.PayrollEntry{ID: "p", EmployeeID: "emp-1", Month: core.NewMonth(2025, time.March), TotalGross: dec("600")}
	require.NoError(t, mem.SavePayrollEntry(ctx, entry))

	n, err := svc.Reconcile(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := mem.GetShift(ctx, "s")
	require.NoError(t, err)
	assert.False(t, stored.Flags.MinijobProvisional)
	assert.False(t, stored.Flags.MinijobLimitOK)
}
