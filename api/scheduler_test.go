package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/payroll"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []payroll.BatchOptions
	month []core.Month
}

func (f *fakeRunner) CalculateAll(_ context.Context, month core.Month, opts payroll.BatchOptions) (payroll.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.month = append(f.month, month)
	return payroll.BatchResult{}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(runner BatchRunner) *PayrollScheduler {
	ps := NewPayrollScheduler(runner, logging.Discard())
	ps.Now = func() time.Time { return testNow }
	return ps
}

func TestScheduler_TargetsPreviousMonth(t *testing.T) {
	ps := newTestScheduler(&fakeRunner{})
	assert.Equal(t, core.NewMonth(2025, 3), ps.TargetMonth())

	ps.Now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, core.NewMonth(2024, 12), ps.TargetMonth())
}

func TestScheduler_RunNowSkipsExisting(t *testing.T) {
	runner := &fakeRunner{}
	ps := newTestScheduler(runner)

	_, err := ps.RunNow(t.Context())
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.True(t, runner.calls[0].SkipExisting)
	assert.Equal(t, "2025-03", runner.month[0].String())
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	runner := &fakeRunner{}
	ps := newTestScheduler(runner)
	ps.Enabled = false

	ps.Start()
	assert.True(t, ps.NextRunTime().IsZero())
	ps.Stop()

	assert.Zero(t, runner.count())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{}
	ps := newTestScheduler(runner)
	ps.CheckInterval = time.Hour

	assert.True(t, ps.NextRunTime().IsZero())
	ps.Start()
	ps.Start()
	assert.Eventually(t, func() bool { return runner.count() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, testNow.Add(time.Hour), ps.NextRunTime())
	ps.Stop()

	assert.Equal(t, 1, runner.count())
	assert.True(t, ps.NextRunTime().IsZero())
}

func TestScheduler_AgainstRealPayroll(t *testing.T) {
	h, router := setupTestServer(t)
	requireStatus(t, do(t, router, "POST", "/api/employees", carerJSON), 201)
	seedConfirmedShifts(t, h, "emp-1", 2)

	ps := newTestScheduler(h.Payroll)

	first, err := ps.RunNow(t.Context())
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	second, err := ps.RunNow(t.Context())
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	assert.Equal(t, []core.EmployeeID{"emp-1"}, second.Skipped)
}
