/*
scheduler.go - Automated monthly payroll scheduler

PURPOSE:
  Periodically calculates payroll for the month that just ended, so drafts
  exist for review without anyone pressing "calculate all".

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets the previous calendar month relative to Now
  - Skips employees that already have an entry for that month, whatever its
    status, so reviewed drafts and approved entries are never touched
  - Failed employees are retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(payrollService, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CalculateAllPayroll endpoint (manual run)
  - payroll/service.go: CalculateAll
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/payroll"
)

// BatchRunner is the part of payroll.Service the scheduler drives.
type BatchRunner interface {
	CalculateAll(ctx context.Context, month core.Month, opts payroll.BatchOptions) (payroll.BatchResult, error)
}

// PayrollScheduler handles automated monthly payroll runs.
type PayrollScheduler struct {
	Payroll       BatchRunner
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(runner BatchRunner, logger *slog.Logger) *PayrollScheduler {
	return &PayrollScheduler{
		Payroll:       runner,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	log := ps.log()
	if !ps.Enabled {
		log.Info("scheduler disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps.cancel = cancel
	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run(ctx, ps.ticker)

	log.Info("scheduler started", "interval", ps.CheckInterval.String(), "next_run", ps.nextRunLocked())
}

// Stop stops the scheduler and waits for a running batch to return.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		ps.cancel()
		ps.wg.Wait()
		ps.ticker = nil
		ps.log().Info("scheduler stopped")
	}
}

func (ps *PayrollScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			ps.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow calculates the previous month once (for testing/admin).
func (ps *PayrollScheduler) RunNow(ctx context.Context) (payroll.BatchResult, error) {
	month := ps.TargetMonth()
	log := ps.log().With("month", month.String())
	log.Debug("checking payroll")

	result, err := ps.Payroll.CalculateAll(ctx, month, payroll.BatchOptions{SkipExisting: true})
	if err != nil {
		log.Warn("payroll run had failures", "error", err, "kind", logging.ErrorKind(err))
	}
	if len(result.Entries) > 0 {
		log.Info("payroll run completed", "calculated", len(result.Entries), "skipped", len(result.Skipped))
	}
	return result, err
}

// TargetMonth is the month before Now.
func (ps *PayrollScheduler) TargetMonth() core.Month {
	return core.DateOf(ps.now()).MonthKey().Prev()
}

// NextRunTime returns when the next scheduled check will occur, or the zero
// time when the scheduler is not running.
func (ps *PayrollScheduler) NextRunTime() time.Time {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.nextRunLocked()
}

func (ps *PayrollScheduler) nextRunLocked() time.Time {
	if ps.ticker == nil {
		return time.Time{}
	}
	return ps.now().Add(ps.CheckInterval)
}

func (ps *PayrollScheduler) now() time.Time {
	if ps.Now != nil {
		return ps.Now()
	}
	return time.Now()
}

func (ps *PayrollScheduler) log() *slog.Logger {
	return logging.Service(context.Background(), ps.Logger, "scheduler", "payroll")
}
