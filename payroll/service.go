package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
)

// Reconciler is notified after an entry is stored, so compliance can replace
// provisional minijob flags with final ones.
type Reconciler interface {
	Reconcile(ctx context.Context, entry core.PayrollEntry) (int, error)
}

// Service runs payroll against the store.
//
// Writes for one (employee, month) are serialized by a keyed lock; different
// keys run in parallel. Calculation and the carryover record commit in one
// store transaction.
type Service struct {
	Store      core.Store
	Calculator *Calculator
	Carryover  core.CarryoverPolicy
	Reconciler Reconciler
	Logger     *slog.Logger

	// Workers bounds CalculateAll parallelism (<= 0 means 4).
	Workers int
	Now     func() time.Time
	NewID   func() string

	locks keyedMutex
}

func NewService(store core.Store, cal calendar.Classifier, policy core.Policy, logger *slog.Logger) *Service {
	return &Service{
		Store:      store,
		Calculator: NewCalculator(policy.Payroll, cal),
		Carryover:  policy.Carryover,
		Logger:     logger,
		Workers:    4,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// =============================================================================
// CALCULATE
// =============================================================================

// Calculate computes and stores the entry for (employeeID, month).
//
// A draft entry is overwritten in place (same ID). Approved or paid entries
// are refused with a ConflictError. With a fixed clock, recalculating an
// unchanged draft yields an identical entry and no new carryover record.
func (s *Service) Calculate(ctx context.Context, employeeID core.EmployeeID, month core.Month) (core.PayrollEntry, error) {
	log := logging.Service(ctx, s.Logger, "payroll", "calculate", "employee_id", employeeID, "month", month.String())

	unlock := s.locks.Lock(core.PayrollKey{EmployeeID: employeeID, Month: month})
	defer unlock()

	var entry core.PayrollEntry
	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		var err error
		entry, err = s.calculateTx(ctx, tx, employeeID, month)
		return err
	})
	if err != nil {
		log.Warn("payroll calculation refused", "error", err, "kind", logging.ErrorKind(err))
		return core.PayrollEntry{}, err
	}

	if s.Reconciler != nil {
		if _, err := s.Reconciler.Reconcile(ctx, entry); err != nil {
			log.Error("compliance reconciliation failed", "error", err)
		}
	}

	log.Info("payroll calculated",
		"total_gross", entry.TotalGross.StringFixed(2),
		"paid_hours", entry.PaidHours.String(),
		"new_carryover", entry.NewCarryover.String())
	return entry, nil
}

func (s *Service) calculateTx(ctx context.Context, tx core.Store, employeeID core.EmployeeID, month core.Month) (core.PayrollEntry, error) {
	emp, err := tx.GetEmployee(ctx, employeeID)
	if err != nil {
		return core.PayrollEntry{}, err
	}

	existing, err := tx.GetPayrollEntry(ctx, employeeID, month)
	if err != nil {
		return core.PayrollEntry{}, err
	}
	if existing != nil && !existing.Status.IsRecomputable() {
		return core.PayrollEntry{}, &core.ConflictError{
			Resource: "payroll_entry",
			Key:      fmt.Sprintf("%s/%s", employeeID, month),
			Reason:   fmt.Sprintf("entry is %s", existing.Status),
			Err:      core.ErrEntryLocked,
		}
	}

	period := month.Period()
	shifts, err := tx.ListShifts(ctx, core.ShiftFilter{
		EmployeeID: employeeID,
		Period:     &period,
		Statuses:   []core.ShiftStatus{core.ShiftConfirmed, core.ShiftCompleted},
	})
	if err != nil {
		return core.PayrollEntry{}, err
	}
	profile, err := tx.ActiveProfile(ctx)
	if err != nil {
		return core.PayrollEntry{}, err
	}

	ledger := &core.CarryoverLedger{Store: tx, Policy: s.Carryover, Now: s.now}
	incoming, err := ledger.Balance(ctx, employeeID, month)
	if err != nil {
		return core.PayrollEntry{}, err
	}
	priorYTD, err := s.priorYTD(ctx, tx, employeeID, month)
	if err != nil {
		return core.PayrollEntry{}, err
	}

	entry, err := s.Calculator.Calculate(Input{
		Employee:          emp,
		Month:             month,
		Shifts:            shifts,
		Profile:           profile,
		IncomingCarryover: incoming,
		PriorYTDGross:     priorYTD,
	})
	if err != nil {
		return core.PayrollEntry{}, err
	}

	if existing != nil {
		entry.ID = existing.ID
		entry.Notes = existing.Notes
	} else {
		entry.ID = core.PayrollEntryID(s.newID())
	}
	entry.Status = core.PayrollDraft
	entry.CalculatedAt = s.now().UTC()
	if existing != nil && existing.SameFigures(entry) {
		// an unchanged recalculation leaves the stored entry as it was
		entry.CalculatedAt = existing.CalculatedAt
	}

	if err := tx.SavePayrollEntry(ctx, entry); err != nil {
		return core.PayrollEntry{}, fmt.Errorf("save payroll entry: %w", err)
	}
	if _, _, err := ledger.Record(ctx, employeeID, month, entry.NewCarryover, "payroll "+month.String()); err != nil {
		return core.PayrollEntry{}, fmt.Errorf("record carryover: %w", err)
	}
	return entry, nil
}

// priorYTD sums the gross of the same year's earlier months, whatever their
// status.
func (s *Service) priorYTD(ctx context.Context, tx core.PayrollStore, employeeID core.EmployeeID, month core.Month) (decimal.Decimal, error) {
	entries, err := tx.ListPayrollEntries(ctx, employeeID, month.Year)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, e := range entries {
		if e.Month.Before(month) {
			sum = sum.Add(e.TotalGross)
		}
	}
	return sum, nil
}

// =============================================================================
// BATCH
// =============================================================================

type BatchOptions struct {
	// SkipExisting leaves employees alone that already have an entry for the
	// month, whatever its status.
	SkipExisting bool
}

type BatchResult struct {
	Entries []core.PayrollEntry `json:"entries"`
	Skipped []core.EmployeeID   `json:"skipped"`
}

// CalculateAll runs Calculate for every active employee in parallel. One
// employee's failure never stops the others; failures come back as a
// *core.AggregateError next to the successful entries, sorted by employee.
func (s *Service) CalculateAll(ctx context.Context, month core.Month, opts BatchOptions) (BatchResult, error) {
	log := logging.Service(ctx, s.Logger, "payroll", "calculate_all", "month", month.String())

	employees, err := s.Store.ListEmployees(ctx, true)
	if err != nil {
		return BatchResult{}, err
	}

	var (
		mu       sync.Mutex
		result   = BatchResult{Entries: []core.PayrollEntry{}, Skipped: []core.EmployeeID{}}
		failures []core.EmployeeFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, emp := range employees {
		g.Go(func() error {
			if opts.SkipExisting {
				existing, err := s.Store.GetPayrollEntry(gctx, emp.ID, month)
				if err == nil && existing != nil {
					mu.Lock()
					result.Skipped = append(result.Skipped, emp.ID)
					mu.Unlock()
					return nil
				}
			}

			entry, err := s.Calculate(gctx, emp.ID, month)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, core.EmployeeFailure{EmployeeID: emp.ID, Err: err})
				return nil
			}
			result.Entries = append(result.Entries, entry)
			return nil
		})
	}
	// workers never return errors, so Wait only reports a nil
	_ = g.Wait()

	sort.Slice(result.Entries, func(i, j int) bool { return result.Entries[i].EmployeeID < result.Entries[j].EmployeeID })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i] < result.Skipped[j] })

	log.Info("batch finished", "calculated", len(result.Entries), "skipped", len(result.Skipped), "failed", len(failures))
	if agg := core.NewAggregateError("calculate payroll "+month.String(), failures); agg != nil {
		return result, agg
	}
	return result, nil
}

// =============================================================================
// STATUS WORKFLOW - draft -> approved -> paid, explicit reset approved -> draft
// =============================================================================

func (s *Service) Approve(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	return s.transition(ctx, id, core.PayrollApproved)
}

func (s *Service) MarkPaid(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	return s.transition(ctx, id, core.PayrollPaid)
}

// ResetToDraft reopens an approved entry for recalculation. Paid entries are
// final.
func (s *Service) ResetToDraft(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	return s.transition(ctx, id, core.PayrollDraft)
}

func (s *Service) transition(ctx context.Context, id core.PayrollEntryID, next core.PayrollStatus) (core.PayrollEntry, error) {
	var out core.PayrollEntry
	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		entry, err := tx.GetPayrollEntryByID(ctx, id)
		if err != nil {
			return err
		}
		allowed := entry.Status.CanTransitionTo(next)
		if next == core.PayrollDraft {
			allowed = entry.Status == core.PayrollApproved
		}
		if !allowed {
			return &core.ConflictError{
				Resource: "payroll_entry",
				Key:      string(id),
				Reason:   fmt.Sprintf("cannot move from %s to %s", entry.Status, next),
				Err:      core.ErrInvalidTransition,
			}
		}
		entry.Status = next
		out = entry
		return tx.SavePayrollEntry(ctx, entry)
	})
	if err != nil {
		return core.PayrollEntry{}, err
	}
	logging.Service(ctx, s.Logger, "payroll", "transition", "entry_id", id).Info("status changed", "status", next)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) workers() int {
	if s.Workers <= 0 {
		return 4
	}
	return s.Workers
}

// keyedMutex serializes work per payroll key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[core.PayrollKey]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the unlock func.
func (k *keyedMutex) Lock(key core.PayrollKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[core.PayrollKey]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
