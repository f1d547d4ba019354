/*
ledger.go - Carryover ledger

PURPOSE:
  Tracks the signed hour balance moved from one month to the next per
  employee. Every payroll calculation records the delta it produced for
  month+1; the next calculation reads it back as incoming carryover.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: records are never updated or deleted
  2. LATEST WINS: the effective balance for a month is the most recent
     record targeting exactly that month; a month nobody carried into starts
     at zero, and expired records count as zero
  3. IDEMPOTENT: recording the same balance again is a no-op, so repeated
     draft recalculations do not grow the ledger

CORRECTIONS:
  A recalculated month appends a new record with the new balance. The older
  record stays for audit; only the latest is effective.

EXAMPLE FLOW:
  1. March worked 25h with limit 20:  record 03 -> 04 = +5
  2. April payroll reads +5 as incoming carryover
  3. March recalculated (26h):         record 03 -> 04 = +6 (latest wins)
*/
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CarryoverLedger is the source of truth for carried-over hours.
type CarryoverLedger struct {
	Store  CarryoverStore
	Policy CarryoverPolicy
	Now    func() time.Time
}

func NewCarryoverLedger(store CarryoverStore, policy CarryoverPolicy) *CarryoverLedger {
	return &CarryoverLedger{Store: store, Policy: policy, Now: time.Now}
}

// Record appends the balance carried from `from` into the next month.
// Returns the effective record and whether a new one was written.
func (l *CarryoverLedger) Record(ctx context.Context, employeeID EmployeeID, from Month, hours decimal.Decimal, reason string) (CarryoverRecord, bool, error) {
	to := from.Next()
	latest, err := l.latest(ctx, employeeID, to)
	if err != nil {
		return CarryoverRecord{}, false, err
	}
	if latest != nil && latest.Hours.Equal(hours) {
		return *latest, false, nil
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	rec, err := l.Store.AppendCarryover(ctx, CarryoverRecord{
		ID:         CarryoverID(uuid.NewString()),
		EmployeeID: employeeID,
		FromMonth:  from,
		ToMonth:    to,
		Hours:      hours,
		Reason:     reason,
		CreatedAt:  now().UTC(),
	})
	if err != nil {
		return CarryoverRecord{}, false, err
	}
	return rec, true, nil
}

// Balance returns the incoming carryover for month m (zero if none applies).
func (l *CarryoverLedger) Balance(ctx context.Context, employeeID EmployeeID, m Month) (decimal.Decimal, error) {
	rec, err := l.latest(ctx, employeeID, m)
	if err != nil {
		return decimal.Zero, err
	}
	if rec == nil || l.Policy.IsExpired(*rec, m) {
		return decimal.Zero, nil
	}
	return rec.Hours, nil
}

// History returns all records for an employee, oldest first.
func (l *CarryoverLedger) History(ctx context.Context, employeeID EmployeeID) ([]CarryoverRecord, error) {
	return l.Store.ListCarryover(ctx, employeeID)
}

// latest returns the effective record for month m: the highest Sequence among
// records with ToMonth == m.
func (l *CarryoverLedger) latest(ctx context.Context, employeeID EmployeeID, m Month) (*CarryoverRecord, error) {
	records, err := l.Store.ListCarryover(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	var found *CarryoverRecord
	for i := range records {
		rec := &records[i]
		if rec.ToMonth != m {
			continue
		}
		if found == nil || rec.Sequence > found.Sequence {
			found = rec
		}
	}
	return found, nil
}
