/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the engine and its storage. Components read
  and write plain records through these interfaces; implementations decide
  how records are kept (memory for tests, SQLite for the server).

KEY INTERFACES:
  EmployeeStore:  Employee records (read-only for the engine)
  CalendarStore:  Holiday profiles and the active-profile lookup
  RuleStore:      Recurring shift rules
  ShiftStore:     Shifts (written by generation and flag updates)
  PayrollStore:   Payroll entries, unique per (employee, month)
  CarryoverStore: Append-only carryover records
  Store:          All of the above plus WithTx

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error the
  whole unit is rolled back. Cutover regeneration (delete + recreate) and
  payroll persistence (entry + carryover record) rely on this.

IMPLEMENTATIONS:
  - core/store/memory.go: In-memory, snapshot + rollback
  - store/sqlite/sqlite.go: SQLite with goose migrations
*/
package core

import "context"

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	// GetEmployee returns ErrEmployeeNotFound when missing.
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error)
}

type CalendarStore interface {
	// SaveProfile upserts. Saving an active profile deactivates all others.
	SaveProfile(ctx context.Context, p HolidayProfile) error
	GetProfile(ctx context.Context, id ProfileID) (HolidayProfile, error)
	// ActiveProfile returns nil when no profile is active.
	ActiveProfile(ctx context.Context) (*HolidayProfile, error)
	ListProfiles(ctx context.Context) ([]HolidayProfile, error)
}

type RuleStore interface {
	SaveRule(ctx context.Context, r RecurringShiftRule) error
	GetRule(ctx context.Context, id RuleID) (RecurringShiftRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]RecurringShiftRule, error)
}

// ShiftFilter narrows ListShifts. Zero fields do not filter.
type ShiftFilter struct {
	EmployeeID EmployeeID
	RuleID     RuleID
	Period     *Period
	Statuses   []ShiftStatus
}

func (f ShiftFilter) Matches(s Shift) bool {
	if f.EmployeeID != "" && s.EmployeeID != f.EmployeeID {
		return false
	}
	if f.RuleID != "" && s.RuleID != f.RuleID {
		return false
	}
	if f.Period != nil && !f.Period.Contains(s.Date) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if s.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type ShiftStore interface {
	// SaveShifts upserts by ID.
	SaveShifts(ctx context.Context, shifts []Shift) error
	GetShift(ctx context.Context, id ShiftID) (Shift, error)
	// ListShifts returns shifts ordered by date, start time, ID.
	ListShifts(ctx context.Context, f ShiftFilter) ([]Shift, error)
	DeleteShifts(ctx context.Context, ids []ShiftID) error
}

type PayrollStore interface {
	// SavePayrollEntry upserts by (employee, month).
	SavePayrollEntry(ctx context.Context, e PayrollEntry) error
	// GetPayrollEntry returns nil when no entry exists for the key.
	GetPayrollEntry(ctx context.Context, employeeID EmployeeID, m Month) (*PayrollEntry, error)
	GetPayrollEntryByID(ctx context.Context, id PayrollEntryID) (PayrollEntry, error)
	// ListPayrollEntries filters by employee (empty = all) and year (0 = all).
	ListPayrollEntries(ctx context.Context, employeeID EmployeeID, year int) ([]PayrollEntry, error)
}

type CarryoverStore interface {
	// AppendCarryover assigns Sequence and returns the stored record.
	AppendCarryover(ctx context.Context, rec CarryoverRecord) (CarryoverRecord, error)
	// ListCarryover returns the employee's records ordered by Sequence.
	ListCarryover(ctx context.Context, employeeID EmployeeID) ([]CarryoverRecord, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	EmployeeStore
	CalendarStore
	RuleStore
	ShiftStore
	PayrollStore
	CarryoverStore

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
