package core

import "fmt"

// =============================================================================
// SHIFT STATUS - Closed set; every switch over it must be exhaustive
// =============================================================================

type ShiftStatus string

const (
	ShiftPlanned          ShiftStatus = "planned"
	ShiftConfirmed        ShiftStatus = "confirmed"
	ShiftCompleted        ShiftStatus = "completed"
	ShiftCancelled        ShiftStatus = "cancelled"
	ShiftCancelledAbsence ShiftStatus = "cancelled_absence"
)

func ParseShiftStatus(s string) (ShiftStatus, error) {
	st := ShiftStatus(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown shift status %q", s)}
	}
	return st, nil
}

func (s ShiftStatus) Valid() bool {
	switch s {
	case ShiftPlanned, ShiftConfirmed, ShiftCompleted, ShiftCancelled, ShiftCancelledAbsence:
		return true
	default:
		return false
	}
}

// IsTerminal reports statuses that never change again.
func (s ShiftStatus) IsTerminal() bool {
	switch s {
	case ShiftCompleted, ShiftCancelled, ShiftCancelledAbsence:
		return true
	case ShiftPlanned, ShiftConfirmed:
		return false
	default:
		panic(fmt.Sprintf("unhandled shift status %q", s))
	}
}

// IsPayable reports whether shifts in this status count towards payroll.
func (s ShiftStatus) IsPayable() bool {
	switch s {
	case ShiftConfirmed, ShiftCompleted:
		return true
	case ShiftPlanned, ShiftCancelled, ShiftCancelledAbsence:
		return false
	default:
		panic(fmt.Sprintf("unhandled shift status %q", s))
	}
}

// IsCancelled reports statuses that drop the shift from compliance checks.
func (s ShiftStatus) IsCancelled() bool {
	switch s {
	case ShiftCancelled, ShiftCancelledAbsence:
		return true
	case ShiftPlanned, ShiftConfirmed, ShiftCompleted:
		return false
	default:
		panic(fmt.Sprintf("unhandled shift status %q", s))
	}
}

// CanTransitionTo lists the allowed shift lifecycle moves.
func (s ShiftStatus) CanTransitionTo(next ShiftStatus) bool {
	switch s {
	case ShiftPlanned:
		return next == ShiftConfirmed || next == ShiftCancelled || next == ShiftCancelledAbsence
	case ShiftConfirmed:
		return next == ShiftCompleted || next == ShiftCancelled || next == ShiftCancelledAbsence
	case ShiftCompleted, ShiftCancelled, ShiftCancelledAbsence:
		return false
	default:
		panic(fmt.Sprintf("unhandled shift status %q", s))
	}
}

// =============================================================================
// PAYROLL STATUS - Forward-only: draft -> approved -> paid
// =============================================================================

type PayrollStatus string

const (
	PayrollDraft    PayrollStatus = "draft"
	PayrollApproved PayrollStatus = "approved"
	PayrollPaid     PayrollStatus = "paid"
)

func ParsePayrollStatus(s string) (PayrollStatus, error) {
	st := PayrollStatus(s)
	switch st {
	case PayrollDraft, PayrollApproved, PayrollPaid:
		return st, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown payroll status %q", s)}
	}
}

// IsRecomputable is true only for drafts.
func (s PayrollStatus) IsRecomputable() bool {
	switch s {
	case PayrollDraft:
		return true
	case PayrollApproved, PayrollPaid:
		return false
	default:
		panic(fmt.Sprintf("unhandled payroll status %q", s))
	}
}

func (s PayrollStatus) CanTransitionTo(next PayrollStatus) bool {
	switch s {
	case PayrollDraft:
		return next == PayrollApproved
	case PayrollApproved:
		return next == PayrollPaid
	case PayrollPaid:
		return false
	default:
		panic(fmt.Sprintf("unhandled payroll status %q", s))
	}
}
