/*
errors.go - Centralized error types for the shift engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Component packages wrap these with context via fmt.Errorf("...: %w").

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before any computation
  2. Conflict errors   - refused writes that would corrupt protected state
  3. Not-found errors  - missing employees, rules, shifts, entries
  4. Aggregate errors  - batch runs that partially failed

Policy violations (rest period, breaks, minijob limits) are NOT errors.
They are recorded as data on ComplianceFlags and PayrollEntry.Warnings.

SEE ALSO:
  - ledger.go: Uses ErrDuplicateCarryover
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category for all rejected inputs.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the category for refused writes on protected state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrMissingHourlyRate makes payroll impossible for an employee.
	ErrMissingHourlyRate = errors.New("hourly rate is missing")

	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrRuleNotFound         = errors.New("recurring shift rule not found")
	ErrProfileNotFound      = errors.New("holiday profile not found")
	ErrPayrollEntryNotFound = errors.New("payroll entry not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrEntryLocked          = errors.New("payroll entry is not a draft")
	ErrDuplicateCarryover   = errors.New("carryover record already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// ConflictError describes a refused write.
type ConflictError struct {
	Resource string
	Key      string
	Reason   string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", e.Resource, e.Key, e.Reason)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// EmployeeFailure is one failed item of a batch run.
type EmployeeFailure struct {
	EmployeeID EmployeeID
	Err        error
}

// AggregateError collects per-employee failures of a batch that otherwise
// completed. Failures are sorted by employee for stable output.
type AggregateError struct {
	Operation string
	Failures  []EmployeeFailure
}

func NewAggregateError(op string, failures []EmployeeFailure) *AggregateError {
	if len(failures) == 0 {
		return nil
	}
	sorted := append([]EmployeeFailure(nil), failures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EmployeeID < sorted[j].EmployeeID })
	return &AggregateError{Operation: op, Failures: sorted}
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.EmployeeID, f.Err)
	}
	return fmt.Sprintf("%s: %d failed (%s)", e.Operation, len(e.Failures), strings.Join(parts, "; "))
}

func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidPeriod)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrPayrollEntryNotFound)
}
