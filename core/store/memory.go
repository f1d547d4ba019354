// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements core.Store. Records are copied on the way in and out so
// callers never share slices with the store.
type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	employees map[core.EmployeeID]core.Employee
	profiles  map[core.ProfileID]core.HolidayProfile
	rules     map[core.RuleID]core.RecurringShiftRule
	shifts    map[core.ShiftID]core.Shift
	payroll   map[core.PayrollKey]core.PayrollEntry
	carryover map[core.EmployeeID][]core.CarryoverRecord
	sequence  int64
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

func newState() state {
	return state{
		employees: make(map[core.EmployeeID]core.Employee),
		profiles:  make(map[core.ProfileID]core.HolidayProfile),
		rules:     make(map[core.RuleID]core.RecurringShiftRule),
		shifts:    make(map[core.ShiftID]core.Shift),
		payroll:   make(map[core.PayrollKey]core.PayrollEntry),
		carryover: make(map[core.EmployeeID][]core.CarryoverRecord),
	}
}

// =============================================================================
// LOCKED ACCESSORS
// =============================================================================

func (m *Memory) SaveEmployee(ctx context.Context, e core.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveEmployee(e)
}

func (m *Memory) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getEmployee(id)
}

func (m *Memory) ListEmployees(ctx context.Context, activeOnly bool) ([]core.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listEmployees(activeOnly), nil
}

func (m *Memory) SaveProfile(ctx context.Context, p core.HolidayProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.saveProfile(p)
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, id core.ProfileID) (core.HolidayProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getProfile(id)
}

func (m *Memory) ActiveProfile(ctx context.Context) (*core.HolidayProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.activeProfile(), nil
}

func (m *Memory) ListProfiles(ctx context.Context) ([]core.HolidayProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listProfiles(), nil
}

func (m *Memory) SaveRule(ctx context.Context, r core.RecurringShiftRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.rules[r.ID] = r
	return nil
}

func (m *Memory) GetRule(ctx context.Context, id core.RuleID) (core.RecurringShiftRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getRule(id)
}

func (m *Memory) ListRules(ctx context.Context, activeOnly bool) ([]core.RecurringShiftRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listRules(activeOnly), nil
}

func (m *Memory) SaveShifts(ctx context.Context, shifts []core.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.saveShifts(shifts)
	return nil
}

func (m *Memory) GetShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getShift(id)
}

func (m *Memory) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listShifts(f), nil
}

func (m *Memory) DeleteShifts(ctx context.Context, ids []core.ShiftID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.deleteShifts(ids)
	return nil
}

func (m *Memory) SavePayrollEntry(ctx context.Context, e core.PayrollEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.savePayrollEntry(e)
	return nil
}

func (m *Memory) GetPayrollEntry(ctx context.Context, employeeID core.EmployeeID, month core.Month) (*core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPayrollEntry(employeeID, month), nil
}

func (m *Memory) GetPayrollEntryByID(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPayrollEntryByID(id)
}

func (m *Memory) ListPayrollEntries(ctx context.Context, employeeID core.EmployeeID, year int) ([]core.PayrollEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPayrollEntries(employeeID, year), nil
}

func (m *Memory) AppendCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendCarryover(rec), nil
}

func (m *Memory) ListCarryover(ctx context.Context, employeeID core.EmployeeID) ([]core.CarryoverRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listCarryover(employeeID), nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The lock is held for the whole of fn, so transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(core.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.snapshot()
	view := &txView{s: &m.state}

	if err := fn(view); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL VIEW - Unlocked access while WithTx holds the lock
// =============================================================================

type txView struct {
	s *state
}

func (v *txView) SaveEmployee(_ context.Context, e core.Employee) error {
	return v.s.saveEmployee(e)
}

func (v *txView) GetEmployee(_ context.Context, id core.EmployeeID) (core.Employee, error) {
	return v.s.getEmployee(id)
}

func (v *txView) ListEmployees(_ context.Context, activeOnly bool) ([]core.Employee, error) {
	return v.s.listEmployees(activeOnly), nil
}

func (v *txView) SaveProfile(_ context.Context, p core.HolidayProfile) error {
	v.s.saveProfile(p)
	return nil
}

func (v *txView) GetProfile(_ context.Context, id core.ProfileID) (core.HolidayProfile, error) {
	return v.s.getProfile(id)
}

func (v *txView) ActiveProfile(_ context.Context) (*core.HolidayProfile, error) {
	return v.s.activeProfile(), nil
}

func (v *txView) ListProfiles(_ context.Context) ([]core.HolidayProfile, error) {
	return v.s.listProfiles(), nil
}

func (v *txView) SaveRule(_ context.Context, r core.RecurringShiftRule) error {
	v.s.rules[r.ID] = r
	return nil
}

func (v *txView) GetRule(_ context.Context, id core.RuleID) (core.RecurringShiftRule, error) {
	return v.s.getRule(id)
}

func (v *txView) ListRules(_ context.Context, activeOnly bool) ([]core.RecurringShiftRule, error) {
	return v.s.listRules(activeOnly), nil
}

func (v *txView) SaveShifts(_ context.Context, shifts []core.Shift) error {
	v.s.saveShifts(shifts)
	return nil
}

func (v *txView) GetShift(_ context.Context, id core.ShiftID) (core.Shift, error) {
	return v.s.getShift(id)
}

func (v *txView) ListShifts(_ context.Context, f core.ShiftFilter) ([]core.Shift, error) {
	return v.s.listShifts(f), nil
}

func (v *txView) DeleteShifts(_ context.Context, ids []core.ShiftID) error {
	v.s.deleteShifts(ids)
	return nil
}

func (v *txView) SavePayrollEntry(_ context.Context, e core.PayrollEntry) error {
	v.s.savePayrollEntry(e)
	return nil
}

func (v *txView) GetPayrollEntry(_ context.Context, employeeID core.EmployeeID, month core.Month) (*core.PayrollEntry, error) {
	return v.s.getPayrollEntry(employeeID, month), nil
}

func (v *txView) GetPayrollEntryByID(_ context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	return v.s.getPayrollEntryByID(id)
}

func (v *txView) ListPayrollEntries(_ context.Context, employeeID core.EmployeeID, year int) ([]core.PayrollEntry, error) {
	return v.s.listPayrollEntries(employeeID, year), nil
}

func (v *txView) AppendCarryover(_ context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	return v.s.appendCarryover(rec), nil
}

func (v *txView) ListCarryover(_ context.Context, employeeID core.EmployeeID) ([]core.CarryoverRecord, error) {
	return v.s.listCarryover(employeeID), nil
}

// WithTx on a view joins the enclosing transaction.
func (v *txView) WithTx(_ context.Context, fn func(core.Store) error) error {
	return fn(v)
}

// =============================================================================
// STATE - Unlocked operations shared by Memory and txView
// =============================================================================

func (s *state) snapshot() state {
	c := newState()
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	for k, v := range s.payroll {
		c.payroll[k] = v
	}
	for k, v := range s.carryover {
		c.carryover[k] = append([]core.CarryoverRecord(nil), v...)
	}
	c.sequence = s.sequence
	return c
}

func (s *state) saveEmployee(e core.Employee) error {
	if e.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	e.Contracts = append([]core.ContractTerms(nil), e.Contracts...)
	s.employees[e.ID] = e
	return nil
}

func (s *state) getEmployee(id core.EmployeeID) (core.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	e.Contracts = append([]core.ContractTerms(nil), e.Contracts...)
	return e, nil
}

func (s *state) listEmployees(activeOnly bool) []core.Employee {
	out := make([]core.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if activeOnly && !e.Active {
			continue
		}
		e.Contracts = append([]core.ContractTerms(nil), e.Contracts...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) saveProfile(p core.HolidayProfile) {
	if p.Active {
		for id, other := range s.profiles {
			if id != p.ID && other.Active {
				other.Active = false
				s.profiles[id] = other
			}
		}
	}
	s.profiles[p.ID] = cloneProfile(p)
}

func (s *state) getProfile(id core.ProfileID) (core.HolidayProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return core.HolidayProfile{}, core.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

func (s *state) activeProfile() *core.HolidayProfile {
	for _, p := range s.profiles {
		if p.Active {
			c := cloneProfile(p)
			return &c
		}
	}
	return nil
}

func (s *state) listProfiles() []core.HolidayProfile {
	out := make([]core.HolidayProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) getRule(id core.RuleID) (core.RecurringShiftRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringShiftRule{}, core.ErrRuleNotFound
	}
	return r, nil
}

func (s *state) listRules(activeOnly bool) []core.RecurringShiftRule {
	out := make([]core.RecurringShiftRule, 0, len(s.rules))
	for _, r := range s.rules {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) saveShifts(shifts []core.Shift) {
	for _, sh := range shifts {
		s.shifts[sh.ID] = cloneShift(sh)
	}
}

func (s *state) getShift(id core.ShiftID) (core.Shift, error) {
	sh, ok := s.shifts[id]
	if !ok {
		return core.Shift{}, core.ErrShiftNotFound
	}
	return cloneShift(sh), nil
}

func (s *state) listShifts(f core.ShiftFilter) []core.Shift {
	var out []core.Shift
	for _, sh := range s.shifts {
		if f.Matches(sh) {
			out = append(out, cloneShift(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
	return out
}

func (s *state) deleteShifts(ids []core.ShiftID) {
	for _, id := range ids {
		delete(s.shifts, id)
	}
}

func (s *state) savePayrollEntry(e core.PayrollEntry) {
	e.Warnings = append([]string(nil), e.Warnings...)
	s.payroll[e.Key()] = e
}

func (s *state) getPayrollEntry(employeeID core.EmployeeID, month core.Month) *core.PayrollEntry {
	e, ok := s.payroll[core.PayrollKey{EmployeeID: employeeID, Month: month}]
	if !ok {
		return nil
	}
	e.Warnings = append([]string(nil), e.Warnings...)
	return &e
}

func (s *state) getPayrollEntryByID(id core.PayrollEntryID) (core.PayrollEntry, error) {
	for _, e := range s.payroll {
		if e.ID == id {
			e.Warnings = append([]string(nil), e.Warnings...)
			return e, nil
		}
	}
	return core.PayrollEntry{}, core.ErrPayrollEntryNotFound
}

func (s *state) listPayrollEntries(employeeID core.EmployeeID, year int) []core.PayrollEntry {
	var out []core.PayrollEntry
	for _, e := range s.payroll {
		if employeeID != "" && e.EmployeeID != employeeID {
			continue
		}
		if year != 0 && e.Month.Year != year {
			continue
		}
		e.Warnings = append([]string(nil), e.Warnings...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

func (s *state) appendCarryover(rec core.CarryoverRecord) core.CarryoverRecord {
	s.sequence++
	rec.Sequence = s.sequence
	s.carryover[rec.EmployeeID] = append(s.carryover[rec.EmployeeID], rec)
	return rec
}

func (s *state) listCarryover(employeeID core.EmployeeID) []core.CarryoverRecord {
	return append([]core.CarryoverRecord(nil), s.carryover[employeeID]...)
}

func cloneProfile(p core.HolidayProfile) core.HolidayProfile {
	p.VacationPeriods = append([]core.VacationPeriod(nil), p.VacationPeriods...)
	p.CustomHolidays = append([]core.CustomHoliday(nil), p.CustomHolidays...)
	return p
}

func cloneShift(sh core.Shift) core.Shift {
	sh.Flags.Warnings = append([]string(nil), sh.Flags.Warnings...)
	sh.Flags.Violations = append([]string(nil), sh.Flags.Violations...)
	return sh
}
