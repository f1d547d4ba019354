/*
Package sqlite provides a SQLite-backed implementation of core.Store.

PURPOSE:
  Persists employees, holiday profiles, recurring rules, shifts, payroll
  entries and the carryover ledger. The server runs on it; tests use
  ":memory:".

KEY TABLES:
  employees:             Read-only input to payroll (contract history as JSON)
  holiday_profiles:      Vacation periods and custom days as JSON
  recurring_shift_rules: Deactivated, never deleted
  shifts:                Compliance flags stored wholesale as JSON
  payroll_entries:       UNIQUE(employee_id, month)
  carryover_records:     Append-only, ordered by an AUTOINCREMENT sequence

PRECISION:
  Hours and money are stored as decimal strings, never REAL, so a value read
  back is exactly the value written.

MIGRATIONS:
  Versioned goose migrations are embedded (migrations/*.sql) and applied on
  New().

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so WithTx
  owns the database for the whole unit of work. Everything inside WithTx
  runs on the *sql.Tx.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/core"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// Store implements core.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and a single
	// writer is all SQLite offers anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, q: queries{db: db}}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// LOCKED ACCESSORS (core.Store interface)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e core.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveEmployee(ctx, e)
}

func (s *Store) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context, activeOnly bool) ([]core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listEmployees(ctx, activeOnly)
}

// SaveProfile deactivates other profiles in the same transaction.
func (s *Store) SaveProfile(ctx context.Context, p core.HolidayProfile) error {
	return s.WithTx(ctx, func(tx core.Store) error { return tx.SaveProfile(ctx, p) })
}

func (s *Store) GetProfile(ctx context.Context, id core.ProfileID) (core.HolidayProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getProfile(ctx, id)
}

func (s *Store) ActiveProfile(ctx context.Context) (*core.HolidayProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.activeProfile(ctx)
}

func (s *Store) ListProfiles(ctx context.Context) ([]core.HolidayProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listProfiles(ctx)
}

func (s *Store) SaveRule(ctx context.Context, r core.RecurringShiftRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveRule(ctx, r)
}

func (s *Store) GetRule(ctx context.Context, id core.RuleID) (core.RecurringShiftRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getRule(ctx, id)
}

func (s *Store) ListRules(ctx context.Context, activeOnly bool) ([]core.RecurringShiftRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listRules(ctx, activeOnly)
}

// SaveShifts writes the batch atomically.
func (s *Store) SaveShifts(ctx context.Context, shifts []core.Shift) error {
	return s.WithTx(ctx, func(tx core.Store) error { return tx.SaveShifts(ctx, shifts) })
}

func (s *Store) GetShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getShift(ctx, id)
}

func (s *Store) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listShifts(ctx, f)
}

func (s *Store) DeleteShifts(ctx context.Context, ids []core.ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.deleteShifts(ctx, ids)
}

func (s *Store) SavePayrollEntry(ctx context.Context, e core.PayrollEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.savePayrollEntry(ctx, e)
}

func (s *Store) GetPayrollEntry(ctx context.Context, employeeID core.EmployeeID, m core.Month) (*core.PayrollEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getPayrollEntry(ctx, employeeID, m)
}

func (s *Store) GetPayrollEntryByID(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getPayrollEntryByID(ctx, id)
}

func (s *Store) ListPayrollEntries(ctx context.Context, employeeID core.EmployeeID, year int) ([]core.PayrollEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listPayrollEntries(ctx, employeeID, year)
}

func (s *Store) AppendCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.appendCarryover(ctx, rec)
}

func (s *Store) ListCarryover(ctx context.Context, employeeID core.EmployeeID) ([]core.CarryoverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listCarryover(ctx, employeeID)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every call on the open transaction without locking; the
// enclosing WithTx holds the lock.
type txStore struct {
	q queries
}

// WithTx joins the enclosing transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(store core.Store) error) error {
	return fn(ts)
}

func (ts *txStore) SaveEmployee(ctx context.Context, e core.Employee) error {
	return ts.q.saveEmployee(ctx, e)
}

func (ts *txStore) GetEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	return ts.q.getEmployee(ctx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context, activeOnly bool) ([]core.Employee, error) {
	return ts.q.listEmployees(ctx, activeOnly)
}

func (ts *txStore) SaveProfile(ctx context.Context, p core.HolidayProfile) error {
	return ts.q.saveProfile(ctx, p)
}

func (ts *txStore) GetProfile(ctx context.Context, id core.ProfileID) (core.HolidayProfile, error) {
	return ts.q.getProfile(ctx, id)
}

func (ts *txStore) ActiveProfile(ctx context.Context) (*core.HolidayProfile, error) {
	return ts.q.activeProfile(ctx)
}

func (ts *txStore) ListProfiles(ctx context.Context) ([]core.HolidayProfile, error) {
	return ts.q.listProfiles(ctx)
}

func (ts *txStore) SaveRule(ctx context.Context, r core.RecurringShiftRule) error {
	return ts.q.saveRule(ctx, r)
}

func (ts *txStore) GetRule(ctx context.Context, id core.RuleID) (core.RecurringShiftRule, error) {
	return ts.q.getRule(ctx, id)
}

func (ts *txStore) ListRules(ctx context.Context, activeOnly bool) ([]core.RecurringShiftRule, error) {
	return ts.q.listRules(ctx, activeOnly)
}

func (ts *txStore) SaveShifts(ctx context.Context, shifts []core.Shift) error {
	for _, sh := range shifts {
		if err := ts.q.saveShift(ctx, sh); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) GetShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	return ts.q.getShift(ctx, id)
}

func (ts *txStore) ListShifts(ctx context.Context, f core.ShiftFilter) ([]core.Shift, error) {
	return ts.q.listShifts(ctx, f)
}

func (ts *txStore) DeleteShifts(ctx context.Context, ids []core.ShiftID) error {
	return ts.q.deleteShifts(ctx, ids)
}

func (ts *txStore) SavePayrollEntry(ctx context.Context, e core.PayrollEntry) error {
	return ts.q.savePayrollEntry(ctx, e)
}

func (ts *txStore) GetPayrollEntry(ctx context.Context, employeeID core.EmployeeID, m core.Month) (*core.PayrollEntry, error) {
	return ts.q.getPayrollEntry(ctx, employeeID, m)
}

func (ts *txStore) GetPayrollEntryByID(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	return ts.q.getPayrollEntryByID(ctx, id)
}

func (ts *txStore) ListPayrollEntries(ctx context.Context, employeeID core.EmployeeID, year int) ([]core.PayrollEntry, error) {
	return ts.q.listPayrollEntries(ctx, employeeID, year)
}

func (ts *txStore) AppendCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	return ts.q.appendCarryover(ctx, rec)
}

func (ts *txStore) ListCarryover(ctx context.Context, employeeID core.EmployeeID) ([]core.CarryoverRecord, error) {
	return ts.q.listCarryover(ctx, employeeID)
}

// =============================================================================
// QUERIES - Shared by Store and txStore
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

// --- employees ---

const employeeColumns = `id, name, contract_type, hourly_rate, monthly_hours_limit,
	annual_salary_limit, vacation_days, active, contracts_json`

func (q queries) saveEmployee(ctx context.Context, e core.Employee) error {
	if e.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	contracts, err := json.Marshal(nonNil(e.Contracts))
	if err != nil {
		return fmt.Errorf("failed to encode contracts: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			contract_type = excluded.contract_type,
			hourly_rate = excluded.hourly_rate,
			monthly_hours_limit = excluded.monthly_hours_limit,
			annual_salary_limit = excluded.annual_salary_limit,
			vacation_days = excluded.vacation_days,
			active = excluded.active,
			contracts_json = excluded.contracts_json
	`,
		e.ID, e.Name, e.ContractType,
		nullDecimal(e.HourlyRate), nullDecimal(e.MonthlyHoursLimit), nullDecimal(e.AnnualSalaryLimit),
		e.VacationDays, e.Active, string(contracts),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (q queries) getEmployee(ctx context.Context, id core.EmployeeID) (core.Employee, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Employee{}, core.ErrEmployeeNotFound
	}
	return e, err
}

func (q queries) listEmployees(ctx context.Context, activeOnly bool) ([]core.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	out := []core.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row scanner) (core.Employee, error) {
	var (
		e                     core.Employee
		rate, monthly, annual sql.NullString
		contractsJSON         string
	)
	err := row.Scan(&e.ID, &e.Name, &e.ContractType, &rate, &monthly, &annual,
		&e.VacationDays, &e.Active, &contractsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan employee: %w", err)
	}
	if e.HourlyRate, err = parseNullDecimal(rate); err != nil {
		return e, err
	}
	if e.MonthlyHoursLimit, err = parseNullDecimal(monthly); err != nil {
		return e, err
	}
	if e.AnnualSalaryLimit, err = parseNullDecimal(annual); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(contractsJSON), &e.Contracts); err != nil {
		return e, fmt.Errorf("failed to decode contracts of %s: %w", e.ID, err)
	}
	if len(e.Contracts) == 0 {
		e.Contracts = nil
	}
	return e, nil
}

// --- holiday profiles ---

const profileColumns = `id, name, region, active, vacation_json, custom_json`

func (q queries) saveProfile(ctx context.Context, p core.HolidayProfile) error {
	if p.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	if p.Active {
		if _, err := q.db.ExecContext(ctx, `UPDATE holiday_profiles SET active = FALSE WHERE id <> ? AND active`, p.ID); err != nil {
			return fmt.Errorf("failed to deactivate profiles: %w", err)
		}
	}
	vacations, err := json.Marshal(nonNil(p.VacationPeriods))
	if err != nil {
		return err
	}
	custom, err := json.Marshal(nonNil(p.CustomHolidays))
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO holiday_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			active = excluded.active,
			vacation_json = excluded.vacation_json,
			custom_json = excluded.custom_json
	`, p.ID, p.Name, p.Region, p.Active, string(vacations), string(custom))
	if err != nil {
		return fmt.Errorf("failed to save holiday profile: %w", err)
	}
	return nil
}

func (q queries) getProfile(ctx context.Context, id core.ProfileID) (core.HolidayProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM holiday_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.HolidayProfile{}, core.ErrProfileNotFound
	}
	return p, err
}

func (q queries) activeProfile(ctx context.Context) (*core.HolidayProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM holiday_profiles WHERE active LIMIT 1`)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) listProfiles(ctx context.Context) ([]core.HolidayProfile, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM holiday_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holiday profiles: %w", err)
	}
	defer rows.Close()

	out := []core.HolidayProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row scanner) (core.HolidayProfile, error) {
	var (
		p                 core.HolidayProfile
		vacations, custom string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Region, &p.Active, &vacations, &custom); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan holiday profile: %w", err)
	}
	if err := json.Unmarshal([]byte(vacations), &p.VacationPeriods); err != nil {
		return p, fmt.Errorf("failed to decode vacation periods of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(custom), &p.CustomHolidays); err != nil {
		return p, fmt.Errorf("failed to decode custom holidays of %s: %w", p.ID, err)
	}
	return p, nil
}

// --- recurring rules ---

const ruleColumns = `id, weekday, start_minute, end_minute, break_minutes, employee_id,
	template_id, valid_from, valid_until, holiday_profile_id, skip_public_holidays, label, active`

func (q queries) saveRule(ctx context.Context, r core.RecurringShiftRule) error {
	if r.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_shift_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weekday = excluded.weekday,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			break_minutes = excluded.break_minutes,
			employee_id = excluded.employee_id,
			template_id = excluded.template_id,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			holiday_profile_id = excluded.holiday_profile_id,
			skip_public_holidays = excluded.skip_public_holidays,
			label = excluded.label,
			active = excluded.active
	`,
		r.ID, int(r.Weekday), int(r.Start), int(r.End), r.BreakMinutes, r.EmployeeID,
		r.TemplateID, r.ValidFrom.String(), r.ValidUntil.String(), r.HolidayProfileID,
		r.SkipPublicHolidays, r.Label, r.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (q queries) getRule(ctx context.Context, id core.RuleID) (core.RecurringShiftRule, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_shift_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringShiftRule{}, core.ErrRuleNotFound
	}
	return r, err
}

func (q queries) listRules(ctx context.Context, activeOnly bool) ([]core.RecurringShiftRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_shift_rules`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	out := []core.RecurringShiftRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRule(row scanner) (core.RecurringShiftRule, error) {
	var (
		r           core.RecurringShiftRule
		weekday     int
		start, end  int
		from, until string
	)
	err := row.Scan(&r.ID, &weekday, &start, &end, &r.BreakMinutes, &r.EmployeeID,
		&r.TemplateID, &from, &until, &r.HolidayProfileID, &r.SkipPublicHolidays, &r.Label, &r.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan rule: %w", err)
	}
	r.Weekday = core.Weekday(weekday)
	r.Start, r.End = core.ClockTime(start), core.ClockTime(end)
	if r.ValidFrom, err = core.ParseDate(from); err != nil {
		return r, err
	}
	if r.ValidUntil, err = core.ParseDate(until); err != nil {
		return r, err
	}
	return r, nil
}

// --- shifts ---

const shiftColumns = `id, date, start_minute, end_minute, break_minutes, employee_id, template_id,
	status, rule_id, is_override, flags_json, actual_start, actual_end, notes, hours_carried_over`

func (q queries) saveShift(ctx context.Context, sh core.Shift) error {
	if sh.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	flags, err := json.Marshal(sh.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			break_minutes = excluded.break_minutes,
			employee_id = excluded.employee_id,
			template_id = excluded.template_id,
			status = excluded.status,
			rule_id = excluded.rule_id,
			is_override = excluded.is_override,
			flags_json = excluded.flags_json,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			notes = excluded.notes,
			hours_carried_over = excluded.hours_carried_over
	`,
		sh.ID, sh.Date.String(), int(sh.Start), int(sh.End), sh.BreakMinutes, sh.EmployeeID, sh.TemplateID,
		sh.Status, sh.RuleID, sh.IsOverride, string(flags),
		nullClock(sh.ActualStart), nullClock(sh.ActualEnd), sh.Notes, sh.HoursCarriedOver.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save shift %s: %w", sh.ID, err)
	}
	return nil
}

func (q queries) getShift(ctx context.Context, id core.ShiftID) (core.Shift, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Shift{}, core.ErrShiftNotFound
	}
	return sh, err
}

func (q queries) listShifts(ctx context.Context, f core.ShiftFilter) ([]core.Shift, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, f.RuleID)
	}
	if f.Period != nil {
		where = append(where, "date >= ? AND date <= ?")
		args = append(args, f.Period.Start.String(), f.Period.End.String())
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, start_minute, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var out []core.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (q queries) deleteShifts(ctx context.Context, ids []core.ShiftID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := q.db.ExecContext(ctx, `DELETE FROM shifts WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to delete shifts: %w", err)
	}
	return nil
}

func scanShift(row scanner) (core.Shift, error) {
	var (
		sh                     core.Shift
		date, flags, carried   string
		start, end             int
		actualStart, actualEnd sql.NullInt64
	)
	err := row.Scan(&sh.ID, &date, &start, &end, &sh.BreakMinutes, &sh.EmployeeID, &sh.TemplateID,
		&sh.Status, &sh.RuleID, &sh.IsOverride, &flags, &actualStart, &actualEnd, &sh.Notes, &carried)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sh, err
		}
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}
	if sh.Date, err = core.ParseDate(date); err != nil {
		return sh, err
	}
	sh.Start, sh.End = core.ClockTime(start), core.ClockTime(end)
	sh.ActualStart, sh.ActualEnd = clockPtr(actualStart), clockPtr(actualEnd)
	if err := json.Unmarshal([]byte(flags), &sh.Flags); err != nil {
		return sh, fmt.Errorf("failed to decode flags of %s: %w", sh.ID, err)
	}
	if sh.HoursCarriedOver, err = decimal.NewFromString(carried); err != nil {
		return sh, fmt.Errorf("invalid hours_carried_over of %s: %w", sh.ID, err)
	}
	return sh, nil
}

// --- payroll entries ---

const payrollColumns = `id, employee_id, month, planned_hours, actual_hours, carryover_hours,
	paid_hours, new_carryover, surcharge_hours_json, surcharge_amounts_json, hourly_rate,
	base_wage, total_gross, ytd_gross, annual_limit_remaining, shift_count, status,
	warnings_json, notes, calculated_at`

func (q queries) savePayrollEntry(ctx context.Context, e core.PayrollEntry) error {
	if e.ID == "" {
		return &core.ValidationError{Field: "id", Reason: "required"}
	}
	hours, err := json.Marshal(e.SurchargeHours)
	if err != nil {
		return err
	}
	amounts, err := json.Marshal(e.SurchargeAmounts)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(nonNil(e.Warnings))
	if err != nil {
		return err
	}
	calculatedAt := ""
	if !e.CalculatedAt.IsZero() {
		calculatedAt = e.CalculatedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO payroll_entries (`+payrollColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, month) DO UPDATE SET
			id = excluded.id,
			planned_hours = excluded.planned_hours,
			actual_hours = excluded.actual_hours,
			carryover_hours = excluded.carryover_hours,
			paid_hours = excluded.paid_hours,
			new_carryover = excluded.new_carryover,
			surcharge_hours_json = excluded.surcharge_hours_json,
			surcharge_amounts_json = excluded.surcharge_amounts_json,
			hourly_rate = excluded.hourly_rate,
			base_wage = excluded.base_wage,
			total_gross = excluded.total_gross,
			ytd_gross = excluded.ytd_gross,
			annual_limit_remaining = excluded.annual_limit_remaining,
			shift_count = excluded.shift_count,
			status = excluded.status,
			warnings_json = excluded.warnings_json,
			notes = excluded.notes,
			calculated_at = excluded.calculated_at
	`,
		e.ID, e.EmployeeID, e.Month.String(), nullDecimal(e.PlannedHours),
		e.ActualHours.String(), e.CarryoverHours.String(), e.PaidHours.String(), e.NewCarryover.String(),
		string(hours), string(amounts), e.HourlyRate.String(),
		e.BaseWage.String(), e.TotalGross.String(), e.YTDGross.String(), nullDecimal(e.AnnualLimitRemaining),
		e.ShiftCount, e.Status, string(warnings), e.Notes, calculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save payroll entry: %w", err)
	}
	return nil
}

func (q queries) getPayrollEntry(ctx context.Context, employeeID core.EmployeeID, m core.Month) (*core.PayrollEntry, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+payrollColumns+` FROM payroll_entries WHERE employee_id = ? AND month = ?`,
		employeeID, m.String())
	e, err := scanPayrollEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q queries) getPayrollEntryByID(ctx context.Context, id core.PayrollEntryID) (core.PayrollEntry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+payrollColumns+` FROM payroll_entries WHERE id = ?`, id)
	e, err := scanPayrollEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PayrollEntry{}, core.ErrPayrollEntryNotFound
	}
	return e, err
}

func (q queries) listPayrollEntries(ctx context.Context, employeeID core.EmployeeID, year int) ([]core.PayrollEntry, error) {
	var (
		where []string
		args  []any
	)
	if employeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, employeeID)
	}
	if year != 0 {
		where = append(where, "month LIKE ?")
		args = append(args, fmt.Sprintf("%04d-%%", year))
	}
	query := `SELECT ` + payrollColumns + ` FROM payroll_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY employee_id, month`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payroll entries: %w", err)
	}
	defer rows.Close()

	var out []core.PayrollEntry
	for rows.Next() {
		e, err := scanPayrollEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanPayrollEntry(row scanner) (core.PayrollEntry, error) {
	var (
		e                                    core.PayrollEntry
		month, calculatedAt, status          string
		planned, remaining                   sql.NullString
		actual, carry, paid, newCarry        string
		hoursJSON, amountsJSON, warningsJSON string
		rate, base, gross, ytd               string
	)
	err := row.Scan(&e.ID, &e.EmployeeID, &month, &planned, &actual, &carry,
		&paid, &newCarry, &hoursJSON, &amountsJSON, &rate,
		&base, &gross, &ytd, &remaining, &e.ShiftCount, &status,
		&warningsJSON, &e.Notes, &calculatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan payroll entry: %w", err)
	}

	if e.Month, err = core.ParseMonth(month); err != nil {
		return e, err
	}
	if e.Status, err = core.ParsePayrollStatus(status); err != nil {
		return e, fmt.Errorf("payroll entry %s: %w", e.ID, err)
	}
	if e.PlannedHours, err = parseNullDecimal(planned); err != nil {
		return e, err
	}
	if e.AnnualLimitRemaining, err = parseNullDecimal(remaining); err != nil {
		return e, err
	}
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{actual, &e.ActualHours}, {carry, &e.CarryoverHours}, {paid, &e.PaidHours},
		{newCarry, &e.NewCarryover}, {rate, &e.HourlyRate}, {base, &e.BaseWage},
		{gross, &e.TotalGross}, {ytd, &e.YTDGross},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return e, fmt.Errorf("invalid decimal %q in payroll entry %s: %w", f.raw, e.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(hoursJSON), &e.SurchargeHours); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(amountsJSON), &e.SurchargeAmounts); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(warningsJSON), &e.Warnings); err != nil {
		return e, err
	}
	if calculatedAt != "" {
		if e.CalculatedAt, err = time.Parse(time.RFC3339Nano, calculatedAt); err != nil {
			return e, err
		}
	}
	return e, nil
}

// --- carryover ledger ---

func (q queries) appendCarryover(ctx context.Context, rec core.CarryoverRecord) (core.CarryoverRecord, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO carryover_records (id, employee_id, from_month, to_month, hours, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.EmployeeID, rec.FromMonth.String(), rec.ToMonth.String(),
		rec.Hours.String(), rec.Reason, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.CarryoverRecord{}, core.ErrDuplicateCarryover
		}
		return core.CarryoverRecord{}, fmt.Errorf("failed to append carryover: %w", err)
	}
	if rec.Sequence, err = res.LastInsertId(); err != nil {
		return core.CarryoverRecord{}, err
	}
	return rec, nil
}

func (q queries) listCarryover(ctx context.Context, employeeID core.EmployeeID) ([]core.CarryoverRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT seq, id, employee_id, from_month, to_month, hours, reason, created_at
		FROM carryover_records
		WHERE employee_id = ?
		ORDER BY seq
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query carryover: %w", err)
	}
	defer rows.Close()

	var out []core.CarryoverRecord
	for rows.Next() {
		var (
			rec                 core.CarryoverRecord
			from, to, hours, at string
		)
		if err := rows.Scan(&rec.Sequence, &rec.ID, &rec.EmployeeID, &from, &to, &hours, &rec.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan carryover: %w", err)
		}
		if rec.FromMonth, err = core.ParseMonth(from); err != nil {
			return nil, err
		}
		if rec.ToMonth, err = core.ParseMonth(to); err != nil {
			return nil, err
		}
		if rec.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s.String, err)
	}
	return &d, nil
}

func nullClock(c *core.ClockTime) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

func clockPtr(n sql.NullInt64) *core.ClockTime {
	if !n.Valid {
		return nil
	}
	c := core.ClockTime(n.Int64)
	return &c
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// nonNil makes empty slices encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
