package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day without time-of-day (shifts are planned per day)
// =============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day. The underlying time is always midnight UTC so dates
// compare and hash consistently regardless of where they were parsed.
type Date struct {
	Time time.Time
}

// Weekday numbering used by recurring rules: 0=Monday .. 6=Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.Time.AddDate(0, n, 0)) }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }
func (d Date) Weekday() Weekday  { return Weekday((int(d.Time.Weekday()) + 6) % 7) }
func (d Date) IsSunday() bool    { return d.Weekday() == Sunday }
func (d Date) IsSaturday() bool  { return d.Weekday() == Saturday }
func (d Date) IsWeekend() bool   { return d.IsSaturday() || d.IsSunday() }
func (d Date) String() string    { return d.Time.Format(dateLayout) }
func (d Date) MonthStart() Date  { return NewDate(d.Year(), d.Month(), 1) }
func (d Date) MonthEnd() Date    { return d.MonthStart().AddMonths(1).AddDays(-1) }
func (d Date) MonthKey() Month   { return NewMonth(d.Year(), d.Month()) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of whole days from -> to.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// MONTH - Payroll period key
// =============================================================================

// Month identifies a calendar month. Payroll entries and carryover records are
// keyed by it.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	d := NewDate(year, month, 1)
	return Month{Year: d.Year(), Month: d.Month()}
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return NewMonth(t.Year(), t.Month()), nil
}

func (m Month) Start() Date         { return NewDate(m.Year, m.Month, 1) }
func (m Month) End() Date           { return m.Start().MonthEnd() }
func (m Month) Period() Period      { return Period{Start: m.Start(), End: m.End()} }
func (m Month) Next() Month         { return m.Add(1) }
func (m Month) Prev() Month         { return m.Add(-1) }
func (m Month) Add(n int) Month     { return m.Start().AddMonths(n).MonthKey() }
func (m Month) String() string      { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) IsZero() bool        { return m.Year == 0 }

// MonthsBetween returns how many months lie from m to o (negative if o < m).
func (m Month) MonthsBetween(o Month) int { return o.index() - m.index() }

func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// CLOCK TIME - Time of day in minutes since midnight
// =============================================================================

// ClockTime is a wall-clock time of day, stored as minutes since midnight.
type ClockTime int

const MinutesPerDay = 24 * 60

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return NewClockTime(h, m), nil
}

func MustClock(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Hour() int      { return int(c) / 60 }
func (c ClockTime) Minute() int    { return int(c) % 60 }
func (c ClockTime) Minutes() int   { return int(c) }
func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SpanMinutes returns the wall-clock length of start..end in minutes.
// end <= start means the span crosses midnight.
func SpanMinutes(start, end ClockTime) int {
	if end <= start {
		return int(end) + MinutesPerDay - int(start)
	}
	return int(end - start)
}
