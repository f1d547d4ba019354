/*
Package calendar classifies calendar days for shift planning and payroll.

PURPOSE:
  Answers "what kind of day is this?" for a date under an optional holiday
  profile: a statutory public holiday, a vacation (school holiday) period of
  the profile, a custom day of the profile, or a regular day.

CLASSIFICATION:
  A date may belong to several sets at once (Christmas inside the winter
  break). Classification keeps every membership and derives one primary Kind
  with precedence PUBLIC_HOLIDAY > CUSTOM > VACATION > NONE.

  Public holidays depend only on the region. The profile's region is used
  when it names a known one, otherwise the provider's default region.

CONCURRENCY:
  Provider is safe for concurrent use. Holiday tables are computed once per
  (region, year) and cached behind a mutex.
*/
package calendar

import (
	"sync"

	"github.com/warp/shift-engine/core"
)

// Kind is the primary classification of a day.
type Kind string

const (
	KindNone          Kind = "NONE"
	KindPublicHoliday Kind = "PUBLIC_HOLIDAY"
	KindVacation      Kind = "VACATION"
	KindCustom        Kind = "CUSTOM"
)

// Classification is the result of Classify. The membership fields hold the
// matching names and are empty when the date is not in that set.
type Classification struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"`

	PublicHoliday string `json:"public_holiday,omitempty"`
	Vacation      string `json:"vacation,omitempty"`
	Custom        string `json:"custom,omitempty"`
}

func (c Classification) IsPublicHoliday() bool { return c.PublicHoliday != "" }
func (c Classification) IsVacation() bool      { return c.Vacation != "" }
func (c Classification) IsCustom() bool        { return c.Custom != "" }

// Classifier is what the generator, validator and calculator depend on.
type Classifier interface {
	Classify(d core.Date, profile *core.HolidayProfile) Classification
}

type tableKey struct {
	region Region
	year   int
}

// Provider implements Classifier with cached statutory tables.
type Provider struct {
	defaultRegion Region

	mu     sync.Mutex
	tables map[tableKey]map[string]string
}

// NewProvider returns a provider falling back to defaultRegion for profiles
// without a (known) region.
func NewProvider(defaultRegion string) (*Provider, error) {
	r, err := ParseRegion(defaultRegion)
	if err != nil {
		return nil, err
	}
	return &Provider{defaultRegion: r, tables: make(map[tableKey]map[string]string)}, nil
}

func (p *Provider) DefaultRegion() Region { return p.defaultRegion }

// Classify returns the classification of d. A nil profile means only
// statutory holidays of the default region are considered.
func (p *Provider) Classify(d core.Date, profile *core.HolidayProfile) Classification {
	region := p.defaultRegion
	var c Classification

	if profile != nil {
		if r, err := ParseRegion(profile.Region); err == nil {
			region = r
		}
		for _, v := range profile.VacationPeriods {
			if v.Contains(d) {
				c.Vacation = v.Name
				break
			}
		}
		for _, h := range profile.CustomHolidays {
			if h.Date.Equal(d) {
				c.Custom = h.Name
				break
			}
		}
	}
	c.PublicHoliday = p.lookup(region, d)

	switch {
	case c.IsPublicHoliday():
		c.Kind, c.Name = KindPublicHoliday, c.PublicHoliday
	case c.IsCustom():
		c.Kind, c.Name = KindCustom, c.Custom
	case c.IsVacation():
		c.Kind, c.Name = KindVacation, c.Vacation
	default:
		c.Kind = KindNone
	}
	return c
}

// PublicHoliday returns the statutory holiday name on d in region, if any.
func (p *Provider) PublicHoliday(region Region, d core.Date) (string, bool) {
	name := p.lookup(region, d)
	return name, name != ""
}

// Holidays lists the statutory holidays of a region and year.
func (p *Provider) Holidays(region string, year int) ([]Holiday, error) {
	r, err := ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if year < 1583 || year > 9999 {
		return nil, &core.ValidationError{Field: "year", Reason: "out of range"}
	}
	return buildTable(r, year), nil
}

func (p *Provider) lookup(region Region, d core.Date) string {
	key := tableKey{region: region, year: d.Year()}

	p.mu.Lock()
	defer p.mu.Unlock()

	table, ok := p.tables[key]
	if !ok {
		holidays := buildTable(region, key.year)
		table = make(map[string]string, len(holidays))
		for _, h := range holidays {
			table[h.Date.String()] = h.Name
		}
		p.tables[key] = table
	}
	return table[d.String()]
}

// WithDayFlags returns f with the day-dependent flags set for date d.
// Only statutory holidays count as holidays; vacation and custom days do not.
func WithDayFlags(f core.ComplianceFlags, d core.Date, c Classification) core.ComplianceFlags {
	f.IsHoliday = c.IsPublicHoliday()
	f.HolidayName = c.PublicHoliday
	f.IsSunday = d.IsSunday()
	f.IsWeekend = d.IsWeekend()
	return f
}
