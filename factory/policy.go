/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON policy definitions into core.Policy objects. Surcharge rates,
  band windows, minijob ceilings and rest/break thresholds change by year and
  jurisdiction; with the factory a new year is a new JSON file, not a code
  change.

OVERLAY SEMANTICS:
  Parsing starts from core.DefaultPolicy() and overlays every field the JSON
  sets. An empty object therefore yields the built-in German defaults, and a
  file only needs to name what differs.

JSON SCHEMA:
  {
    "id": "de-2026",
    "name": "Germany 2026",
    "region": "BW",
    "year": 2026,
    "payroll": {
      "rates": {"early": "0.125", "late": "0.125", "night": "0.25",
                "weekend": "0.25", "sunday": "0.50", "holiday": "1.25"},
      "early_end": "06:00",
      "late_start": "20:00",
      "night_start": "23:00",
      "night_end": "06:00",
      "default_annual_salary_limit": "7236.00"
    },
    "compliance": {
      "min_rest_hours": "11",
      "break_tiers": [
        {"above_hours": "6", "min_break_minutes": 30},
        {"above_hours": "9", "min_break_minutes": 45}
      ],
      "minijob_monthly_limit": "603.00",
      "minijob_annual_limit": "7236.00",
      "annual_warn_ratio": "0.95"
    },
    "carryover": {"expires_after_months": 0}
  }

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(GermanyJSON(2025))
  policy, err := factory.LoadFile(cfg.PolicyFile)

SEE ALSO:
  - core/policy.go: Policy type definition
  - config/config.go: SHIFT_POLICY_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/core"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Region     string          `json:"region,omitempty"`
	Year       int             `json:"year,omitempty"`
	Payroll    *PayrollJSON    `json:"payroll,omitempty"`
	Compliance *ComplianceJSON `json:"compliance,omitempty"`
	Carryover  *CarryoverJSON  `json:"carryover,omitempty"`
}

// PayrollJSON represents surcharge configuration. Clock fields are "HH:MM".
type PayrollJSON struct {
	Rates                    map[string]decimal.Decimal `json:"rates,omitempty"`
	EarlyEnd                 string                     `json:"early_end,omitempty"`
	LateStart                string                     `json:"late_start,omitempty"`
	NightStart               string                     `json:"night_start,omitempty"`
	NightEnd                 string                     `json:"night_end,omitempty"`
	DefaultAnnualSalaryLimit *decimal.Decimal           `json:"default_annual_salary_limit,omitempty"`
}

// ComplianceJSON represents working-time and minijob thresholds.
type ComplianceJSON struct {
	MinRestHours        *decimal.Decimal `json:"min_rest_hours,omitempty"`
	BreakTiers          []BreakTierJSON  `json:"break_tiers,omitempty"`
	MinijobMonthlyLimit *decimal.Decimal `json:"minijob_monthly_limit,omitempty"`
	MinijobAnnualLimit  *decimal.Decimal `json:"minijob_annual_limit,omitempty"`
	AnnualWarnRatio     *decimal.Decimal `json:"annual_warn_ratio,omitempty"`
}

type BreakTierJSON struct {
	AboveHours      decimal.Decimal `json:"above_hours"`
	MinBreakMinutes int             `json:"min_break_minutes"`
}

// CarryoverJSON represents carryover expiry. 0 means never.
type CarryoverJSON struct {
	ExpiresAfterMonths *int `json:"expires_after_months,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*core.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads and parses a policy file. An empty path yields the defaults.
func (f *PolicyFactory) LoadFile(path string) (*core.Policy, error) {
	if path == "" {
		p := core.DefaultPolicy()
		return &p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	policy, err := f.ParsePolicy(string(data))
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policy, nil
}

// FromJSON overlays pj onto the default policy and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*core.Policy, error) {
	policy := core.DefaultPolicy()
	if pj.ID != "" {
		policy.ID = pj.ID
	}
	if pj.Name != "" {
		policy.Name = pj.Name
	}
	if pj.Region != "" {
		policy.Region = pj.Region
	}
	if pj.Year != 0 {
		policy.Year = pj.Year
	}

	if pj.Payroll != nil {
		if err := applyPayroll(&policy.Payroll, *pj.Payroll); err != nil {
			return nil, err
		}
	}
	if pj.Compliance != nil {
		applyCompliance(&policy.Compliance, *pj.Compliance)
	}
	if pj.Carryover != nil && pj.Carryover.ExpiresAfterMonths != nil {
		policy.Carryover.ExpiresAfterMonths = *pj.Carryover.ExpiresAfterMonths
	}

	if err := Validate(policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ToJSON converts a Policy to PolicyJSON with every field set.
func (f *PolicyFactory) ToJSON(policy core.Policy) PolicyJSON {
	rates := make(map[string]decimal.Decimal, len(core.AllBands))
	for _, band := range core.AllBands {
		rates[string(band)] = policy.Payroll.Rate(band)
	}
	annual := policy.Payroll.DefaultAnnualSalaryLimit

	tiers := make([]BreakTierJSON, len(policy.Compliance.BreakTiers))
	for i, t := range policy.Compliance.BreakTiers {
		tiers[i] = BreakTierJSON{AboveHours: t.AboveHours, MinBreakMinutes: t.MinBreakMinutes}
	}
	c := policy.Compliance
	expires := policy.Carryover.ExpiresAfterMonths

	return PolicyJSON{
		ID:     policy.ID,
		Name:   policy.Name,
		Region: policy.Region,
		Year:   policy.Year,
		Payroll: &PayrollJSON{
			Rates:                    rates,
			EarlyEnd:                 policy.Payroll.EarlyEnd.String(),
			LateStart:                policy.Payroll.LateStart.String(),
			NightStart:               policy.Payroll.NightStart.String(),
			NightEnd:                 policy.Payroll.NightEnd.String(),
			DefaultAnnualSalaryLimit: &annual,
		},
		Compliance: &ComplianceJSON{
			MinRestHours:        core.DecimalPtr(c.MinRestHours),
			BreakTiers:          tiers,
			MinijobMonthlyLimit: core.DecimalPtr(c.MinijobMonthlyLimit),
			MinijobAnnualLimit:  core.DecimalPtr(c.MinijobAnnualLimit),
			AnnualWarnRatio:     core.DecimalPtr(c.AnnualWarnRatio),
		},
		Carryover: &CarryoverJSON{ExpiresAfterMonths: &expires},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func applyPayroll(p *core.PayrollPolicy, pj PayrollJSON) error {
	if len(pj.Rates) > 0 {
		rates := make(map[core.SurchargeBand]decimal.Decimal, len(p.Rates))
		for band, r := range p.Rates {
			rates[band] = r
		}
		for name, r := range pj.Rates {
			band, err := parseBand(name)
			if err != nil {
				return err
			}
			rates[band] = r
		}
		p.Rates = rates
	}

	clocks := []struct {
		field string
		raw   string
		dst   *core.ClockTime
	}{
		{"payroll.early_end", pj.EarlyEnd, &p.EarlyEnd},
		{"payroll.late_start", pj.LateStart, &p.LateStart},
		{"payroll.night_start", pj.NightStart, &p.NightStart},
		{"payroll.night_end", pj.NightEnd, &p.NightEnd},
	}
	for _, c := range clocks {
		if c.raw == "" {
			continue
		}
		v, err := core.ParseClockTime(c.raw)
		if err != nil {
			return &core.ValidationError{Field: c.field, Reason: err.Error(), Err: err}
		}
		*c.dst = v
	}

	if pj.DefaultAnnualSalaryLimit != nil {
		p.DefaultAnnualSalaryLimit = *pj.DefaultAnnualSalaryLimit
	}
	return nil
}

func applyCompliance(c *core.CompliancePolicy, cj ComplianceJSON) {
	if cj.MinRestHours != nil {
		c.MinRestHours = *cj.MinRestHours
	}
	if cj.BreakTiers != nil {
		tiers := make([]core.BreakTier, len(cj.BreakTiers))
		for i, t := range cj.BreakTiers {
			tiers[i] = core.BreakTier{AboveHours: t.AboveHours, MinBreakMinutes: t.MinBreakMinutes}
		}
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].AboveHours.LessThan(tiers[j].AboveHours) })
		c.BreakTiers = tiers
	}
	if cj.MinijobMonthlyLimit != nil {
		c.MinijobMonthlyLimit = *cj.MinijobMonthlyLimit
	}
	if cj.MinijobAnnualLimit != nil {
		c.MinijobAnnualLimit = *cj.MinijobAnnualLimit
	}
	if cj.AnnualWarnRatio != nil {
		c.AnnualWarnRatio = *cj.AnnualWarnRatio
	}
}

func parseBand(s string) (core.SurchargeBand, error) {
	for _, b := range core.AllBands {
		if string(b) == s {
			return b, nil
		}
	}
	return "", &core.ValidationError{Field: "payroll.rates", Reason: fmt.Sprintf("unknown surcharge band %q", s)}
}

// Validate rejects policies the engine cannot apply.
func Validate(p core.Policy) error {
	for band, r := range p.Payroll.Rates {
		if r.IsNegative() {
			return &core.ValidationError{Field: "payroll.rates." + string(band), Reason: "must not be negative"}
		}
	}
	if p.Payroll.DefaultAnnualSalaryLimit.IsNegative() {
		return &core.ValidationError{Field: "payroll.default_annual_salary_limit", Reason: "must not be negative"}
	}
	if !p.Compliance.MinRestHours.IsPositive() {
		return &core.ValidationError{Field: "compliance.min_rest_hours", Reason: "must be positive"}
	}
	for i, t := range p.Compliance.BreakTiers {
		if t.MinBreakMinutes < 0 || t.AboveHours.IsNegative() {
			return &core.ValidationError{Field: fmt.Sprintf("compliance.break_tiers[%d]", i), Reason: "must not be negative"}
		}
		if i > 0 && t.MinBreakMinutes < p.Compliance.BreakTiers[i-1].MinBreakMinutes {
			return &core.ValidationError{Field: fmt.Sprintf("compliance.break_tiers[%d]", i), Reason: "longer work cannot require a shorter break"}
		}
	}
	ratio := p.Compliance.AnnualWarnRatio
	if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return &core.ValidationError{Field: "compliance.annual_warn_ratio", Reason: "must be within 0..1"}
	}
	if p.Carryover.ExpiresAfterMonths < 0 {
		return &core.ValidationError{Field: "carryover.expires_after_months", Reason: "must not be negative"}
	}
	return nil
}

// =============================================================================
// PRESET POLICIES
// =============================================================================

// GermanyJSON returns the statutory German preset for a year. Years without
// a known table fall back to the 2025 figures.
func GermanyJSON(year int) string {
	monthly, annual := "556.00", "6672.00"
	if year >= 2026 {
		monthly, annual = "603.00", "7236.00"
	}
	return fmt.Sprintf(`{
  "id": "de-%[1]d",
  "name": "Germany %[1]d",
  "region": "BW",
  "year": %[1]d,
  "payroll": {"default_annual_salary_limit": "%[3]s"},
  "compliance": {"minijob_monthly_limit": "%[2]s", "minijob_annual_limit": "%[3]s"}
}`, year, monthly, annual)
}
