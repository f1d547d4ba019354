/*
holidays.go - Statutory public holidays of the German federal states

PURPOSE:
  Builds the table of public holidays for one region and year. Fixed-date
  holidays are listed directly; moveable feasts are offsets from Easter
  Sunday, computed with the Gregorian Easter algorithm.

REGIONS:
  Two-letter state codes (BW, BY, BE, BB, HB, HH, HE, MV, NI, NW, RP, SL, SN,
  ST, SH, TH). Every region gets the nationwide holidays; the region table
  adds its own (Fronleichnam, Allerheiligen, Reformationstag, ...).

PAYROLL NOTE:
  Easter Sunday and Whit Sunday are included everywhere. They are statutory
  only in Brandenburg, but the income tax rules for surcharges (§3b EStG)
  treat both as holidays in every state.

SEE ALSO:
  - provider.go: Caching and classification
*/
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/shift-engine/core"
)

// Holiday is one statutory public holiday.
type Holiday struct {
	Date core.Date `json:"date"`
	Name string    `json:"name"`
}

// Region is a German federal state code.
type Region string

const (
	RegionBW Region = "BW" // Baden-Württemberg
	RegionBY Region = "BY" // Bayern
	RegionBE Region = "BE" // Berlin
	RegionBB Region = "BB" // Brandenburg
	RegionHB Region = "HB" // Bremen
	RegionHH Region = "HH" // Hamburg
	RegionHE Region = "HE" // Hessen
	RegionMV Region = "MV" // Mecklenburg-Vorpommern
	RegionNI Region = "NI" // Niedersachsen
	RegionNW Region = "NW" // Nordrhein-Westfalen
	RegionRP Region = "RP" // Rheinland-Pfalz
	RegionSL Region = "SL" // Saarland
	RegionSN Region = "SN" // Sachsen
	RegionST Region = "ST" // Sachsen-Anhalt
	RegionSH Region = "SH" // Schleswig-Holstein
	RegionTH Region = "TH" // Thüringen
)

var allRegions = []Region{
	RegionBW, RegionBY, RegionBE, RegionBB, RegionHB, RegionHH, RegionHE, RegionMV,
	RegionNI, RegionNW, RegionRP, RegionSL, RegionSN, RegionST, RegionSH, RegionTH,
}

// ParseRegion normalizes a region code. Unknown codes are a validation error.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range allRegions {
		if r == known {
			return r, nil
		}
	}
	return "", &core.ValidationError{Field: "region", Reason: fmt.Sprintf("unknown region %q", s)}
}

// =============================================================================
// EASTER
// =============================================================================

// Easter returns Easter Sunday of the given year (Gregorian calendar).
func Easter(year int) core.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return core.NewDate(year, time.Month(month), day)
}

// =============================================================================
// TABLES
// =============================================================================

// rule produces a holiday for a year, or ok=false when it does not apply.
type rule func(year int, easter core.Date) (Holiday, bool)

func fixed(month time.Month, day int, name string) rule {
	return func(year int, _ core.Date) (Holiday, bool) {
		return Holiday{Date: core.NewDate(year, month, day), Name: name}, true
	}
}

func easterOffset(days int, name string) rule {
	return func(_ int, easter core.Date) (Holiday, bool) {
		return Holiday{Date: easter.AddDays(days), Name: name}, true
	}
}

func since(first int, r rule) rule {
	return func(year int, easter core.Date) (Holiday, bool) {
		if year < first {
			return Holiday{}, false
		}
		return r(year, easter)
	}
}

// repentanceDay is the Wednesday before 23 November.
func repentanceDay(year int, _ core.Date) (Holiday, bool) {
	d := core.NewDate(year, time.November, 22)
	for d.Weekday() != core.Wednesday {
		d = d.AddDays(-1)
	}
	return Holiday{Date: d, Name: "Buß- und Bettag"}, true
}

var nationwide = []rule{
	fixed(time.January, 1, "Neujahr"),
	easterOffset(-2, "Karfreitag"),
	easterOffset(0, "Ostersonntag"),
	easterOffset(1, "Ostermontag"),
	fixed(time.May, 1, "Tag der Arbeit"),
	easterOffset(39, "Christi Himmelfahrt"),
	easterOffset(49, "Pfingstsonntag"),
	easterOffset(50, "Pfingstmontag"),
	fixed(time.October, 3, "Tag der Deutschen Einheit"),
	fixed(time.December, 25, "1. Weihnachtstag"),
	fixed(time.December, 26, "2. Weihnachtstag"),
}

var (
	epiphany       = fixed(time.January, 6, "Heilige Drei Könige")
	womensDay      = fixed(time.March, 8, "Internationaler Frauentag")
	corpusChristi  = easterOffset(60, "Fronleichnam")
	assumption     = fixed(time.August, 15, "Mariä Himmelfahrt")
	childrensDay   = fixed(time.September, 20, "Weltkindertag")
	reformation    = fixed(time.October, 31, "Reformationstag")
	allSaints      = fixed(time.November, 1, "Allerheiligen")
	reformation500 = func(year int, easter core.Date) (Holiday, bool) {
		if year != 2017 {
			return Holiday{}, false
		}
		return reformation(year, easter)
	}
)

var regional = map[Region][]rule{
	RegionBW: {epiphany, corpusChristi, allSaints, reformation500},
	RegionBY: {epiphany, corpusChristi, assumption, allSaints, reformation500},
	RegionBE: {since(2019, womensDay), reformation500},
	RegionBB: {reformation},
	RegionHB: {since(2018, reformation), reformation500},
	RegionHH: {since(2018, reformation), reformation500},
	RegionHE: {corpusChristi, reformation500},
	RegionMV: {since(2023, womensDay), reformation},
	RegionNI: {since(2018, reformation), reformation500},
	RegionNW: {corpusChristi, allSaints, reformation500},
	RegionRP: {corpusChristi, allSaints, reformation500},
	RegionSL: {corpusChristi, assumption, allSaints, reformation500},
	RegionSN: {reformation, repentanceDay},
	RegionST: {epiphany, reformation},
	RegionSH: {since(2018, reformation), reformation500},
	RegionTH: {since(2019, childrensDay), reformation},
}

// buildTable computes the holidays of a region and year, sorted by date.
func buildTable(region Region, year int) []Holiday {
	easter := Easter(year)
	rules := append(append([]rule(nil), nationwide...), regional[region]...)

	seen := make(map[string]bool, len(rules))
	table := make([]Holiday, 0, len(rules))
	for _, r := range rules {
		h, ok := r(year, easter)
		if !ok || seen[h.Date.String()] {
			continue
		}
		seen[h.Date.String()] = true
		table = append(table, h)
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Date.Before(table[j].Date) })
	return table
}
