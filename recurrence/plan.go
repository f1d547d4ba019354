/*
Package recurrence expands recurring shift rules into concrete shifts.

PURPOSE:
  A rule says "every Tuesday 08:00-12:00 for employee X between two dates".
  The generator turns it into one planned shift per matching day, leaving out
  days the holiday profile marks as vacation or custom days, and statutory
  public holidays when the rule asks for it.

KEY CONCEPTS:
  Plan:      Pure enumeration of dates and skips, no I/O
  Generator: Loads profiles, persists shifts, handles "update from date"

PREVIEW == GENERATE:
  Preview and Generate both call PlanDates with the same inputs, so the
  counts a user confirms are exactly the shifts that get created.

SEE ALSO:
  - calendar/provider.go: Day classification
  - generator.go: Persistence and cutover regeneration
*/
package recurrence

import (
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
)

// SkipReason says why a matching weekday produced no shift.
type SkipReason string

const (
	SkipPublicHoliday SkipReason = "public_holiday"
	SkipCustom        SkipReason = "custom"
	SkipVacation      SkipReason = "vacation"
	// SkipProtected marks dates held by a confirmed or manually edited shift
	// during cutover regeneration.
	SkipProtected SkipReason = "protected"
)

type SkippedDate struct {
	Date   core.Date  `json:"date"`
	Reason SkipReason `json:"reason"`
	Name   string     `json:"name,omitempty"`
}

// PlannedDay is a date that will receive a shift, with its classification.
type PlannedDay struct {
	Date  core.Date
	Class calendar.Classification
}

// Plan is the outcome of expanding one rule over one window.
type Plan struct {
	Window  core.Period
	Days    []PlannedDay
	Skipped []SkippedDate
}

// PlanDates enumerates the dates of rng ∩ rule validity whose weekday matches
// the rule, splitting them into generated and skipped days.
//
// A rule whose ValidUntil precedes ValidFrom has an empty validity and yields
// an empty plan. A malformed rng is the caller's responsibility (see
// Generator, which validates it).
func PlanDates(rule core.RecurringShiftRule, rng core.Period, profile *core.HolidayProfile, cal calendar.Classifier) Plan {
	window := rng.Intersect(rule.Validity())
	plan := Plan{Window: window}
	if window.IsEmpty() {
		return plan
	}

	// jump to the first matching weekday, then step a week at a time
	first := window.Start
	offset := (int(rule.Weekday) - int(first.Weekday()) + 7) % 7
	for d := first.AddDays(offset); d.BeforeOrEqual(window.End); d = d.AddDays(7) {
		class := cal.Classify(d, profile)
		if reason, name, skip := skipFor(rule, class); skip {
			plan.Skipped = append(plan.Skipped, SkippedDate{Date: d, Reason: reason, Name: name})
			continue
		}
		plan.Days = append(plan.Days, PlannedDay{Date: d, Class: class})
	}
	return plan
}

func skipFor(rule core.RecurringShiftRule, c calendar.Classification) (SkipReason, string, bool) {
	switch {
	case rule.SkipPublicHolidays && c.IsPublicHoliday():
		return SkipPublicHoliday, c.PublicHoliday, true
	case c.IsCustom():
		return SkipCustom, c.Custom, true
	case c.IsVacation():
		return SkipVacation, c.Vacation, true
	default:
		return "", "", false
	}
}

// Preview is the count summary shown before generating.
type Preview struct {
	GeneratedCount int           `json:"generated_count"`
	SkippedCount   int           `json:"skipped_count"`
	SkippedDates   []SkippedDate `json:"skipped_dates"`
}

func (p Plan) Preview() Preview {
	skipped := p.Skipped
	if skipped == nil {
		skipped = []SkippedDate{}
	}
	return Preview{
		GeneratedCount: len(p.Days),
		SkippedCount:   len(p.Skipped),
		SkippedDates:   skipped,
	}
}
