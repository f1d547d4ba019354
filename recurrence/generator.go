package recurrence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/logging"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Generator persists the shifts of recurring rules.
type Generator struct {
	Store    core.Store
	Calendar calendar.Classifier
	Logger   *slog.Logger
	NewID    func() string
}

func NewGenerator(store core.Store, cal calendar.Classifier, logger *slog.Logger) *Generator {
	return &Generator{Store: store, Calendar: cal, Logger: logger, NewID: uuid.NewString}
}

type GenerateResult struct {
	Created []core.Shift  `json:"created"`
	Skipped []SkippedDate `json:"skipped"`
}

// Preview reports what Generate would do for rule over rng, without writing.
func (g *Generator) Preview(ctx context.Context, rule core.RecurringShiftRule, rng core.Period) (Preview, error) {
	if err := rng.Validate(); err != nil {
		return Preview{}, err
	}
	if !rule.Weekday.Valid() {
		return Preview{}, &core.ValidationError{Field: "weekday", Reason: "must be 0 (Monday) .. 6 (Sunday)"}
	}
	profile, err := g.resolveProfile(ctx, g.Store, rule.HolidayProfileID)
	if err != nil {
		return Preview{}, err
	}
	return PlanDates(rule, rng, profile, g.Calendar).Preview(), nil
}

// Generate creates planned shifts for rule over rng ∩ validity and stores
// them in one transaction. Existing shifts are not deduplicated.
func (g *Generator) Generate(ctx context.Context, rule core.RecurringShiftRule, rng core.Period) (GenerateResult, error) {
	log := logging.Service(ctx, g.Logger, "recurrence", "generate", "rule_id", rule.ID)

	if err := rng.Validate(); err != nil {
		return GenerateResult{}, err
	}
	if err := rule.Validate(); err != nil {
		return GenerateResult{}, err
	}
	if !rule.Active {
		return GenerateResult{}, &core.ConflictError{Resource: "recurring_shift", Key: string(rule.ID), Reason: "rule is inactive"}
	}

	var result GenerateResult
	err := g.Store.WithTx(ctx, func(tx core.Store) error {
		var err error
		result, err = g.generateTx(ctx, tx, rule, rng)
		return err
	})
	if err != nil {
		log.Error("generation failed", "error", err, "kind", logging.ErrorKind(err))
		return GenerateResult{}, err
	}

	log.Info("shifts generated", "created", len(result.Created), "skipped", len(result.Skipped))
	return result, nil
}

// Create stores a new active rule and generates its shifts over rng in the
// same transaction. An empty rule ID is assigned.
func (g *Generator) Create(ctx context.Context, rule core.RecurringShiftRule, rng core.Period) (core.RecurringShiftRule, GenerateResult, error) {
	if rule.ID == "" {
		rule.ID = core.RuleID(g.newID())
	}
	rule.Active = true
	log := logging.Service(ctx, g.Logger, "recurrence", "create", "rule_id", rule.ID)

	if err := rng.Validate(); err != nil {
		return core.RecurringShiftRule{}, GenerateResult{}, err
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringShiftRule{}, GenerateResult{}, err
	}

	var result GenerateResult
	err := g.Store.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveRule(ctx, rule); err != nil {
			return err
		}
		var err error
		result, err = g.generateTx(ctx, tx, rule, rng)
		return err
	})
	if err != nil {
		log.Error("create failed", "error", err, "kind", logging.ErrorKind(err))
		return core.RecurringShiftRule{}, GenerateResult{}, err
	}

	log.Info("rule created", "created", len(result.Created), "skipped", len(result.Skipped))
	return rule, result, nil
}

func (g *Generator) generateTx(ctx context.Context, tx core.Store, rule core.RecurringShiftRule, rng core.Period) (GenerateResult, error) {
	profile, err := g.resolveProfile(ctx, tx, rule.HolidayProfileID)
	if err != nil {
		return GenerateResult{}, err
	}
	plan := PlanDates(rule, rng, profile, g.Calendar)
	result := GenerateResult{Created: g.buildShifts(rule, plan.Days), Skipped: plan.Skipped}
	if err := tx.SaveShifts(ctx, result.Created); err != nil {
		return GenerateResult{}, err
	}
	return result, nil
}

// =============================================================================
// CUTOVER - "change from date X onwards"
// =============================================================================

// Overrides are the rule fields UpdateFrom may change. Nil means unchanged.
// An empty EmployeeID pointer target turns future shifts into open shifts.
type Overrides struct {
	Start              *core.ClockTime
	End                *core.ClockTime
	BreakMinutes       *int
	EmployeeID         *core.EmployeeID
	TemplateID         *string
	HolidayProfileID   *core.ProfileID
	SkipPublicHolidays *bool
	Label              *string
	ValidUntil         *core.Date
}

// Apply returns rule with the overrides applied.
func (o Overrides) Apply(rule core.RecurringShiftRule) core.RecurringShiftRule {
	if o.Start != nil {
		rule.Start = *o.Start
	}
	if o.End != nil {
		rule.End = *o.End
	}
	if o.BreakMinutes != nil {
		rule.BreakMinutes = *o.BreakMinutes
	}
	if o.EmployeeID != nil {
		rule.EmployeeID = *o.EmployeeID
	}
	if o.TemplateID != nil {
		rule.TemplateID = *o.TemplateID
	}
	if o.HolidayProfileID != nil {
		rule.HolidayProfileID = *o.HolidayProfileID
	}
	if o.SkipPublicHolidays != nil {
		rule.SkipPublicHolidays = *o.SkipPublicHolidays
	}
	if o.Label != nil {
		rule.Label = *o.Label
	}
	if o.ValidUntil != nil {
		rule.ValidUntil = *o.ValidUntil
	}
	return rule
}

type UpdateResult struct {
	Rule      core.RecurringShiftRule `json:"rule"`
	Deleted   int                     `json:"deleted"`
	Generated []core.Shift            `json:"generated"`
	Skipped   []SkippedDate           `json:"skipped"`
}

// UpdateFrom replaces the rule's future planned shifts from `from` onwards.
//
// Inside one transaction it deletes the rule's planned, non-override shifts
// dated on or after from, applies the overrides to the rule, and regenerates
// over [from, ValidUntil]. Shifts before from and protected shifts (confirmed,
// completed, cancelled or manually edited) are left untouched, and their
// dates are skipped with reason "protected". Any failure rolls back.
func (g *Generator) UpdateFrom(ctx context.Context, ruleID core.RuleID, from core.Date, o Overrides) (UpdateResult, error) {
	log := logging.Service(ctx, g.Logger, "recurrence", "update_from", "rule_id", ruleID, "from", from.String())

	if from.IsZero() {
		return UpdateResult{}, &core.ValidationError{Field: "from_date", Reason: "required"}
	}

	var result UpdateResult
	err := g.Store.WithTx(ctx, func(tx core.Store) error {
		rule, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if !rule.Active {
			return &core.ConflictError{Resource: "recurring_shift", Key: string(rule.ID), Reason: "rule is inactive"}
		}
		rule = o.Apply(rule)
		if err := rule.Validate(); err != nil {
			return err
		}
		if err := tx.SaveRule(ctx, rule); err != nil {
			return fmt.Errorf("save rule: %w", err)
		}

		existing, err := tx.ListShifts(ctx, core.ShiftFilter{RuleID: rule.ID})
		if err != nil {
			return err
		}
		var doomed []core.ShiftID
		protected := make(map[string]bool)
		for _, s := range existing {
			if s.Date.Before(from) {
				continue
			}
			if s.IsProtected() {
				protected[s.Date.String()] = true
				continue
			}
			doomed = append(doomed, s.ID)
		}
		if err := tx.DeleteShifts(ctx, doomed); err != nil {
			return fmt.Errorf("delete planned shifts: %w", err)
		}

		profile, err := g.resolveProfile(ctx, tx, rule.HolidayProfileID)
		if err != nil {
			return err
		}
		plan := PlanDates(rule, core.NewPeriod(from, rule.ValidUntil), profile, g.Calendar)

		var days []PlannedDay
		skipped := plan.Skipped
		for _, d := range plan.Days {
			if protected[d.Date.String()] {
				skipped = append(skipped, SkippedDate{Date: d.Date, Reason: SkipProtected})
				continue
			}
			days = append(days, d)
		}
		created := g.buildShifts(rule, days)
		if err := tx.SaveShifts(ctx, created); err != nil {
			return fmt.Errorf("save shifts: %w", err)
		}

		result = UpdateResult{Rule: rule, Deleted: len(doomed), Generated: created, Skipped: skipped}
		return nil
	})
	if err != nil {
		log.Error("cutover failed", "error", err, "kind", logging.ErrorKind(err))
		return UpdateResult{}, err
	}

	log.Info("rule updated from date", "deleted", result.Deleted, "generated", len(result.Generated), "skipped", len(result.Skipped))
	return result, nil
}

// Deactivate soft-deletes a rule and removes all of its planned, non-override
// shifts. Protected shifts keep their link to the rule. Returns the number of
// deleted shifts.
func (g *Generator) Deactivate(ctx context.Context, ruleID core.RuleID) (int, error) {
	deleted := 0
	err := g.Store.WithTx(ctx, func(tx core.Store) error {
		rule, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		rule.Active = false
		if err := tx.SaveRule(ctx, rule); err != nil {
			return err
		}

		shifts, err := tx.ListShifts(ctx, core.ShiftFilter{RuleID: ruleID, Statuses: []core.ShiftStatus{core.ShiftPlanned}})
		if err != nil {
			return err
		}
		var ids []core.ShiftID
		for _, s := range shifts {
			if !s.IsOverride {
				ids = append(ids, s.ID)
			}
		}
		deleted = len(ids)
		return tx.DeleteShifts(ctx, ids)
	})
	if err != nil {
		return 0, err
	}
	logging.Service(ctx, g.Logger, "recurrence", "deactivate", "rule_id", ruleID).Info("rule deactivated", "deleted", deleted)
	return deleted, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveProfile loads the rule's profile, or the active one when the rule
// names none. No active profile means no vacation or custom days.
func (g *Generator) resolveProfile(ctx context.Context, store core.CalendarStore, id core.ProfileID) (*core.HolidayProfile, error) {
	if id == "" {
		return store.ActiveProfile(ctx)
	}
	p, err := store.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("holiday profile %s: %w", id, err)
	}
	return &p, nil
}

func (g *Generator) buildShifts(rule core.RecurringShiftRule, days []PlannedDay) []core.Shift {
	shifts := make([]core.Shift, 0, len(days))
	for _, d := range days {
		shifts = append(shifts, core.Shift{
			ID:           core.ShiftID(g.newID()),
			Date:         d.Date,
			Start:        rule.Start,
			End:          rule.End,
			BreakMinutes: rule.BreakMinutes,
			EmployeeID:   rule.EmployeeID,
			TemplateID:   rule.TemplateID,
			Status:       core.ShiftPlanned,
			RuleID:       rule.ID,
			Flags:        calendar.WithDayFlags(core.DefaultFlags(), d.Date, d.Class),
			Notes:        rule.Label,
		})
	}
	return shifts
}

func (g *Generator) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}
