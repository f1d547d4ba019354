package core

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive date range [Start, End]. Generation windows, rule
// validity and vacation periods are all expressed with it.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewPeriod(start, end Date) Period {
	return Period{Start: start, End: end}
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// IsEmpty reports a zero-length range (End before Start).
func (p Period) IsEmpty() bool {
	return p.End.Before(p.Start)
}

// Validate rejects malformed request ranges.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Reason: "start and end are required"}
	}
	if p.IsEmpty() {
		return &ValidationError{Field: "period", Reason: ErrInvalidPeriod.Error()}
	}
	return nil
}

// Intersect returns the overlap of two periods. The result may be empty.
func (p Period) Intersect(o Period) Period {
	start, end := p.Start, p.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	return Period{Start: start, End: end}
}

// Days returns all days in the period. An empty period yields nil.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
