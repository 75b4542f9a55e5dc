package validation

import (
	"time"

	"github.com/cqm/cqm/internal/domain/measure"
)

// Window is a concrete date interval, inclusive on both ends. A nil boundary
// means the window is open on that side.
type Window struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// resolveAnchor turns an anchor into its own concrete interval. Point anchors
// (period boundaries, birthdays) come back with From == To. Encounter anchors
// are only resolvable when the caller supplies the candidate encounter's
// interval; with no candidate the anchor is unresolvable.
func resolveAnchor(a measure.Anchor, period measure.Period, birthDate time.Time, encounter *Window) (Window, bool) {
	point := func(t time.Time) (Window, bool) {
		return Window{From: &t, To: &t}, true
	}
	switch a.Type {
	case measure.AnchorMeasurementPeriod:
		if period.IsZero() {
			return Window{}, false
		}
		s, e := period.Start, period.End
		return Window{From: &s, To: &e}, true
	case measure.AnchorPeriodStart:
		if period.Start.IsZero() {
			return Window{}, false
		}
		return point(period.Start)
	case measure.AnchorPeriodEnd:
		if period.End.IsZero() {
			return Window{}, false
		}
		return point(period.End)
	case measure.AnchorBirthday:
		if birthDate.IsZero() || a.Ordinal < 0 {
			return Window{}, false
		}
		return point(birthDate.AddDate(a.Ordinal, 0, 0))
	case measure.AnchorEncounter:
		if encounter == nil {
			return Window{}, false
		}
		return *encounter, true
	}
	return Window{}, false
}

// shiftBack moves t earlier by qty calendar units. Years and months preserve
// month/day where the calendar allows, rather than subtracting fixed day counts.
func shiftBack(t time.Time, qty int, unit measure.TimeUnit) (time.Time, bool) {
	switch unit {
	case measure.UnitYears:
		return t.AddDate(-qty, 0, 0), true
	case measure.UnitMonths:
		return t.AddDate(0, -qty, 0), true
	case measure.UnitWeeks:
		return t.AddDate(0, 0, -7*qty), true
	case measure.UnitDays:
		return t.AddDate(0, 0, -qty), true
	}
	return time.Time{}, false
}

func shiftForward(t time.Time, qty int, unit measure.TimeUnit) (time.Time, bool) {
	switch unit {
	case measure.UnitYears:
		return t.AddDate(qty, 0, 0), true
	case measure.UnitMonths:
		return t.AddDate(0, qty, 0), true
	case measure.UnitWeeks:
		return t.AddDate(0, 0, 7*qty), true
	case measure.UnitDays:
		return t.AddDate(0, 0, qty), true
	}
	return time.Time{}, false
}

// ResolveWindow resolves a relative timing requirement into a concrete date
// window. The boolean result is false when the anchor (or unit) cannot be
// resolved from the given inputs; callers must then treat the element as not
// evaluable rather than failed. This function never returns an error and
// never panics.
func ResolveWindow(tr *measure.TimingRequirement, period measure.Period, birthDate time.Time, encounter *Window) (Window, bool) {
	if tr == nil {
		return Window{}, false
	}
	anchor, ok := resolveAnchor(tr.Anchor, period, birthDate, encounter)
	if !ok {
		return Window{}, false
	}

	var w Window
	switch tr.Operator {
	case measure.TimingDuring:
		w = anchor
	case measure.TimingWithinBefore:
		// Window of length qty ending at the anchor.
		end := *anchor.To
		start, ok := shiftBack(end, tr.Quantity, tr.Unit)
		if !ok {
			return Window{}, false
		}
		w = Window{From: &start, To: &end}
	case measure.TimingWithinAfter:
		start := *anchor.From
		end, ok := shiftForward(start, tr.Quantity, tr.Unit)
		if !ok {
			return Window{}, false
		}
		w = Window{From: &start, To: &end}
	case measure.TimingBeforeEndOf:
		w = Window{To: anchor.To}
	case measure.TimingAfterStartOf:
		w = Window{From: anchor.From}
	default:
		return Window{}, false
	}

	if tr.OffsetDays != 0 {
		if w.From != nil {
			f := w.From.AddDate(0, 0, tr.OffsetDays)
			w.From = &f
		}
		if w.To != nil {
			t := w.To.AddDate(0, 0, tr.OffsetDays)
			w.To = &t
		}
	}
	return w, true
}

// DeriveTiming performs reverse resolution: given a concrete window, it
// reconstructs the equivalent relative requirement under the default anchor
// (end of the measurement period). It recognizes the "within N units before
// end of measurement period" family; forward-resolving the result reproduces
// the input window. Returns false for windows that have no such relative form.
func DeriveTiming(w Window, period measure.Period) (*measure.TimingRequirement, bool) {
	if period.End.IsZero() || w.To == nil || !w.To.Equal(period.End) {
		return nil, false
	}
	if w.From == nil {
		return &measure.TimingRequirement{
			Operator: measure.TimingBeforeEndOf,
			Anchor:   measure.Anchor{Type: measure.AnchorPeriodEnd},
		}, true
	}
	end, from := *w.To, *w.From
	if from.After(end) {
		return nil, false
	}

	within := func(qty int, unit measure.TimeUnit) *measure.TimingRequirement {
		return &measure.TimingRequirement{
			Operator: measure.TimingWithinBefore,
			Quantity: qty,
			Unit:     unit,
			Anchor:   measure.Anchor{Type: measure.AnchorPeriodEnd},
		}
	}

	// Prefer the coarsest calendar unit that round-trips exactly.
	if years := end.Year() - from.Year(); years > 0 && end.AddDate(-years, 0, 0).Equal(from) {
		return within(years, measure.UnitYears), true
	}
	months := (end.Year()-from.Year())*12 + int(end.Month()-from.Month())
	if months > 0 && end.AddDate(0, -months, 0).Equal(from) {
		return within(months, measure.UnitMonths), true
	}
	days := int(end.Sub(from).Hours() / 24)
	if days > 0 && end.AddDate(0, 0, -days).Equal(from) {
		if days%7 == 0 {
			return within(days/7, measure.UnitWeeks), true
		}
		return within(days, measure.UnitDays), true
	}
	return nil, false
}
