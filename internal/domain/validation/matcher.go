package validation

import (
	"fmt"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
)

// MatchElement evaluates one leaf criterion against a patient and returns its
// validation node. Node-level problems (empty value set, unresolvable timing)
// are absorbed into the node's status and notes; this function never fails.
func MatchElement(el *measure.DataElement, pt *patient.TestPatient, period measure.Period) *ValidationNode {
	node := &ValidationNode{
		ID:    el.ID,
		Label: elementLabel(el),
		Kind:  measure.KindElement,
	}

	if el.Type == measure.ElementDemographic {
		matchDemographic(node, el, pt, period)
		return node
	}

	facts := pt.Facts(el.Type)
	codes := el.ValueSet.Codings
	if len(codes) == 0 {
		// Data-quality warning, not an error: the element still evaluates,
		// defaulting to no code match.
		node.Notes = append(node.Notes, fmt.Sprintf("value set %q has no codes; flagged for review", valueSetName(el)))
	}

	var candidates []patient.Fact
	for _, f := range facts {
		if codeMatches(codes, f) {
			candidates = append(candidates, f)
		}
	}

	windowed := candidates
	if el.Timing != nil {
		filtered, resolvable := applyTiming(el.Timing, candidates, pt, period)
		if !resolvable {
			// Unresolvable anchor: skip window filtering entirely and mark
			// the element as not evaluable rather than failed.
			node.Status = StatusNotEvaluated
			node.Notes = append(node.Notes, "timing anchor could not be resolved")
		} else {
			windowed = filtered
		}
	}

	var matched []patient.Fact
	for _, f := range windowed {
		if el.Threshold != nil && !thresholdMet(el.Threshold, f) {
			continue
		}
		matched = append(matched, f)
	}

	for _, f := range matched {
		node.Matched = append(node.Matched, FactMatch{
			FactID: f.ID, Code: f.Code, System: f.System,
			Display: f.Display, Date: f.Date, Value: f.Value,
		})
	}

	if node.Status == StatusNotEvaluated {
		// Not evaluable is neither met nor failed; the matched facts stay
		// visible in the trace but never count toward the boolean.
		return node
	}

	minOccurs := el.MinOccurs
	if minOccurs <= 0 {
		minOccurs = 1
	}
	if el.Negation {
		node.Met = len(matched) == 0
	} else {
		node.Met = len(matched) >= minOccurs
	}

	node.Status = StatusFail
	if node.Met {
		node.Status = StatusPass
	}
	return node
}

// applyTiming filters candidates to those inside the element's resolved
// window. Encounter-relative anchors are resolved per candidate fact against
// every encounter interval the patient has; a fact qualifies if any encounter
// yields a window containing it. The boolean result is false when no window
// could be resolved at all.
func applyTiming(tr *measure.TimingRequirement, candidates []patient.Fact, pt *patient.TestPatient, period measure.Period) ([]patient.Fact, bool) {
	if tr.Anchor.Type != measure.AnchorEncounter {
		w, ok := ResolveWindow(tr, period, pt.BirthDate, nil)
		if !ok {
			return nil, false
		}
		var out []patient.Fact
		for _, f := range candidates {
			if w.Contains(f.Date) {
				out = append(out, f)
			}
		}
		return out, true
	}

	if len(pt.Encounters) == 0 {
		return nil, false
	}
	var out []patient.Fact
	for _, f := range candidates {
		for _, enc := range pt.Encounters {
			anchor := encounterWindow(enc)
			w, ok := ResolveWindow(tr, period, pt.BirthDate, &anchor)
			if ok && w.Contains(f.Date) {
				out = append(out, f)
				break
			}
		}
	}
	return out, true
}

func encounterWindow(enc patient.Fact) Window {
	start := enc.Date
	end := start
	if enc.EndDate != nil {
		end = *enc.EndDate
	}
	return Window{From: &start, To: &end}
}

// matchDemographic evaluates age and gender constraints directly against
// patient demographics and the measurement period, bypassing fact lookup.
// Age is taken at the end of the measurement period.
func matchDemographic(node *ValidationNode, el *measure.DataElement, pt *patient.TestPatient, period measure.Period) {
	node.Met = true
	if el.Gender != "" && pt.Gender != el.Gender {
		node.Met = false
	}
	if el.AgeRange != nil {
		if period.End.IsZero() || pt.BirthDate.IsZero() {
			node.Status = StatusNotEvaluated
			node.Met = false
			node.Notes = append(node.Notes, "age not computable without birth date and measurement period")
			return
		}
		age := pt.AgeAt(period.End)
		if el.AgeRange.Min != nil && age < *el.AgeRange.Min {
			node.Met = false
		}
		if el.AgeRange.Max != nil && age > *el.AgeRange.Max {
			node.Met = false
		}
	}
	if el.Negation {
		node.Met = !node.Met
	}
	node.Status = StatusFail
	if node.Met {
		node.Status = StatusPass
	}
}

func codeMatches(codes []measure.Coding, f patient.Fact) bool {
	for _, c := range codes {
		if c.Code != f.Code {
			continue
		}
		if c.System != "" && f.System != "" && c.System != f.System {
			continue
		}
		return true
	}
	return false
}

func thresholdMet(t *measure.ValueThreshold, f patient.Fact) bool {
	if f.Value == nil {
		return false
	}
	v := *f.Value
	switch t.Comparator {
	case measure.CompGT:
		return v > t.Value
	case measure.CompGTE:
		return v >= t.Value
	case measure.CompLT:
		return v < t.Value
	case measure.CompLTE:
		return v <= t.Value
	case measure.CompEQ:
		return v == t.Value
	}
	return false
}

func valueSetName(el *measure.DataElement) string {
	if el.ValueSet.Name != "" {
		return el.ValueSet.Name
	}
	if el.ValueSet.OID != "" {
		return el.ValueSet.OID
	}
	return string(el.Type)
}

func elementLabel(el *measure.DataElement) string {
	if el.Label != "" {
		return el.Label
	}
	if name := el.ValueSet.Name; name != "" {
		return fmt.Sprintf("%s: %s", el.Type, name)
	}
	if len(el.ValueSet.Codings) > 0 {
		return fmt.Sprintf("%s %s", el.Type, el.ValueSet.Codings[0].Code)
	}
	return string(el.Type)
}
