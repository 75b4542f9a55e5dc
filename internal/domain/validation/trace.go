package validation

import (
	"fmt"

	"github.com/cqm/cqm/internal/domain/measure"
)

// maxHowClose caps the diagnostic hint list; reviewers want the first few
// blockers, not an exhaustive dump.
const maxHowClose = 5

// howClose derives short human-readable reasons from the nearest unmet
// population's failing nodes, so a reviewer can see what kept the patient
// out of the next population.
func howClose(trace *PatientValidationTrace) []string {
	var target *PopulationResult
	switch trace.Classification {
	case NotInPopulation:
		target = trace.Population(measure.PopInitialPopulation)
		if target != nil && target.Met {
			target = trace.Population(measure.PopDenominator)
		}
	case DenominatorOnly:
		target = trace.Population(measure.PopNumerator)
	default:
		return nil
	}
	if target == nil || target.Met {
		return nil
	}

	var reasons []string
	for _, n := range target.Nodes {
		reasons = collectFailures(n, reasons)
	}
	if len(reasons) > maxHowClose {
		reasons = reasons[:maxHowClose]
	}
	if trace.Classification == DenominatorOnly && trace.ExceptionMet {
		reasons = append(reasons, "denominator exception criteria are met; classification precedence pending stakeholder review")
	}
	return reasons
}

// collectFailures walks a node tree in document order and appends a reason
// for every failing or unevaluable leaf.
func collectFailures(n *ValidationNode, reasons []string) []string {
	if n.Kind == measure.KindElement {
		switch n.Status {
		case StatusFail:
			reasons = append(reasons, failureReason(n))
		case StatusNotEvaluated:
			reasons = append(reasons, fmt.Sprintf("%s: could not be evaluated", n.Label))
		}
		return reasons
	}
	for _, c := range n.Children {
		reasons = collectFailures(c, reasons)
	}
	return reasons
}

func failureReason(n *ValidationNode) string {
	if len(n.Matched) > 0 {
		// A failing leaf that still matched facts is either a negated
		// element or one short of its minimum occurrence count.
		return fmt.Sprintf("%s: %d matching fact(s) found but criterion not satisfied", n.Label, len(n.Matched))
	}
	return fmt.Sprintf("%s: no qualifying facts found", n.Label)
}
