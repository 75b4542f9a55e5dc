package validation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
)

// Stable IDs for the synthetic demographic pre-check nodes. Derived, not
// random, so identical inputs always produce byte-identical traces.
var (
	genderCheckID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("cqm/precheck/gender"))
	ageCheckID    = uuid.NewSHA1(uuid.NameSpaceOID, []byte("cqm/precheck/age"))
)

// Evaluate runs the full population pipeline for one patient against one
// measure and returns the complete validation trace. It is a pure function
// of its inputs: no I/O, no shared state, safe to call concurrently.
//
// Only missing preconditions escalate to an error: an absent measurement
// period, or an initial population without a root clause. Everything else is
// absorbed into node statuses.
func Evaluate(m *measure.MeasureSpec, pt *patient.TestPatient, period measure.Period) (*PatientValidationTrace, error) {
	if period.IsZero() {
		period = m.MeasurementPeriod
	}
	if period.IsZero() {
		return nil, fmt.Errorf("measure %s: measurement period is required", m.ID)
	}

	ip := m.Population(measure.PopInitialPopulation)
	if ip == nil || ip.Criteria == nil {
		return nil, fmt.Errorf("measure %s: initial population has no root clause", m.ID)
	}

	trace := &PatientValidationTrace{
		MeasureID: m.ID,
		PatientID: pt.ID,
		Period:    period,
	}

	// Demographic pre-checks run unconditionally and are merged into the
	// initial population node list, so each failure is independently visible.
	prechecks := demographicPrechecks(m.GlobalConstraints, pt, period)
	ipNode := EvaluateClause(ip.Criteria, pt, period)

	ipMet := ipNode.Met
	ipNodes := make([]*ValidationNode, 0, len(prechecks)+1)
	for _, pc := range prechecks {
		ipNodes = append(ipNodes, pc)
		ipMet = ipMet && pc.Met
	}
	ipNodes = append(ipNodes, ipNode)
	trace.Populations = append(trace.Populations, PopulationResult{
		Type: measure.PopInitialPopulation, Met: ipMet, Nodes: ipNodes,
	})

	// Every remaining population is always fully evaluated, regardless of
	// whether the classification is already determined.
	denomMet := ipMet
	if denom := m.Population(measure.PopDenominator); denom != nil && denom.Criteria != nil {
		n := EvaluateClause(denom.Criteria, pt, period)
		denomMet = n.Met
		trace.Populations = append(trace.Populations, PopulationResult{
			Type: measure.PopDenominator, Met: n.Met, Nodes: []*ValidationNode{n},
		})
	}

	exclusionMet := false
	if excl := m.Population(measure.PopDenominatorExclusion); excl != nil && excl.Criteria != nil {
		n := EvaluateClause(excl.Criteria, pt, period)
		exclusionMet = n.Met
		trace.Populations = append(trace.Populations, PopulationResult{
			Type: measure.PopDenominatorExclusion, Met: n.Met, Nodes: []*ValidationNode{n},
		})
	}

	if exc := m.Population(measure.PopDenominatorException); exc != nil && exc.Criteria != nil {
		n := EvaluateClause(exc.Criteria, pt, period)
		trace.ExceptionMet = n.Met
		trace.Populations = append(trace.Populations, PopulationResult{
			Type: measure.PopDenominatorException, Met: n.Met, Nodes: []*ValidationNode{n},
		})
	}

	numeratorMet := false
	if num := m.Population(measure.PopNumerator); num != nil && num.Criteria != nil {
		n := EvaluateClause(num.Criteria, pt, period)
		numeratorMet = n.Met
		trace.Populations = append(trace.Populations, PopulationResult{
			Type: measure.PopNumerator, Met: n.Met, Nodes: []*ValidationNode{n},
		})
	}

	if nex := m.Population(measure.PopNumeratorExclusion); nex != nil && nex.Criteria != nil {
		n := EvaluateClause(nex.Criteria, pt, period)
		trace.Populations = append(trace.Populations, PopulationResult{
			Type: measure.PopNumeratorExclusion, Met: n.Met, Nodes: []*ValidationNode{n},
		})
	}

	switch {
	case !ipMet || !denomMet:
		trace.Classification = NotInPopulation
	case exclusionMet:
		trace.Classification = Excluded
	case numeratorMet:
		trace.Classification = InNumerator
	default:
		trace.Classification = DenominatorOnly
	}

	trace.HowClose = howClose(trace)
	return trace, nil
}

// demographicPrechecks builds one independent leaf node per global
// constraint. A patient failing both gender and age sees both failures;
// neither suppresses the other.
func demographicPrechecks(gc measure.GlobalConstraints, pt *patient.TestPatient, period measure.Period) []*ValidationNode {
	var nodes []*ValidationNode
	if gc.Gender != "" {
		n := &ValidationNode{
			ID:    genderCheckID,
			Label: fmt.Sprintf("gender is %s", gc.Gender),
			Kind:  measure.KindElement,
			Met:   pt.Gender == gc.Gender,
		}
		n.Status = StatusFail
		if n.Met {
			n.Status = StatusPass
		}
		nodes = append(nodes, n)
	}
	if gc.AgeRange != nil {
		n := &ValidationNode{
			ID:    ageCheckID,
			Label: ageRangeLabel(gc.AgeRange),
			Kind:  measure.KindElement,
		}
		if pt.BirthDate.IsZero() {
			n.Status = StatusNotEvaluated
			n.Notes = append(n.Notes, "patient has no birth date")
		} else {
			age := pt.AgeAt(period.End)
			n.Met = true
			if gc.AgeRange.Min != nil && age < *gc.AgeRange.Min {
				n.Met = false
			}
			if gc.AgeRange.Max != nil && age > *gc.AgeRange.Max {
				n.Met = false
			}
			n.Status = StatusFail
			if n.Met {
				n.Status = StatusPass
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func ageRangeLabel(r *measure.AgeRange) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("age %d-%d", *r.Min, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("age >= %d", *r.Min)
	case r.Max != nil:
		return fmt.Sprintf("age <= %d", *r.Max)
	}
	return "age"
}
