package validation

import (
	"time"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/measure"
)

// Status marks the outcome of a single validation node.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	// StatusPartial marks a failing group in which some children passed.
	StatusPartial Status = "partial"
	// StatusNotEvaluated marks criteria that could not be evaluated, such as
	// elements whose timing anchor is unresolvable.
	StatusNotEvaluated Status = "not_evaluated"
)

// FactMatch records one patient fact that satisfied a leaf criterion.
type FactMatch struct {
	FactID  uuid.UUID `json:"fact_id"`
	Code    string    `json:"code"`
	System  string    `json:"system,omitempty"`
	Display string    `json:"display,omitempty"`
	Date    time.Time `json:"date"`
	Value   *float64  `json:"value,omitempty"`
}

// MatchCount is the met/total child tally of a group node. It is reported for
// trace readers only and never feeds back into the boolean result.
type MatchCount struct {
	Met   int `json:"met"`
	Total int `json:"total"`
}

// ValidationNode mirrors one criterion of the input tree. Leaf nodes carry
// the matched facts; group nodes carry children in the same order as the
// input clause, so the output tree is structurally isomorphic to the input.
type ValidationNode struct {
	ID       uuid.UUID         `json:"id"`
	Label    string            `json:"label,omitempty"`
	Kind     measure.NodeKind  `json:"kind"`
	Status   Status            `json:"status"`
	Met      bool              `json:"met"`
	Operator measure.Operator  `json:"operator,omitempty"`
	Children []*ValidationNode `json:"children,omitempty"`
	Matched  []FactMatch       `json:"matched,omitempty"`
	Count    *MatchCount       `json:"match_count,omitempty"`
	// Notes carry data-quality flags (empty value set, malformed clause)
	// absorbed during evaluation instead of being raised as errors.
	Notes []string `json:"notes,omitempty"`
}

// PopulationResult is the evaluated node list for one measure population.
type PopulationResult struct {
	Type  measure.PopulationType `json:"type"`
	Met   bool                   `json:"met"`
	Nodes []*ValidationNode      `json:"nodes"`
}

// Classification is the final population assignment for a patient.
type Classification string

const (
	NotInPopulation Classification = "not_in_population"
	Excluded        Classification = "excluded"
	InNumerator     Classification = "in_numerator"
	DenominatorOnly Classification = "denominator_only"
)

// PatientValidationTrace is the full audit record of one evaluation run.
// It is constructed once per (measure, patient, period) call and never
// mutated afterwards.
type PatientValidationTrace struct {
	MeasureID      uuid.UUID          `json:"measure_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	Period         measure.Period     `json:"measurement_period"`
	Populations    []PopulationResult `json:"populations"`
	Classification Classification     `json:"classification"`
	// ExceptionMet reports the denominator-exception tree outcome. It is
	// surfaced for reviewers but does not alter the classification until
	// the exception precedence rule is confirmed.
	ExceptionMet bool `json:"exception_met"`
	// HowClose lists human-readable reasons from the nearest unmet
	// population's failing nodes.
	HowClose []string `json:"how_close,omitempty"`
}

// Population returns the result for the given population type, or nil.
func (t *PatientValidationTrace) Population(pt measure.PopulationType) *PopulationResult {
	for i := range t.Populations {
		if t.Populations[i].Type == pt {
			return &t.Populations[i]
		}
	}
	return nil
}
