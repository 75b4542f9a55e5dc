package measure

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operator combines sibling criteria inside a LogicalClause.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"
)

// ValidOperator reports whether op is one of the supported clause operators.
func ValidOperator(op Operator) bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// ElementType names the category of patient facts a DataElement matches
// against. Demographic elements bypass fact lookup entirely.
type ElementType string

const (
	ElementDiagnosis    ElementType = "diagnosis"
	ElementEncounter    ElementType = "encounter"
	ElementProcedure    ElementType = "procedure"
	ElementObservation  ElementType = "observation"
	ElementMedication   ElementType = "medication"
	ElementImmunization ElementType = "immunization"
	ElementDemographic  ElementType = "demographic"
)

// Comparator is used for observation value and age thresholds.
type Comparator string

const (
	CompGT  Comparator = "gt"
	CompGTE Comparator = "gte"
	CompLT  Comparator = "lt"
	CompLTE Comparator = "lte"
	CompEQ  Comparator = "eq"
)

// Coding is a single clinical code with its system and display text.
type Coding struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// ValueSet is a named collection of codings representing one clinical concept.
type ValueSet struct {
	OID     string   `json:"oid,omitempty"`
	Name    string   `json:"name,omitempty"`
	Codings []Coding `json:"codings"`
}

// TimingOperator names how a timing requirement relates a fact date to its anchor.
type TimingOperator string

const (
	TimingDuring       TimingOperator = "during"
	TimingWithinBefore TimingOperator = "within_before"
	TimingWithinAfter  TimingOperator = "within_after"
	TimingBeforeEndOf  TimingOperator = "before_end_of"
	TimingAfterStartOf TimingOperator = "after_start_of"
)

// TimeUnit is the calendar unit of a timing quantity.
type TimeUnit string

const (
	UnitYears  TimeUnit = "years"
	UnitMonths TimeUnit = "months"
	UnitWeeks  TimeUnit = "weeks"
	UnitDays   TimeUnit = "days"
)

// AnchorType identifies what a relative timing window is anchored to.
type AnchorType string

const (
	// AnchorMeasurementPeriod is the whole measurement period interval.
	AnchorMeasurementPeriod AnchorType = "measurement_period"
	// AnchorPeriodStart and AnchorPeriodEnd are the period boundary instants.
	AnchorPeriodStart AnchorType = "measurement_period_start"
	AnchorPeriodEnd   AnchorType = "measurement_period_end"
	// AnchorBirthday is an age milestone: birthDate + Ordinal years.
	AnchorBirthday AnchorType = "birthday"
	// AnchorEncounter is resolved per candidate encounter fact at match time.
	AnchorEncounter AnchorType = "encounter"
)

// Anchor is the reference point (or interval) of a TimingRequirement.
type Anchor struct {
	Type AnchorType `json:"type"`
	// Ordinal is the birthday number for AnchorBirthday ("2nd birthday" = 2).
	Ordinal int `json:"ordinal,omitempty"`
}

// TimingRequirement is a relative temporal constraint on a DataElement,
// resolvable into a concrete date window given a measurement period and
// patient demographics.
type TimingRequirement struct {
	Operator   TimingOperator `json:"operator"`
	Quantity   int            `json:"quantity,omitempty"`
	Unit       TimeUnit       `json:"unit,omitempty"`
	Anchor     Anchor         `json:"anchor"`
	OffsetDays int            `json:"offset_days,omitempty"`
}

// ValueThreshold constrains the numeric value carried by a matched fact.
type ValueThreshold struct {
	Comparator Comparator `json:"comparator"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit,omitempty"`
}

// AgeRange constrains patient age in whole years, inclusive on both ends.
type AgeRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// DataElement is a leaf criterion. It references a value set (or direct
// codes), with optional timing, threshold, demographic and negation
// constraints. Elements are authored externally and read-only here.
type DataElement struct {
	ID       uuid.UUID   `json:"id"`
	Label    string      `json:"label,omitempty"`
	Type     ElementType `json:"type"`
	ValueSet ValueSet    `json:"value_set"`
	// MinOccurs is the minimum number of qualifying facts required;
	// zero means one.
	MinOccurs int                `json:"min_occurs,omitempty"`
	Timing    *TimingRequirement `json:"timing,omitempty"`
	Threshold *ValueThreshold    `json:"threshold,omitempty"`
	// AgeRange and Gender apply to demographic elements only.
	AgeRange *AgeRange `json:"age_range,omitempty"`
	Gender   string    `json:"gender,omitempty"`
	Negation bool      `json:"negation,omitempty"`
}

// LogicalClause is an internal tree node combining ordered children with
// AND/OR/NOT. PairOperators, when present, overrides the operator between
// each adjacent pair of children; its length must be len(Children)-1.
type LogicalClause struct {
	ID            uuid.UUID      `json:"id"`
	Label         string         `json:"label,omitempty"`
	Operator      Operator       `json:"operator"`
	Children      []CriteriaNode `json:"children"`
	PairOperators []Operator     `json:"pair_operators,omitempty"`
}

// NodeKind discriminates the clause/element sum type.
type NodeKind string

const (
	KindClause  NodeKind = "clause"
	KindElement NodeKind = "element"
)

// CriteriaNode is the tagged union of LogicalClause and DataElement. Exactly
// one of Clause or Element is set, according to Kind.
type CriteriaNode struct {
	Kind    NodeKind
	Clause  *LogicalClause
	Element *DataElement
}

type criteriaNodeJSON struct {
	Kind    NodeKind       `json:"kind"`
	Clause  *LogicalClause `json:"clause,omitempty"`
	Element *DataElement   `json:"element,omitempty"`
}

func (n CriteriaNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(criteriaNodeJSON{Kind: n.Kind, Clause: n.Clause, Element: n.Element})
}

func (n *CriteriaNode) UnmarshalJSON(data []byte) error {
	var raw criteriaNodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case KindClause:
		if raw.Clause == nil {
			return fmt.Errorf("criteria node kind %q has no clause body", raw.Kind)
		}
	case KindElement:
		if raw.Element == nil {
			return fmt.Errorf("criteria node kind %q has no element body", raw.Kind)
		}
	default:
		return fmt.Errorf("unknown criteria node kind %q", raw.Kind)
	}
	n.Kind = raw.Kind
	n.Clause = raw.Clause
	n.Element = raw.Element
	return nil
}

// ClauseNode wraps a clause as a CriteriaNode.
func ClauseNode(c *LogicalClause) CriteriaNode {
	return CriteriaNode{Kind: KindClause, Clause: c}
}

// ElementNode wraps an element as a CriteriaNode.
func ElementNode(e *DataElement) CriteriaNode {
	return CriteriaNode{Kind: KindElement, Element: e}
}

// PopulationType enumerates the measure populations.
type PopulationType string

const (
	PopInitialPopulation    PopulationType = "initial_population"
	PopDenominator          PopulationType = "denominator"
	PopDenominatorExclusion PopulationType = "denominator_exclusion"
	PopDenominatorException PopulationType = "denominator_exception"
	PopNumerator            PopulationType = "numerator"
	PopNumeratorExclusion   PopulationType = "numerator_exclusion"
)

// PopulationDefinition ties a population type to its root criteria clause.
type PopulationDefinition struct {
	Type     PopulationType `json:"type"`
	Criteria *LogicalClause `json:"criteria"`
}

// Period is a concrete date interval, inclusive on both ends.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether either boundary is missing.
func (p Period) IsZero() bool {
	return p.Start.IsZero() || p.End.IsZero()
}

// YearPeriod returns the calendar-year period for year, Jan 1 through Dec 31
// inclusive. A non-positive year yields the zero period.
func YearPeriod(year int) Period {
	if year <= 0 {
		return Period{}
	}
	return Period{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// GlobalConstraints are measure-wide demographic pre-checks evaluated before
// any population criteria tree.
type GlobalConstraints struct {
	AgeRange *AgeRange `json:"age_range,omitempty"`
	Gender   string    `json:"gender,omitempty"`
}

// MeasureSpec maps to the measure_spec table. The populations document
// (criteria trees included) travels as one JSONB column; the scalar columns
// mirror the resource-row layout used elsewhere in the service.
type MeasureSpec struct {
	ID                uuid.UUID              `db:"id" json:"id"`
	Name              string                 `db:"name" json:"name"`
	Title             *string                `db:"title" json:"title,omitempty"`
	Description       *string                `db:"description" json:"description,omitempty"`
	Steward           *string                `db:"steward" json:"steward,omitempty"`
	Status            string                 `db:"status" json:"status"`
	MeasurementPeriod Period                 `db:"-" json:"measurement_period"`
	GlobalConstraints GlobalConstraints      `db:"-" json:"global_constraints"`
	Populations       []PopulationDefinition `db:"-" json:"populations"`
	VersionID         int                    `db:"version_id" json:"version_id"`
	CreatedAt         time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time              `db:"updated_at" json:"updated_at"`
}

// Population returns the definition for the given type, or nil.
func (m *MeasureSpec) Population(t PopulationType) *PopulationDefinition {
	for i := range m.Populations {
		if m.Populations[i].Type == t {
			return &m.Populations[i]
		}
	}
	return nil
}
