package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/measure"
)

// Fact is one timestamped coded clinical event on a test patient. EndDate is
// set for interval facts (encounters, medication courses); Value carries the
// numeric result of observations.
type Fact struct {
	ID      uuid.UUID  `json:"id"`
	Code    string     `json:"code"`
	System  string     `json:"system,omitempty"`
	Display string     `json:"display,omitempty"`
	Date    time.Time  `json:"date"`
	EndDate *time.Time `json:"end_date,omitempty"`
	Value   *float64   `json:"value,omitempty"`
	Unit    string     `json:"unit,omitempty"`
}

// TestPatient maps to the test_patient table; the categorized fact lists are
// stored together as one JSONB document alongside the scalar demographics.
type TestPatient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	BirthDate     time.Time `db:"birth_date" json:"birth_date"`
	Gender        string    `db:"gender" json:"gender"`
	Conditions    []Fact    `db:"-" json:"conditions,omitempty"`
	Encounters    []Fact    `db:"-" json:"encounters,omitempty"`
	Procedures    []Fact    `db:"-" json:"procedures,omitempty"`
	Observations  []Fact    `db:"-" json:"observations,omitempty"`
	Medications   []Fact    `db:"-" json:"medications,omitempty"`
	Immunizations []Fact    `db:"-" json:"immunizations,omitempty"`
	VersionID     int       `db:"version_id" json:"version_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Facts returns the fact collection matching an element type. Demographic
// elements have no fact collection and yield nil.
func (p *TestPatient) Facts(t measure.ElementType) []Fact {
	switch t {
	case measure.ElementDiagnosis:
		return p.Conditions
	case measure.ElementEncounter:
		return p.Encounters
	case measure.ElementProcedure:
		return p.Procedures
	case measure.ElementObservation:
		return p.Observations
	case measure.ElementMedication:
		return p.Medications
	case measure.ElementImmunization:
		return p.Immunizations
	}
	return nil
}

// AgeAt returns the patient's age in whole years on the given date.
func (p *TestPatient) AgeAt(on time.Time) int {
	years := on.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(on) {
		years--
	}
	return years
}
