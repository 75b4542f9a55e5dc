package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
)

// MeasureSource and PatientSource are the read-only slices of the measure and
// patient repositories the validation service needs. Both domain repositories
// satisfy them.
type MeasureSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*measure.MeasureSpec, error)
}

type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.TestPatient, error)
}

// Service resolves measure and patient references and runs the pure
// evaluation pipeline. The pipeline itself does no I/O; all loading happens
// here, before evaluation starts.
type Service struct {
	measures MeasureSource
	patients PatientSource
	// defaultPeriod covers measures authored without a measurement period
	// when the caller supplies none either. Zero disables the fallback.
	defaultPeriod measure.Period
	log           zerolog.Logger
}

func NewService(measures MeasureSource, patients PatientSource, defaultPeriod measure.Period, log zerolog.Logger) *Service {
	return &Service{measures: measures, patients: patients, defaultPeriod: defaultPeriod, log: log}
}

// resolvePeriod applies the configured fallback period when neither the
// request nor the measure carries one.
func (s *Service) resolvePeriod(m *measure.MeasureSpec, period measure.Period) measure.Period {
	if period.IsZero() && m.MeasurementPeriod.IsZero() {
		return s.defaultPeriod
	}
	return period
}

// ValidatePatient evaluates one stored patient against one stored measure.
// A zero period falls back to the measure's own measurement period, then to
// the service's configured default year.
func (s *Service) ValidatePatient(ctx context.Context, measureID, patientID uuid.UUID, period measure.Period) (*PatientValidationTrace, error) {
	m, err := s.measures.GetByID(ctx, measureID)
	if err != nil {
		return nil, fmt.Errorf("load measure %s: %w", measureID, err)
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}

	trace, err := Evaluate(m, p, s.resolvePeriod(m, period))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("measure_id", measureID.String()).
		Str("patient_id", patientID.String()).
		Str("classification", string(trace.Classification)).
		Msg("patient validated")
	return trace, nil
}

// ValidateInline evaluates measure and patient documents supplied directly by
// the caller, with no repository round-trip.
func (s *Service) ValidateInline(m *measure.MeasureSpec, p *patient.TestPatient, period measure.Period) (*PatientValidationTrace, error) {
	for i := range m.Populations {
		if m.Populations[i].Criteria == nil {
			continue
		}
		if err := measure.ValidateClause(m.Populations[i].Criteria, 0); err != nil {
			return nil, fmt.Errorf("population %q: %w", m.Populations[i].Type, err)
		}
	}
	return Evaluate(m, p, s.resolvePeriod(m, period))
}
