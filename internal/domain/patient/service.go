package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

func (s *Service) CreatePatient(ctx context.Context, p *TestPatient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*TestPatient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *TestPatient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*TestPatient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) validate(p *TestPatient) error {
	if p.BirthDate.IsZero() {
		return fmt.Errorf("birth date is required")
	}
	if p.Gender == "" {
		p.Gender = "unknown"
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	for _, facts := range [][]Fact{
		p.Conditions, p.Encounters, p.Procedures,
		p.Observations, p.Medications, p.Immunizations,
	} {
		for _, f := range facts {
			if f.Code == "" {
				return fmt.Errorf("fact %s has no code", f.ID)
			}
			if f.Date.IsZero() {
				return fmt.Errorf("fact %s (%s) has no date", f.ID, f.Code)
			}
		}
	}
	return nil
}
