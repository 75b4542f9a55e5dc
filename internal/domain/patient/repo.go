package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *TestPatient) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestPatient, error)
	Update(ctx context.Context, p *TestPatient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*TestPatient, int, error)
}
