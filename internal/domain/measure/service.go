package measure

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// maxTreeDepth caps criteria nesting. Editor-authored trees are small; this
// guards against cyclic or runaway documents submitted over the API.
const maxTreeDepth = 32

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validStatuses = map[string]bool{
	"draft": true, "active": true, "retired": true,
}

func (s *Service) CreateMeasure(ctx context.Context, m *MeasureSpec) error {
	if m.Status == "" {
		m.Status = "draft"
	}
	if err := s.validate(m); err != nil {
		return err
	}
	return s.repo.Create(ctx, m)
}

func (s *Service) GetMeasure(ctx context.Context, id uuid.UUID) (*MeasureSpec, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateMeasure(ctx context.Context, m *MeasureSpec) error {
	if err := s.validate(m); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) DeleteMeasure(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListMeasures(ctx context.Context, limit, offset int) ([]*MeasureSpec, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) validate(m *MeasureSpec) error {
	if m.Name == "" {
		return fmt.Errorf("measure name is required")
	}
	if !validStatuses[m.Status] {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	seen := map[PopulationType]bool{}
	for i := range m.Populations {
		p := &m.Populations[i]
		if seen[p.Type] {
			return fmt.Errorf("duplicate population %q", p.Type)
		}
		seen[p.Type] = true
		if p.Criteria == nil {
			return fmt.Errorf("population %q has no criteria", p.Type)
		}
		if err := ValidateClause(p.Criteria, 0); err != nil {
			return fmt.Errorf("population %q: %w", p.Type, err)
		}
	}
	return nil
}

// ValidateClause checks the structural invariants of an authored criteria
// tree: known operators, pair-override length, tagged-union consistency and
// bounded depth. Semantic problems (empty clauses, NOT with many children)
// are left to the evaluator, which absorbs them into node statuses.
func ValidateClause(c *LogicalClause, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("criteria tree exceeds maximum depth %d", maxTreeDepth)
	}
	if !ValidOperator(c.Operator) {
		return fmt.Errorf("clause %s: unknown operator %q", c.ID, c.Operator)
	}
	if len(c.PairOperators) > 0 && len(c.PairOperators) != len(c.Children)-1 {
		return fmt.Errorf("clause %s: %d pair operators for %d children",
			c.ID, len(c.PairOperators), len(c.Children))
	}
	for _, op := range c.PairOperators {
		if op != OpAnd && op != OpOr {
			return fmt.Errorf("clause %s: invalid pair operator %q", c.ID, op)
		}
	}
	for i := range c.Children {
		child := &c.Children[i]
		switch child.Kind {
		case KindClause:
			if child.Clause == nil {
				return fmt.Errorf("clause %s: child %d has kind clause but no clause", c.ID, i)
			}
			if err := ValidateClause(child.Clause, depth+1); err != nil {
				return err
			}
		case KindElement:
			if child.Element == nil {
				return fmt.Errorf("clause %s: child %d has kind element but no element", c.ID, i)
			}
		default:
			return fmt.Errorf("clause %s: child %d has unknown kind %q", c.ID, i, child.Kind)
		}
	}
	return nil
}
