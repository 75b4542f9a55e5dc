package measure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type measureRepoPG struct{ pool *pgxpool.Pool }

func NewMeasureRepoPG(pool *pgxpool.Pool) Repository {
	return &measureRepoPG{pool: pool}
}

// document is the JSONB payload holding everything the scalar columns do not:
// the measurement period, global constraints and the population criteria trees.
type document struct {
	MeasurementPeriod Period                 `json:"measurement_period"`
	GlobalConstraints GlobalConstraints      `json:"global_constraints"`
	Populations       []PopulationDefinition `json:"populations"`
}

const measureCols = `id, name, title, description, steward, status, document, version_id, created_at, updated_at`

func (r *measureRepoPG) scanRow(row pgx.Row) (*MeasureSpec, error) {
	var m MeasureSpec
	var doc []byte
	err := row.Scan(&m.ID, &m.Name, &m.Title, &m.Description, &m.Steward, &m.Status,
		&doc, &m.VersionID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decode measure document %s: %w", m.ID, err)
	}
	m.MeasurementPeriod = d.MeasurementPeriod
	m.GlobalConstraints = d.GlobalConstraints
	m.Populations = d.Populations
	return &m, nil
}

func (r *measureRepoPG) encode(m *MeasureSpec) ([]byte, error) {
	return json.Marshal(document{
		MeasurementPeriod: m.MeasurementPeriod,
		GlobalConstraints: m.GlobalConstraints,
		Populations:       m.Populations,
	})
}

func (r *measureRepoPG) Create(ctx context.Context, m *MeasureSpec) error {
	m.ID = uuid.New()
	doc, err := r.encode(m)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO measure_spec (id, name, title, description, steward, status, document)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.Name, m.Title, m.Description, m.Steward, m.Status, doc)
	return err
}

func (r *measureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MeasureSpec, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+measureCols+` FROM measure_spec WHERE id = $1`, id))
}

func (r *measureRepoPG) Update(ctx context.Context, m *MeasureSpec) error {
	doc, err := r.encode(m)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE measure_spec SET name=$2, title=$3, description=$4, steward=$5,
			status=$6, document=$7, version_id=version_id+1, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Title, m.Description, m.Steward, m.Status, doc)
	return err
}

func (r *measureRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM measure_spec WHERE id = $1`, id)
	return err
}

func (r *measureRepoPG) List(ctx context.Context, limit, offset int) ([]*MeasureSpec, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM measure_spec`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+measureCols+` FROM measure_spec
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*MeasureSpec
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}
