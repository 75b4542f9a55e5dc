package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

type factDocument struct {
	Conditions    []Fact `json:"conditions,omitempty"`
	Encounters    []Fact `json:"encounters,omitempty"`
	Procedures    []Fact `json:"procedures,omitempty"`
	Observations  []Fact `json:"observations,omitempty"`
	Medications   []Fact `json:"medications,omitempty"`
	Immunizations []Fact `json:"immunizations,omitempty"`
}

const patientCols = `id, name, birth_date, gender, facts, version_id, created_at, updated_at`

func (r *patientRepoPG) scanRow(row pgx.Row) (*TestPatient, error) {
	var p TestPatient
	var facts []byte
	err := row.Scan(&p.ID, &p.Name, &p.BirthDate, &p.Gender, &facts,
		&p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var d factDocument
	if err := json.Unmarshal(facts, &d); err != nil {
		return nil, fmt.Errorf("decode patient facts %s: %w", p.ID, err)
	}
	p.Conditions = d.Conditions
	p.Encounters = d.Encounters
	p.Procedures = d.Procedures
	p.Observations = d.Observations
	p.Medications = d.Medications
	p.Immunizations = d.Immunizations
	return &p, nil
}

func (r *patientRepoPG) encode(p *TestPatient) ([]byte, error) {
	return json.Marshal(factDocument{
		Conditions:    p.Conditions,
		Encounters:    p.Encounters,
		Procedures:    p.Procedures,
		Observations:  p.Observations,
		Medications:   p.Medications,
		Immunizations: p.Immunizations,
	})
}

func (r *patientRepoPG) Create(ctx context.Context, p *TestPatient) error {
	p.ID = uuid.New()
	facts, err := r.encode(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO test_patient (id, name, birth_date, gender, facts)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.BirthDate, p.Gender, facts)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestPatient, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM test_patient WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *TestPatient) error {
	facts, err := r.encode(p)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE test_patient SET name=$2, birth_date=$3, gender=$4, facts=$5,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.BirthDate, p.Gender, facts)
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM test_patient WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*TestPatient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM test_patient
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*TestPatient
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
