package registry

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type registryRepoPG struct{ pool *pgxpool.Pool }

func NewRegistryRepoPG(pool *pgxpool.Pool) Repository {
	return &registryRepoPG{pool: pool}
}

func (r *registryRepoPG) conn() queryable {
	return r.pool
}

const registryCols = `patient_id, encounter_id, practice_id, work_item_id,
	registered_at, last_polled_at, current_encounter_status`

func (r *registryRepoPG) scan(row pgx.Row) (*RegisteredPatient, error) {
	var p RegisteredPatient
	err := row.Scan(&p.PatientID, &p.EncounterID, &p.PracticeID, &p.WorkItemID,
		&p.RegisteredAt, &p.LastPolledAt, &p.CurrentEncounterStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *registryRepoPG) Register(ctx context.Context, p *RegisteredPatient) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now().UTC()
	}
	_, err := r.conn().Exec(ctx, `
		INSERT INTO registered_patient (patient_id, encounter_id, practice_id, work_item_id,
			registered_at, last_polled_at, current_encounter_status)
		VALUES ($1,$2,$3,$4,$5,NULL,NULL)
		ON CONFLICT (patient_id) DO UPDATE SET
			encounter_id = EXCLUDED.encounter_id,
			practice_id = EXCLUDED.practice_id,
			work_item_id = EXCLUDED.work_item_id,
			registered_at = EXCLUDED.registered_at,
			last_polled_at = NULL,
			current_encounter_status = NULL`,
		p.PatientID, p.EncounterID, p.PracticeID, p.WorkItemID, p.RegisteredAt)
	return err
}

func (r *registryRepoPG) Get(ctx context.Context, patientID string) (*RegisteredPatient, error) {
	return r.scan(r.conn().QueryRow(ctx,
		`SELECT `+registryCols+` FROM registered_patient WHERE patient_id = $1`, patientID))
}

func (r *registryRepoPG) GetActive(ctx context.Context) ([]*RegisteredPatient, error) {
	rows, err := r.conn().Query(ctx,
		`SELECT `+registryCols+` FROM registered_patient ORDER BY registered_at, patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RegisteredPatient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *registryRepoPG) Update(ctx context.Context, patientID string, polledAt time.Time, status string) error {
	tag, err := r.conn().Exec(ctx, `
		UPDATE registered_patient SET last_polled_at = $2, current_encounter_status = $3
		WHERE patient_id = $1`, patientID, polledAt, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *registryRepoPG) Unregister(ctx context.Context, patientID string) error {
	tag, err := r.conn().Exec(ctx, `DELETE FROM registered_patient WHERE patient_id = $1`, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
