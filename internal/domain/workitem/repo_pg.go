package workitem

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const workItemCols = `id, encounter_id, patient_id, service_request_id, procedure_code,
	status, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*WorkItem, error) {
	var w WorkItem
	var status string
	err := row.Scan(&w.ID, &w.EncounterID, &w.PatientID, &w.ServiceRequestID, &w.ProcedureCode,
		&status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	w.Status = Status(status)
	return &w, err
}

func (r *repoPG) Create(ctx context.Context, w *WorkItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO work_item (`+workItemCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		w.ID, w.EncounterID, w.PatientID, w.ServiceRequestID, w.ProcedureCode,
		string(w.Status), w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+workItemCols+` FROM work_item WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*WorkItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM work_item WHERE ($1 = '' OR status = $1)`,
		string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+workItemCols+` FROM work_item
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*WorkItem
	for rows.Next() {
		w, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE work_item SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM work_item WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleStatus
}
