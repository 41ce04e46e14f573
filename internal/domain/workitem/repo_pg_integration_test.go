//go:build integration

package workitem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/priorauth/internal/platform/db/dbtest"
)

func TestRepoPG_Lifecycle(t *testing.T) {
	pool := dbtest.NewPool(t)
	repo := NewRepoPG(pool)
	ctx := context.Background()
	pool.Exec(ctx, `TRUNCATE work_item`)

	now := time.Now().UTC().Truncate(time.Microsecond)
	code := "72148"
	w := &WorkItem{ID: uuid.New(), EncounterID: "enc-1", PatientID: "p-1", ProcedureCode: &code,
		Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("Create: %v", err)
	}

	later := now.Add(time.Minute)
	if err := repo.UpdateStatus(ctx, w.ID, StatusPending, StatusReadyForReview, later); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := repo.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusReadyForReview || !got.UpdatedAt.Equal(later) {
		t.Errorf("unexpected item %+v", got)
	}
	if got.ProcedureCode == nil || *got.ProcedureCode != code {
		t.Errorf("expected procedure code %s", code)
	}

	items, total, err := repo.List(ctx, ListFilter{Status: StatusReadyForReview, Limit: 10})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("List: %v total=%d len=%d", err, total, len(items))
	}

	if err := repo.UpdateStatus(ctx, w.ID, StatusPending, StatusMissingData, later); !errors.Is(err, ErrStaleStatus) {
		t.Errorf("expected ErrStaleStatus, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, uuid.New(), StatusReadyForReview, StatusSubmitted, later); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
