package workitem

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("work item not found")

// ErrStaleStatus is returned by UpdateStatus when the item is no longer in
// the expected status.
var ErrStaleStatus = errors.New("work item status changed concurrently")

type Repository interface {
	Create(ctx context.Context, w *WorkItem) error
	Get(ctx context.Context, id uuid.UUID) (*WorkItem, error)
	List(ctx context.Context, f ListFilter) ([]*WorkItem, int, error)
	// UpdateStatus moves the item from status from to status to. It fails with
	// ErrStaleStatus when the stored status is not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) error
}
