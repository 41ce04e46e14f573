package workitem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*WorkItem
}

func NewMemoryRepo() Repository {
	return &memoryRepo{items: make(map[uuid.UUID]*WorkItem)}
}

func (r *memoryRepo) Create(_ context.Context, w *WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[w.ID] = w.Clone()
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (*WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w.Clone(), nil
}

// List returns items newest first.
func (r *memoryRepo) List(_ context.Context, f ListFilter) ([]*WorkItem, int, error) {
	r.mu.RLock()
	var all []*WorkItem
	for _, w := range r.items {
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		all = append(all, w.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < total {
		end = start + f.Limit
	}
	return all[start:end], total, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if w.Status != from {
		return ErrStaleStatus
	}
	w.Status = to
	w.UpdatedAt = updatedAt
	return nil
}
