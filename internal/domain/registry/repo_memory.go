package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepo struct {
	mu    sync.RWMutex
	items map[string]*RegisteredPatient
}

// NewMemoryRepo returns a Repository held in process memory. It is used when
// no DATABASE_URL is configured and in tests.
func NewMemoryRepo() Repository {
	return &memoryRepo{items: make(map[string]*RegisteredPatient)}
}

func (r *memoryRepo) Register(_ context.Context, p *RegisteredPatient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.PatientID] = p.Clone()
	return nil
}

func (r *memoryRepo) Get(_ context.Context, patientID string) (*RegisteredPatient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) GetActive(_ context.Context) ([]*RegisteredPatient, error) {
	r.mu.RLock()
	out := make([]*RegisteredPatient, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].PatientID < out[j].PatientID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

func (r *memoryRepo) Update(_ context.Context, patientID string, polledAt time.Time, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[patientID]
	if !ok {
		return ErrNotFound
	}
	p.LastPolledAt = &polledAt
	p.CurrentEncounterStatus = &status
	return nil
}

func (r *memoryRepo) Unregister(_ context.Context, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[patientID]; !ok {
		return ErrNotFound
	}
	delete(r.items, patientID)
	return nil
}
