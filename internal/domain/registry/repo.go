package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no active registration exists for a patient.
var ErrNotFound = errors.New("registration not found")

// Registry is the view of the patient registry used by the encounter poller.
type Registry interface {
	GetActive(ctx context.Context) ([]*RegisteredPatient, error)
	Update(ctx context.Context, patientID string, polledAt time.Time, status string) error
	Unregister(ctx context.Context, patientID string) error
}

// Repository is the full registry store. Register replaces any existing
// registration for the same patient.
type Repository interface {
	Registry
	Register(ctx context.Context, p *RegisteredPatient) error
	Get(ctx context.Context, patientID string) (*RegisteredPatient, error)
}
