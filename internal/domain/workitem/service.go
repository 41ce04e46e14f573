package workitem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/priorauth/internal/platform/notification"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the work item's current status.
var ErrInvalidTransition = errors.New("invalid work item status transition")

type Service struct {
	repo      Repository
	publisher notification.Publisher
	now       func() time.Time
}

// NewService creates a work item service. publisher may be nil.
func NewService(repo Repository, publisher notification.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*WorkItem, error) {
	w := &WorkItem{
		ID:               uuid.New(),
		EncounterID:      strings.TrimSpace(req.EncounterID),
		PatientID:        strings.TrimSpace(req.PatientID),
		ServiceRequestID: req.ServiceRequestID,
		ProcedureCode:    req.ProcedureCode,
		Status:           StatusPending,
	}
	if w.EncounterID == "" {
		return nil, fmt.Errorf("encounter_id is required")
	}
	if w.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	now := s.now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*WorkItem, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

// UpdateStatus changes a work item's status and stamps UpdatedAt. It refuses
// to move an item out of Submitted, and Submitted itself is reached only
// through Submit.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*WorkItem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	if status == StatusSubmitted {
		return nil, fmt.Errorf("%w: use submit to move to %s", ErrInvalidTransition, status)
	}
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status == StatusSubmitted {
		return nil, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, w.Status)
	}
	return s.transition(ctx, w, status)
}

// transition writes from w's current status to status, failing if another
// writer changed it first.
func (s *Service) transition(ctx context.Context, w *WorkItem, status Status) (*WorkItem, error) {
	now := s.now().UTC()
	err := s.repo.UpdateStatus(ctx, w.ID, w.Status, status, now)
	if errors.Is(err, ErrStaleStatus) {
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, w.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("update work item %s: %w", w.ID, err)
	}
	w.Status = status
	w.UpdatedAt = now
	return w, nil
}

// ApplyAnalysis records the outcome of clinical analysis on a work item and
// notifies viewers.
func (s *Service) ApplyAnalysis(ctx context.Context, id uuid.UUID, recommendation *string, confidence float64) (*WorkItem, error) {
	status := MapToStatus(recommendation, confidence)
	w, err := s.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	typ := notification.TypeWorkItemStatusChanged
	msg := fmt.Sprintf("Work item status changed to %s", status)
	if status == StatusReadyForReview {
		typ = notification.TypeWorkItemReady
		msg = "Work item is ready for review"
	}
	s.publish(typ, w, msg)
	return w, nil
}

// Submit moves a work item from ReadyForReview to Submitted.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusReadyForReview {
		return nil, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, w.Status)
	}
	w, err = s.transition(ctx, w, StatusSubmitted)
	if err != nil {
		return nil, err
	}
	s.publish(notification.TypeWorkItemSubmitted, w, "Work item submitted to payer")
	return w, nil
}

func (s *Service) publish(typ string, w *WorkItem, msg string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(notification.Notification{
		Type:          typ,
		TransactionID: w.ID.String(),
		EncounterID:   w.EncounterID,
		PatientID:     w.PatientID,
		Message:       msg,
	})
}
