package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register starts tracking a patient's encounter. A new registration for the
// same patient replaces the previous one.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisteredPatient, error) {
	p := &RegisteredPatient{
		PatientID:   strings.TrimSpace(req.PatientID),
		EncounterID: strings.TrimSpace(req.EncounterID),
		PracticeID:  strings.TrimSpace(req.PracticeID),
		WorkItemID:  req.WorkItemID,
	}
	if p.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if p.EncounterID == "" {
		return nil, fmt.Errorf("encounter_id is required")
	}
	if p.PracticeID == "" {
		return nil, fmt.Errorf("practice_id is required")
	}
	if p.WorkItemID == uuid.Nil {
		return nil, fmt.Errorf("work_item_id is required")
	}
	p.RegisteredAt = s.now().UTC()
	if err := s.repo.Register(ctx, p); err != nil {
		return nil, fmt.Errorf("register patient %s: %w", p.PatientID, err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, patientID string) (*RegisteredPatient, error) {
	return s.repo.Get(ctx, patientID)
}

func (s *Service) ListActive(ctx context.Context) ([]*RegisteredPatient, error) {
	return s.repo.GetActive(ctx)
}

func (s *Service) Unregister(ctx context.Context, patientID string) error {
	return s.repo.Unregister(ctx, patientID)
}
