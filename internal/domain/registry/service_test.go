package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return svc
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		PatientID:   "p-1",
		EncounterID: "enc-1",
		PracticeID:  "practice-1",
		WorkItemID:  uuid.New(),
	}
}

func TestService_Register(t *testing.T) {
	svc := newTestService()
	p, err := svc.Register(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.RegisteredAt.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected registered_at %v", p.RegisteredAt)
	}
	if p.CurrentEncounterStatus != nil || p.LastPolledAt != nil {
		t.Error("expected a fresh registration to have no poll state")
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc := newTestService()
	mutations := map[string]func(*RegisterRequest){
		"patient":   func(r *RegisterRequest) { r.PatientID = " " },
		"encounter": func(r *RegisterRequest) { r.EncounterID = "" },
		"practice":  func(r *RegisterRequest) { r.PracticeID = "" },
		"work item": func(r *RegisterRequest) { r.WorkItemID = uuid.Nil },
	}
	for name, mutate := range mutations {
		req := validRequest()
		mutate(&req)
		if _, err := svc.Register(context.Background(), req); err == nil {
			t.Errorf("expected error for missing %s", name)
		}
	}
}

func TestService_Unregister(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Register(ctx, validRequest())
	if err := svc.Unregister(ctx, "p-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := svc.ListActive(ctx)
	if len(items) != 0 {
		t.Errorf("expected no active registrations, got %d", len(items))
	}
}
