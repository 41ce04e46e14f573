package workitem

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a prior-authorization work item.
type Status string

const (
	StatusPending                 Status = "PENDING"
	StatusReadyForReview          Status = "READY_FOR_REVIEW"
	StatusMissingData             Status = "MISSING_DATA"
	StatusPayerRequirementsNotMet Status = "PAYER_REQUIREMENTS_NOT_MET"
	StatusSubmitted               Status = "SUBMITTED"
	StatusNoPaRequired            Status = "NO_PA_REQUIRED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReadyForReview, StatusMissingData,
		StatusPayerRequirementsNotMet, StatusSubmitted, StatusNoPaRequired:
		return true
	}
	return false
}

type WorkItem struct {
	ID               uuid.UUID `json:"id"`
	EncounterID      string    `json:"encounter_id"`
	PatientID        string    `json:"patient_id"`
	ServiceRequestID *string   `json:"service_request_id,omitempty"`
	ProcedureCode    *string   `json:"procedure_code,omitempty"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (w *WorkItem) Clone() *WorkItem {
	c := *w
	if w.ServiceRequestID != nil {
		v := *w.ServiceRequestID
		c.ServiceRequestID = &v
	}
	if w.ProcedureCode != nil {
		v := *w.ProcedureCode
		c.ProcedureCode = &v
	}
	return &c
}

type CreateRequest struct {
	EncounterID      string  `json:"encounter_id"`
	PatientID        string  `json:"patient_id"`
	ServiceRequestID *string `json:"service_request_id"`
	ProcedureCode    *string `json:"procedure_code"`
}

// ListFilter narrows List results. A zero Status matches every status.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
