package registry

import (
	"time"

	"github.com/google/uuid"
)

// RegisteredPatient is a patient whose encounter is awaited for completion.
// Only the encounter poller mutates LastPolledAt and CurrentEncounterStatus.
type RegisteredPatient struct {
	PatientID              string     `db:"patient_id" json:"patient_id"`
	EncounterID            string     `db:"encounter_id" json:"encounter_id"`
	PracticeID             string     `db:"practice_id" json:"practice_id"`
	WorkItemID             uuid.UUID  `db:"work_item_id" json:"work_item_id"`
	RegisteredAt           time.Time  `db:"registered_at" json:"registered_at"`
	LastPolledAt           *time.Time `db:"last_polled_at" json:"last_polled_at,omitempty"`
	CurrentEncounterStatus *string    `db:"current_encounter_status" json:"current_encounter_status,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *RegisteredPatient) Clone() *RegisteredPatient {
	c := *p
	if p.LastPolledAt != nil {
		t := *p.LastPolledAt
		c.LastPolledAt = &t
	}
	if p.CurrentEncounterStatus != nil {
		s := *p.CurrentEncounterStatus
		c.CurrentEncounterStatus = &s
	}
	return &c
}

// RegisterRequest is the payload accepted by the registration endpoint.
type RegisterRequest struct {
	PatientID   string    `json:"patient_id"`
	EncounterID string    `json:"encounter_id"`
	PracticeID  string    `json:"practice_id"`
	WorkItemID  uuid.UUID `json:"work_item_id"`
}
