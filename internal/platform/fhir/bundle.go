package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Encounter status codes used by the completion poller.
const (
	EncounterStatusPlanned    = "planned"
	EncounterStatusArrived    = "arrived"
	EncounterStatusInProgress = "in-progress"
	EncounterStatusFinished   = "finished"
	EncounterStatusCancelled  = "cancelled"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode  string   `json:"mode,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// resourceHeader is the part of every resource needed to route an entry.
type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// Encounter is the subset of the FHIR Encounter resource the poller reads.
type Encounter struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Status       string `json:"status"`
}

// Resources returns the raw entries whose resourceType matches. Entries that
// cannot be decoded are skipped.
func (b *Bundle) Resources(resourceType string) []json.RawMessage {
	if b == nil {
		return nil
	}
	var out []json.RawMessage
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var h resourceHeader
		if err := json.Unmarshal(e.Resource, &h); err != nil {
			continue
		}
		if h.ResourceType == resourceType {
			out = append(out, e.Resource)
		}
	}
	return out
}

// FirstEncounter decodes the first Encounter entry of a searchset that
// carries a status. Entries without one are skipped. It returns an error when
// no usable Encounter is present.
func (b *Bundle) FirstEncounter() (*Encounter, error) {
	raw := b.Resources("Encounter")
	if len(raw) == 0 {
		return nil, fmt.Errorf("bundle contains no Encounter entry")
	}
	for _, r := range raw {
		var enc Encounter
		if err := json.Unmarshal(r, &enc); err != nil || enc.Status == "" {
			continue
		}
		return &enc, nil
	}
	return nil, fmt.Errorf("none of %d Encounter entries has a status", len(raw))
}

// FormatReference returns a relative FHIR reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
