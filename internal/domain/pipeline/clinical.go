package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ehr/priorauth/internal/platform/fhir"
	"github.com/ehr/priorauth/internal/platform/result"
)

// PatientInfo is the demographic slice of the clinical payload.
type PatientInfo struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Gender    string `json:"gender,omitempty"`
	MemberID  string `json:"member_id,omitempty"`
}

type Condition struct {
	Code           string `json:"code"`
	System         string `json:"system,omitempty"`
	Display        string `json:"display,omitempty"`
	ClinicalStatus string `json:"clinical_status,omitempty"`
}

type Observation struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
	Value   string `json:"value,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

type Procedure struct {
	Code    string `json:"code"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ClinicalData is the payload sent to the analysis service.
type ClinicalData struct {
	Patient      *PatientInfo  `json:"patient,omitempty"`
	Conditions   []Condition   `json:"conditions"`
	Observations []Observation `json:"observations"`
	Procedures   []Procedure   `json:"procedures"`
}

// ClinicalSource gathers clinical data for a patient.
type ClinicalSource interface {
	Aggregate(ctx context.Context, patientID string) result.Result[*ClinicalData]
}

// Aggregator builds ClinicalData from FHIR searches.
type Aggregator struct {
	source fhir.SearchClient
}

func NewAggregator(source fhir.SearchClient) *Aggregator {
	return &Aggregator{source: source}
}

type coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type codeableConcept struct {
	Coding []coding `json:"coding"`
	Text   string   `json:"text"`
}

func (c codeableConcept) first() coding {
	if len(c.Coding) == 0 {
		return coding{Display: c.Text}
	}
	cd := c.Coding[0]
	if cd.Display == "" {
		cd.Display = c.Text
	}
	return cd
}

type patientResource struct {
	Name []struct {
		Text   string   `json:"text"`
		Family string   `json:"family"`
		Given  []string `json:"given"`
	} `json:"name"`
	BirthDate  string `json:"birthDate"`
	Gender     string `json:"gender"`
	Identifier []struct {
		Type  codeableConcept `json:"type"`
		Value string          `json:"value"`
	} `json:"identifier"`
}

type conditionResource struct {
	Code           codeableConcept `json:"code"`
	ClinicalStatus codeableConcept `json:"clinicalStatus"`
}

type observationResource struct {
	Code          codeableConcept `json:"code"`
	ValueQuantity *struct {
		Value json.Number `json:"value"`
		Unit  string      `json:"unit"`
	} `json:"valueQuantity"`
	ValueString string `json:"valueString"`
}

type procedureResource struct {
	Code   codeableConcept `json:"code"`
	Status string          `json:"status"`
}

// Aggregate fetches the patient and their conditions, observations and
// procedures. Any failed search fails the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, patientID string) result.Result[*ClinicalData] {
	data := &ClinicalData{
		Conditions:   []Condition{},
		Observations: []Observation{},
		Procedures:   []Procedure{},
	}

	patients := a.source.Search(ctx, "Patient", map[string]string{"_id": patientID})
	if patients.IsFailure() {
		return result.Fail[*ClinicalData](patients.Err())
	}
	for _, raw := range patients.Value().Resources("Patient") {
		var p patientResource
		if json.Unmarshal(raw, &p) == nil {
			data.Patient = toPatientInfo(p)
			break
		}
	}

	byPatient := map[string]string{"patient": patientID}

	conditions := a.source.Search(ctx, "Condition", byPatient)
	if conditions.IsFailure() {
		return result.Fail[*ClinicalData](conditions.Err())
	}
	for _, raw := range conditions.Value().Resources("Condition") {
		var c conditionResource
		if json.Unmarshal(raw, &c) != nil {
			continue
		}
		cd := c.Code.first()
		data.Conditions = append(data.Conditions, Condition{
			Code:           cd.Code,
			System:         cd.System,
			Display:        cd.Display,
			ClinicalStatus: c.ClinicalStatus.first().Code,
		})
	}

	observations := a.source.Search(ctx, "Observation", byPatient)
	if observations.IsFailure() {
		return result.Fail[*ClinicalData](observations.Err())
	}
	for _, raw := range observations.Value().Resources("Observation") {
		var o observationResource
		if json.Unmarshal(raw, &o) != nil {
			continue
		}
		cd := o.Code.first()
		obs := Observation{Code: cd.Code, System: cd.System, Display: cd.Display, Value: o.ValueString}
		if o.ValueQuantity != nil {
			obs.Value = o.ValueQuantity.Value.String()
			obs.Unit = o.ValueQuantity.Unit
		}
		data.Observations = append(data.Observations, obs)
	}

	procedures := a.source.Search(ctx, "Procedure", byPatient)
	if procedures.IsFailure() {
		return result.Fail[*ClinicalData](procedures.Err())
	}
	for _, raw := range procedures.Value().Resources("Procedure") {
		var p procedureResource
		if json.Unmarshal(raw, &p) != nil {
			continue
		}
		cd := p.Code.first()
		data.Procedures = append(data.Procedures, Procedure{
			Code: cd.Code, System: cd.System, Display: cd.Display, Status: p.Status,
		})
	}

	return result.Ok(data)
}

func toPatientInfo(p patientResource) *PatientInfo {
	info := &PatientInfo{Name: "Unknown", BirthDate: p.BirthDate, Gender: p.Gender}
	if len(p.Name) > 0 {
		n := p.Name[0]
		switch {
		case n.Text != "":
			info.Name = n.Text
		case n.Family != "" || len(n.Given) > 0:
			info.Name = strings.TrimSpace(strings.Join(append(n.Given, n.Family), " "))
		}
	}
	for _, id := range p.Identifier {
		if id.Type.first().Code == "MB" {
			info.MemberID = id.Value
			break
		}
	}
	return info
}
