package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ehr/priorauth/internal/platform/fhir"
	"github.com/ehr/priorauth/internal/platform/result"
)

type fakeSearch struct {
	bundles map[string][]string
	fail    map[string]*result.Error
	queries map[string]map[string]string
}

func (f *fakeSearch) Search(_ context.Context, resourceType string, query map[string]string) result.Result[*fhir.Bundle] {
	if f.queries == nil {
		f.queries = make(map[string]map[string]string)
	}
	f.queries[resourceType] = query
	if err, ok := f.fail[resourceType]; ok {
		return result.Fail[*fhir.Bundle](err)
	}
	b := &fhir.Bundle{ResourceType: "Bundle", Type: "searchset"}
	for _, r := range f.bundles[resourceType] {
		b.Entry = append(b.Entry, fhir.BundleEntry{Resource: json.RawMessage(r)})
	}
	return result.Ok(b)
}

func TestAggregator_Aggregate(t *testing.T) {
	src := &fakeSearch{bundles: map[string][]string{
		"Patient": {`{"resourceType":"Patient","id":"p-1","name":[{"family":"Doe","given":["Jane"]}],"birthDate":"1970-01-02","gender":"female",
			"identifier":[{"type":{"coding":[{"code":"MB"}]},"value":"M-42"}]}`},
		"Condition": {`{"resourceType":"Condition","code":{"coding":[{"system":"http://hl7.org/fhir/sid/icd-10-cm","code":"M54.5","display":"Low back pain"}]},
			"clinicalStatus":{"coding":[{"code":"active"}]}}`},
		"Observation": {
			`{"resourceType":"Observation","code":{"coding":[{"code":"72514-3"}],"text":"Pain severity"},"valueQuantity":{"value":7,"unit":"score"}}`,
			`{"resourceType":"Observation","code":{"text":"Notes"},"valueString":"radiating"}`,
		},
		"Procedure": {`{"resourceType":"Procedure","code":{"coding":[{"code":"97110","display":"Therapeutic exercise"}]},"status":"completed"}`},
	}}

	data, err := NewAggregator(src).Aggregate(context.Background(), "p-1").Get()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if data.Patient == nil || data.Patient.Name != "Jane Doe" || data.Patient.MemberID != "M-42" || data.Patient.BirthDate != "1970-01-02" {
		t.Errorf("unexpected patient %+v", data.Patient)
	}
	if len(data.Conditions) != 1 || data.Conditions[0].Code != "M54.5" || data.Conditions[0].ClinicalStatus != "active" {
		t.Errorf("unexpected conditions %+v", data.Conditions)
	}
	if len(data.Observations) != 2 || data.Observations[0].Value != "7" || data.Observations[0].Unit != "score" {
		t.Errorf("unexpected observations %+v", data.Observations)
	}
	if data.Observations[1].Value != "radiating" || data.Observations[1].Display != "Notes" {
		t.Errorf("unexpected string observation %+v", data.Observations[1])
	}
	if len(data.Procedures) != 1 || data.Procedures[0].Status != "completed" {
		t.Errorf("unexpected procedures %+v", data.Procedures)
	}
	if src.queries["Condition"]["patient"] != "p-1" || src.queries["Patient"]["_id"] != "p-1" {
		t.Errorf("unexpected queries %+v", src.queries)
	}
}

func TestAggregator_EmptyLists(t *testing.T) {
	data, err := NewAggregator(&fakeSearch{}).Aggregate(context.Background(), "p-1").Get()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if data.Patient != nil {
		t.Error("expected no patient")
	}
	b, _ := json.Marshal(data)
	if string(b) != `{"conditions":[],"observations":[],"procedures":[]}` {
		t.Errorf("unexpected JSON %s", b)
	}
}

func TestAggregator_SearchFailure(t *testing.T) {
	src := &fakeSearch{fail: map[string]*result.Error{
		"Observation": result.InfrastructureError("fhir.unreachable", "down", nil),
	}}
	r := NewAggregator(src).Aggregate(context.Background(), "p-1")
	if r.IsSuccess() {
		t.Fatal("expected failure")
	}
	if r.Err().Type != result.Infrastructure {
		t.Errorf("expected Infrastructure, got %s", r.Err().Type)
	}
}
