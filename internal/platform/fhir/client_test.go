package fhir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ehr/priorauth/internal/platform/result"
)

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fhir/Encounter" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("_id") != "enc-1" {
			t.Errorf("expected _id=enc-1, got %q", r.URL.Query().Get("_id"))
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		w.Write([]byte(`{"resourceType":"Bundle","type":"searchset","entry":[{"resource":{"resourceType":"Encounter","id":"enc-1","status":"finished"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/fhir/", StaticTokenSource("tok"))
	res := c.Search(context.Background(), "Encounter", map[string]string{"_id": "enc-1"})
	if res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	enc, err := res.Value().FirstEncounter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Status != EncounterStatusFinished {
		t.Errorf("expected finished, got %q", enc.Status)
	}
}

func TestClient_Search_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("expected no Authorization header")
		}
		w.Write([]byte(`{"resourceType":"Bundle","type":"searchset"}`))
	}))
	defer srv.Close()

	res := NewClient(srv.URL, nil).Search(context.Background(), "Encounter", nil)
	if res.IsFailure() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
}

func TestClient_Search_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res := NewClient(srv.URL, nil).Search(context.Background(), "Encounter", nil)
	if res.IsSuccess() {
		t.Fatal("expected failure")
	}
	if res.Err().Type != result.Infrastructure {
		t.Errorf("expected Infrastructure, got %s", res.Err().Type)
	}
}

func TestClient_Search_NotABundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resourceType":"OperationOutcome"}`))
	}))
	defer srv.Close()

	res := NewClient(srv.URL, nil).Search(context.Background(), "Encounter", nil)
	if res.IsSuccess() {
		t.Fatal("expected failure")
	}
	if res.Err().Type != result.Validation {
		t.Errorf("expected Validation, got %s", res.Err().Type)
	}
}

func TestClient_Search_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewClient(url, nil).Search(context.Background(), "Encounter", nil)
	if res.Err() == nil || res.Err().Type != result.Infrastructure {
		t.Fatalf("expected Infrastructure failure, got %v", res.Err())
	}
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) result.Result[string] {
	return result.Fail[string](result.UnauthorizedError("token.rejected", "bad client"))
}

func TestClient_Search_TokenFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	res := NewClient(srv.URL, failingTokens{}).Search(context.Background(), "Encounter", nil)
	if res.Err() == nil || res.Err().Type != result.Unauthorized {
		t.Fatalf("expected Unauthorized failure, got %v", res.Err())
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("expected no search request when token acquisition fails")
	}
}

func TestClient_Search_RequiresResourceType(t *testing.T) {
	res := NewClient("http://localhost", nil).Search(context.Background(), "", nil)
	if res.Err() == nil || res.Err().Type != result.Validation {
		t.Fatalf("expected Validation failure, got %v", res.Err())
	}
}
