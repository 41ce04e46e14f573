package result

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestOk_IsSuccess(t *testing.T) {
	r := Ok(42)
	if !r.IsSuccess() || r.IsFailure() {
		t.Fatal("expected success")
	}
	if r.Value() != 42 {
		t.Errorf("expected 42, got %d", r.Value())
	}
	if r.Err() != nil {
		t.Errorf("expected nil error, got %v", r.Err())
	}
	v, err := r.Get()
	if err != nil || v != 42 {
		t.Errorf("Get() = %d, %v", v, err)
	}
}

func TestFail_IsFailure(t *testing.T) {
	r := Fail[string](NotFoundError("encounter.missing", "no encounter"))
	if r.IsSuccess() {
		t.Fatal("expected failure")
	}
	if r.Value() != "" {
		t.Errorf("expected zero value, got %q", r.Value())
	}
	if r.Err().Type != NotFound {
		t.Errorf("expected NotFound, got %s", r.Err().Type)
	}
	_, err := r.Get()
	if err == nil {
		t.Fatal("expected error from Get")
	}
}

func TestFail_NilErrorIsUnexpected(t *testing.T) {
	r := Fail[int](nil)
	if r.IsSuccess() {
		t.Fatal("expected failure")
	}
	if r.Err().Type != Unexpected {
		t.Errorf("expected Unexpected, got %s", r.Err().Type)
	}
}

func TestGet_SuccessReturnsUntypedNil(t *testing.T) {
	_, err := Ok("x").Get()
	if err != nil {
		t.Errorf("expected untyped nil error, got %#v", err)
	}
}

func TestErrorType_StatusCode(t *testing.T) {
	cases := map[ErrorType]int{
		None:           http.StatusOK,
		NotFound:       http.StatusNotFound,
		Validation:     http.StatusBadRequest,
		Unauthorized:   http.StatusUnauthorized,
		Forbidden:      http.StatusForbidden,
		Conflict:       http.StatusConflict,
		Infrastructure: http.StatusServiceUnavailable,
		Unexpected:     http.StatusInternalServerError,
	}
	for typ, want := range cases {
		if got := typ.StatusCode(); got != want {
			t.Errorf("%s.StatusCode() = %d, want %d", typ, got, want)
		}
	}
}

func TestError_UnwrapAndTypeOf(t *testing.T) {
	cause := errors.New("connection refused")
	err := InfrastructureError("fhir.search", "search failed", cause)
	wrapped := fmt.Errorf("poll: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if TypeOf(wrapped) != Infrastructure {
		t.Errorf("expected Infrastructure, got %s", TypeOf(wrapped))
	}
	if TypeOf(nil) != None {
		t.Error("expected None for nil error")
	}
	if TypeOf(errors.New("boom")) != Unexpected {
		t.Error("expected Unexpected for a plain error")
	}
}

func TestFromHTTPStatus(t *testing.T) {
	cases := map[int]ErrorType{
		200: None,
		404: NotFound,
		401: Unauthorized,
		403: Forbidden,
		409: Conflict,
		422: Validation,
		429: Infrastructure,
		502: Infrastructure,
	}
	for status, want := range cases {
		if got := FromHTTPStatus(status); got != want {
			t.Errorf("FromHTTPStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestErrorType_Transient(t *testing.T) {
	if !Infrastructure.Transient() || !Unauthorized.Transient() {
		t.Error("expected infrastructure and unauthorized failures to be transient")
	}
	if Validation.Transient() || NotFound.Transient() {
		t.Error("expected validation and not-found failures to be permanent")
	}
}
