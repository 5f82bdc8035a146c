package model

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "Work order not found"}
	if got, want := e.Error(), "NOT_FOUND: Work order not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	p := NewPreconditionError(ReasonHasDependentParts, "parts consumed")
	if got, want := p.Error(), "PRECONDITION_FAILED(HAS_DEPENDENT_PARTS): parts consumed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_Is(t *testing.T) {
	wrapped := fmt.Errorf("delete wo-1: %w", NewPreconditionError(ReasonHasDependentParts, "x"))
	if !errors.Is(wrapped, ErrKindPrecondition) {
		t.Error("errors.Is(precondition, ErrKindPrecondition) = false")
	}
	if !errors.Is(wrapped, ErrKindDependentParts) {
		t.Error("errors.Is(precondition, ErrKindDependentParts) = false")
	}
	if errors.Is(wrapped, ErrKindValidation) {
		t.Error("precondition error matched ErrKindValidation")
	}
	other := NewPreconditionError("OTHER", "y")
	if errors.Is(other, ErrKindDependentParts) {
		t.Error("reason mismatch should not match")
	}
}

func TestNewValidationError(t *testing.T) {
	e := NewValidationError(FieldError{Field: "title", Code: "REQUIRED", Message: "Title is required"})
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if e.Message != "Title is required" {
		t.Errorf("single detail should become the message, got %q", e.Message)
	}
	many := NewValidationError(FieldError{Field: "a"}, FieldError{Field: "b"})
	if len(many.Details) != 2 || many.Message != "One or more fields are invalid" {
		t.Errorf("unexpected multi-detail error: %+v", many)
	}
}

func TestNewNetworkOrServerError(t *testing.T) {
	e := NewNetworkOrServerError(503, "", io.ErrUnexpectedEOF)
	if e.Code != ErrNetworkOrServer || e.Status != 503 {
		t.Errorf("got %+v", e)
	}
	if e.Message == "" {
		t.Error("empty message should be defaulted")
	}
	if !errors.Is(e, io.ErrUnexpectedEOF) {
		t.Error("cause should be reachable through Unwrap")
	}
	if !errors.Is(e, ErrKindNetwork) {
		t.Error("errors.Is(e, ErrKindNetwork) = false")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *ErrorEnvelope
		code string
	}{
		{NewBadRequestError("bad"), ErrBadRequest},
		{NewUnauthorizedError("no token"), ErrUnauthorized},
		{NewForbiddenError("no"), ErrForbidden},
		{NewNotFoundError("gone"), ErrNotFound},
		{NewInternalError(), ErrInternalError},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
		}
	}
}
