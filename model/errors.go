package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrPreconditionFailed = "PRECONDITION_FAILED"
	ErrNetworkOrServer    = "NETWORK_OR_SERVER_ERROR"
	ErrInternalError      = "INTERNAL_ERROR"
)

// Precondition reasons.
const (
	ReasonHasDependentParts = "HAS_DEPENDENT_PARTS"
	ReasonAdminProtected    = "ADMIN_PROTECTED"
)

// ErrorEnvelope is the error type shared by the engine, the API client and
// the HTTP surface. It implements the error interface and matches other
// envelopes with errors.Is by code (and reason, when the target has one).
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Reason  string       `json:"reason,omitempty"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`

	// Status is the upstream HTTP status for NETWORK_OR_SERVER_ERROR, zero
	// when the request never got a response.
	Status int   `json:"-"`
	Cause  error `json:"-"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrorEnvelope) Unwrap() error { return e.Cause }

// Is reports whether target is an envelope with the same code.
func (e *ErrorEnvelope) Is(target error) bool {
	t, ok := target.(*ErrorEnvelope)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sentinels for errors.Is.
var (
	ErrKindValidation     = &ErrorEnvelope{Code: ErrValidationError}
	ErrKindPrecondition   = &ErrorEnvelope{Code: ErrPreconditionFailed}
	ErrKindDependentParts = &ErrorEnvelope{Code: ErrPreconditionFailed, Reason: ReasonHasDependentParts}
	ErrKindAdminProtected = &ErrorEnvelope{Code: ErrPreconditionFailed, Reason: ReasonAdminProtected}
	ErrKindNetwork        = &ErrorEnvelope{Code: ErrNetworkOrServer}
)

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details ...FieldError) *ErrorEnvelope {
	msg := "One or more fields are invalid"
	if len(details) == 1 {
		msg = details[0].Message
	}
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: msg,
		Details: details,
	}
}

// NewPreconditionError returns a PRECONDITION_FAILED error with a reason.
func NewPreconditionError(reason, msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrPreconditionFailed, Reason: reason, Message: msg}
}

// NewNetworkOrServerError returns a NETWORK_OR_SERVER_ERROR for a failed
// API call. status is zero for transport failures.
func NewNetworkOrServerError(status int, msg string, cause error) *ErrorEnvelope {
	if msg == "" {
		msg = "The maintenance API request failed"
	}
	return &ErrorEnvelope{
		Code:    ErrNetworkOrServer,
		Message: msg,
		Status:  status,
		Cause:   cause,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}
