// Package transport is the dashboard-facing HTTP surface: chi router,
// middleware chain and the work-order, board, dashboard and lookup
// handlers.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// HTTPStatus is the response status for an envelope code. Unknown codes
// are 500.
func HTTPStatus(code string) int {
	switch code {
	case model.ErrBadRequest:
		return http.StatusBadRequest
	case model.ErrUnauthorized:
		return http.StatusUnauthorized
	case model.ErrForbidden:
		return http.StatusForbidden
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrValidationError:
		return http.StatusUnprocessableEntity
	case model.ErrPreconditionFailed:
		return http.StatusConflict
	case model.ErrNetworkOrServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteJSON encodes body with the given status. A nil body writes headers
// only.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes err as {"error": envelope}. Errors that do not wrap an
// *model.ErrorEnvelope become a generic INTERNAL_ERROR so internals are not
// leaked to the browser.
func WriteError(w http.ResponseWriter, err error) {
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		env = model.NewInternalError()
	}
	WriteJSON(w, HTTPStatus(env.Code), struct {
		Error *model.ErrorEnvelope `json:"error"`
	}{env})
}

// writeRequestError stamps the request trace id on the envelope before
// writing it. The envelope is copied; engine errors can be shared.
func writeRequestError(ctx context.Context, w http.ResponseWriter, err error) {
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		env = model.NewInternalError()
	} else if env.TraceID == "" {
		cp := *env
		env = &cp
	}
	if env.TraceID == "" {
		env.TraceID = observability.TraceIDFromContext(ctx)
	}
	WriteError(w, env)
}

// WriteNotFound writes a NOT_FOUND envelope.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteForbidden writes a FORBIDDEN envelope.
func WriteForbidden(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewForbiddenError(msg))
}

// WriteValidationError writes a VALIDATION_ERROR envelope with the field
// details.
func WriteValidationError(w http.ResponseWriter, details ...model.FieldError) {
	WriteError(w, model.NewValidationError(details...))
}
