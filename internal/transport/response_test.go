package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/workdesk/model"
)

type envelopeBody struct {
	Error model.ErrorEnvelope `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var body envelopeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"id": "wo-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"id":"wo-1"}`, w.Body.String())
}

func TestWriteJSON_nilBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, nil)
	assert.Empty(t, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		reason string
	}{
		{"not found", model.NewNotFoundError("work order not found"), http.StatusNotFound, model.ErrNotFound, ""},
		{"forbidden", model.NewForbiddenError("no board"), http.StatusForbidden, model.ErrForbidden, ""},
		{"validation", model.NewValidationError(model.FieldError{Field: "title", Code: "REQUIRED"}), http.StatusUnprocessableEntity, model.ErrValidationError, ""},
		{"wrapped precondition", fmt.Errorf("delete wo-3: %w", model.NewPreconditionError(model.ReasonHasDependentParts, "has parts")), http.StatusConflict, model.ErrPreconditionFailed, model.ReasonHasDependentParts},
		{"upstream", model.NewNetworkOrServerError(500, "database down", nil), http.StatusBadGateway, model.ErrNetworkOrServer, ""},
		{"plain error", fmt.Errorf("connection pool exhausted"), http.StatusInternalServerError, model.ErrInternalError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.reason, env.Reason)
			assert.NotContains(t, env.Message, "connection pool")
		})
	}
}

func TestHTTPStatus_unknownCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("SOMETHING_NEW"))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(model.ErrBadRequest))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(model.ErrUnauthorized))
}

func TestWriteHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, "asset missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	WriteForbidden(w, "calendar not allowed")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	WriteValidationError(w, model.FieldError{Field: "quantity", Code: "MIN", Message: "quantity must be at least 1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	require.Len(t, env.Details, 1)
	assert.Equal(t, "quantity", env.Details[0].Field)
}

func TestWriteRequestError_leavesSharedEnvelopeAlone(t *testing.T) {
	shared := model.NewValidationError(model.FieldError{Field: "title", Code: "REQUIRED", Message: "title is required"})

	w := httptest.NewRecorder()
	writeRequestError(context.Background(), w, shared)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, shared.TraceID)

	w = httptest.NewRecorder()
	writeRequestError(context.Background(), w, fmt.Errorf("plain"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
