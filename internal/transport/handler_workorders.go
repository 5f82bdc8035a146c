package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/workdesk/internal/workorder"
	"github.com/pitabwire/workdesk/model"
)

// workOrderItem is a work order with the affordances of the session.
type workOrderItem struct {
	model.WorkOrder
	Actions []model.Action `json:"actions"`
}

type listResponse struct {
	Items           []workOrderItem `json:"items"`
	Total           int             `json:"total"`
	AssigneeOptions []string        `json:"assigneeOptions"`
}

func withActions(e *workorder.Engine, records []model.WorkOrder) []workOrderItem {
	items := make([]workOrderItem, len(records))
	for i := range records {
		items[i] = workOrderItem{WorkOrder: records[i], Actions: e.Actions(&records[i])}
	}
	return items
}

// sessionEngine returns the loaded engine of the request's session. It
// writes the error response itself and reports false on failure.
func sessionEngine(w http.ResponseWriter, r *http.Request, engines Engines, reload bool) (*workorder.Engine, bool) {
	s := model.SessionFrom(r.Context())
	if s == nil {
		WriteError(w, model.NewUnauthorizedError("missing session"))
		return nil, false
	}
	e, err := engines.Engine(s)
	if err != nil {
		writeRequestError(r.Context(), w, err)
		return nil, false
	}
	if reload {
		err = e.Reload(r.Context())
	} else {
		err = e.EnsureLoaded(r.Context())
	}
	if err != nil {
		if upstreamUnauthorized(err) {
			engines.Drop(s)
			WriteError(w, model.NewUnauthorizedError("the maintenance API rejected the session token"))
			return nil, false
		}
		writeRequestError(r.Context(), w, err)
		return nil, false
	}
	return e, true
}

// upstreamUnauthorized reports whether the API refused the bearer token.
func upstreamUnauthorized(err error) bool {
	var env *model.ErrorEnvelope
	return errors.As(err, &env) && env.Code == model.ErrNetworkOrServer && env.Status == http.StatusUnauthorized
}

// parseFilters reads the list query. from and to are calendar days.
func parseFilters(r *http.Request) (model.Filters, model.Sort, error) {
	q := r.URL.Query()
	f := model.Filters{
		Search:   q.Get("q"),
		Status:   strings.ToUpper(q.Get("status")),
		Priority: strings.ToUpper(q.Get("priority")),
		Assignee: q.Get("assignee"),
	}
	var details []model.FieldError
	var err error
	if f.DateRange.Start, err = parseDay(q.Get("from")); err != nil {
		details = append(details, model.FieldError{Field: "from", Code: "INVALID", Message: "expected YYYY-MM-DD"})
	}
	if f.DateRange.End, err = parseDay(q.Get("to")); err != nil {
		details = append(details, model.FieldError{Field: "to", Code: "INVALID", Message: "expected YYYY-MM-DD"})
	}
	if len(details) > 0 {
		return model.Filters{}, model.Sort{}, model.NewValidationError(details...)
	}
	if err := f.Validate(); err != nil {
		return model.Filters{}, model.Sort{}, err
	}
	s, err := model.ParseSort(q.Get("sort"), q.Get("dir"))
	if err != nil {
		return model.Filters{}, model.Sort{}, err
	}
	return f, s, nil
}

// parseDay parses an optional calendar day. An empty value is the zero time.
func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func handleListWorkOrders(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, s, err := parseFilters(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
		e, ok := sessionEngine(w, r, engines, refresh)
		if !ok {
			return
		}

		items := withActions(e, e.View(f, s))
		WriteJSON(w, http.StatusOK, listResponse{
			Items:           items,
			Total:           len(items),
			AssigneeOptions: e.AssigneeOptions(),
		})
	}
}

func handleGetWorkOrder(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		wo, found := e.Get(id)
		if !found {
			WriteNotFound(w, "work order "+id+" not found")
			return
		}
		WriteJSON(w, http.StatusOK, workOrderItem{WorkOrder: wo, Actions: e.Actions(&wo)})
	}
}

// writeRecord answers a mutation with the reloaded record, or 204 when it
// is no longer in the collection.
func writeRecord(w http.ResponseWriter, e *workorder.Engine, id string) {
	wo, found := e.Get(id)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, workOrderItem{WorkOrder: wo, Actions: e.Actions(&wo)})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return model.NewBadRequestError("invalid JSON body")
	}
	return nil
}

func handleCreateWorkOrder(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.WorkOrderInput
		if err := decodeBody(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		created, err := e.CreateWorkOrder(r.Context(), in)
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		if created == nil {
			w.WriteHeader(http.StatusCreated)
			return
		}
		WriteJSON(w, http.StatusCreated, workOrderItem{WorkOrder: *created, Actions: e.Actions(created)})
	}
}

func handleUpdateWorkOrder(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch model.WorkOrderPatch
		if err := decodeBody(r, &patch); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := e.UpdateWorkOrder(r.Context(), id, patch); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		writeRecord(w, e, id)
	}
}

func handleDeleteWorkOrder(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.DeleteWorkOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTransitionStatus(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status model.Status `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := e.TransitionStatus(r.Context(), id, model.Status(strings.ToUpper(string(body.Status)))); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		writeRecord(w, e, id)
	}
}

func handleAssign(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TechnicianID string `json:"technicianId"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := e.AssignTechnician(r.Context(), id, body.TechnicianID); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		writeRecord(w, e, id)
	}
}

func handleListComments(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		comments, err := e.Comments(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(comments)})
	}
}

func handlePostComment(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.PostComment(r.Context(), chi.URLParam(r, "id"), body.Message); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusCreated)
	}
}

func handleListParts(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		parts, err := e.Parts(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(parts)})
	}
}

func handleAddPart(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SparePartID string `json:"sparePartId"`
			Quantity    int    `json:"quantity"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.AddPart(r.Context(), chi.URLParam(r, "id"), body.SparePartID, body.Quantity); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusCreated)
	}
}

func handleRemovePart(engines Engines, streams *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.RemovePart(r.Context(), chi.URLParam(r, "usageId")); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListAttachments(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		attachments, err := e.Attachments(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(attachments)})
	}
}

// handleUploadAttachment accepts a multipart form with a "file" part and
// streams it on to the API.
func handleUploadAttachment(engines Engines, streams *streamHub, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteValidationError(w, model.FieldError{Field: "file", Code: "TOO_LARGE", Message: "file exceeds the upload limit"})
				return
			}
			WriteValidationError(w, model.FieldError{Field: "file", Code: "REQUIRED", Message: "a file part is required"})
			return
		}
		defer file.Close()

		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		if err := e.UploadAttachment(r.Context(), chi.URLParam(r, "id"), header.Filename, file); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		streams.refresh(r.Context())
		w.WriteHeader(http.StatusCreated)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
