package transport

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/kanban"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

type boardBucket struct {
	Status model.Status    `json:"status"`
	Label  string          `json:"label"`
	Count  int             `json:"count"`
	Items  []workOrderItem `json:"items"`
}

type boardResponse struct {
	Buckets []boardBucket `json:"buckets"`
	Zones   []kanban.Zone `json:"technicianZones"`
}

func handleBoard(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		board := e.Board()
		resp := boardResponse{
			Buckets: make([]boardBucket, 0, len(model.Statuses)),
			Zones:   []kanban.Zone{},
		}
		for _, s := range model.Statuses {
			resp.Buckets = append(resp.Buckets, boardBucket{
				Status: s,
				Label:  s.Label(),
				Count:  len(board[s]),
				Items:  withActions(e, board[s]),
			})
		}

		// The board is still usable without technician zones.
		techs, err := e.Technicians(r.Context())
		if err != nil {
			observability.RequestLogger(r.Context(), zap.NewNop()).Warn("technician zones unavailable", zap.Error(err))
		}
		for _, t := range techs {
			resp.Zones = append(resp.Zones, kanban.Zone{Type: kanban.ZoneUser, ID: t.ID})
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// dropRequest is a finished board gesture. zone is the drop target under
// the pointer at release. A request with a press point carries the raw
// pointer trace; otherwise dragged says whether the card was dragged.
type dropRequest struct {
	WorkOrderID string         `json:"workOrderId"`
	Zone        *kanban.Zone   `json:"zone"`
	Dragged     bool           `json:"dragged"`
	Press       *kanban.Point  `json:"press"`
	Moves       []kanban.Point `json:"moves"`
	Cancelled   bool           `json:"cancelled"`
}

func (req dropRequest) outcome(card kanban.Card, threshold float64) kanban.Outcome {
	if req.Press == nil {
		return kanban.Resolve(card, req.Dragged, req.Zone)
	}
	trace := kanban.Trace{Press: *req.Press, Moves: req.Moves, Cancelled: req.Cancelled}
	return kanban.Replay(card, threshold, trace, req.Zone)
}

// handleBoardDrop resolves a finished drag against the cached card and
// performs the outcome.
func handleBoardDrop(engines Engines, dispatcher *kanban.Dispatcher, streams *streamHub, threshold float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dropRequest
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.WorkOrderID == "" {
			WriteValidationError(w, model.FieldError{Field: "workOrderId", Code: "REQUIRED", Message: "work order is required"})
			return
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		wo, found := e.Get(req.WorkOrderID)
		if !found {
			WriteNotFound(w, "work order "+req.WorkOrderID+" not found")
			return
		}

		outcome := req.outcome(kanban.Card{WorkOrderID: wo.ID, Status: wo.Status}, threshold)
		if err := dispatcher.Dispatch(r.Context(), e, outcome); err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		if !outcome.Noop() {
			streams.refresh(r.Context())
		}
		WriteJSON(w, http.StatusOK, outcome)
	}
}

// handleCalendar lists the events of [from, to). Both default to the
// current month in the session's time zone. Days are compared the way
// day-only due dates are stored, as UTC midnight.
func handleCalendar(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		now := time.Now().In(e.Location())
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)

		var details []model.FieldError
		if v := r.URL.Query().Get("from"); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				details = append(details, model.FieldError{Field: "from", Code: "INVALID", Message: "expected a date"})
			} else {
				from = d.Time
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				details = append(details, model.FieldError{Field: "to", Code: "INVALID", Message: "expected a date"})
			} else {
				to = d.Time
			}
		}
		if len(details) == 0 && !to.After(from) {
			details = append(details, model.FieldError{Field: "to", Code: "INVALID", Message: "to must be after from"})
		}
		if len(details) > 0 {
			WriteValidationError(w, details...)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]any{
			"from":   from,
			"to":     to,
			"events": nonNil(e.Calendar(from, to)),
		})
	}
}
