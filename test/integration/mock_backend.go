package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pitabwire/workdesk/internal/apiclient"
)

// MockBackend stands in for the maintenance API. It serves every route in
// apiclient.Operations, keyed by operation id. Each operation plays back a
// script of responses; the last one repeats. Operations without a script
// get an empty success.
type MockBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	scripts  map[string]*script
	received map[string][]*RecordedRequest
}

// RecordedRequest is one call the mock received.
type RecordedRequest struct {
	Method     string
	Path       string
	Query      url.Values
	PathParams map[string]string
	Headers    http.Header
	Body       map[string]any
}

type script struct {
	steps []step
	next  int
}

type step struct {
	status int
	body   any
	delay  time.Duration
	hangUp bool
}

// pop returns the step to play. The final step repeats.
func (s *script) pop() step {
	st := s.steps[s.next]
	if s.next < len(s.steps)-1 {
		s.next++
	}
	return st
}

// OperationMock appends steps to one operation's script.
type OperationMock struct {
	mb *MockBackend
	id string
}

func newMockBackend(t *testing.T) *MockBackend {
	t.Helper()
	mb := &MockBackend{
		scripts:  map[string]*script{},
		received: map[string][]*RecordedRequest{},
	}

	mux := http.NewServeMux()
	for _, op := range apiclient.Operations() {
		mux.HandleFunc(op.Method+" "+op.Path, mb.serve(op))
	}
	mb.server = httptest.NewServer(mux)
	t.Cleanup(mb.server.Close)
	return mb
}

// URL is the base URL to point the API client at.
func (mb *MockBackend) URL() string { return mb.server.URL }

// OnOperation starts or extends the script of an operation.
func (mb *MockBackend) OnOperation(operationID string) *OperationMock {
	return &OperationMock{mb: mb, id: operationID}
}

// RespondWith plays status with body encoded as JSON.
func (om *OperationMock) RespondWith(status int, body any) *OperationMock {
	return om.add(step{status: status, body: body})
}

// RespondWithDelay plays the response after d.
func (om *OperationMock) RespondWithDelay(d time.Duration, status int, body any) *OperationMock {
	return om.add(step{status: status, body: body, delay: d})
}

// RespondWithConnectionError drops the connection without answering.
func (om *OperationMock) RespondWithConnectionError() *OperationMock {
	return om.add(step{hangUp: true})
}

func (om *OperationMock) add(st step) *OperationMock {
	om.mb.mu.Lock()
	defer om.mb.mu.Unlock()
	s := om.mb.scripts[om.id]
	if s == nil {
		s = &script{}
		om.mb.scripts[om.id] = s
	}
	s.steps = append(s.steps, st)
	return om
}

func (mb *MockBackend) serve(op apiclient.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &RecordedRequest{
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.Query(),
			PathParams: map[string]string{},
			Headers:    r.Header.Clone(),
		}
		for _, name := range []string{"id", "usageId"} {
			if v := r.PathValue(name); v != "" {
				rec.PathParams[name] = v
			}
		}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}

		mb.mu.Lock()
		mb.received[op.ID] = append(mb.received[op.ID], rec)
		var st *step
		if s := mb.scripts[op.ID]; s != nil && len(s.steps) > 0 {
			next := s.pop()
			st = &next
		}
		mb.mu.Unlock()

		if st == nil {
			writeDefault(w, op)
			return
		}
		if st.hangUp {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		if st.delay > 0 {
			select {
			case <-time.After(st.delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(st.status)
		if st.body != nil {
			_ = json.NewEncoder(w).Encode(st.body)
		}
	}
}

// writeDefault answers an operation with no script: collections are empty,
// KPI objects are empty, writes succeed with no body.
func writeDefault(w http.ResponseWriter, op apiclient.Operation) {
	if op.Method != http.MethodGet {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	body := "[]"
	if strings.HasPrefix(op.Path, "/dashboard/") && op.ID != apiclient.OpDashboardFeed.ID {
		body = "{}"
	}
	_, _ = io.WriteString(w, body)
}

// AssertCalled fails t unless the operation was called want times.
func (mb *MockBackend) AssertCalled(t *testing.T, operationID string, want int) {
	t.Helper()
	if got := len(mb.AllRequests(operationID)); got != want {
		t.Errorf("mock API: %s called %d times, want %d", operationID, got, want)
	}
}

// AssertNotCalled fails t if the operation was called at all.
func (mb *MockBackend) AssertNotCalled(t *testing.T, operationID string) {
	t.Helper()
	mb.AssertCalled(t, operationID, 0)
}

// LastRequest is the most recent call to the operation, or nil.
func (mb *MockBackend) LastRequest(operationID string) *RecordedRequest {
	reqs := mb.AllRequests(operationID)
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// AllRequests lists the calls to the operation in arrival order.
func (mb *MockBackend) AllRequests(operationID string) []*RecordedRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]*RecordedRequest(nil), mb.received[operationID]...)
}
