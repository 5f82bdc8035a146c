package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/pitabwire/workdesk/internal/config"
)

// ==========================================================================
// Circuit Breaker Tests
// ==========================================================================

func TestResilience_CircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)
	mb := h.MockBackend()
	mb.OnOperation("listWorkOrders").RespondWith(http.StatusInternalServerError, ErrorFixture("database down"))
	token := h.GenerateToken(SupervisorClaims())

	for range 3 {
		h.AssertStatus(t, h.GET("/ui/work-orders", token), http.StatusBadGateway)
	}
	callsBefore := len(mb.AllRequests("listWorkOrders"))

	// Next request should fail immediately without hitting the API.
	resp := h.GET("/ui/work-orders", token)
	if resp.StatusCode != http.StatusBadGateway {
		h.AssertStatus(t, resp, http.StatusBadGateway)
	} else {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		h.ParseJSON(resp, &body)
		if body.Error.Message != "The maintenance API is temporarily unavailable" {
			t.Errorf("message = %q", body.Error.Message)
		}
	}

	if callsAfter := len(mb.AllRequests("listWorkOrders")); callsAfter != callsBefore {
		t.Errorf("API received %d additional calls after circuit opened, want 0", callsAfter-callsBefore)
	}

	// An open breaker makes the instance not ready.
	h.AssertStatus(t, h.GET("/ui/ready", ""), http.StatusServiceUnavailable)
}

func TestResilience_CircuitBreakerRecoveryAfterTimeout(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          100 * time.Millisecond,
		}),
	)
	mb := h.MockBackend()
	mb.OnOperation("listWorkOrders").
		RespondWith(http.StatusInternalServerError, ErrorFixture("database down")).
		RespondWith(http.StatusOK, []any{WorkOrderFixture("wo-1", "Replace pump seal", "OPEN", "HIGH")})
	token := h.GenerateToken(SupervisorClaims())

	h.AssertStatus(t, h.GET("/ui/work-orders", token), http.StatusBadGateway)
	h.AssertStatus(t, h.GET("/ui/work-orders", token), http.StatusBadGateway)
	mb.AssertCalled(t, "listWorkOrders", 1)

	time.Sleep(150 * time.Millisecond)

	var body listBody
	h.AssertJSON(t, h.GET("/ui/work-orders", token), http.StatusOK, &body)
	if body.Total != 1 {
		t.Errorf("total = %d, want 1 after recovery", body.Total)
	}
	h.AssertStatus(t, h.GET("/ui/ready", ""), http.StatusOK)
}

func TestResilience_ClientErrorsDoNotTripBreaker(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
		}),
	)
	seedWorkOrders(h)
	mb := h.MockBackend()
	mb.OnOperation("assignWorkOrder").RespondWith(http.StatusBadRequest, ErrorFixture("technician is on leave"))
	token := h.GenerateToken(SupervisorClaims())

	h.AssertStatus(t, h.POST("/ui/work-orders/wo-1/assign", map[string]any{"technicianId": "tech-9"}, token), http.StatusBadGateway)
	h.AssertStatus(t, h.POST("/ui/work-orders/wo-1/assign", map[string]any{"technicianId": "tech-9"}, token), http.StatusBadGateway)

	mb.AssertCalled(t, "assignWorkOrder", 2)
	h.AssertStatus(t, h.GET("/ui/ready", ""), http.StatusOK)
}

// ==========================================================================
// Transport failures
// ==========================================================================

func TestResilience_ConnectionError(t *testing.T) {
	h := NewTestHarness(t)
	h.MockBackend().OnOperation("listWorkOrders").RespondWithConnectionError()
	token := h.GenerateToken(SupervisorClaims())

	resp := h.GET("/ui/work-orders", token)
	if resp.StatusCode != http.StatusBadGateway {
		h.AssertStatus(t, resp, http.StatusBadGateway)
		return
	}
	if code := h.ErrorCode(resp); code != "NETWORK_OR_SERVER_ERROR" {
		t.Errorf("code = %q, want NETWORK_OR_SERVER_ERROR", code)
	}
}

func TestResilience_HandlerTimeout(t *testing.T) {
	h := NewTestHarness(t, WithHandlerTimeout(200*time.Millisecond))
	h.MockBackend().OnOperation("listWorkOrders").
		RespondWithDelay(time.Second, http.StatusOK, []any{})
	token := h.GenerateToken(SupervisorClaims())

	start := time.Now()
	resp := h.GET("/ui/work-orders", token)
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusBadGateway {
		h.AssertStatus(t, resp, http.StatusBadGateway)
		return
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	h.ParseJSON(resp, &body)
	if body.Error.Message != "The maintenance API did not respond in time" {
		t.Errorf("message = %q", body.Error.Message)
	}
	if elapsed > 900*time.Millisecond {
		t.Errorf("request took %v, want it cut off by the handler timeout", elapsed)
	}
}

func TestResilience_MalformedResponse(t *testing.T) {
	h := NewTestHarness(t)
	h.MockBackend().OnOperation("listWorkOrders").RespondWith(http.StatusOK, map[string]any{"data": "not a list"})
	token := h.GenerateToken(SupervisorClaims())

	resp := h.GET("/ui/work-orders", token)
	h.AssertStatus(t, resp, http.StatusBadGateway)
}

func TestResilience_LookupFailureKeepsBoardUsable(t *testing.T) {
	h := NewTestHarness(t)
	seedWorkOrders(h)
	h.MockBackend().OnOperation("listUsers").RespondWith(http.StatusInternalServerError, ErrorFixture("directory down"))
	token := h.GenerateToken(SupervisorClaims())

	var body struct {
		Buckets []map[string]any `json:"buckets"`
		Zones   []map[string]any `json:"technicianZones"`
	}
	h.AssertJSON(t, h.GET("/ui/board", token), http.StatusOK, &body)
	if len(body.Buckets) != 4 {
		t.Errorf("buckets = %d, want 4", len(body.Buckets))
	}
	if len(body.Zones) != 0 {
		t.Errorf("zones = %v, want none", body.Zones)
	}
}
