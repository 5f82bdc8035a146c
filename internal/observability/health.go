package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

var started = time.Now()

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker is anything /ui/ready depends on: the maintenance API
// client, the lookup store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

// HealthCheck implements HealthChecker.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ReadinessChecks names the dependencies checked by /ui/ready. Nil entries
// are skipped so optional dependencies can be listed unconditionally.
type ReadinessChecks map[string]HealthChecker

// HandleHealth serves liveness. It never touches a dependency.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{
			Status:        "ok",
			Version:       Version,
			Commit:        Commit,
			UptimeSeconds: int64(time.Since(started).Seconds()),
		})
	}
}

// HandleReady serves readiness. Checks run concurrently; any failure
// answers 503.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			g       errgroup.Group
			mu      sync.Mutex
			results = make(map[string]CheckResult, len(checks))
		)
		for name, checker := range checks {
			if checker == nil {
				continue
			}
			g.Go(func() error {
				res := runCheck(r.Context(), checker)
				mu.Lock()
				results[name] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: results}
		code := http.StatusOK
		for _, res := range results {
			if res.Status != "ok" {
				resp.Status = "not_ready"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeHealthJSON(w, code, resp)
	}
}

func runCheck(parent context.Context, checker HealthChecker) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := checker.HealthCheck(ctx)
	res := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
	}
	return res
}

func writeHealthJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
