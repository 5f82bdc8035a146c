// Package integration provides a reusable test harness for end-to-end
// integration testing of the workdesk server. It starts the full HTTP
// router against a mock maintenance API, an in-memory lookup store, and an
// HMAC test token issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/apiclient"
	"github.com/pitabwire/workdesk/internal/capability"
	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/lookup"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/openapi"
	"github.com/pitabwire/workdesk/internal/transport"
	"github.com/pitabwire/workdesk/internal/workorder"
	"github.com/pitabwire/workdesk/model"
)

// TestHarness encapsulates a fully wired workdesk instance with a mock
// maintenance API for integration testing.
type TestHarness struct {
	t       *testing.T
	server  *httptest.Server
	issuer  *tokenIssuer
	backend *MockBackend

	// Internal components exposed for advanced test scenarios.
	API         *apiclient.Client
	Registry    *workorder.Registry
	Lookups     *lookup.Cache
	CapResolver *capability.Resolver
	Metrics     *observability.Metrics
	Gatherer    *prometheus.Registry

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	policyFile     string
	contractFile   string
	handlerTimeout time.Duration
	breaker        config.CircuitBreakerConfig
	apiTimeout     time.Duration
	pollInterval   time.Duration
}

// WithPolicyFile sets the static policy YAML file for capability resolution.
func WithPolicyFile(path string) HarnessOption {
	return func(c *harnessConfig) {
		c.policyFile = path
	}
}

// WithContract validates request bodies against the OpenAPI document at
// path.
func WithContract(path string) HarnessOption {
	return func(c *harnessConfig) {
		c.contractFile = path
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithCircuitBreaker configures the API client's circuit breaker.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = cb
	}
}

// WithAPITimeout sets the per-call timeout of the API client.
func WithAPITimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.apiTimeout = d
	}
}

// WithPollInterval sets the dashboard stream poll interval.
func WithPollInterval(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.pollInterval = d
	}
}

// NewTestHarness creates and starts a full workdesk test instance. The
// server is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		apiTimeout:     5 * time.Second,
		pollInterval:   time.Hour,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t}

	// Step 1: Mock maintenance API and token issuer.
	h.backend = newMockBackend(t)
	h.issuer = newTokenIssuer(t)

	// Step 2: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity.Issuer = h.issuer.Issuer()
	h.cfg.Identity.Audience = h.issuer.Audience()
	h.cfg.Identity.HMACSecretEnv = testSecretEnv
	h.cfg.Backend.BaseURL = h.backend.URL()
	h.cfg.Backend.Timeout = hc.apiTimeout
	h.cfg.Backend.CircuitBreaker = hc.breaker
	h.cfg.Capability.StaticPolicyFile = hc.policyFile
	h.cfg.Capability.Cache.TTL = 0 // no caching in tests
	h.cfg.Dashboard.PollInterval = hc.pollInterval

	// Step 3: Telemetry on a private registry.
	h.Gatherer = prometheus.NewRegistry()
	h.Metrics = observability.InitMetrics(h.Gatherer)
	logger := zap.NewNop()

	// Step 4: API client, optionally checked against a contract.
	h.API = apiclient.New(h.cfg.Backend, h.Metrics, logger)
	engineOpts := []workorder.Option{workorder.WithMetrics(h.Metrics), workorder.WithLogger(logger)}
	if hc.contractFile != "" {
		contract, err := openapi.Load(context.Background(), hc.contractFile)
		if err != nil {
			t.Fatalf("load API contract: %v", err)
		}
		engineOpts = append(engineOpts, workorder.WithValidator(contract))
	}

	// Step 5: Capability resolver.
	evaluator, err := capability.NewStaticPolicyEvaluator(h.cfg.Capability.StaticPolicyFile)
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	h.CapResolver = capability.NewResolver(evaluator, h.cfg.Capability.Cache.TTL, h.Metrics)

	// Step 6: Lookup cache on the in-memory store.
	h.Lookups = lookup.NewCache(lookup.NewMemoryStore(h.cfg.Lookup.Cache.MaxEntries), h.API,
		h.cfg.Lookup.Store.Prefix, h.cfg.Lookup.Cache.TTL, h.Metrics, logger)

	// Step 7: Per-session engines.
	h.Registry = workorder.NewRegistry(h.cfg.Sessions, func(s *model.Session) (*workorder.Engine, error) {
		caps, err := h.CapResolver.Resolve(s)
		if err != nil {
			return nil, err
		}
		return workorder.New(h.API, h.Lookups, s, caps, engineOpts...), nil
	}, h.Metrics)

	// Step 8: Build router with full middleware chain.
	keys, err := transport.NewKeyFunc(h.cfg.Identity)
	if err != nil {
		t.Fatalf("verification key: %v", err)
	}
	router := transport.NewRouter(transport.Dependencies{
		Config:             h.cfg,
		Logger:             logger,
		Metrics:            h.Metrics,
		Gatherer:           h.Gatherer,
		Authenticate:       transport.JWTAuthenticator(h.cfg.Identity, keys),
		CapabilityResolver: h.CapResolver,
		Engines:            h.Registry,
		Dashboard:          h.API,
		Readiness:          observability.ReadinessChecks{"maintenance_api": h.API},
	})

	// Step 9: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// MockBackend returns the mock maintenance API.
func (h *TestHarness) MockBackend() *MockBackend {
	return h.backend
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// GenerateForeignToken creates a JWT signed with an unknown secret.
func (h *TestHarness) GenerateForeignToken(claims TestClaims) string {
	return h.issuer.GenerateForeignToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, token, nil)
}

// PATCH performs an authenticated PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPatch, path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodDelete, path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// ErrorCode parses an error response and returns its code.
func (h *TestHarness) ErrorCode(resp *http.Response) string {
	h.t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	h.ParseJSON(resp, &body)
	return body.Error.Code
}

// --- Default test claims ---

// AdminClaims returns TestClaims for an administrator.
func AdminClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-admin",
		Email:     "admin@plant.example.com",
		Name:      "Ada Admin",
		Role:      "ADMIN",
	}
}

// SupervisorClaims returns TestClaims for a maintenance supervisor.
func SupervisorClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-supervisor",
		Email:     "supervisor@plant.example.com",
		Name:      "Sam Supervisor",
		Role:      "SUPERVISOR",
	}
}

// TechnicianClaims returns TestClaims for a field technician.
func TechnicianClaims() TestClaims {
	return TestClaims{
		SubjectID: "tech-1",
		Email:     "tech1@plant.example.com",
		Name:      "Tess Technician",
		Role:      "TECHNICIAN",
	}
}

// RequesterClaims returns TestClaims for a plain user raising requests.
func RequesterClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-1",
		Email:     "user1@plant.example.com",
		Name:      "Uma User",
		Role:      "USER",
	}
}

// --- Helpers ---

// contractFile returns the absolute path of the maintenance API document
// used by the openapi package tests.
func contractFile() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "internal", "openapi", "testdata", "maintenance-api.yaml")
}

// WorkOrderFixture returns a map representing a work order as the API
// serves it.
func WorkOrderFixture(id, title, status, priority string) map[string]any {
	return map[string]any{
		"id":        id,
		"title":     title,
		"status":    status,
		"priority":  priority,
		"assetId":   "asset-1",
		"asset":     map[string]any{"id": "asset-1", "name": "Boiler 1", "code": "BLR-1"},
		"createdAt": "2026-10-01T08:00:00Z",
		"dueDate":   "2099-10-20",
	}
}

// WithParts adds recorded spare-part usages to a work order fixture.
func WithParts(wo map[string]any, usageIDs ...string) map[string]any {
	parts := make([]map[string]any, len(usageIDs))
	for i, id := range usageIDs {
		parts[i] = map[string]any{"id": id, "sparePartId": "sp-1", "quantity": 1}
	}
	wo["parts"] = parts
	return wo
}

// UserFixture returns a map representing a user as the API serves it.
func UserFixture(id, email, role string) map[string]any {
	return map[string]any{"id": id, "email": email, "name": strings.ToUpper(id[:1]) + id[1:], "role": role}
}

// ErrorFixture returns an error body as the maintenance API sends it.
func ErrorFixture(message string) map[string]any {
	return map[string]any{"message": message}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
