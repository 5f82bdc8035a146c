package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/dashboard"
	"github.com/pitabwire/workdesk/internal/kanban"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/workorder"
	"github.com/pitabwire/workdesk/model"
)

// Engines hands out the work-order engine of a session.
// *workorder.Registry implements it.
type Engines interface {
	Engine(s *model.Session) (*workorder.Engine, error)
	// Drop forgets the engine of s.
	Drop(s *model.Session)
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config             *config.Config
	Logger             *zap.Logger
	Metrics            *observability.Metrics
	Gatherer           prometheus.Gatherer
	Authenticate       func(http.Handler) http.Handler
	CapabilityResolver model.CapabilityResolver
	Engines            Engines
	Dashboard          dashboard.Source
	Readiness          observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Defaults()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.Gatherer != nil && cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler(deps.Gatherer))
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	dispatcher := kanban.NewDispatcher(deps.Metrics, logger)
	streams := newStreamHub(deps.Dashboard, cfg.Dashboard.PollInterval, deps.Metrics, logger)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildSession(cfg.Identity.ClaimPaths, cfg.Query.Timezone))
		r.Use(ResolveCapabilities(deps.CapabilityResolver, logger))
		r.Use(RequestLogging(logger))

		// The stream stays open until the client leaves.
		r.Get("/ui/dashboard/stream", handleDashboardStream(streams))

		r.Group(func(r chi.Router) {
			r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))

			r.Get("/ui/session", handleSession())
			r.Get("/ui/dashboard", handleDashboard(deps.Engines, deps.Dashboard))

			r.Route("/ui/work-orders", func(r chi.Router) {
				r.Get("/", handleListWorkOrders(deps.Engines))
				r.Post("/", handleCreateWorkOrder(deps.Engines, streams))
				r.Delete("/parts/{usageId}", handleRemovePart(deps.Engines, streams))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handleGetWorkOrder(deps.Engines))
					r.Patch("/", handleUpdateWorkOrder(deps.Engines, streams))
					r.Delete("/", handleDeleteWorkOrder(deps.Engines, streams))
					r.Post("/status", handleTransitionStatus(deps.Engines, streams))
					r.Post("/assign", handleAssign(deps.Engines, streams))
					r.Get("/comments", handleListComments(deps.Engines))
					r.Post("/comments", handlePostComment(deps.Engines, streams))
					r.Get("/parts", handleListParts(deps.Engines))
					r.Post("/parts", handleAddPart(deps.Engines, streams))
					r.Get("/attachments", handleListAttachments(deps.Engines))
					r.Post("/attachments", handleUploadAttachment(deps.Engines, streams, cfg.Server.MaxUploadBytes))
				})
			})

			r.With(RequireCapability(model.CapWorkOrdersBoard)).Group(func(r chi.Router) {
				r.Get("/ui/board", handleBoard(deps.Engines))
				r.Post("/ui/board/drop", handleBoardDrop(deps.Engines, dispatcher, streams, cfg.Kanban.DragThreshold))
			})
			r.With(RequireCapability(model.CapCalendarView)).Get("/ui/calendar", handleCalendar(deps.Engines))

			r.Route("/ui/assets", func(r chi.Router) {
				r.Get("/", handleAssets(deps.Engines))
				r.Get("/{id}", handleGetAsset(deps.Engines))
				r.With(RequireCapability(model.CapAssetsManage)).Group(func(r chi.Router) {
					r.Post("/", handleCreateAsset(deps.Engines))
					r.Patch("/{id}", handleUpdateAsset(deps.Engines, streams))
					r.Delete("/{id}", handleDeleteAsset(deps.Engines, streams))
				})
			})
			r.Route("/ui/users", func(r chi.Router) {
				r.Use(RequireCapability(model.CapUsersManage))
				r.Get("/", handleListUsers(deps.Engines))
				r.Post("/", handleCreateUser(deps.Engines))
				r.Patch("/{id}/role", handleSetUserRole(deps.Engines))
				r.Delete("/{id}", handleDeleteUser(deps.Engines, streams))
			})
			r.Get("/ui/technicians", handleTechnicians(deps.Engines))
			r.Get("/ui/spare-parts", handleSpareParts(deps.Engines))
		})
	})

	return r
}
