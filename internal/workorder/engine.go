// Package workorder holds one session's work-order collection and the
// mutations against it. Records are reloaded wholesale after every mutation;
// nothing is applied optimistically.
package workorder

import (
	"context"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/lookup"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/query"
	"github.com/pitabwire/workdesk/model"
)

// API is the slice of the maintenance API the engine calls.
type API interface {
	lookup.Source

	ListWorkOrders(ctx context.Context) ([]model.WorkOrder, error)
	CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (*model.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id string, patch model.WorkOrderPatch) error
	SetStatus(ctx context.Context, id string, status model.Status) error
	Assign(ctx context.Context, id, technicianID string) error
	DeleteWorkOrder(ctx context.Context, id string) error

	ListComments(ctx context.Context, id string) ([]model.Comment, error)
	PostComment(ctx context.Context, id, message string) error
	ListParts(ctx context.Context, id string) ([]model.PartUsage, error)
	AddPart(ctx context.Context, id, sparePartID string, quantity int) error
	RemovePart(ctx context.Context, usageID string) error
	ListAttachments(ctx context.Context, id string) ([]model.Attachment, error)
	UploadAttachment(ctx context.Context, id, fileName string, content io.Reader) error

	GetAsset(ctx context.Context, id string) (*model.Asset, error)
	CreateAsset(ctx context.Context, in model.AssetInput) (*model.Asset, error)
	UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) error
	DeleteAsset(ctx context.Context, id string) error
	CreateUser(ctx context.Context, in model.UserInput) (*model.User, error)
	SetUserRole(ctx context.Context, id string, role model.Role) error
	DeleteUser(ctx context.Context, id string) error
}

// Lookups serves the cached picker lists. *lookup.Cache implements it.
type Lookups interface {
	Technicians(ctx context.Context, subject string) ([]model.User, error)
	Assets(ctx context.Context, subject, q string) ([]model.Asset, error)
	SpareParts(ctx context.Context, subject string) ([]model.SparePart, error)
	Invalidate(ctx context.Context, subject string)
}

// BodyValidator checks a request body against the API contract before it
// is sent. *openapi.Contract implements it.
type BodyValidator interface {
	ValidateBody(method, path string, body any) []model.FieldError
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator validates create and update bodies against v.
func WithValidator(v BodyValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithMetrics records mutations and reloads on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the clock used for overdue derivation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the work-order state of one session.
type Engine struct {
	api       API
	lookups   Lookups
	validator BodyValidator
	session   *model.Session
	caps      model.CapabilitySet
	loc       *time.Location
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	// seq numbers reloads in the order they start.
	seq atomic.Uint64

	mu      sync.RWMutex
	records []model.WorkOrder
	applied uint64
	loaded  bool
}

// New creates an Engine for session. caps decides which actions are
// offered; it never restricts the calls themselves.
func New(api API, lookups Lookups, session *model.Session, caps model.CapabilitySet, opts ...Option) *Engine {
	e := &Engine{
		api:     api,
		lookups: lookups,
		session: session,
		caps:    caps,
		loc:     session.Location(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the session the engine was built for.
func (e *Engine) Session() *model.Session { return e.session }

// Capabilities returns the capability hints of the session.
func (e *Engine) Capabilities() model.CapabilitySet { return e.caps }

// Location is the zone calendar days are interpreted in.
func (e *Engine) Location() *time.Location { return e.loc }

// Reload fetches every work order and replaces the collection. A response
// that arrives after a newer reload was applied is discarded. On error the
// collection is left as it was.
func (e *Engine) Reload(ctx context.Context) error {
	seq := e.seq.Add(1)
	logger := observability.RequestLogger(ctx, e.logger)

	records, err := e.api.ListWorkOrders(ctx)
	if err != nil {
		e.metrics.RecordReload("error")
		logger.Warn("work order reload failed", zap.Error(err))
		return err
	}
	records = query.DeriveOverdue(records, e.now(), e.loc)

	e.mu.Lock()
	if seq < e.applied {
		e.mu.Unlock()
		e.metrics.RecordReload("stale")
		logger.Debug("discarding stale work order reload",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", e.applied),
		)
		return nil
	}
	e.records = records
	e.applied = seq
	e.loaded = true
	e.mu.Unlock()

	e.metrics.RecordReload("applied")
	return nil
}

// EnsureLoaded reloads when nothing has been loaded yet.
func (e *Engine) EnsureLoaded(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.loaded
	e.mu.RUnlock()
	if loaded {
		return nil
	}
	return e.Reload(ctx)
}

// Loaded reports whether a reload has been applied.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Records returns a copy of the collection in API order.
func (e *Engine) Records() []model.WorkOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.records)
}

// Get returns the cached record with the given id.
func (e *Engine) Get(id string) (model.WorkOrder, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, w := range e.records {
		if w.ID == id {
			return w, true
		}
	}
	return model.WorkOrder{}, false
}

// View filters and sorts the collection.
func (e *Engine) View(f model.Filters, s model.Sort) []model.WorkOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return query.ApplyView(e.records, f, s, e.loc)
}

// Board groups the unfiltered collection by status.
func (e *Engine) Board() model.Board {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return query.GroupByStatus(e.records)
}

// Calendar places records with a due date in [from, to).
func (e *Engine) Calendar(from, to time.Time) []model.CalendarEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return query.Calendar(e.records, from, to)
}

// AssigneeOptions lists the assignee emails present in the collection.
func (e *Engine) AssigneeOptions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return query.AssigneeOptions(e.records)
}

// Summary computes dashboard KPIs from the collection.
func (e *Engine) Summary() model.Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return query.Summarize(e.records)
}
