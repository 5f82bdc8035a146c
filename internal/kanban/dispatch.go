package kanban

import (
	"context"

	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// Mutator is the engine surface a drop acts on. *workorder.Engine
// implements it. TransitionStatus reloads on success; AssignTechnician
// reloads whatever the outcome.
type Mutator interface {
	TransitionStatus(ctx context.Context, id string, status model.Status) error
	AssignTechnician(ctx context.Context, id, technicianID string) error
	Reload(ctx context.Context) error
}

// Dispatcher runs gesture outcomes against a Mutator. After any call the
// collection is reloaded, whether the call succeeded or not.
type Dispatcher struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher. Both arguments may be nil.
func NewDispatcher(metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{metrics: metrics, logger: logger}
}

// Dispatch performs o. A no-op makes no call and no reload.
func (d *Dispatcher) Dispatch(ctx context.Context, m Mutator, o Outcome) error {
	if o.Noop() {
		d.metrics.RecordKanbanDrop(string(OutcomeNoop))
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "kanban.drop",
		observability.AttrWorkOrderID.String(o.WorkOrderID),
		observability.AttrOutcome.String(string(o.Kind)),
	)
	if o.Kind == OutcomeTransition {
		span.SetAttributes(observability.AttrStatus.String(string(o.Status)))
	}
	var err error
	switch o.Kind {
	case OutcomeTransition:
		err = m.TransitionStatus(ctx, o.WorkOrderID, o.Status)
		if err != nil {
			// A failed transition does not reload by itself.
			if rerr := m.Reload(ctx); rerr != nil {
				observability.RequestLogger(ctx, d.logger).Warn("reload after failed drop", zap.Error(rerr))
			}
		}
	case OutcomeAssign:
		err = m.AssignTechnician(ctx, o.WorkOrderID, o.TechnicianID)
	}
	observability.EndSpanWithError(span, err)

	label := string(o.Kind)
	if err != nil {
		label = "error"
		observability.RequestLogger(ctx, d.logger).Warn("kanban drop failed",
			zap.String("outcome", string(o.Kind)),
			observability.WorkOrder(o.WorkOrderID),
			zap.Error(err),
		)
	}
	d.metrics.RecordKanbanDrop(label)
	return err
}
