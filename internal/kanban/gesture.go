// Package kanban recognises drag gestures on the work-order board and turns
// each finished gesture into exactly one outcome.
package kanban

import (
	"fmt"
	"math"

	"github.com/pitabwire/workdesk/model"
)

// DefaultThreshold is the pointer travel, in pixels, that turns a press into
// a drag.
const DefaultThreshold = 8.0

// Phase of a gesture.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePressed
	PhaseDragging
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePressed:
		return "pressed"
	case PhaseDragging:
		return "dragging"
	case PhaseResolved:
		return "resolved"
	}
	return "unknown"
}

// ZoneType is the declared type of a drop zone.
type ZoneType string

const (
	ZoneStatus ZoneType = "STATUS"
	ZoneUser   ZoneType = "USER"
)

// Zone is a drop target. For ZoneStatus the ID is a status, for ZoneUser a
// technician id.
type Zone struct {
	Type ZoneType `json:"type"`
	ID   string   `json:"id"`
}

// Point is a pointer position in board pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Card is the work order under the pointer.
type Card struct {
	WorkOrderID string       `json:"workOrderId"`
	Status      model.Status `json:"status"`
}

// OutcomeKind is the terminal result of a gesture.
type OutcomeKind string

const (
	OutcomeNoop       OutcomeKind = "noop"
	OutcomeTransition OutcomeKind = "status"
	OutcomeAssign     OutcomeKind = "assign"
)

// No-op reasons.
const (
	ReasonNotDragged    = "not_dragged"
	ReasonNoZone        = "no_zone"
	ReasonUnknownZone   = "unknown_zone"
	ReasonSameStatus    = "same_status"
	ReasonCancelled     = "cancelled"
	ReasonMissingTarget = "missing_target"
	ReasonResolved      = "already_resolved"
)

// Outcome is what a finished gesture asks for.
type Outcome struct {
	Kind         OutcomeKind  `json:"kind"`
	WorkOrderID  string       `json:"workOrderId,omitempty"`
	Status       model.Status `json:"status,omitempty"`
	TechnicianID string       `json:"technicianId,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// Noop reports whether the outcome makes no call.
func (o Outcome) Noop() bool { return o.Kind == OutcomeNoop }

func noop(card Card, reason string) Outcome {
	return Outcome{Kind: OutcomeNoop, WorkOrderID: card.WorkOrderID, Reason: reason}
}

// Resolve decides the outcome of releasing card over zone. zone is nil when
// the pointer is outside every zone.
func Resolve(card Card, dragged bool, zone *Zone) Outcome {
	if !dragged {
		return noop(card, ReasonNotDragged)
	}
	if zone == nil {
		return noop(card, ReasonNoZone)
	}
	switch zone.Type {
	case ZoneStatus:
		status := model.Status(zone.ID)
		if !status.Valid() {
			return noop(card, ReasonUnknownZone)
		}
		if status == card.Status {
			return noop(card, ReasonSameStatus)
		}
		return Outcome{Kind: OutcomeTransition, WorkOrderID: card.WorkOrderID, Status: status}
	case ZoneUser:
		if zone.ID == "" {
			return noop(card, ReasonMissingTarget)
		}
		return Outcome{Kind: OutcomeAssign, WorkOrderID: card.WorkOrderID, TechnicianID: zone.ID}
	}
	return noop(card, ReasonUnknownZone)
}

// Gesture tracks one press-drag-release sequence. It is not safe for
// concurrent use.
type Gesture struct {
	threshold float64
	phase     Phase
	card      Card
	origin    Point
	outcome   Outcome
}

// NewGesture creates an idle gesture. A non-positive threshold means
// DefaultThreshold.
func NewGesture(threshold float64) *Gesture {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gesture{threshold: threshold}
}

// Outcome returns the outcome of a resolved gesture.
func (g *Gesture) Outcome() (Outcome, bool) {
	return g.outcome, g.phase == PhaseResolved
}

// Phase returns the current phase.
func (g *Gesture) Phase() Phase { return g.phase }

// Press starts the gesture on card at p.
func (g *Gesture) Press(card Card, p Point) error {
	if g.phase != PhaseIdle {
		return fmt.Errorf("kanban: press while %s", g.phase)
	}
	g.card, g.origin, g.phase = card, p, PhasePressed
	return nil
}

// Move reports pointer movement. The gesture becomes a drag once the
// pointer has travelled the threshold from the press point.
func (g *Gesture) Move(p Point) {
	if g.phase != PhasePressed {
		return
	}
	if math.Hypot(p.X-g.origin.X, p.Y-g.origin.Y) >= g.threshold {
		g.phase = PhaseDragging
	}
}

// Release ends the gesture over zone, which may be nil. Releasing an idle
// or already resolved gesture returns a no-op.
func (g *Gesture) Release(zone *Zone) Outcome {
	switch g.phase {
	case PhaseIdle:
		return noop(g.card, ReasonNotDragged)
	case PhaseResolved:
		return noop(g.card, ReasonResolved)
	}
	g.outcome = Resolve(g.card, g.phase == PhaseDragging, zone)
	g.phase = PhaseResolved
	return g.outcome
}

// Cancel aborts the gesture in any phase. The outcome is always a no-op;
// cancelling a resolved gesture leaves its outcome in place.
func (g *Gesture) Cancel() Outcome {
	if g.phase == PhaseResolved {
		return noop(g.card, ReasonResolved)
	}
	g.outcome = noop(g.card, ReasonCancelled)
	g.phase = PhaseResolved
	return g.outcome
}

// Trace is the pointer history of one gesture as recorded by the board.
type Trace struct {
	Press     Point   `json:"press"`
	Moves     []Point `json:"moves"`
	Cancelled bool    `json:"cancelled"`
}

// Replay runs trace through a new gesture on card and releases it over
// zone.
func Replay(card Card, threshold float64, trace Trace, zone *Zone) Outcome {
	g := NewGesture(threshold)
	// A new gesture is idle, so Press cannot fail.
	_ = g.Press(card, trace.Press)
	for _, p := range trace.Moves {
		g.Move(p)
	}
	if trace.Cancelled {
		return g.Cancel()
	}
	return g.Release(zone)
}
