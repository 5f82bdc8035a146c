package workorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// Mutation kinds, used as metric labels and span names.
const (
	MutationStatus     = "status"
	MutationAssign     = "assign"
	MutationDelete     = "delete"
	MutationCreate     = "create"
	MutationUpdate     = "update"
	MutationComment    = "comment"
	MutationAddPart    = "add_part"
	MutationRemovePart = "remove_part"
	MutationUpload     = "upload"
)

// StatusCommentPrefix starts the audit comment posted after a status change.
const StatusCommentPrefix = "System: Status updated to "

// TransitionStatus moves a work order to status. Setting the status it
// already has is a no-op. On success an audit comment is posted and the
// collection reloaded; on failure the collection is unchanged.
func (e *Engine) TransitionStatus(ctx context.Context, id string, status model.Status) (err error) {
	ctx, done := e.begin(ctx, MutationStatus, id)
	defer func() { err = done(err) }()

	if !status.Valid() {
		return model.NewValidationError(model.FieldError{
			Field:   "status",
			Code:    "INVALID",
			Message: fmt.Sprintf("unknown status %q", status),
		})
	}
	if current, ok := e.Get(id); ok && current.Status == status {
		return errNoop
	}

	if err := e.api.SetStatus(ctx, id, status); err != nil {
		return err
	}
	commentErr := e.api.PostComment(ctx, id, StatusCommentPrefix+status.Label())
	e.reloadAfter(ctx)
	if commentErr != nil {
		return fmt.Errorf("status updated but audit comment failed: %w", commentErr)
	}
	return nil
}

// AssignTechnician reassigns a work order. The status is left to the API.
// The collection is reloaded whatever the outcome.
func (e *Engine) AssignTechnician(ctx context.Context, id, technicianID string) (err error) {
	ctx, done := e.begin(ctx, MutationAssign, id)
	defer func() { err = done(err) }()

	if strings.TrimSpace(technicianID) == "" {
		return model.NewValidationError(model.FieldError{
			Field:   "technicianId",
			Code:    "REQUIRED",
			Message: "technician is required",
		})
	}

	err = e.api.Assign(ctx, id, technicianID)
	e.reloadAfter(ctx)
	return err
}

// DeleteWorkOrder deletes a work order. A cached record that consumed
// spare parts is rejected without calling the API.
func (e *Engine) DeleteWorkOrder(ctx context.Context, id string) (err error) {
	ctx, done := e.begin(ctx, MutationDelete, id)
	defer func() { err = done(err) }()

	if w, ok := e.Get(id); ok && w.HasParts() {
		return model.NewPreconditionError(model.ReasonHasDependentParts,
			"Work order has spare parts recorded and cannot be deleted")
	}
	if err := e.api.DeleteWorkOrder(ctx, id); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// CreateWorkOrder creates a work order. Priority defaults to MEDIUM.
func (e *Engine) CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (_ *model.WorkOrder, err error) {
	ctx, done := e.begin(ctx, MutationCreate, "")
	defer func() { err = done(err) }()

	in.Title = strings.TrimSpace(in.Title)
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	var details []model.FieldError
	if in.Title == "" {
		details = append(details, model.FieldError{Field: "title", Code: "REQUIRED", Message: "title is required"})
	}
	if !in.Priority.Valid() {
		details = append(details, model.FieldError{Field: "priority", Code: "INVALID", Message: fmt.Sprintf("unknown priority %q", in.Priority)})
	}
	if len(details) == 0 {
		details = e.validate(http.MethodPost, "/work-orders", in)
	}
	if len(details) > 0 {
		return nil, model.NewValidationError(details...)
	}

	created, err := e.api.CreateWorkOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	e.reloadAfter(ctx)
	return created, nil
}

// UpdateWorkOrder applies a partial update. A provided title must not be
// blank.
func (e *Engine) UpdateWorkOrder(ctx context.Context, id string, patch model.WorkOrderPatch) (err error) {
	ctx, done := e.begin(ctx, MutationUpdate, id)
	defer func() { err = done(err) }()

	var details []model.FieldError
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			details = append(details, model.FieldError{Field: "title", Code: "REQUIRED", Message: "title must not be blank"})
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		details = append(details, model.FieldError{Field: "priority", Code: "INVALID", Message: fmt.Sprintf("unknown priority %q", *patch.Priority)})
	}
	if len(details) == 0 {
		details = e.validate(http.MethodPatch, "/work-orders/{id}", patch)
	}
	if len(details) > 0 {
		return model.NewValidationError(details...)
	}

	if err := e.api.UpdateWorkOrder(ctx, id, patch); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// Comments lists the activity log of a work order.
func (e *Engine) Comments(ctx context.Context, id string) ([]model.Comment, error) {
	return e.api.ListComments(ctx, id)
}

// PostComment adds a comment. The message is trimmed and must not be empty.
func (e *Engine) PostComment(ctx context.Context, id, message string) (err error) {
	ctx, done := e.begin(ctx, MutationComment, id)
	defer func() { err = done(err) }()

	message = strings.TrimSpace(message)
	if message == "" {
		return model.NewValidationError(model.FieldError{Field: "message", Code: "REQUIRED", Message: "comment must not be empty"})
	}
	if err := e.api.PostComment(ctx, id, message); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// Parts lists the spare parts consumed by a work order.
func (e *Engine) Parts(ctx context.Context, id string) ([]model.PartUsage, error) {
	return e.api.ListParts(ctx, id)
}

// AddPart records quantity units of a spare part against a work order.
func (e *Engine) AddPart(ctx context.Context, id, sparePartID string, quantity int) (err error) {
	ctx, done := e.begin(ctx, MutationAddPart, id)
	defer func() { err = done(err) }()

	var details []model.FieldError
	if strings.TrimSpace(sparePartID) == "" {
		details = append(details, model.FieldError{Field: "sparePartId", Code: "REQUIRED", Message: "spare part is required"})
	}
	if quantity <= 0 {
		details = append(details, model.FieldError{Field: "quantity", Code: "INVALID", Message: "quantity must be positive"})
	}
	if len(details) > 0 {
		return model.NewValidationError(details...)
	}

	if err := e.api.AddPart(ctx, id, sparePartID, quantity); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// RemovePart deletes a part usage record.
func (e *Engine) RemovePart(ctx context.Context, usageID string) (err error) {
	ctx, done := e.begin(ctx, MutationRemovePart, "")
	defer func() { err = done(err) }()

	if err := e.api.RemovePart(ctx, usageID); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// Attachments lists the files uploaded against a work order.
func (e *Engine) Attachments(ctx context.Context, id string) ([]model.Attachment, error) {
	return e.api.ListAttachments(ctx, id)
}

// UploadAttachment uploads content as fileName.
func (e *Engine) UploadAttachment(ctx context.Context, id, fileName string, content io.Reader) (err error) {
	ctx, done := e.begin(ctx, MutationUpload, id)
	defer func() { err = done(err) }()

	if strings.TrimSpace(fileName) == "" {
		return model.NewValidationError(model.FieldError{Field: "file", Code: "REQUIRED", Message: "file is required"})
	}
	if err := e.api.UploadAttachment(ctx, id, fileName, content); err != nil {
		return err
	}
	e.reloadAfter(ctx)
	return nil
}

// Technicians lists the users with role TECHNICIAN.
func (e *Engine) Technicians(ctx context.Context) ([]model.User, error) {
	return e.lookups.Technicians(ctx, e.session.SubjectID)
}

// Assets lists the assets matching q.
func (e *Engine) Assets(ctx context.Context, q string) ([]model.Asset, error) {
	return e.lookups.Assets(ctx, e.session.SubjectID, q)
}

// SpareParts lists the spare-part inventory.
func (e *Engine) SpareParts(ctx context.Context) ([]model.SparePart, error) {
	return e.lookups.SpareParts(ctx, e.session.SubjectID)
}

// errNoop marks a mutation that was short-circuited. It never escapes done.
var errNoop = errors.New("noop")

// begin starts a span for a work-order mutation. The returned function
// records the outcome and must be given the mutation's result.
func (e *Engine) begin(ctx context.Context, kind, id string) (context.Context, func(error) error) {
	return e.track(ctx, kind, observability.AttrWorkOrderID.String(id), observability.WorkOrder(id))
}

// track is begin for any target, named by attr on the span and by field in
// the failure log.
func (e *Engine) track(ctx context.Context, kind string, attr attribute.KeyValue, field zap.Field) (context.Context, func(error) error) {
	ctx, span := observability.StartSpan(ctx, "workorder."+kind, attr)
	return ctx, func(err error) error {
		if errors.Is(err, errNoop) {
			e.metrics.RecordMutation(kind, "noop")
			span.SetAttributes(observability.AttrOutcome.String("noop"))
			span.End()
			return nil
		}
		outcome := "ok"
		switch {
		case err == nil:
		case errors.Is(err, model.ErrKindValidation), errors.Is(err, model.ErrKindPrecondition):
			outcome = "rejected"
		default:
			outcome = "error"
			observability.RequestLogger(ctx, e.logger).Warn("work order mutation failed",
				zap.String("mutation", kind),
				field,
				zap.Error(err),
			)
		}
		e.metrics.RecordMutation(kind, outcome)
		span.SetAttributes(observability.AttrOutcome.String(outcome))
		observability.EndSpanWithError(span, err)
		return err
	}
}

// reloadAfter reloads following a mutation. A failed reload leaves the
// previous collection in place and does not fail the mutation.
func (e *Engine) reloadAfter(ctx context.Context) {
	_ = e.Reload(ctx)
}

func (e *Engine) validate(method, path string, body any) []model.FieldError {
	if e.validator == nil {
		return nil
	}
	return e.validator.ValidateBody(method, path, body)
}
