package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/pitabwire/workdesk/model"
)

func byID(id string) map[string]string { return map[string]string{"id": id} }

// ListWorkOrders fetches every work order visible to the session.
func (c *Client) ListWorkOrders(ctx context.Context) ([]model.WorkOrder, error) {
	var out []model.WorkOrder
	if err := c.do(ctx, request{op: OpListWorkOrders}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWorkOrder creates a work order.
func (c *Client) CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (*model.WorkOrder, error) {
	var out model.WorkOrder
	if err := c.do(ctx, request{op: OpCreateWorkOrder, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWorkOrder applies a partial edit.
func (c *Client) UpdateWorkOrder(ctx context.Context, id string, patch model.WorkOrderPatch) error {
	return c.do(ctx, request{op: OpUpdateWorkOrder, params: byID(id), body: patch}, nil)
}

// SetStatus changes the status of a work order.
func (c *Client) SetStatus(ctx context.Context, id string, status model.Status) error {
	body := map[string]model.Status{"status": status}
	return c.do(ctx, request{op: OpSetStatus, params: byID(id), body: body}, nil)
}

// Assign assigns a technician to a work order.
func (c *Client) Assign(ctx context.Context, id, technicianID string) error {
	body := map[string]string{"technicianId": technicianID}
	return c.do(ctx, request{op: OpAssign, params: byID(id), body: body}, nil)
}

// DeleteWorkOrder deletes a work order.
func (c *Client) DeleteWorkOrder(ctx context.Context, id string) error {
	return c.do(ctx, request{op: OpDeleteWorkOrder, params: byID(id)}, nil)
}

// ListComments returns the comment stream of a work order.
func (c *Client) ListComments(ctx context.Context, id string) ([]model.Comment, error) {
	var out []model.Comment
	if err := c.do(ctx, request{op: OpListComments, params: byID(id)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostComment appends a comment.
func (c *Client) PostComment(ctx context.Context, id, message string) error {
	body := map[string]string{"message": message}
	return c.do(ctx, request{op: OpPostComment, params: byID(id), body: body}, nil)
}

// ListParts returns the spare parts consumed by a work order.
func (c *Client) ListParts(ctx context.Context, id string) ([]model.PartUsage, error) {
	var out []model.PartUsage
	if err := c.do(ctx, request{op: OpListParts, params: byID(id)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddPart records consumption of a spare part.
func (c *Client) AddPart(ctx context.Context, id, sparePartID string, quantity int) error {
	body := struct {
		SparePartID string `json:"sparePartId"`
		Quantity    int    `json:"quantity"`
	}{sparePartID, quantity}
	return c.do(ctx, request{op: OpAddPart, params: byID(id), body: body}, nil)
}

// RemovePart deletes a part usage record.
func (c *Client) RemovePart(ctx context.Context, usageID string) error {
	return c.do(ctx, request{op: OpRemovePart, params: map[string]string{"usageId": usageID}}, nil)
}

// ListAttachments returns the files uploaded against a work order.
func (c *Client) ListAttachments(ctx context.Context, id string) ([]model.Attachment, error) {
	var out []model.Attachment
	if err := c.do(ctx, request{op: OpListAttachments, params: byID(id)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadAttachment sends a file as multipart/form-data under the "file" field.
func (c *Client) UploadAttachment(ctx context.Context, id, fileName string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("apiclient: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("apiclient: copy attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("apiclient: close multipart body: %w", err)
	}
	return c.do(ctx, request{
		op:          OpUploadAttachment,
		params:      byID(id),
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, nil)
}

// ListUsers returns every user account.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, request{op: OpListUsers}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAssets returns every asset.
func (c *Client) ListAssets(ctx context.Context) ([]model.Asset, error) {
	var out []model.Asset
	if err := c.do(ctx, request{op: OpListAssets}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSpareParts returns the spare-part inventory.
func (c *Client) ListSpareParts(ctx context.Context) ([]model.SparePart, error) {
	var out []model.SparePart
	if err := c.do(ctx, request{op: OpListSpareParts}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
