package apiclient

import (
	"context"

	"github.com/pitabwire/workdesk/model"
)

// GetAsset fetches one asset.
func (c *Client) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var out model.Asset
	if err := c.do(ctx, request{op: OpGetAsset, params: byID(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAsset registers an asset.
func (c *Client) CreateAsset(ctx context.Context, in model.AssetInput) (*model.Asset, error) {
	var out model.Asset
	if err := c.do(ctx, request{op: OpCreateAsset, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAsset applies a partial edit to an asset.
func (c *Client) UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) error {
	return c.do(ctx, request{op: OpUpdateAsset, params: byID(id), body: patch}, nil)
}

// DeleteAsset deletes an asset.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	return c.do(ctx, request{op: OpDeleteAsset, params: byID(id)}, nil)
}

// CreateUser registers a dashboard account.
func (c *Client) CreateUser(ctx context.Context, in model.UserInput) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, request{op: OpCreateUser, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserRole changes the role of an account.
func (c *Client) SetUserRole(ctx context.Context, id string, role model.Role) error {
	body := map[string]model.Role{"role": role}
	return c.do(ctx, request{op: OpSetUserRole, params: byID(id), body: body}, nil)
}

// DeleteUser deletes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, request{op: OpDeleteUser, params: byID(id)}, nil)
}
