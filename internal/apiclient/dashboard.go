package apiclient

import (
	"context"

	"github.com/pitabwire/workdesk/model"
)

// DashboardSummary returns the headline KPIs.
func (c *Client) DashboardSummary(ctx context.Context) (model.Summary, error) {
	var out model.Summary
	err := c.do(ctx, request{op: OpDashboardSummary}, &out)
	return out, err
}

// DashboardByStatus returns work-order counts keyed by status.
func (c *Client) DashboardByStatus(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	if err := c.do(ctx, request{op: OpDashboardStatus}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DashboardByPriority returns work-order counts keyed by priority.
func (c *Client) DashboardByPriority(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	if err := c.do(ctx, request{op: OpDashboardPriority}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DashboardFeed returns the recent activity feed.
func (c *Client) DashboardFeed(ctx context.Context) ([]model.FeedItem, error) {
	var out []model.FeedItem
	if err := c.do(ctx, request{op: OpDashboardFeed}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
