package model

import "time"

// Summary holds the headline KPIs of the dashboard.
type Summary struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
	Overdue    int `json:"overdue"`
}

// Feed item types.
const (
	FeedWorkOrderCreated = "work_order_created"
	FeedComment          = "comment"
)

// FeedItem is one entry of the recent activity feed.
type FeedItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	Timestamp   Date   `json:"timestamp"`
	WorkOrderID string `json:"workOrderId,omitempty"`
}

// Snapshot is one consistent read of every dashboard source.
type Snapshot struct {
	Summary    Summary        `json:"summary"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
	Feed       []FeedItem     `json:"feed"`
	FetchedAt  time.Time      `json:"fetchedAt"`
	Seq        uint64         `json:"seq"`
}
