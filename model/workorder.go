package model

import "strings"

// Priority of a work order.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityMedium    Priority = "MEDIUM"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// Status of a work order.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every work-order status in board column order.
var Statuses = []Status{StatusOpen, StatusAssigned, StatusInProgress, StatusDone}

// Valid reports whether s is one of the four work-order statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label is the human form of the status, e.g. "IN PROGRESS".
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Role of a dashboard user.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleTechnician Role = "TECHNICIAN"
	RoleUser       Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleTechnician, RoleUser:
		return true
	}
	return false
}

// Asset is a piece of tracked equipment.
type Asset struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Code            string `json:"code,omitempty"`
	Branch          string `json:"branch,omitempty"`
	Location        string `json:"location,omitempty"`
	ProcurementYear int    `json:"procurementYear,omitempty"`
}

// User is a dashboard account. Technicians are users with RoleTechnician.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// SparePart is an inventory item that can be consumed by a work order.
type SparePart struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// PartUsage records spare parts consumed by a work order.
type PartUsage struct {
	ID          string     `json:"id"`
	SparePartID string     `json:"sparePartId,omitempty"`
	Quantity    int        `json:"quantity"`
	SparePart   *SparePart `json:"sparePart,omitempty"`
}

// Comment is a message on a work order's activity log.
type Comment struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt Date   `json:"createdAt"`
	User      *User  `json:"user,omitempty"`
}

// Attachment is a file uploaded against a work order.
type Attachment struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	URL       string `json:"url"`
	MimeType  string `json:"mimeType,omitempty"`
	CreatedAt Date   `json:"createdAt"`
}

// WorkOrder is a maintenance task as returned by the API. IsOverdue and
// ProgressDays are derived server-side.
type WorkOrder struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Priority     Priority    `json:"priority"`
	Status       Status      `json:"status"`
	AssetID      string      `json:"assetId,omitempty"`
	Asset        *Asset      `json:"asset,omitempty"`
	AssignedTo   string      `json:"assignedTo,omitempty"`
	Assignee     *User       `json:"assignee,omitempty"`
	DueDate      *Date       `json:"dueDate,omitempty"`
	CreatedAt    Date        `json:"createdAt"`
	IsOverdue    bool        `json:"isOverdue"`
	ProgressDays *int        `json:"progressDays,omitempty"`
	Parts        []PartUsage `json:"parts,omitempty"`
}

// AssetName returns the linked asset's name or "".
func (w *WorkOrder) AssetName() string {
	if w.Asset == nil {
		return ""
	}
	return w.Asset.Name
}

// AssigneeEmail returns the assignee's email or "".
func (w *WorkOrder) AssigneeEmail() string {
	if w.Assignee == nil {
		return ""
	}
	return w.Assignee.Email
}

// HasParts reports whether any spare parts were consumed.
func (w *WorkOrder) HasParts() bool {
	return len(w.Parts) > 0
}

// WorkOrderInput is the payload for creating a work order.
type WorkOrderInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	AssetID     string   `json:"assetId,omitempty"`
	AssignedTo  string   `json:"assignedTo,omitempty"`
	DueDate     *Date    `json:"dueDate,omitempty"`
}

// WorkOrderPatch is a partial update. Nil fields are left untouched.
type WorkOrderPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	AssetID     *string   `json:"assetId,omitempty"`
	DueDate     *Date     `json:"dueDate,omitempty"`
}
