package model

import (
	"fmt"
	"strings"
	"time"
)

// Filter values shared by the status, priority and assignee filters.
const (
	FilterAll     = "ALL"
	FilterOverdue = "OVERDUE"
)

// DateRange bounds createdAt by calendar day. Only the year, month and day
// of Start and End are used; a zero value leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Filters narrows a work-order list. Empty strings behave like FilterAll.
type Filters struct {
	Search    string
	Status    string
	Priority  string
	Assignee  string
	DateRange DateRange
}

// Validate rejects status and priority values the list cannot filter by.
func (f Filters) Validate() error {
	var details []FieldError
	if f.Status != "" && f.Status != FilterAll && f.Status != FilterOverdue && !Status(f.Status).Valid() {
		details = append(details, FieldError{Field: "status", Code: "INVALID", Message: fmt.Sprintf("unknown status filter %q", f.Status)})
	}
	if f.Priority != "" && f.Priority != FilterAll && !Priority(f.Priority).Valid() {
		details = append(details, FieldError{Field: "priority", Code: "INVALID", Message: fmt.Sprintf("unknown priority filter %q", f.Priority)})
	}
	if !f.DateRange.Start.IsZero() && !f.DateRange.End.IsZero() && f.DateRange.End.Before(f.DateRange.Start) {
		details = append(details, FieldError{Field: "dateRange", Code: "INVALID", Message: "end date is before start date"})
	}
	if len(details) > 0 {
		return NewValidationError(details...)
	}
	return nil
}

// SortKey names the column a list is ordered by.
type SortKey string

const (
	SortNone      SortKey = ""
	SortTitle     SortKey = "title"
	SortPriority  SortKey = "priority"
	SortStatus    SortKey = "status"
	SortAsset     SortKey = "asset"
	SortAssignee  SortKey = "assignee"
	SortCreatedAt SortKey = "createdAt"
	SortDueDate   SortKey = "dueDate"
)

// Valid reports whether k is a sortable column.
func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortTitle, SortPriority, SortStatus, SortAsset, SortAssignee, SortCreatedAt, SortDueDate:
		return true
	}
	return false
}

// Direction of a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders a list by one column.
type Sort struct {
	Key       SortKey
	Direction Direction
}

// ParseSort builds a Sort from query values. An empty direction means
// ascending.
func ParseSort(key, dir string) (Sort, error) {
	s := Sort{Key: SortKey(key), Direction: Direction(strings.ToLower(dir))}
	if !s.Key.Valid() {
		return Sort{}, NewValidationError(FieldError{Field: "sort", Code: "INVALID", Message: fmt.Sprintf("cannot sort by %q", key)})
	}
	switch s.Direction {
	case "":
		s.Direction = Asc
	case Asc, Desc:
	default:
		return Sort{}, NewValidationError(FieldError{Field: "dir", Code: "INVALID", Message: fmt.Sprintf("unknown sort direction %q", dir)})
	}
	return s, nil
}

// Board groups work orders into one bucket per status. Every status has a
// bucket, possibly empty.
type Board map[Status][]WorkOrder

// NewBoard returns a board with all four buckets present and empty.
func NewBoard() Board {
	b := make(Board, len(Statuses))
	for _, s := range Statuses {
		b[s] = []WorkOrder{}
	}
	return b
}

// Tone is the semantic color class of a calendar event.
type Tone string

const (
	ToneHighPriority Tone = "high_priority"
	ToneOpen         Tone = "open"
	ToneInProgress   Tone = "in_progress"
	ToneDone         Tone = "done"
)

// CalendarEvent is a work order placed on its due date.
type CalendarEvent struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Date     Date     `json:"date"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Tone     Tone     `json:"tone"`
}
