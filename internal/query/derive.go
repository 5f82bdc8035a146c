package query

import (
	"strings"
	"time"

	"github.com/pitabwire/workdesk/model"
)

// Overdue reports whether w is past due at now and not DONE. A day-only due
// date lasts until the end of that day in loc.
func Overdue(w *model.WorkOrder, now time.Time, loc *time.Location) bool {
	if w.DueDate == nil || w.DueDate.IsZero() || w.Status == model.StatusDone {
		return false
	}
	due := w.DueDate.Time
	if w.DueDate.DayOnly {
		if loc == nil {
			loc = time.UTC
		}
		due = model.EndOfDay(due, loc)
	}
	return due.Before(now)
}

// DeriveOverdue returns a copy of records where IsOverdue is also set for
// records the API did not flag but that are past due at now.
func DeriveOverdue(records []model.WorkOrder, now time.Time, loc *time.Location) []model.WorkOrder {
	out := make([]model.WorkOrder, len(records))
	copy(out, records)
	for i := range out {
		if !out[i].IsOverdue && Overdue(&out[i], now, loc) {
			out[i].IsOverdue = true
		}
	}
	return out
}

// Summarize computes the headline KPIs from a record set.
func Summarize(records []model.WorkOrder) model.Summary {
	s := model.Summary{Total: len(records)}
	for i := range records {
		switch records[i].Status {
		case model.StatusOpen:
			s.Open++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusDone:
			s.Done++
		}
		if records[i].IsOverdue {
			s.Overdue++
		}
	}
	return s
}

// CountByStatus counts records per status value.
func CountByStatus(records []model.WorkOrder) map[string]int {
	out := make(map[string]int)
	for i := range records {
		out[string(records[i].Status)]++
	}
	return out
}

// CountByPriority counts records per priority value.
func CountByPriority(records []model.WorkOrder) map[string]int {
	out := make(map[string]int)
	for i := range records {
		out[string(records[i].Priority)]++
	}
	return out
}

// SearchAssets keeps the assets whose name, code, branch or location
// contains q, ignoring case. An empty q keeps everything.
func SearchAssets(assets []model.Asset, q string) []model.Asset {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		haystack := strings.ToLower(strings.Join([]string{a.Name, a.Code, a.Branch, a.Location}, " "))
		if q == "" || strings.Contains(haystack, q) {
			out = append(out, a)
		}
	}
	return out
}
