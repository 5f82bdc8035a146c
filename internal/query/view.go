// Package query derives list, board and calendar views from a work-order
// collection. Every function is pure: inputs are never modified and the
// same inputs always produce the same output.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/pitabwire/workdesk/model"
)

// ApplyView filters records by every active filter in f and orders the
// survivors by s. Calendar days in the date range are interpreted in loc;
// a nil loc means UTC. The returned slice is newly allocated.
func ApplyView(records []model.WorkOrder, f model.Filters, s model.Sort, loc *time.Location) []model.WorkOrder {
	if loc == nil {
		loc = time.UTC
	}
	match := predicate(f, loc)

	out := make([]model.WorkOrder, 0, len(records))
	for i := range records {
		if match(&records[i]) {
			out = append(out, records[i])
		}
	}
	Sort(out, s)
	return out
}

// predicate combines the active filters into one AND-ed test.
func predicate(f model.Filters, loc *time.Location) func(*model.WorkOrder) bool {
	var tests []func(*model.WorkOrder) bool

	if q := strings.ToLower(f.Search); q != "" {
		tests = append(tests, func(w *model.WorkOrder) bool {
			return strings.Contains(strings.ToLower(w.Title), q) ||
				strings.Contains(strings.ToLower(w.AssetName()), q)
		})
	}

	switch f.Status {
	case "", model.FilterAll:
	case model.FilterOverdue:
		tests = append(tests, func(w *model.WorkOrder) bool { return w.IsOverdue })
	default:
		status := model.Status(f.Status)
		tests = append(tests, func(w *model.WorkOrder) bool { return w.Status == status })
	}

	if f.Priority != "" && f.Priority != model.FilterAll {
		priority := model.Priority(f.Priority)
		tests = append(tests, func(w *model.WorkOrder) bool { return w.Priority == priority })
	}

	if f.Assignee != "" && f.Assignee != model.FilterAll {
		email := f.Assignee
		tests = append(tests, func(w *model.WorkOrder) bool { return w.AssigneeEmail() == email })
	}

	// A day-only createdAt is compared by calendar day; it has no zone.
	if start := f.DateRange.Start; !start.IsZero() {
		from, fromDay := model.StartOfDay(start, loc), calendarDay(start)
		tests = append(tests, func(w *model.WorkOrder) bool {
			if w.CreatedAt.DayOnly {
				return calendarDay(w.CreatedAt.Time) >= fromDay
			}
			return !w.CreatedAt.Before(from)
		})
	}
	if end := f.DateRange.End; !end.IsZero() {
		until, untilDay := model.EndOfDay(end, loc), calendarDay(end)
		tests = append(tests, func(w *model.WorkOrder) bool {
			if w.CreatedAt.DayOnly {
				return calendarDay(w.CreatedAt.Time) <= untilDay
			}
			return !w.CreatedAt.After(until)
		})
	}

	return func(w *model.WorkOrder) bool {
		for _, t := range tests {
			if !t(w) {
				return false
			}
		}
		return true
	}
}

// calendarDay is t's y/m/d as a sortable number.
func calendarDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Sort orders records in place. Ascending order compares the key, then the
// record id, then the original position. Descending order is the exact
// reverse of ascending. An empty key leaves the order untouched.
func Sort(records []model.WorkOrder, s model.Sort) {
	if s.Key == model.SortNone || len(records) < 2 {
		return
	}
	cmp := comparator(s.Key)
	slices.SortStableFunc(records, func(a, b model.WorkOrder) int {
		if c := cmp(&a, &b); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if s.Direction == model.Desc {
		slices.Reverse(records)
	}
}

func comparator(key model.SortKey) func(a, b *model.WorkOrder) int {
	switch key {
	case model.SortCreatedAt:
		return func(a, b *model.WorkOrder) int { return compareTime(a.CreatedAt.Time, b.CreatedAt.Time) }
	case model.SortDueDate:
		return func(a, b *model.WorkOrder) int { return compareTime(dueTime(a), dueTime(b)) }
	default:
		return func(a, b *model.WorkOrder) int { return strings.Compare(sortText(a, key), sortText(b, key)) }
	}
}

// sortText is the string a record sorts by for non-date keys. Missing
// links sort as "".
func sortText(w *model.WorkOrder, key model.SortKey) string {
	switch key {
	case model.SortTitle:
		return w.Title
	case model.SortPriority:
		return string(w.Priority)
	case model.SortStatus:
		return string(w.Status)
	case model.SortAsset:
		return w.AssetName()
	case model.SortAssignee:
		return w.AssigneeEmail()
	}
	return ""
}

func dueTime(w *model.WorkOrder) time.Time {
	if w.DueDate == nil {
		return time.Time{}
	}
	return w.DueDate.Time
}

// compareTime orders zero times before every real time.
func compareTime(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return -1
	case b.IsZero():
		return 1
	}
	return a.Compare(b)
}
