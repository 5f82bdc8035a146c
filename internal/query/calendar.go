package query

import (
	"time"

	"github.com/pitabwire/workdesk/model"
)

// Calendar places every record with a due date on that date. When from or
// to is non-zero, only events in [from, to) are returned.
func Calendar(records []model.WorkOrder, from, to time.Time) []model.CalendarEvent {
	events := []model.CalendarEvent{}
	for i := range records {
		w := &records[i]
		if w.DueDate == nil || w.DueDate.IsZero() {
			continue
		}
		due := w.DueDate.Time
		if !from.IsZero() && due.Before(from) {
			continue
		}
		if !to.IsZero() && !due.Before(to) {
			continue
		}
		events = append(events, model.CalendarEvent{
			ID:       w.ID,
			Title:    "[" + string(w.Priority) + "] " + w.Title,
			Date:     *w.DueDate,
			Status:   w.Status,
			Priority: w.Priority,
			Tone:     ToneFor(w),
		})
	}
	return events
}

// ToneFor picks the calendar color class. Unfinished HIGH priority work
// stands out regardless of status; ASSIGNED shares the OPEN tone.
func ToneFor(w *model.WorkOrder) model.Tone {
	if w.Priority == model.PriorityHigh && w.Status != model.StatusDone {
		return model.ToneHighPriority
	}
	switch w.Status {
	case model.StatusInProgress:
		return model.ToneInProgress
	case model.StatusDone:
		return model.ToneDone
	}
	return model.ToneOpen
}
