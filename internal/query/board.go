package query

import "github.com/pitabwire/workdesk/model"

// GroupByStatus partitions records into the four board columns, keeping
// input order within each. Records with any other status are dropped.
func GroupByStatus(records []model.WorkOrder) model.Board {
	board := model.NewBoard()
	for _, w := range records {
		if bucket, ok := board[w.Status]; ok {
			board[w.Status] = append(bucket, w)
		}
	}
	return board
}

// AssigneeOptions returns the distinct assignee emails in first-seen order.
func AssigneeOptions(records []model.WorkOrder) []string {
	seen := make(map[string]bool)
	out := []string{}
	for i := range records {
		email := records[i].AssigneeEmail()
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}
