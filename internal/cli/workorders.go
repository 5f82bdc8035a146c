package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitabwire/workdesk/model"
)

func newWorkOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "work-orders",
		Aliases: []string{"wo"},
		Short:   "Work order commands",
	}
	cmd.AddCommand(newWorkOrdersListCmd(app))
	cmd.AddCommand(newWorkOrdersShowCmd(app))
	cmd.AddCommand(newWorkOrdersBoardCmd(app))
	cmd.AddCommand(newWorkOrdersCalendarCmd(app))
	cmd.AddCommand(newWorkOrdersStatusCmd(app))
	cmd.AddCommand(newWorkOrdersAssignCmd(app))
	cmd.AddCommand(newWorkOrdersDeleteCmd(app))
	cmd.AddCommand(newWorkOrdersCommentCmd(app))
	cmd.AddCommand(newWorkOrdersCommentsCmd(app))
	return cmd
}

func newWorkOrdersListCmd(app *App) *cobra.Command {
	var f model.Filters
	var from, to, sortKey, dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders (filtered and sorted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = strings.ToUpper(f.Status)
			f.Priority = strings.ToUpper(f.Priority)
			var err error
			if f.DateRange.Start, err = parseDay(from); err != nil {
				return writeErr(cmd, err)
			}
			if f.DateRange.End, err = parseDay(to); err != nil {
				return writeErr(cmd, err)
			}
			if err := f.Validate(); err != nil {
				return writeErr(cmd, err)
			}
			s, err := model.ParseSort(sortKey, dir)
			if err != nil {
				return writeErr(cmd, err)
			}

			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			items := r.engine.View(f, s)
			return writeOut(cmd, app, map[string]any{"items": items, "total": len(items)})
		},
	}

	cmd.Flags().StringVar(&f.Search, "q", "", "Search title, description, asset and assignee")
	cmd.Flags().StringVar(&f.Status, "status", "", "Status filter (ALL|OVERDUE|OPEN|ASSIGNED|IN_PROGRESS|DONE)")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "Priority filter (ALL|LOW|MEDIUM|HIGH|EMERGENCY)")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "Assignee email")
	cmd.Flags().StringVar(&from, "from", "", "Created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Created on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortKey, "sort", "", "Sort key (title|priority|status|asset|assignee|dueDate|createdAt)")
	cmd.Flags().StringVar(&dir, "dir", "asc", "Sort direction (asc|desc)")
	return cmd
}

func newWorkOrdersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <work-order-id>",
		Short: "Show one work order with its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			wo, ok := r.engine.Get(args[0])
			if !ok {
				return writeErr(cmd, model.NewNotFoundError("work order not found: "+args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": wo, "actions": r.engine.Actions(&wo)})
		},
	}
}

func newWorkOrdersBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Group work orders by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			board := r.engine.Board()
			columns := make([]map[string]any, 0, len(model.Statuses))
			for _, s := range model.Statuses {
				columns = append(columns, map[string]any{
					"status": s,
					"label":  s.Label(),
					"count":  len(board[s]),
					"items":  board[s],
				})
			}
			return writeOut(cmd, app, map[string]any{"columns": columns})
		},
	}
}

func newWorkOrdersCalendarCmd(app *App) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "List due dates in [from, to); defaults to the current month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, _ := time.LoadLocation(app.Timezone)
			now := time.Now().In(loc)
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 1, 0)

			if from != "" {
				d, err := model.ParseDate(from)
				if err != nil {
					return writeErr(cmd, err)
				}
				start = d.Time
			}
			if to != "" {
				d, err := model.ParseDate(to)
				if err != nil {
					return writeErr(cmd, err)
				}
				end = d.Time
			}
			if !end.After(start) {
				return writeErr(cmd, model.NewValidationError(model.FieldError{Field: "to", Code: "INVALID", Message: "to must be after from"}))
			}

			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			events := r.engine.Calendar(start, end)
			if events == nil {
				events = []model.CalendarEvent{}
			}
			return writeOut(cmd, app, map[string]any{"from": start, "to": end, "events": events})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Day after the last (YYYY-MM-DD)")
	return cmd
}

func newWorkOrdersStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <work-order-id> <status>",
		Short: "Change the status of a work order and post the audit comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			status := model.Status(strings.ToUpper(args[1]))
			if err := r.engine.TransitionStatus(r.ctx, args[0], status); err != nil {
				return writeErr(cmd, err)
			}
			return writeRecord(cmd, app, r, args[0])
		},
	}
}

func newWorkOrdersAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <work-order-id> <technician-id>",
		Short: "Assign a technician",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.AssignTechnician(r.ctx, args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			return writeRecord(cmd, app, r, args[0])
		},
	}
}

func newWorkOrdersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <work-order-id>",
		Short: "Delete a work order that has no spare parts recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.DeleteWorkOrder(r.ctx, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"deleted": args[0]})
		},
	}
}

func newWorkOrdersCommentCmd(app *App) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "comment <work-order-id>",
		Short: "Post a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.PostComment(r.ctx, args[0], message); err != nil {
				return writeErr(cmd, err)
			}
			comments, err := r.engine.Comments(r.ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"items": comments})
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Comment text")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newWorkOrdersCommentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <work-order-id>",
		Short: "List the comments of a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			comments, err := r.engine.Comments(r.ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if comments == nil {
				comments = []model.Comment{}
			}
			return writeOut(cmd, app, map[string]any{"items": comments})
		},
	}
}

// writeRecord prints the reloaded record after a mutation.
func writeRecord(cmd *cobra.Command, app *App, r *remote, id string) error {
	wo, ok := r.engine.Get(id)
	if !ok {
		return writeOut(cmd, app, map[string]any{"data": nil})
	}
	return writeOut(cmd, app, map[string]any{"data": wo})
}

// parseDay parses an optional calendar day. An empty value is the zero time.
func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}
