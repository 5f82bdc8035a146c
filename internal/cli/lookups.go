package cli

import (
	"github.com/spf13/cobra"
)

func newLookupCmds(app *App) []*cobra.Command {
	var q string

	assets := &cobra.Command{
		Use:   "assets",
		Short: "Search assets by name, code, branch or location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := r.engine.Assets(r.ctx, q)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"items": items})
		},
	}
	assets.Flags().StringVar(&q, "q", "", "Search text")
	assets.AddCommand(newAssetCmds(app)...)

	technicians := &cobra.Command{
		Use:   "technicians",
		Short: "List the technicians work can be assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := r.engine.Technicians(r.ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"items": items})
		},
	}

	spareParts := &cobra.Command{
		Use:   "spare-parts",
		Short: "List spare parts and their stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := r.engine.SpareParts(r.ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"items": items})
		},
	}

	return []*cobra.Command{assets, technicians, spareParts}
}
