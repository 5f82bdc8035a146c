package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pitabwire/workdesk/model"
)

// allow refuses a command the session's role is not offered.
func (r *remote) allow(capability string) error {
	if r.engine.Capabilities().Has(capability) {
		return nil
	}
	return model.NewForbiddenError("role " + string(r.session.Role) + " lacks " + capability)
}

func newAssetCmds(app *App) []*cobra.Command {
	show := &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an asset with its work orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loaded(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			asset, err := r.engine.Asset(r.ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"asset":      asset,
				"workOrders": nonNil(r.engine.AssetWorkOrders(asset.ID)),
			})
		},
	}

	var in model.AssetInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapAssetsManage); err != nil {
				return writeErr(cmd, err)
			}
			created, err := r.engine.CreateAsset(r.ctx, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, created)
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "Asset name")
	create.Flags().StringVar(&in.Code, "code", "", "Asset code")
	create.Flags().StringVar(&in.Branch, "branch", "", "Branch")
	create.Flags().StringVar(&in.Location, "location", "", "Location")
	create.Flags().IntVar(&in.ProcurementYear, "procurement-year", 0, "Year of procurement")

	var name, code, branch, location string
	var year int
	update := &cobra.Command{
		Use:   "update <asset-id>",
		Short: "Edit the given fields of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.AssetPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("code") {
				patch.Code = &code
			}
			if flags.Changed("branch") {
				patch.Branch = &branch
			}
			if flags.Changed("location") {
				patch.Location = &location
			}
			if flags.Changed("procurement-year") {
				patch.ProcurementYear = &year
			}
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapAssetsManage); err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.UpdateAsset(r.ctx, args[0], patch); err != nil {
				return writeErr(cmd, err)
			}
			asset, err := r.engine.Asset(r.ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, asset)
		},
	}
	update.Flags().StringVar(&name, "name", "", "Asset name")
	update.Flags().StringVar(&code, "code", "", "Asset code")
	update.Flags().StringVar(&branch, "branch", "", "Branch")
	update.Flags().StringVar(&location, "location", "", "Location")
	update.Flags().IntVar(&year, "procurement-year", 0, "Year of procurement")

	del := &cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapAssetsManage); err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.DeleteAsset(r.ctx, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"deleted": args[0]})
		},
	}

	return []*cobra.Command{show, create, update, del}
}

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage dashboard accounts (admin only)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapUsersManage); err != nil {
				return writeErr(cmd, err)
			}
			users, err := r.engine.Users(r.ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"items": nonNil(users)})
		},
	}

	var in model.UserInput
	var role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an account; the role defaults to TECHNICIAN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapUsersManage); err != nil {
				return writeErr(cmd, err)
			}
			in.Role = model.Role(strings.ToUpper(role))
			created, err := r.engine.CreateUser(r.ctx, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, created)
		},
	}
	create.Flags().StringVar(&in.Email, "email", "", "Login email")
	create.Flags().StringVar(&in.Password, "password", "", "Initial password")
	create.Flags().StringVar(&in.Name, "name", "", "Display name")
	create.Flags().StringVar(&role, "role", "", "ADMIN, SUPERVISOR, TECHNICIAN or USER")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	setRole := &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapUsersManage); err != nil {
				return writeErr(cmd, err)
			}
			role := model.Role(strings.ToUpper(args[1]))
			if err := r.engine.SetUserRole(r.ctx, args[0], role); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": args[0], "role": role})
		},
	}

	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := r.allow(model.CapUsersManage); err != nil {
				return writeErr(cmd, err)
			}
			if err := r.engine.DeleteUser(r.ctx, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"deleted": args[0]})
		},
	}

	cmd.AddCommand(list, create, setRole, del)
	return cmd
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
