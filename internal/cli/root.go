// Package cli implements the workdesk command line: the dashboard server
// and a scriptable client for the maintenance API.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// App holds the global flags shared by every command.
type App struct {
	ConfigPath string
	APIURL     string
	Token      string
	Timezone   string
	Pretty     bool

	Version string
	Commit  string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version, commit string) *cobra.Command {
	app := &App{Version: version, Commit: commit}

	cmd := &cobra.Command{
		Use:           "workdesk",
		Short:         "Work-order dashboard server and CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Run the dashboard server
  workdesk serve --config config.yaml

  # Open work orders, highest priority first
  workdesk work-orders list --status OPEN --sort priority --dir desc

  # Follow the KPIs
  workdesk dashboard watch
`),
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("WORKDESK_CONFIG", "config.yaml"), "Path to the configuration file (serve)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", envOr("WORKDESK_API_URL", ""), "Maintenance API base URL")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("WORKDESK_TOKEN", ""), "Bearer token forwarded to the maintenance API")
	cmd.PersistentFlags().StringVar(&app.Timezone, "tz", envOr("WORKDESK_TZ", "UTC"), "Time zone for calendar days")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWorkOrdersCmd(app))
	cmd.AddCommand(newDashboardCmd(app))
	cmd.AddCommand(newLookupCmds(app)...)
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newVersionCmd(app))

	return cmd
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, map[string]string{"version": app.Version, "commit": app.Commit})
		},
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
