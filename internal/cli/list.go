package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Suhaibinator/SModule/internal/api"
	"github.com/Suhaibinator/SModule/internal/lifecycle"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [identifier]",
	Short: "List modules or show one module",
	Long: `Lists every module the engine has discovered with its installation state,
or shows the details of a single module.

Examples:
  modctl list           # List all modules
  modctl list catalog   # Show the catalog module`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClientFromConfig(GetLogger())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return listModules(cmd.Context(), client, cmd.OutOrStdout())
		}
		return showModule(cmd.Context(), client, args[0], cmd.OutOrStdout())
	},
}

func listModules(ctx context.Context, client *engineClient, out io.Writer) error {
	var resp api.ListModulesResponse
	if err := client.do(ctx, "GET", "/api/v1/modules", &resp); err != nil {
		return err
	}
	if len(resp.Modules) == 0 {
		fmt.Fprintln(out, "No modules discovered by the engine.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tNAME\tVERSION\tSTATUS")
	for _, s := range resp.Modules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Descriptor.Identifier, s.Descriptor.DisplayName, versionColumn(s), statusColumn(s))
	}
	return tw.Flush()
}

func showModule(ctx context.Context, client *engineClient, identifier string, out io.Writer) error {
	var s lifecycle.Status
	if err := client.do(ctx, "GET", modulePath(identifier), &s); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Identifier:\t%s\n", s.Descriptor.Identifier)
	fmt.Fprintf(tw, "Name:\t%s\n", s.Descriptor.DisplayName)
	fmt.Fprintf(tw, "Description:\t%s\n", s.Descriptor.Description)
	fmt.Fprintf(tw, "URL prefix:\t/module/%s/\n", s.Descriptor.URLPrefix)
	fmt.Fprintf(tw, "Version:\t%s\n", versionColumn(s))
	fmt.Fprintf(tw, "Status:\t%s\n", statusColumn(s))
	if s.Record != nil && s.Record.InstallationDate != nil {
		fmt.Fprintf(tw, "Installed at:\t%s\n", s.Record.InstallationDate.Format("2006-01-02 15:04:05 MST"))
	}
	if len(s.PendingMigrations) > 0 {
		fmt.Fprintf(tw, "Pending migrations:\t%s\n", strings.Join(s.PendingMigrations, ", "))
	}
	return tw.Flush()
}

// versionColumn shows the applied version, and the available one when they differ.
func versionColumn(s lifecycle.Status) string {
	if s.Record == nil || s.Record.Version == s.Descriptor.Version {
		return s.Descriptor.Version
	}
	return fmt.Sprintf("%s (available: %s)", s.Record.Version, s.Descriptor.Version)
}

func statusColumn(s lifecycle.Status) string {
	switch {
	case s.UpgradeAvailable:
		return "installed, upgrade available"
	case s.Installed:
		return "installed"
	case s.Record != nil:
		return "uninstalled"
	default:
		return "available"
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
