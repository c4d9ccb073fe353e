package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/Suhaibinator/SModule/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func lifecycleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <identifier>",
		Short: short,
		Long: fmt.Sprintf(`Asks the engine to %s a module. Authentication via API token is required.

Example:
  modctl %s catalog --api-token <token>`, action, action),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromConfig(GetLogger())
			if err != nil {
				return err
			}
			return runLifecycle(cmd.Context(), client, action, args[0], cmd.OutOrStdout())
		},
	}
}

func runLifecycle(ctx context.Context, client *engineClient, action, identifier string, out io.Writer) error {
	if client.token == "" {
		client.log.Warn("No API token configured; the engine will reject the request if it requires one")
	}
	var resp api.LifecycleResponse
	if err := client.do(ctx, "POST", modulePath(identifier, action), &resp); err != nil {
		return err
	}
	fields := []zap.Field{zap.String("module", identifier)}
	if resp.Module != nil {
		fields = append(fields, zap.String("version", resp.Module.Version), zap.Bool("installed", resp.Module.Installed))
	}
	client.log.Debug("Lifecycle operation finished", fields...)
	fmt.Fprintln(out, resp.Message)
	return nil
}

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rescan the engine's module sources",
	Long: `Makes the engine rebuild its module registry so modules added or removed since
the last scan show up. Authentication via API token is required.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClientFromConfig(GetLogger())
		if err != nil {
			return err
		}
		return refreshRegistry(cmd.Context(), client, cmd.OutOrStdout())
	},
}

func refreshRegistry(ctx context.Context, client *engineClient, out io.Writer) error {
	var resp api.RegistryResponse
	if err := client.do(ctx, "POST", "/api/v1/registry/refresh", &resp); err != nil {
		return err
	}
	fmt.Fprintf(out, "Registry refreshed: %d modules discovered\n", resp.Count)
	return nil
}

func init() {
	rootCmd.AddCommand(
		lifecycleCmd("install", "Install a module"),
		lifecycleCmd("uninstall", "Uninstall a module (its data and config are kept)"),
		lifecycleCmd("upgrade", "Upgrade an installed module to the discovered version"),
		refreshCmd,
	)
}
