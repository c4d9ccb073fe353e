package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configureEngineURL string
	configureApiToken  string
)

// configureCmd represents the configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure engine URL and API token",
	Long: `Saves the module engine URL and API token to the configuration file.
Configuration is stored in ~/.config/modengine/config.yaml by default.

Precedence order for configuration values:
1. Command-line flags (--engine-url, --api-token)
2. Environment variables (MODENGINE_ENGINE_URL, MODENGINE_API_TOKEN)
3. Configuration file (~/.config/modengine/config.yaml)
4. Default values

This command updates the configuration file directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := GetLogger()

		urlFlagSet := cmd.Flags().Changed("engine-url")
		tokenFlagSet := cmd.Flags().Changed("api-token")
		if !urlFlagSet && !tokenFlagSet {
			return fmt.Errorf("at least one flag (--engine-url or --api-token) must be provided")
		}

		configFilePath, err := configPath()
		if err != nil {
			return err
		}
		configDir := filepath.Dir(configFilePath)
		if err := os.MkdirAll(configDir, 0750); err != nil {
			return fmt.Errorf("create config directory %s: %w", configDir, err)
		}

		if urlFlagSet {
			viper.Set("engine_url", configureEngineURL)
			log.Info("Setting engine_url in config", zap.String("value", configureEngineURL))
		}
		if tokenFlagSet {
			viper.Set("api_token", configureApiToken)
			log.Info("Setting api_token in config") // Don't log the token itself
		}

		log.Info("Writing configuration", zap.String("path", configFilePath))
		if err := viper.WriteConfigAs(configFilePath); err != nil {
			return fmt.Errorf("write config file %s: %w", configFilePath, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration successfully saved to %s\n", configFilePath)
		return nil
	},
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "modengine", "config.yaml"), nil
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&configureEngineURL, "engine-url", "", "Engine URL to save")
	configureCmd.Flags().StringVar(&configureApiToken, "api-token", "", "API token to save")
}
