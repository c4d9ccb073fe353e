package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Suhaibinator/SModule/internal/logging"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile   string // Path to config file (passed via flag)
	engineURL string
	apiToken  string
	logLevel  string
	logger    *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modctl",
	Short: "CLI client for the module engine",
	Long: `modctl talks to a running module engine. It lists the modules the engine
has discovered and installs, upgrades or uninstalls them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig) // Called after flags are parsed

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/modengine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&engineURL, "engine-url", "", "Module engine URL (overrides config/env)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "API token for authentication (overrides config/env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set logging level (debug, info, warn, error)")

	viper.BindPFlag("engine_url", rootCmd.PersistentFlags().Lookup("engine-url"))
	viper.BindPFlag("api_token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.SetDefault("engine_url", "http://localhost:8080")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "modengine"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// MODENGINE_ENGINE_URL, MODENGINE_API_TOKEN
	viper.SetEnvPrefix("MODENGINE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func initLogger(level string) {
	var err error
	logger, err = logging.New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

// GetLogger returns the initialized logger instance.
func GetLogger() *zap.Logger {
	if logger == nil {
		initLogger("info")
	}
	return logger
}
