package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corpusq/internal/config"
	logpkg "github.com/kailas-cloud/corpusq/internal/logger"
)

var (
	envName    string
	configPath string

	rootCmd = &cobra.Command{
		Use:           "corpusq",
		Short:         "Query-state synchronization for corpus search views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(),
		"environment name; selects config/<env>.yaml and the log format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"explicit config file path (overrides --env lookup)")

	rootCmd.AddCommand(serveCmd, paramsCmd, indexCmd, versionCmd)
}

// loadConfig reads the configuration selected by the persistent flags.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath) //nolint:wrapcheck // already descriptive
	}
	return config.Load(envName) //nolint:wrapcheck // already descriptive
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logpkg.NewLogger(envName, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
