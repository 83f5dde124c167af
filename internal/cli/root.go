package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/LeJamon/shalltest/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shalltest",
	Short: "shalltest - assertion-driven testing against a transaction emulator",
	Long: `shalltest runs YAML scenarios of transactions, scripts and storage checks
against an in-process emulator or a remote one, and serves the emulator over
JSON-RPC so other tools can drive it.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (toml, yaml or json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads the configuration selected by the global flags and builds
// the process logger from it.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
