package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xdbsoft/potato"
)

var (
	configPath string
	output     string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "potato",
	Short: "Inspect the documents and views of a CouchDB database",
	Long: `potato opens the database described by its configuration file and runs
document lookups, deletions and view queries against it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "potato.yml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "yaml", "output format (yaml|json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the configuration")
}

func openDatabase(ctx context.Context) (*potato.Database, error) {
	var files []string
	if _, err := os.Stat(configPath); err == nil {
		files = append(files, configPath)
	}
	cfg, err := potato.LoadConfig(files...)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return potato.Open(ctx, cfg)
}
