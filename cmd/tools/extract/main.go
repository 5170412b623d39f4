// Package main is the command-line companion to the API server: it runs
// extractions against local reports and inspects stored data per group.
package main

import (
	"fmt"
	"os"

	"balance_sheet_analyzer/pkg/core/config"
	"balance_sheet_analyzer/pkg/core/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bsa",
	Short: "Balance sheet analyzer tools",
	Long: `bsa extracts canonical balance sheet metrics from annual reports and
manages the per-group stores the API server reads.

Subcommands: extract, snapshot, migrate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		path, _ := cmd.Root().PersistentFlags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if _, err := logging.Init(c.Logging.Level, c.Logging.Format); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "config/app.yaml", "application config file")
}

func main() {
	err := rootCmd.Execute()
	zap.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
