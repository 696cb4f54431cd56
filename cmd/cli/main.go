package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/adapters/repository/gormdb"
	"github.com/wadjakorntonsri/shortly/pkg/app"
	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "shortly-cli",
	Short:         "Maintenance commands for the shortly database",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.AddCommand(exportCmd(), importCmd(), useraddCmd(), auditCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openRepository loads configuration and connects to DATABASE_URL.
func openRepository() (*gormdb.Repository, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	repo, err := app.OpenRepository(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return repo, log, nil
}
