// Package cli implements the reconciler command line.
package cli

import (
	"fmt"
	"os"

	"github.com/cimillas/monei-reconciler/internal/config"
	"github.com/cimillas/monei-reconciler/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "reconciler",
		Short: "Reconcile MONEI payments with store orders",
		Long: `reconciler keeps store orders in line with MONEI payment states.

It serves the MONEI callback and redirect endpoints, applies database
migrations and can reconcile a single payment on demand.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(reconcileCmd())
	root.AddCommand(codesCmd())
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
