// Package cli wires the commands: run, accounts, sites, version.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seatrush/internal/config"
	"seatrush/internal/logging"

	"go.uber.org/zap"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seatrush",
		Short:         "Drives a fleet of logged-in browser sessions to book seats the moment a sale opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newAccountsCmd())
	root.AddCommand(newSitesCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger every command
// shares.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
