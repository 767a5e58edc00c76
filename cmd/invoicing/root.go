package main

import (
	"github.com/boddenberg/invoicing-bfa-go/internal/config"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "invoicing",
		Short:         "Invoicing backend-for-frontend",
		Long:          "Serves the invoicing state store over HTTP and runs reports, exports and migrations against the configured backend.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newReportCmd(),
		newExportCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel, version)
	return cfg, logger, nil
}
