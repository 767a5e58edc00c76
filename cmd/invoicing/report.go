package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/report"

	"github.com/spf13/cobra"
)

type accountFlags struct {
	email    string
	password string
}

func (f *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", os.Getenv("INVOICING_EMAIL"), "account email (or INVOICING_EMAIL)")
	cmd.Flags().StringVar(&f.password, "password", os.Getenv("INVOICING_PASSWORD"), "account password (or INVOICING_PASSWORD)")
}

// signedIn builds the app and signs in, leaving the account's data loaded.
func signedIn(ctx context.Context, flags accountFlags) (*app, func(), error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		a.Close(ctx)
		logger.Sync()
	}

	a.session.Start(ctx)
	if a.store.State().User == nil {
		if flags.email == "" {
			cleanup()
			return nil, nil, fmt.Errorf("not signed in: pass --email and --password")
		}
		if _, err := a.session.SignIn(ctx, domain.Credentials{Email: flags.email, Password: flags.password}); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return a, cleanup, nil
}

func newReportCmd() *cobra.Command {
	var (
		flags  accountFlags
		months int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, cleanup, err := signedIn(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report.Build(a.store.State(), time.Now(), months))
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&months, "months", 6, "months of revenue history")
	return cmd
}
