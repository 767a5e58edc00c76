package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		flags accountFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export invoices and expenses as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, cleanup, err := signedIn(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				if out == "" {
					out = fmt.Sprintf("financial-report-%s.csv", domain.Today(time.Now()))
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := report.WriteCSV(w, a.store.State()); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file ("-" for stdout; default financial-report-<date>.csv)`)
	return cmd
}
