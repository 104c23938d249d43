package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/payflow/internal/app"
	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/database"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/payflow/internal/ledger/store"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
)

func newStatementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement <provider> <file>",
		Short: "Compare a provider settlement export against the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := payment.ParseProvider(args[0])
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := database.New(cfg.ConnectionString())
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			svc := statement.NewService(ledger.NewService(ledgerStore.New(db)), app.StatementParsers(), nil)

			report, err := svc.Check(cmd.Context(), provider, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d lines, %d matched, %d findings\n",
				report.Provider, report.Lines, report.Matched, len(report.Findings))

			if report.Clean() {
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tTRANSACTION\tFINDING\tSTATEMENT\tLEDGER")

			for _, finding := range report.Findings {
				ledgerSide := "-"
				if p := finding.Payment; p != nil {
					ledgerSide = fmt.Sprintf("%s %s %s", p.Amount, p.Currency, p.Status)
				}

				fmt.Fprintf(tw, "%d\t%s\t%s\t%s %s %s\t%s\n",
					finding.Line.Row, finding.Line.TransactionID, finding.Kind,
					finding.Line.Amount, finding.Line.Currency, finding.Line.Status, ledgerSide)
			}

			return tw.Flush()
		},
	}

	return cmd
}
