package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/spf13/cobra"
)

func newAlertsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "alerts [id]",
		Short: "List recorded boundary violations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id domain.TokenID
			if len(args) == 1 {
				id = domain.TokenID(args[0])
			}

			alerts, err := app.ledger.List(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("list alerts: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}

			if len(alerts) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no alerts")
				return err
			}
			for _, alert := range alerts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					alert.At.Local().Format(time.DateTime),
					alert.TokenID,
					strings.Join(alert.Violated, ","),
				)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
