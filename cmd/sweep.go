package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	"github.com/spf13/cobra"
)

func newSweepCmd(app *app) *cobra.Command {
	var (
		live   map[string]string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Check every live session once",
		Long:  "sweep enforces the duration cap on every live session. With --live, each active session is also checked against that observed state.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var probe ports.LiveStateProbe
			if cmd.Flags().Changed("live") {
				observed, err := parseBoolMap(live)
				if err != nil {
					return fmt.Errorf("parse --live: %w", err)
				}
				probe = staticProbe(observed)
			}

			var (
				results  []domain.ComplianceResult
				sweepErr error
			)
			if asJSON {
				results, sweepErr = app.watchdog.Sweep(cmd.Context(), probe)
			} else {
				live := len(app.manager.Live(cmd.Context()))
				results, sweepErr = runSweepProgress(cmd.Context(), cmd.ErrOrStderr(), live, func(ctx context.Context) ([]domain.ComplianceResult, error) {
					return app.watchdog.Sweep(ctx, probe)
				})
			}
			sort.Slice(results, func(i, j int) bool { return results[i].TokenID < results[j].TokenID })

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
				return sweepErr
			}

			for _, result := range results {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), describeCompliance(result)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), summarizeSweep(results)); err != nil {
				return err
			}

			return sweepErr
		},
	}

	cmd.Flags().StringToStringVar(&live, "live", nil, "Observed state as key=bool applied to every session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
