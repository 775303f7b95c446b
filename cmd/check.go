package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	"github.com/spf13/cobra"
)

// staticProbe reports the same observed state for every session.
type staticProbe map[string]bool

var _ ports.LiveStateProbe = staticProbe(nil)

func (p staticProbe) Observe(_ context.Context, _ domain.TokenID) (map[string]bool, error) {
	out := make(map[string]bool, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

func newCheckCmd(app *app) *cobra.Command {
	var (
		live   map[string]string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Check a session against observed live state",
		Long:  "check enforces the duration cap, then compares --live against the session's boundaries. A violation pauses the session and records an alert.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observed, err := parseBoolMap(live)
			if err != nil {
				return fmt.Errorf("parse --live: %w", err)
			}

			result, checkErr := app.watchdog.CheckCompliance(cmd.Context(), domain.TokenID(args[0]), observed)
			if checkErr != nil && !errors.Is(checkErr, domain.ErrStore) {
				return checkErr
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return checkErr
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), describeCompliance(result)); err != nil {
				return err
			}
			return checkErr
		},
	}

	cmd.Flags().StringToStringVar(&live, "live", nil, "Observed state as key=bool (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newExpandCmd(app *app) *cobra.Command {
	var (
		boundaries map[string]string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "expand <id>",
		Short: "Propose new boundaries for a child session",
		Long:  "expand replaces a child session's boundaries. Narrowing applies at once; loosening is granted only while the parent's restrictions still hold.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposed, err := parseBoolMap(boundaries)
			if err != nil {
				return fmt.Errorf("parse --boundary: %w", err)
			}

			result, requestErr := app.watchdog.RequestExpansion(cmd.Context(), domain.TokenID(args[0]), proposed)
			if requestErr != nil && !errors.Is(requestErr, domain.ErrStore) {
				return requestErr
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return requestErr
			}

			line := fmt.Sprintf("%s\t%s\tboundaries: %s", result.TokenID, result.Outcome, formatBoundaries(result.Applied))
			if result.Reason != "" {
				line += "\treason: " + result.Reason
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
				return err
			}
			return requestErr
		},
	}

	cmd.Flags().StringToStringVar(&boundaries, "boundary", nil, "Proposed boundary as key=bool (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func describeCompliance(result domain.ComplianceResult) string {
	var verdict string
	switch {
	case result.TimedOut:
		verdict = "timed out"
	case result.Skipped:
		verdict = "skipped"
	case result.Compliant:
		verdict = "compliant"
	default:
		verdict = "violation: " + strings.Join(result.Violations, ",")
		if result.Paused {
			verdict += " (paused)"
		}
	}

	return fmt.Sprintf("%s\t%s\t%s", result.TokenID, result.State, verdict)
}

func formatBoundaries(b domain.Boundaries) string {
	restrictions := b.Restrictions()
	if len(restrictions) == 0 {
		return "none"
	}
	return strings.Join(restrictions, ", ")
}
