package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func Execute() error {
	return run(newRootCmd())
}

// run executes root and then releases the app's store and ledger, also when
// the command failed.
func run(root *cobra.Command, cleanup func() error) error {
	err := root.Execute()
	if closeErr := cleanup(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

func newRootCmd() (*cobra.Command, func() error) {
	app, err := wireApp()
	if err != nil {
		return newRootCmdFor(nil, err), func() error { return nil }
	}
	return newRootCmdFor(app, nil), app.close
}

func newRootCmdFor(app *app, wireErr error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "st",
		Short:         "Session tokens (st): bounded, consent-governed focus sessions",
		Long:          "st tracks time-boxed sessions in a parent/child tree. Each session declares boundaries; a watchdog pauses sessions that break them and mediates requests to loosen them against the parent session.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if wireErr != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return wireErr
		}
		return rootCmd
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		_, err := app.manager.Restore(cmd.Context())
		return err
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSessionCmd(app),
		newCheckCmd(app),
		newExpandCmd(app),
		newSweepCmd(app),
		newWatchCmd(app),
		newAlertsCmd(app),
		newTaxonomyCmd(app),
	)

	return rootCmd
}
