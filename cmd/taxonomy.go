package cmd

import (
	"fmt"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/spf13/cobra"
)

func newTaxonomyCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy [category]",
		Short: "Show the communication taxonomy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var categories []domain.TaxonomyCategory
			if len(args) == 1 {
				category, err := app.taxonomy.Category(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				categories = []domain.TaxonomyCategory{category}
			} else {
				all, err := app.taxonomy.Categories(cmd.Context())
				if err != nil {
					return err
				}
				categories = all
			}

			out := cmd.OutOrStdout()
			for i, category := range categories {
				if i > 0 {
					_, _ = fmt.Fprintln(out)
				}
				_, _ = fmt.Fprintln(out, category.Name)
				for _, label := range category.Labels {
					_, _ = fmt.Fprintf(out, "  %-12s %s\n", label.Alias, category.Sentence(label))
				}
			}

			return nil
		},
	}
}
