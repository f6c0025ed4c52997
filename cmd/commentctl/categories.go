package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func categoriesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the taxonomy categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tax, err := loadTaxonomy(v)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tDEPARTMENT\tIMPACT\tURGENCY\tDESCRIPTION\n")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 8),
				strings.Repeat("-", 16),
				strings.Repeat("-", 6),
				strings.Repeat("-", 7),
				strings.Repeat("-", 30))

			for _, c := range tax.Categories {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\n", c.ID, c.Department, c.BusinessImpact, c.UrgencyMultiplier, c.Description)
			}
			return w.Flush()
		},
	}
}
