package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
)

func validateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [taxonomy.yaml]",
		Short: "Validate a taxonomy file",
		Long:  `Loads and compiles a taxonomy, listing every problem found. Without an argument the configured taxonomy is checked.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tax *taxonomy.Taxonomy
				err error
			)
			if len(args) == 1 {
				tax, err = taxonomy.Load(args[0])
			} else {
				tax, err = loadTaxonomy(v)
			}

			if err != nil {
				var multi apperrors.MultiError
				if errors.As(err, &multi) {
					for _, e := range multi.Errors {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", e)
					}
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d categories, locale %s, fingerprint %s\n",
				len(tax.Categories), tax.Locale, tax.Fingerprint())
			return nil
		},
	}
}
