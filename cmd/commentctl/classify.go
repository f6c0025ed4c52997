package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	"github.com/rajasatyajit/CommentIntel/pkg/utils"
)

type classification struct {
	Text     string                       `json:"text"`
	Relevant []string                     `json:"relevant_categories"`
	Results  map[string]classifier.Result `json:"results"`
}

func classifyCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify a single comment, or one comment per stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := loadTaxonomy(v)
			if err != nil {
				return err
			}
			cls := classifier.New(contextual.New(tax))

			texts := []string{strings.Join(args, " ")}
			if len(args) == 0 {
				if texts, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			var out []classification
			for _, text := range texts {
				if utils.IsBlank(text) {
					continue
				}
				results := cls.Classify(text)
				c := classification{Text: text, Relevant: []string{}, Results: results}
				for _, id := range tax.IDs() {
					if results[id].Relevant {
						c.Relevant = append(c.Relevant, id)
					}
				}
				out = append(out, c)
			}
			if len(out) == 0 {
				return fmt.Errorf("no comment text given")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printClassifications(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func printClassifications(w io.Writer, out []classification) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range out {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", utils.Truncate(c.Text, 80, "..."))
		if len(c.Relevant) == 0 {
			fmt.Fprintln(tw, "  (no category)")
			continue
		}
		fmt.Fprintf(tw, "  CATEGORY\tSENTIMENT\tCONFIDENCE\tKEYWORDS\n")
		for _, id := range c.Relevant {
			r := c.Results[id]
			fmt.Fprintf(tw, "  %s\t%s\t%.2f\t%s\n", id, r.Sentiment, r.Confidence, strings.Join(r.Keywords, ", "))
		}
	}
	return tw.Flush()
}
