package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	apperrors "github.com/rajasatyajit/CommentIntel/internal/errors"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/pipeline"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/internal/report"
)

type analyzeOptions struct {
	format    string
	output    string
	source    string
	category  string
	sentiment string
	progress  bool
}

// output is one rendered artefact of an analysis
type output struct {
	name string
	body []byte
}

func analyzeCmd(v *viper.Viper) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <comments.csv>",
		Short: "Classify and prioritise a CSV comment export",
		Long: `Reads a CSV with user, comment, date and seller columns, classifies every comment
and prints the category report and the prioritised action plan.

With --category the comments of that category (optionally narrowed by --sentiment)
are exported as well. With --output every artefact is written to that directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, v, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "directory to write reports to (default: stdout)")
	cmd.Flags().StringVar(&opts.source, "source", "", "source name (default: file name)")
	cmd.Flags().StringVar(&opts.category, "category", "", "export the comments of this category")
	cmd.Flags().StringVar(&opts.sentiment, "sentiment", "", "narrow the export to positive, negative or neutral")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")

	return cmd
}

func runAnalyze(cmd *cobra.Command, v *viper.Viper, path string, opts *analyzeOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("%w: unknown format %q", apperrors.ErrInvalidInput, opts.format)
	}
	sentiment, err := classifier.ParseSentiment(opts.sentiment)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	tax, err := loadTaxonomy(v)
	if err != nil {
		return err
	}
	if opts.category != "" {
		if _, ok := tax.Category(opts.category); !ok {
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownCategory, opts.category)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	source := opts.source
	if source == "" {
		source = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	comments, err := pipeline.ReadCSV(f, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	logger.Info("Loaded comments", "path", path, "count", len(comments))

	batch := classifier.BatchOptions{Workers: v.GetInt("workers")}
	var bar *progressbar.ProgressBar
	if opts.progress && len(comments) > 0 {
		bar = newProgressBar(cmd.ErrOrStderr(), len(comments))
		batch.Progress = func(done, _ int) { _ = bar.Set(done) }
	}

	agg, err := classifier.New(contextual.New(tax)).ClassifyBatchContext(cmd.Context(), comments, batch)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	analysis := priority.New(tax).Analyze(agg)

	outputs, err := render(agg, analysis, opts, sentiment)
	if err != nil {
		return err
	}
	return writeOutputs(cmd.OutOrStdout(), opts.output, outputs)
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Classifying comments"),
		progressbar.OptionClearOnFinish(),
	)
}

// render produces the artefacts for the chosen format in a fixed order
func render(agg *classifier.AggregateResult, analysis *priority.Analysis, opts *analyzeOptions, sentiment classifier.Sentiment) ([]output, error) {
	var outputs []output

	switch opts.format {
	case "json":
		doc, err := json.MarshalIndent(struct {
			Aggregate *classifier.AggregateResult `json:"aggregate"`
			Analysis  *priority.Analysis          `json:"analysis"`
		}{agg, analysis}, "", "  ")
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output{"analysis.json", doc})

		if opts.category != "" {
			filtered, err := json.MarshalIndent(agg.Filter(opts.category, sentiment), "", "  ")
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, output{filteredName(opts.category, sentiment, "json"), filtered})
		}
	default:
		outputs = append(outputs,
			output{"category_report.txt", []byte(report.CategoryReport(agg))},
			output{"priority_report.txt", []byte(report.PriorityReport(analysis))},
		)

		if opts.category != "" {
			text := report.FilteredReport(agg, opts.category, sentiment)
			if text == "" {
				text = fmt.Sprintf("No %s comments matched.\n", strings.TrimSpace(opts.category+" "+string(sentiment)))
			}
			outputs = append(outputs, output{filteredName(opts.category, sentiment, "txt"), []byte(text)})
		}
	}
	return outputs, nil
}

func filteredName(category string, sentiment classifier.Sentiment, ext string) string {
	name := "filtered_" + category
	if sentiment != "" {
		name += "_" + string(sentiment)
	}
	return name + "." + ext
}

// writeOutputs prints every artefact to w, or writes them as files under dir
func writeOutputs(w io.Writer, dir string, outputs []output) error {
	if dir == "" {
		for i, o := range outputs {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if _, err := w.Write(o.body); err != nil {
				return err
			}
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := os.WriteFile(path, o.body, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}
