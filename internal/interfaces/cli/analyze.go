package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/bootstrap"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
)

type analyzeOptions struct {
	dir    string
	sample int
}

func newAnalyzeCorpusCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze-corpus",
		Short: "Mine a protocol corpus for language that correlates with success",
		Long: "Scores every protocol in the configured corpus source, extracts language\n" +
			"and structural patterns and stores them for recommendations and\n" +
			"suggestion evidence.",
		Example: `  protocoliq analyze-corpus --dir ./corpus
  protocoliq analyze-corpus --sample 200 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "corpus directory (fs source; overrides corpus.dir)")
	cmd.Flags().IntVar(&opts.sample, "sample", 0, "analyze at most this many protocols (0 = all)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	ctx, cancel, cliCtx, app, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	src, err := bootstrap.OpenSource(ctx, cliCtx.Config, opts.dir, cliCtx.Logger)
	if err != nil {
		return err
	}
	sum, err := app.RunCorpusAnalysis(ctx, src, opts.sample)
	if err != nil {
		return err
	}
	cliCtx.Logger.Info("corpus analysis complete",
		logging.Int("processed", sum.Processed),
		logging.Int("patterns", sum.Patterns),
		logging.Duration("duration", sum.Duration))

	return PrintResult(cmd, sum, func(w io.Writer, t theme) error {
		return renderSummary(w, t, sum)
	})
}

func renderSummary(w io.Writer, t theme, sum *mining.Summary) error {
	fmt.Fprintln(w, t.title.Render("Corpus analysis"))
	fmt.Fprintf(w, "Processed:        %d (skipped %d)\n", sum.Processed, sum.Skipped)
	fmt.Fprintf(w, "Mean score:       %.2f\n", sum.MeanScore)
	fmt.Fprintf(w, "High performers:  %d\n", sum.HighPerformers)
	fmt.Fprintf(w, "Low performers:   %d\n", sum.LowPerformers)
	fmt.Fprintf(w, "Patterns:         %d\n", sum.Patterns)
	fmt.Fprintf(w, "Duration:         %s\n", sum.Duration)

	if rows := groupRows(sum.ByArea); len(rows) > 0 {
		fmt.Fprintln(w, FormatTable(t, []string{"Therapeutic area", "Protocols", "Mean score"}, rows))
	}
	if rows := groupRows(sum.ByPhase); len(rows) > 0 {
		fmt.Fprintln(w, FormatTable(t, []string{"Phase", "Protocols", "Mean score"}, rows))
	}
	if len(sum.RiskFactors) > 0 {
		names := make([]string, 0, len(sum.RiskFactors))
		for name := range sum.RiskFactors {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, fmt.Sprintf("%d", sum.RiskFactors[name])})
		}
		fmt.Fprintln(w, FormatTable(t, []string{"Risk factor", "Protocols"}, rows))
	}
	return nil
}

func groupRows(groups map[string]mining.GroupStats) [][]string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		rows = append(rows, []string{k, fmt.Sprintf("%d", g.Count), fmt.Sprintf("%.2f", g.MeanScore)})
	}
	return rows
}
