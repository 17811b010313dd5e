package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
)

type recommendOptions struct {
	area  string
	phase string
	file  string
	limit int
}

func newRecommendCmd() *cobra.Command {
	opts := &recommendOptions{}
	cmd := &cobra.Command{
		Use:   "recommend [text | -]",
		Short: "Recommend success-correlated language for a therapeutic area and phase",
		Long: "Lists mined patterns with high success correlation for the given area\n" +
			"and phase. When protocol text is given, patterns it already contains\n" +
			"are left out.",
		Example: `  protocoliq recommend --area oncology --phase "Phase 2"
  protocoliq recommend --area cardiology --phase "Phase 3" --file draft.txt --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.area, "area", "", "therapeutic area")
	cmd.Flags().StringVar(&opts.phase, "phase", "", "trial phase")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "protocol text to exclude patterns already present")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum recommendations (0 = configured default)")
	return cmd
}

func runRecommend(cmd *cobra.Command, args []string, opts *recommendOptions) error {
	var text string
	if opts.file != "" || len(args) > 0 {
		t, err := readText(cmd, args, opts.file)
		if err != nil {
			return err
		}
		text = t
	}

	_, cancel, _, app, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	recs := app.Service.Recommend(opts.area, opts.phase, text, opts.limit)
	return PrintResult(cmd, recs, func(w io.Writer, t theme) error {
		return renderRecommendations(w, t, recs)
	})
}

func renderRecommendations(w io.Writer, t theme, recs []corpus.SuccessPattern) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, t.muted.Render("No recommendations; run analyze-corpus first or widen the area/phase."))
		return nil
	}
	rows := make([][]string, 0, len(recs))
	for i, p := range recs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			string(p.Type),
			truncate(p.Text, 48),
			fmt.Sprintf("%.2f", p.Correlation),
			fmt.Sprintf("%d", p.Frequency),
			fmt.Sprintf("%.2f", p.Confidence),
		})
	}
	fmt.Fprintln(w, FormatTable(t, []string{"#", "Type", "Pattern", "Correlation", "Frequency", "Confidence"}, rows))
	return nil
}
