package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
)

func newInsightsCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show what has been learned about a user",
		Example: `  protocoliq insights --user u1
  protocoliq insights --user u1 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, _, app, err := appFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			in, err := app.Service.GetUserInsights(ctx, user)
			if err != nil {
				return err
			}
			return PrintResult(cmd, in, func(w io.Writer, t theme) error {
				return renderInsights(w, t, in)
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderInsights(w io.Writer, t theme, in *profile.Insights) error {
	fmt.Fprintf(w, "%s %s\n", t.title.Render("User:"), in.UserID)
	fmt.Fprintf(w, "Stage:            %s (%s)\n", in.Stage, in.LearningStatus)
	fmt.Fprintf(w, "Actions:          %d\n", in.ActionCount)
	fmt.Fprintf(w, "Acceptance:       %s\n", percent(in.OverallAcceptance))
	fmt.Fprintf(w, "Complexity:       %.2f\n", in.PreferredComplexity)
	fmt.Fprintf(w, "Formality:        %.2f\n", in.PreferredFormality)

	if len(in.ContextAcceptance) > 0 {
		names := make([]string, 0, len(in.ContextAcceptance))
		for name := range in.ContextAcceptance {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, percent(in.ContextAcceptance[name])})
		}
		fmt.Fprintln(w, FormatTable(t, []string{"Context", "Acceptance"}, rows))
	}
	if len(in.TopDomains) > 0 {
		rows := make([][]string, 0, len(in.TopDomains))
		for _, d := range in.TopDomains {
			rows = append(rows, []string{d.Domain, fmt.Sprintf("%.2f", d.Score)})
		}
		fmt.Fprintln(w, FormatTable(t, []string{"Domain", "Expertise"}, rows))
	}
	if len(in.FrequentRejections) > 0 {
		parts := make([]string, 0, len(in.FrequentRejections))
		for _, c := range in.FrequentRejections {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Category, c.Count))
		}
		fmt.Fprintf(w, "Often rejected:   %s\n", strings.Join(parts, ", "))
	}
	if len(in.FrequentEdits) > 0 {
		parts := make([]string, 0, len(in.FrequentEdits))
		for _, c := range in.FrequentEdits {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Category, c.Count))
		}
		fmt.Fprintf(w, "Often edited:     %s\n", strings.Join(parts, ", "))
	}
	if len(in.CommonPhrases) > 0 {
		fmt.Fprintf(w, "Common phrases:   %s\n", strings.Join(in.CommonPhrases, ", "))
	}
	if len(in.AvoidedPhrases) > 0 {
		fmt.Fprintf(w, "Avoided phrases:  %s\n", strings.Join(in.AvoidedPhrases, ", "))
	}
	return nil
}
