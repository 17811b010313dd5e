package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/application/protocoliq"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

type suggestOptions struct {
	file    string
	context string
	user    string
}

func newSuggestCmd() *cobra.Command {
	opts := &suggestOptions{}
	cmd := &cobra.Command{
		Use:   "suggest [text | -]",
		Short: "Suggest improvements for a span of protocol text",
		Long: "Detects the protocol section the text belongs to and returns ranked\n" +
			"clarity, regulatory, feasibility and style suggestions. Text comes from\n" +
			"the arguments, from --file, or from stdin when the argument is \"-\".",
		Example: `  protocoliq suggest "Patients should take 10mg as needed"
  protocoliq suggest --file section.txt --context dosing --user u1
  cat section.txt | protocoliq suggest -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read text from file")
	cmd.Flags().StringVar(&opts.context, "context", "", "context hint (e.g. dosing, safety_monitoring)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "user id for personalized ranking")
	return cmd
}

func runSuggest(cmd *cobra.Command, args []string, opts *suggestOptions) error {
	text, err := readText(cmd, args, opts.file)
	if err != nil {
		return err
	}
	ctx, cancel, cliCtx, app, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	resp := app.Service.GetSuggestions(ctx, protocoliq.Request{
		Text:        text,
		ContextHint: opts.context,
		UserID:      opts.user,
	})
	cliCtx.Logger.Debug("suggestions generated",
		logging.ContextName(resp.Primary),
		logging.Int("count", len(resp.Suggestions)))

	return PrintResult(cmd, resp, func(w io.Writer, t theme) error {
		return renderSuggestions(w, t, resp)
	})
}

// readText resolves input text from --file, "-" (stdin) or the joined args.
func readText(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, errors.CodeDocumentNotFound, "read %s", file)
		}
		return string(b), nil
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeBadRequest, "read stdin")
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New(errors.ErrCodeValidation, "no text given; pass text, --file or -")
	}
}

func renderSuggestions(w io.Writer, t theme, resp protocoliq.Response) error {
	primary := resp.Primary
	if primary == "" {
		primary = "none"
	}
	fmt.Fprintf(w, "%s %s\n", t.title.Render("Primary context:"), primary)
	if len(resp.Suggestions) == 0 {
		fmt.Fprintln(w, t.muted.Render("No suggestions."))
		return nil
	}

	rows := make([][]string, 0, len(resp.Suggestions))
	for i, s := range resp.Suggestions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			string(s.Kind),
			t.severity(string(s.Severity)),
			truncate(s.Original, 32),
			truncate(s.Suggested(), 40),
			fmt.Sprintf("%.2f", s.Confidence),
		})
	}
	fmt.Fprintln(w, FormatTable(t, []string{"#", "Kind", "Severity", "Original", "Suggested", "Confidence"}, rows))

	for i, s := range resp.Suggestions {
		if s.Rationale == "" && s.Evidence == nil {
			continue
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, s.Rationale)
		if s.Evidence != nil {
			fmt.Fprintf(w, "   %s %q (correlation %.2f)\n",
				t.muted.Render("corpus evidence:"), s.Evidence.PatternText, s.Evidence.Correlation)
		}
	}
	return nil
}
