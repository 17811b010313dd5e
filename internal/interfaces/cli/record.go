package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
)

type recordOptions struct {
	user       string
	action     string
	original   string
	suggested  string
	final      string
	context    string
	category   string
	confidence float64
}

// recordResult reports where an action went.
type recordResult struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Published bool   `json:"published"`
}

func newRecordCmd() *cobra.Command {
	opts := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a user's response to a suggestion",
		Long: "Records an accept, reject, modify or ignore action against the user's\n" +
			"profile. When kafka is enabled the action is published for the worker\n" +
			"to apply; otherwise it is applied directly.",
		Example: `  protocoliq record --user u1 --action accept --original "as needed" --suggested "every 4 hours" --context dosing
  protocoliq record --user u1 --action modify --original "may" --suggested "will" --final "shall"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.user, "user", "u", "", "user id (required)")
	f.StringVarP(&opts.action, "action", "a", "", "action: accept, reject, modify, ignore (required)")
	f.StringVar(&opts.original, "original", "", "original text")
	f.StringVar(&opts.suggested, "suggested", "", "suggested text")
	f.StringVar(&opts.final, "final", "", "text the user settled on (modify)")
	f.StringVar(&opts.context, "context", "", "context the suggestion was made in")
	f.StringVar(&opts.category, "category", "", "correction category")
	f.Float64Var(&opts.confidence, "confidence", 0, "suggestion confidence in [0,1]")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func runRecord(cmd *cobra.Command, opts *recordOptions) error {
	event := profile.ActionEvent{
		ID:            uuid.NewString(),
		UserID:        opts.user,
		Action:        profile.ActionType(strings.ToLower(opts.action)),
		OriginalText:  opts.original,
		SuggestedText: opts.suggested,
		FinalText:     opts.final,
		Context:       opts.context,
		Category:      opts.category,
		Confidence:    opts.confidence,
		Timestamp:     time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel, cliCtx, app, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	res := recordResult{ID: event.ID, UserID: event.UserID, Action: string(event.Action)}
	if app.Publisher != nil {
		if err := app.Publisher.PublishAction(ctx, event); err != nil {
			return err
		}
		res.Published = true
	} else if err := app.Service.RecordAction(ctx, event); err != nil {
		return err
	}
	cliCtx.Logger.Debug("action recorded",
		logging.UserID(event.UserID),
		logging.String("action", string(event.Action)),
		logging.Bool("published", res.Published))

	return PrintResult(cmd, res, func(w io.Writer, _ theme) error {
		verb := "recorded"
		if res.Published {
			verb = "published"
		}
		_, err := fmt.Fprintf(w, "OK: %s action %s for user %s (%s)\n", res.Action, verb, res.UserID, res.ID)
		return err
	})
}
