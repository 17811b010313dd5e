// Package cli implements the protocoliq command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtocolIQ/internal/bootstrap"
	"github.com/turtacn/ProtocolIQ/internal/config"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree. The
// service graph is built on first use so that commands such as version never
// touch a store.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	NoColor      bool

	appOpts []bootstrap.Option
	app     *bootstrap.App
}

// App returns the wired service graph, building it if needed.
func (c *CLIContext) App(ctx context.Context) (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, err := bootstrap.New(ctx, c.Config, c.Logger, c.appOpts...)
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func (c *CLIContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// NewRootCommand creates the root command with global flags and subcommands.
// Extra bootstrap options apply to every command that builds the service.
func NewRootCommand(appOpts ...bootstrap.Option) *cobra.Command {
	opts := &RootOptions{}
	var cliCtx *CLIContext

	cmd := &cobra.Command{
		Use:   "protocoliq",
		Short: "ProtocolIQ suggests clearer, more feasible clinical trial protocol language",
		Long: "ProtocolIQ scans protocol text for ambiguous, non-compliant or burdensome\n" +
			"language, ranks suggestions against a learned user profile and mines a\n" +
			"corpus of past protocols for language that correlates with success.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cliCtx, err = newCLIContext(opts, appOpts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if cliCtx == nil {
				return nil
			}
			return cliCtx.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: config.yaml in ., ~/.protocoliq, /etc/protocoliq)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "global operation timeout")

	cmd.AddCommand(
		newSuggestCmd(),
		newRecordCmd(),
		newInsightsCmd(),
		newAnalyzeCorpusCmd(),
		newRecommendCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newCLIContext(opts *RootOptions, appOpts []bootstrap.Option) (*CLIContext, error) {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json":
	default:
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported output format %q; expected text|json", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("logger initialization failed: %w", err)
	}
	return &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor || os.Getenv("NO_COLOR") != "",
		appOpts:      append([]bootstrap.Option{bootstrap.WithActionPublisher()}, appOpts...),
	}, nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(config.WithConfigPath(opts.ConfigPath))
	}
	return config.Load(config.WithSearchPaths(defaultConfigDirs()...))
}

func defaultConfigDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".protocoliq"))
	}
	return append(dirs, "/etc/protocoliq")
}

// initLogger writes console logs to stderr so that stdout stays parseable.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLI context not initialized")
	}
	return cliCtx, nil
}

// appFor returns the CLI context and service graph for cmd, with the global
// timeout applied to the returned context.
func appFor(cmd *cobra.Command) (context.Context, context.CancelFunc, *CLIContext, *bootstrap.App, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	app, err := cliCtx.App(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	return ctx, cancel, cliCtx, app, nil
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}
