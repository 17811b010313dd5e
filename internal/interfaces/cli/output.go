package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// theme holds the styles text output is rendered with.
type theme struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	muted  lipgloss.Style
	high   lipgloss.Style
	medium lipgloss.Style
	low    lipgloss.Style
	border lipgloss.Style
}

func newTheme(w io.Writer, noColor bool) theme {
	r := lipgloss.NewRenderer(w)
	base := r.NewStyle()
	if noColor {
		return theme{
			title: base, header: base.Padding(0, 1), cell: base.Padding(0, 1),
			muted: base, high: base, medium: base, low: base, border: base,
		}
	}
	return theme{
		title:  base.Bold(true).Foreground(lipgloss.Color("86")),
		header: base.Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1),
		cell:   base.Padding(0, 1),
		muted:  base.Foreground(lipgloss.Color("241")),
		high:   base.Foreground(lipgloss.Color("203")),
		medium: base.Foreground(lipgloss.Color("214")),
		low:    base.Foreground(lipgloss.Color("114")),
		border: base.Foreground(lipgloss.Color("238")),
	}
}

func themeFor(cmd *cobra.Command) theme {
	noColor := false
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		noColor = cliCtx.NoColor
	}
	return newTheme(cmd.OutOrStdout(), noColor)
}

// severity colors a severity or level label.
func (t theme) severity(s string) string {
	switch strings.ToLower(s) {
	case "high", "critical":
		return t.high.Render(s)
	case "medium":
		return t.medium.Render(s)
	case "low":
		return t.low.Render(s)
	default:
		return s
	}
}

// PrintResult writes data as JSON when --output json is set and otherwise
// calls text to render a human-readable view.
func PrintResult(cmd *cobra.Command, data interface{}, text func(w io.Writer, t theme) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil || cliCtx.OutputFormat == "json" || text == nil {
		return printJSON(cmd, data)
	}
	return text(cmd.OutOrStdout(), themeFor(cmd))
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as a bordered table.
func FormatTable(t theme, headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(t.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.header
			}
			return t.cell
		})
	return tbl.String()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func percent(f float64) string { return fmt.Sprintf("%.0f%%", f*100) }
