package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/protocoliq"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

const dosingText = "Patients will be monitored as needed"

// writeConfig writes a config file backed by a temporary sqlite database so
// state survives across command invocations.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("log:\n  level: error\nstore:\n  backend: sqlite\nsqlite:\n  path: %s\n",
		filepath.Join(dir, "piq.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"suggest", "record", "insights", "analyze-corpus", "recommend", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	for _, flag := range []string{"config", "output", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "-o", "json", "version")
	require.NoError(t, err)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "-o", "xml", "version")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	assert.Error(t, err)
}

func TestSuggest_Text(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "--no-color", "suggest", dosingText)
	require.NoError(t, err)
	assert.Contains(t, out, "Primary context: "+pattern.ContextDosing)
	assert.Contains(t, out, "as needed")
}

func TestSuggest_JSONFromStdin(t *testing.T) {
	out, err := execute(t, dosingText, "--config", writeConfig(t), "-o", "json", "suggest", "-")
	require.NoError(t, err)
	var resp protocoliq.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, pattern.ContextDosing, resp.Primary)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestSuggest_FromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "section.txt")
	require.NoError(t, os.WriteFile(file, []byte(dosingText), 0o644))
	out, err := execute(t, "", "--config", writeConfig(t), "-o", "json", "suggest", "--file", file)
	require.NoError(t, err)
	var resp protocoliq.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Suggestions)
}

func TestSuggest_NoText(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "suggest")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRecordThenInsights(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "", "--config", cfg, "record",
		"--user", "u1", "--action", "accept",
		"--original", "as needed", "--suggested", "every 4 hours",
		"--context", pattern.ContextDosing, "--confidence", "0.8")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: accept action recorded for user u1")

	out, err = execute(t, "", "--config", cfg, "-o", "json", "insights", "--user", "u1")
	require.NoError(t, err)
	var in profile.Insights
	require.NoError(t, json.Unmarshal([]byte(out), &in))
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, 1, in.ActionCount)
}

func TestRecord_InvalidAction(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "record", "--user", "u1", "--action", "approve")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidAction))
}

func TestRecord_RequiresUser(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "record", "--action", "accept")
	assert.Error(t, err)
}

func TestInsights_UnknownUserText(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "--no-color", "insights", "--user", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "User: nobody")
	assert.Contains(t, out, "Actions:          0")
}

func TestAnalyzeCorpus_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"),
		[]byte("Phase 2 oncology study. Primary endpoint: overall survival at 12 months."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"),
		[]byte("Phase 3 cardiology study. Patients will be monitored as needed."), 0o644))

	out, err := execute(t, "", "--config", writeConfig(t), "-o", "json", "analyze-corpus", "--dir", dir)
	require.NoError(t, err)
	var sum mining.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Processed+sum.Skipped)
}

func TestAnalyzeCorpus_MissingDirectory(t *testing.T) {
	_, err := execute(t, "", "--config", writeConfig(t), "analyze-corpus", "--dir", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestRecommend_NoPatterns(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "--no-color", "recommend", "--area", "oncology", "--phase", "Phase 2")
	require.NoError(t, err)
	assert.Contains(t, out, "No recommendations")
}

func TestFormatTable(t *testing.T) {
	th := newTheme(&bytes.Buffer{}, true)
	out := FormatTable(th, []string{"Name", "Score"}, [][]string{{"alpha", "0.90"}})
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "alpha")
	assert.Empty(t, FormatTable(th, nil, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
