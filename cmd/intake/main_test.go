package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eviction = "I received an eviction notice yesterday and have until tomorrow to pay three months rent, " +
	"$3,600 total, three kids and nowhere to go"

// resetFlags restores every flag to its default so commands can run repeatedly.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestReadTranscript(t *testing.T) {
	got, err := readTranscript(strings.NewReader("ignored"), []string{"I", "need", "help"})
	require.NoError(t, err)
	assert.Equal(t, "I need help", got)

	got, err = readTranscript(strings.NewReader("from stdin"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readTranscript(strings.NewReader("no args"), nil)
	require.NoError(t, err)
	assert.Equal(t, "no args", got)
}

func TestAssessCommand(t *testing.T) {
	out, err := execute(t, "", "assess", "--category", "HOUSING", eviction)
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, "CRITICAL", v["level"])

	_, err = execute(t, "", "assess", "--category", "GROCERIES", "I need help")
	assert.ErrorContains(t, err, "unknown category")
}

func TestAmountCommandReadsStdin(t *testing.T) {
	out, err := execute(t, "I need $1,200 to catch up", "amount", "-")
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, 1200.0, v["goal_amount"])
	assert.Equal(t, "explicit", v["source"])

	_, err = execute(t, "", "amount", "--urgency", "SEVERE", "I need $10")
	assert.ErrorContains(t, err, "unknown urgency level")
}

func TestCorrectCommand(t *testing.T) {
	out, err := execute(t, "", "correct", "--category", "HEALTHCARE", "--amount", "500",
		"Also dealing with surgery, but really I need $500 for rent")
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, "HOUSING", v["category"])
	assert.Equal(t, 500.0, v["amount"])
	require.NotEmpty(t, v["fixes"])
}

func TestProcessCommand(t *testing.T) {
	out, err := execute(t, "", "process", eviction)
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, "HOUSING", v["category"])
	assert.Equal(t, "CRITICAL", v["urgency"])
	assert.Equal(t, 3600.0, v["amount"])
	assert.Equal(t, "ok", v["status"])
}

func TestRegressCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "", "regress", "--db", db, "--workers", "4")
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, v["total"], v["passed"])

	out, err = execute(t, "", "regress", "--db", db, "--history", "5")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, v["run_id"], runs[0]["run_id"])

	out, err = execute(t, "", "regress", "--db", db, "--history", "5", "--case", "process-eviction")
	require.NoError(t, err)
	var hist []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, true, hist[0]["passed"])

	_, err = execute(t, "", "regress", "--history", "5")
	assert.ErrorContains(t, err, "--history needs --db")
}

func TestRegressCommandFailsOnMismatch(t *testing.T) {
	suite := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`version: 1
cases:
  - id: wrong
    op: assess
    transcript: hoping to go back to school next year
    expect: {level: CRITICAL}
`), 0o644))

	out, err := execute(t, "", "regress", "--suite", suite)
	assert.ErrorContains(t, err, "regression failed: 1 of 1 cases")
	v := decode(t, out)
	assert.Len(t, v["failures"], 1)
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "", "config", "--preset", "sensitive")
	require.NoError(t, err)
	assert.Contains(t, out, "preset: sensitive")

	_, err = execute(t, "", "config", "--preset", "reckless")
	assert.Error(t, err)
}

func TestLexiconCommand(t *testing.T) {
	out, err := execute(t, "", "lexicon")
	require.NoError(t, err)
	v := decode(t, out)
	assert.Equal(t, "embedded", v["source"])
	assert.NotEmpty(t, v["version"])
	assert.Greater(t, v["patterns"], 0.0)

	out, err = execute(t, "", "lexicon", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "version:")
}
