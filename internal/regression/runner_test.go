package regression

import (
	"context"
	"strings"
	"testing"

	"intake/pkg/intake"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite([]byte(`version: 1
cases:
  - id: one
    op: ASSESS
    transcript: I need help
    expect: {level: low}
`))
	require.NoError(t, err)
	require.Len(t, s.Cases, 1)
	assert.Equal(t, OpAssess, s.Cases[0].Op)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "cases:\n  - op: assess\n", "missing id"},
		{"duplicate id", "cases:\n  - {id: a, op: assess}\n  - {id: a, op: amount}\n", "duplicate id"},
		{"unknown op", "cases:\n  - {id: a, op: shell}\n", "unsupported op"},
		{"unknown category", "cases:\n  - {id: a, op: correct, fields: {category: GROCERIES}}\n", "unknown category"},
		{"unknown level", "cases:\n  - {id: a, op: assess, expect: {level: SEVERE}}\n", "unknown urgency level"},
		{"bad yaml", "cases: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSuite(t *testing.T) {
	s, err := LoadSuite("testdata/regression.yaml")
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	assert.Len(t, s.Cases, 2)

	_, err = LoadSuite("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestDefaultSuitePasses(t *testing.T) {
	s, err := DefaultSuite()
	require.NoError(t, err)

	rep, err := NewRunner(intake.Default(), WithWorkers(4)).Run(context.Background(), s)
	require.NoError(t, err)
	for _, f := range rep.Failures {
		t.Errorf("%s: %s want %q got %q", f.CaseID, f.Field, f.Want, f.Got)
	}
	assert.True(t, rep.OK())
	assert.Equal(t, len(s.Cases), rep.Total)
	assert.NotEmpty(t, rep.RunID)
}

func TestRunnerReportsMismatches(t *testing.T) {
	s, err := LoadSuite("testdata/regression.yaml")
	require.NoError(t, err)

	rep, err := NewRunner(intake.Default()).Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Equal(t, 1, rep.Passed)

	want := []Failure{{CaseID: "smoke-wrong-level", Field: "level", Want: "CRITICAL", Got: "LOW"}}
	if diff := cmp.Diff(want, rep.Failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"level"}, rep.Cases[1].Fields)
}

func TestRunnerKeepsSuiteOrder(t *testing.T) {
	s, err := DefaultSuite()
	require.NoError(t, err)

	ids := func(rep *Report) []string {
		var out []string
		for _, c := range rep.Cases {
			out = append(out, c.CaseID)
		}
		return out
	}
	one, err := NewRunner(intake.Default(), WithWorkers(1)).Run(context.Background(), s)
	require.NoError(t, err)
	many, err := NewRunner(intake.Default(), WithWorkers(16)).Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, ids(one), ids(many))
	assert.Equal(t, s.Cases[0].ID, one.Cases[0].CaseID)
	assert.NotEqual(t, one.RunID, many.RunID)
}

func TestRunnerCancelled(t *testing.T) {
	s, err := DefaultSuite()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRunner(intake.Default()).Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewRunner(intake.Default()).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunLogsCarryNoTranscripts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := DefaultSuite()
	require.NoError(t, err)

	_, err = NewRunner(intake.Default(), WithLogger(zap.New(core))).Run(context.Background(), s)
	require.NoError(t, err)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		for _, c := range s.Cases {
			if c.Transcript == "" {
				continue
			}
			assert.NotContains(t, entry.Message, c.Transcript)
			for _, f := range entry.Context {
				assert.False(t, strings.Contains(f.String, c.Transcript), "field %s leaks case %s", f.Key, c.ID)
			}
		}
		assert.Equal(t, "regression", entry.LoggerName)
	}
}
