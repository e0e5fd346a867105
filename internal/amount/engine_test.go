package amount

import (
	"fmt"
	"strconv"
	"testing"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/result"
	"intake/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(t *testing.T, mutate ...func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	e, err := New(cfg, lexicon.Default())
	require.NoError(t, err)
	return e
}

func goal(t *testing.T, d Detection) float64 {
	t.Helper()
	require.NotNil(t, d.GoalAmount, "reasons: %v", d.Reasons)
	return *d.GoalAmount
}

func TestEvictionScenarioTotal(t *testing.T) {
	d := newEngine(t).Detect("I received an eviction notice yesterday and have until tomorrow to pay three months rent, "+
		"$3,600 total, three kids and nowhere to go", Context{Category: types.CategoryHousing})

	assert.Equal(t, 3600.0, goal(t, d))
	assert.Equal(t, SourceExplicit, d.Source)
	assert.Contains(t, d.Reasons, "pattern:amount_total")
	assert.Equal(t, 1.0, d.Confidence)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		ctx    Context
		want   float64
		source Source
	}{
		{"need", "I need $1,200 to catch up", Context{}, 1200, SourceExplicit},
		{"goal is", "my goal is 5k", Context{}, 5000, SourceExplicit},
		{"asking for", "I'm asking for $750", Context{}, 750, SourceExplicit},
		{"spoken", "I need about fifteen hundred dollars for my car", Context{}, 1500, SourceExplicit},
		{"spoken compound", "it comes to three thousand five hundred", Context{}, 3500, SourceExplicit},
		{"rent times months", "my rent is $1,200 and I'm behind 3 months", Context{}, 3600, SourceContextual},
		{"deposit plus first month", "the deposit is $800 and first month is $1,200", Context{}, 2000, SourceContextual},
		{"owe", "we owe the landlord $2,400", Context{}, 2400, SourceContextual},
		{"couple thousand", "maybe a couple thousand", Context{}, 2000, SourceContextual},
		{"couple thousand scaled for medical", "maybe a couple thousand", Context{Category: types.CategoryHealthcare}, 2500, SourceContextual},
		{"few thousand medical midpoint", "I need a few thousand for the surgery", Context{Category: types.CategoryHealthcare}, 3750, SourceVague},
		{"between", "somewhere between $500 and $700", Context{}, 600, SourceVague},
		{"range trailing multiplier", "it'll be 2 to 3 thousand", Context{}, 2500, SourceVague},
		{"range beats figure for purpose", "between $500 and $700 for rent", Context{}, 600, SourceVague},
		{"mixed digit and spoken figure", "I need 3 thousand five hundred", Context{}, 3500, SourceExplicit},
		{"mixed figure with and", "we need $2 thousand and four hundred", Context{}, 2400, SourceExplicit},
		{"wage ignored next to goal", "I need $2,000 but I only make $2,500 a month", Context{}, 2000, SourceExplicit},
		{"negated figure loses", "I don't need $500, I need $900", Context{}, 900, SourceExplicit},
		{"marked amount beats age guard", "I'm 35 years old and need $3,500", Context{}, 3500, SourceExplicit},
		{"bare dollar figure", "they said $640", Context{}, 640, SourceInferred},
	}
	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Detect(tt.text, tt.ctx)
			assert.Equal(t, tt.want, goal(t, d))
			assert.Equal(t, tt.source, d.Source)
			assert.LessOrEqual(t, len(d.Candidates), 3)
			assert.GreaterOrEqual(t, d.Confidence, 0.0)
			assert.LessOrEqual(t, d.Confidence, 1.0)
		})
	}
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"hourly wage", "I make $1,200 a week and I need $1,200 for rent", "rejected:wage"},
		{"age scaled", "I'm 35 years old and need 3500", "rejected:age"},
		{"year", "back in 2021 I lost my job and now need 2021 dollars", "rejected:date"},
		{"phone", "call me at 555-123-4567, I need 4567", "rejected:other"},
		{"small without need", "there's $60 in my account", "rejected:small_unsupported"},
		{"large without context", "I saw $75,000 once", "rejected:large_unsupported"},
		{"out of range", "I need $250,000", "rejected:out_of_range"},
	}
	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Detect(tt.text, Context{})
			assert.Nil(t, d.GoalAmount)
			assert.Equal(t, SourceNone, d.Source)
			assert.Contains(t, d.Reasons, tt.reason)
		})
	}
}

func TestSanityChecksSkipStrongEvidence(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, 60.0, goal(t, e.Detect("I need $60 for gas", Context{})))
	assert.Equal(t, 75000.0, goal(t, e.Detect("the surgery costs $75,000", Context{})))
}

func TestUrgencyRelaxesThreshold(t *testing.T) {
	e := newEngine(t, func(c *config.Config) { c.Amount.MinConfidence = 0.55 })
	text := "I saw $800 somewhere"

	low := e.Detect(text, Context{Urgency: types.LevelLow})
	assert.Nil(t, low.GoalAmount)
	assert.Contains(t, low.Reasons, ReasonLowConfidence)
	require.Len(t, low.Candidates, 1)

	high := e.Detect(text, Context{Urgency: types.LevelHigh})
	assert.Equal(t, 800.0, goal(t, high))
	assert.Equal(t, SourceInferred, high.Source)
}

func TestCategoryRangeAdjustsConfidence(t *testing.T) {
	e := newEngine(t)
	in := e.Detect("they said $640", Context{Category: types.CategoryFood})
	out := e.Detect("they said $2,640", Context{Category: types.CategoryFood})
	assert.Contains(t, in.Reasons, "category_range_bonus")
	assert.Contains(t, out.Reasons, "category_range_penalty")
	assert.Greater(t, in.Confidence, out.Confidence)
}

func TestCandidatesAreDedupedAndOrdered(t *testing.T) {
	d := newEngine(t).Detect("I need $500 for rent, $500 total, or maybe $300 and $200 later", Context{})
	seen := map[float64]int{}
	for _, c := range d.Candidates {
		seen[c.Value]++
		assert.LessOrEqual(t, len([]rune(c.Snippet)), 50)
	}
	assert.Equal(t, 1, seen[500])
	assert.Equal(t, 500.0, d.Candidates[0].Value)
	for i := 1; i < len(d.Candidates); i++ {
		assert.False(t, d.Candidates[i].better(d.Candidates[i-1]))
	}
}

func TestPool(t *testing.T) {
	got := pool(
		[]Candidate{{Value: 500, Kind: KindGoal, Confidence: 0.5, Source: SourceInferred, Start: 3}},
		[]Candidate{{Value: 500, Kind: KindGoal, Confidence: 0.9, Source: SourceExplicit, Start: 3}},
		[]Candidate{{Value: 700, Kind: KindGoal, Confidence: 0.4, Source: SourceVague}},
	)
	want := []Candidate{
		{Value: 500, Kind: KindGoal, Confidence: 0.9, Source: SourceExplicit, Start: 3},
		{Value: 700, Kind: KindGoal, Confidence: 0.4, Source: SourceVague},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Candidate{})); diff != "" {
		t.Errorf("pool() mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidInput(t *testing.T) {
	out := newEngine(t).DetectOutcome("  ", Context{})
	assert.Equal(t, result.StatusFailed, out.Status)
	assert.Equal(t, SourceNone, out.Value.Source)
	assert.Equal(t, []string{ReasonInvalidInput}, out.Value.Reasons)
}

func TestRecover(t *testing.T) {
	e := newEngine(t)
	c, ok := e.Recover(e.View("need uh 2200 for rent"), Context{})
	require.True(t, ok)
	assert.Equal(t, 2200.0, c.Value)

	_, ok = e.Recover(e.View("I make 2200 a month, need uh 2200"), Context{})
	assert.False(t, ok, "recovered figure must not be a wage")

	d := e.Detect("need uh 2200 for rent", Context{})
	assert.Nil(t, d.GoalAmount, "the primary passes are not filler tolerant")
}

func TestPoisonKind(t *testing.T) {
	e := newEngine(t)
	k, ok := e.PoisonKind(e.View("I earn $18 an hour, about $3,000 a month"), 18)
	assert.True(t, ok)
	assert.Equal(t, KindWage, k)
	_, ok = e.PoisonKind(e.View("I need $900"), 900)
	assert.False(t, ok)
}

func TestLogsNeverContainTranscript(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := New(config.Default(), lexicon.Default(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	e.Detect("my name is Bartholomew and I make $20 an hour, I need $1,500 for rent", Context{})
	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		for k, v := range entry.ContextMap() {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "Bartholomew", k)
			}
		}
	}
}

// =============================================================================
// PROPERTIES
// =============================================================================

func withCommas(n int) string {
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func TestDollarForRentProperty(t *testing.T) {
	e := newEngine(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("$X for rent yields X", prop.ForAll(
		func(x int, commas bool) bool {
			num := strconv.Itoa(x)
			if commas {
				num = withCommas(x)
			}
			d := e.Detect(fmt.Sprintf("$%s for rent", num), Context{})
			if d.GoalAmount == nil || *d.GoalAmount != float64(x) {
				return false
			}
			return d.Source == SourceExplicit || d.Source == SourceContextual
		},
		gen.IntRange(50, 100000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestWageNeverSelectedProperty(t *testing.T) {
	e := newEngine(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	templates := []string{
		"I make $%s an hour and I need $%[1]s for rent",
		"I need $%s, I get paid $%[1]s per hour",
		"my salary is $%s and I really need $%[1]s",
	}
	properties.Property("a wage figure is never the goal", prop.ForAll(
		func(x, tmpl int) bool {
			d := e.Detect(fmt.Sprintf(templates[tmpl], strconv.Itoa(x)), Context{})
			return d.GoalAmount == nil || *d.GoalAmount != float64(x)
		},
		gen.IntRange(15, 100000),
		gen.IntRange(0, len(templates)-1),
	))

	properties.TestingRun(t)
}
