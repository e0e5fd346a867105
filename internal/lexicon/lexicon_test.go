package lexicon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"intake/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultCompiles(t *testing.T) {
	lex := Default()
	require.NotNil(t, lex)
	assert.Equal(t, "2026.10", lex.Version)
	for _, name := range LayerNames {
		layer := lex.Layer(name)
		require.NotNil(t, layer, name)
		assert.NotEmpty(t, layer.Tiers, name)
	}
	assert.Same(t, lex, Default(), "Default must be compiled once")
	assert.Greater(t, lex.PatternCount(), 100)
}

func TestExplicitLowMarker(t *testing.T) {
	layer := Default().Layer(LayerExplicit)
	require.NotNil(t, layer.LowMarker)
	assert.Equal(t, "medium", layer.SkipOnLowMarker)
	assert.True(t, layer.LowMarker.Matchers.Any("hoping to go back to school next year"))
	assert.False(t, layer.LowMarker.Matchers.Any("i need help now"))
}

func TestCriticalSafety(t *testing.T) {
	lex := Default()
	label, ok := lex.CriticalSafety("he is abusive and i am scared")
	assert.True(t, ok)
	assert.Equal(t, "abusive", label)

	_, ok = lex.CriticalSafety("i need help with rent")
	assert.False(t, ok)
}

func TestPhraseMatchingUsesWordBoundaries(t *testing.T) {
	set, err := compileSet([]string{"rent", "shut off"}, nil)
	require.NoError(t, err)

	assert.True(t, set.Any("behind on rent"))
	assert.True(t, set.Any("they will SHUT   OFF the power"))
	assert.False(t, set.Any("my parents are current"))
	assert.Equal(t, []string{"rent", "shut_off"}, set.Labels("rent or they shut off", 0))
	assert.Equal(t, []string{"rent"}, set.Labels("rent or they shut off", 1))
}

func TestFindAllOrdersByPosition(t *testing.T) {
	set, err := compileSet([]string{"surgery", "rent"}, nil)
	require.NoError(t, err)

	hits := set.FindAll("rent now and surgery later, rent again")
	require.Len(t, hits, 3)
	assert.Equal(t, "rent", hits[0].Label)
	assert.Equal(t, "surgery", hits[1].Label)
	assert.Equal(t, "rent", hits[2].Label)
	assert.Less(t, hits[1].Start, hits[2].Start)
}

func TestPlaceholderExpansion(t *testing.T) {
	re, err := compilePattern(`\bneed {amt}`)
	require.NoError(t, err)
	m := re.FindStringSubmatch("i need $3,600 by friday")
	require.NotNil(t, m)
	assert.Equal(t, "3,600", m[re.SubexpIndex("a1")])

	m = re.FindStringSubmatch("need 2k for the car")
	require.NotNil(t, m)
	assert.Equal(t, "2", m[re.SubexpIndex("a1")])
	assert.Equal(t, "k", strings.TrimSpace(m[re.SubexpIndex("m1")]))

	m = re.FindStringSubmatch("need 5 kids fed")
	require.NotNil(t, m)
	assert.Empty(t, m[re.SubexpIndex("m1")], "k must be a whole word")

	_, err = compilePattern(`{amt} and {amt}`)
	assert.Error(t, err)
	_, err = compilePattern(`{amt} and {usd}`)
	assert.Error(t, err)
}

func TestAmountTablesCompiled(t *testing.T) {
	a := Default().Amount
	assert.NotEmpty(t, a.Explicit)
	assert.NotEmpty(t, a.Contextual)
	assert.NotEmpty(t, a.Vague)
	assert.NotEmpty(t, a.Recovery)
	assert.NotEmpty(t, a.Poison)

	kinds := map[string]bool{}
	for _, p := range a.Poison {
		kinds[p.Kind] = true
	}
	for _, k := range []string{KindWage, KindAge, KindDate, KindOther} {
		assert.True(t, kinds[k], k)
	}
	for _, p := range a.Contextual {
		if p.Op == OpMultiply {
			assert.GreaterOrEqual(t, p.Re.SubexpIndex("n"), 0, p.Label)
		}
	}
}

func TestCategoriesAndGuards(t *testing.T) {
	lex := Default()
	assert.True(t, lex.CategoryMatchers(types.CategoryHousing).Any("behind on rent"))
	assert.Nil(t, lex.CategoryMatchers(types.CategoryOther))
	assert.True(t, lex.InherentCrisis[types.CategoryHousing].Any("we got evicted"))
	assert.True(t, lex.SecondaryMarkers.MatchString("and on top of that the car"))
	assert.True(t, lex.NeedVerbs.MatchString("i need it"))
	assert.True(t, lex.Negations.MatchString("i don't need"))
}

func TestNameCues(t *testing.T) {
	lex := Default()
	var found string
	for _, re := range lex.Name.Cues {
		if m := re.FindStringSubmatch("Hi, my name is uh Maria Lopez and I need help"); m != nil {
			found = m[re.SubexpIndex("name")]
			break
		}
	}
	assert.Equal(t, "Maria Lopez", found)
	assert.NotEmpty(t, lex.Name.StrongCues)
	assert.True(t, lex.Name.Fillers["um"])
	assert.True(t, lex.Name.Stopwords["calling"])
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	base := func() *Document {
		var doc Document
		require.NoError(t, yaml.Unmarshal(DefaultYAML(), &doc))
		return &doc
	}

	tests := []struct {
		name   string
		mutate func(d *Document)
	}{
		{"missing version", func(d *Document) { d.Version = "" }},
		{"missing layer", func(d *Document) { d.Urgency.Layers = d.Urgency.Layers[1:] }},
		{"unknown layer", func(d *Document) { d.Urgency.Layers[0].Name = "vibes" }},
		{"bad weight", func(d *Document) { d.Urgency.Layers[0].Tiers[0].Weight = 1.5 }},
		{"bad regex", func(d *Document) {
			d.Urgency.Layers[2].Tiers[0].Patterns = []PatternDoc{{Label: "broken", Expr: `(unclosed`}}
		}},
		{"unknown category", func(d *Document) { d.Categories[0].Category = "GROCERIES" }},
		{"skip names unknown tier", func(d *Document) { d.Urgency.Layers[0].SkipOnLowMarker = "nope" }},
		{"negated tier unknown", func(d *Document) { d.Urgency.Layers[0].NegatedTiers = []string{"nope"} }},
		{"negated tiers without window", func(d *Document) { d.Urgency.Layers[0].NegationWindow = 0 }},
		{"negated safety tier", func(d *Document) {
			d.Urgency.Layers[5].NegatedTiers = []string{TierCritical}
			d.Urgency.Layers[5].NegationWindow = 12
		}},
		{"multiply without count", func(d *Document) {
			d.Amount.Contextual = []AmountPatternDoc{{Label: "x", Op: "multiply", Expr: `rent {amt}`, Confidence: 0.5}}
		}},
		{"unknown poison kind", func(d *Document) {
			d.Amount.Poison = []PoisonPatternDoc{{Label: "x", Kind: "shoe", Expr: `{amt}`}}
		}},
		{"missing need verbs", func(d *Document) { d.Cues.NeedVerbs = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mutate(doc)
			_, err := Compile(doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLexicon))
		})
	}
}

func TestExplicitTiersAreNegatable(t *testing.T) {
	layer := Default().Layer(LayerExplicit)
	require.NotNil(t, layer)
	assert.Positive(t, layer.NegationWindow)
	assert.NotNil(t, layer.Negations)
	negatable := map[string]bool{}
	for _, tier := range layer.Tiers {
		negatable[tier.Name] = tier.Negatable
	}
	assert.Equal(t, map[string]bool{"critical": true, "high": true, "medium": false}, negatable)

	for _, tier := range Default().Layer(LayerSafety).Tiers {
		assert.False(t, tier.Negatable, tier.Name)
	}
}

func TestLabelsWhere(t *testing.T) {
	set, err := compileSet([]string{"urgent", "help"}, nil)
	require.NoError(t, err)
	text := "not urgent, but urgent help"
	all := set.LabelsWhere(text, 0, func(int, int) bool { return true })
	assert.Equal(t, []string{"urgent", "help"}, all)

	late := set.LabelsWhere(text, 0, func(start, _ int) bool { return start > 12 })
	assert.Equal(t, []string{"urgent", "help"}, late)

	none := set.LabelsWhere(text, 0, func(start, _ int) bool { return start < 4 })
	assert.Empty(t, none)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("version: x\nsurprise: true\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLexicon)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0o644))

	lex, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Version, lex.Version)
	assert.NotSame(t, Default(), lex)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
