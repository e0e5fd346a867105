package extract

import (
	"testing"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	x, err := New(config.Default(), lexicon.Default())
	require.NoError(t, err)
	return x
}

func TestMentionsMarkDirectAndSecondary(t *testing.T) {
	x := newExtractor(t)
	got := x.Mentions(x.View("Also dealing with surgery, but really I need $500 for rent"))

	type flat struct {
		Category          types.Category
		Keyword           string
		Direct, Secondary bool
	}
	var flats []flat
	for _, m := range got {
		flats = append(flats, flat{m.Category, m.Keyword, m.Direct, m.Secondary})
	}
	want := []flat{
		{types.CategoryHealthcare, "surgery", false, true},
		{types.CategoryHousing, "rent", true, false},
	}
	if diff := cmp.Diff(want, flats); diff != "" {
		t.Errorf("Mentions() mismatch (-want +got):\n%s", diff)
	}
}

func TestMentionsDropNestedHits(t *testing.T) {
	x := newExtractor(t)
	got := x.Mentions(x.View("we ended up in the emergency room"))
	require.Len(t, got, 1)
	assert.Equal(t, types.CategoryHealthcare, got[0].Category)
	assert.Equal(t, "emergency_room", got[0].Keyword)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.Category
		rule string
	}{
		{"safety wins", "my rent is late and he is abusive", types.CategorySafety, RuleSafety},
		{"direct ask", "Also dealing with surgery, but really I need $500 for rent", types.CategoryHousing, RuleDirectAsk},
		{"priority among primaries", "the car broke down and the electric bill is overdue", types.CategoryUtilities, RulePrimary},
		{"only secondary", "on top of that the dentist", types.CategoryHealthcare, RulePriority},
		{"nothing", "I just wanted to say thanks", types.CategoryOther, RuleNone},
	}
	x := newExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Resolve(x.View(tt.text))
			assert.Equal(t, tt.want, got.Category)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestStripSecondary(t *testing.T) {
	x := newExtractor(t)
	assert.Equal(t, ", but really i need $500 for rent",
		x.StripSecondary("also dealing with surgery, but really i need $500 for rent"))
	assert.Equal(t, "i need rent help", x.StripSecondary("i need rent help"))
	assert.Equal(t, "i need rent help.", x.StripSecondary("i need rent help. also the car"))
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"my name is", "Hi, my name is Maria Lopez and I need help", "Maria Lopez", true},
		{"filler after cue", "This is, um, Dana calling about rent", "Dana", true},
		{"i'm", "I'm Terrell, I need help with my rent", "Terrell", true},
		{"lower case strong cue", "hi my name is uh jordan and i need help", "Jordan", true},
		{"stop word after cue", "I'm Really struggling with rent", "", false},
		{"weak cue lower case", "i'm behind on rent", "", false},
		{"no cue", "I need help with rent", "", false},
	}
	x := newExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.Name(x.View(tt.text))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanName(t *testing.T) {
	x := newExtractor(t)
	tests := map[string]string{
		"um Maria":       "Maria",
		"Maria and":      "Maria",
		"  Maria Lopez,": "Maria Lopez",
		"uh so Dana":     "Dana",
		"calling":        "",
		"O'Neil":         "O'Neil",
	}
	for in, want := range tests {
		got := x.CleanName(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, x.CleanName(got), "CleanName must be idempotent for %q", in)
	}
}

func TestNameChecks(t *testing.T) {
	x := newExtractor(t)
	assert.True(t, x.IsNonName(""))
	assert.True(t, x.IsNonName("Calling"))
	assert.True(t, x.IsNonName("R2D2"))
	assert.True(t, x.IsNonName("J"))
	assert.False(t, x.IsNonName("Maria Lopez"))

	assert.True(t, x.HasFillerPrefix("um Maria"))
	assert.False(t, x.HasFillerPrefix("Maria"))
	assert.True(t, x.HasTrailingStopword("Maria and"))
	assert.False(t, x.HasTrailingStopword("Maria"))

	v := x.View("My name is Maria")
	assert.True(t, Occurs(v, "maria"))
	assert.False(t, Occurs(v, "Dana"))
	assert.False(t, Occurs(v, " "))
}

func TestExtract(t *testing.T) {
	x := newExtractor(t)
	got := x.Extract(x.View("My name is Maria and I was evicted last week"))
	assert.Equal(t, types.Fields{Category: types.CategoryHousing, Name: "Maria"}, got)
}
