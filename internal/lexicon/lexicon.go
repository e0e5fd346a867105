// Package lexicon loads the versioned keyword, phrase and pattern tables used by the
// urgency, amount, extraction and correction engines.
//
// The tables are pure data: an embedded default.yaml (overridable from disk) is
// compiled once into regular expressions and then shared read-only by every engine.
// All patterns are RE2, so matching is linear in the transcript length.
package lexicon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"intake/internal/types"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLexicon is wrapped by every load or compile failure.
var ErrInvalidLexicon = errors.New("invalid lexicon")

//go:embed default.yaml
var defaultYAML []byte

// Urgency layer names, in aggregation order.
const (
	LayerExplicit    = "explicit"
	LayerContextual  = "contextual"
	LayerTemporal    = "temporal"
	LayerEmotional   = "emotional"
	LayerConsequence = "consequence"
	LayerSafety      = "safety"
)

// LayerNames lists every layer a lexicon must define.
var LayerNames = []string{
	LayerExplicit, LayerContextual, LayerTemporal,
	LayerEmotional, LayerConsequence, LayerSafety,
}

// TierCritical is the tier name whose safety hits force a CRITICAL level.
const TierCritical = "critical"

// =============================================================================
// DOCUMENT (YAML SHAPE)
// =============================================================================

// Document is the on-disk shape of a lexicon file.
type Document struct {
	Version        string              `yaml:"version"`
	Urgency        UrgencyDoc          `yaml:"urgency"`
	Categories     []CategoryDoc       `yaml:"categories"`
	InherentCrisis map[string][]string `yaml:"inherent_crisis"`
	Cues           CuesDoc             `yaml:"cues"`
	Name           NameDoc             `yaml:"name"`
	Amount         AmountDoc           `yaml:"amount"`
}

// UrgencyDoc holds the layer tables.
type UrgencyDoc struct {
	Layers []LayerDoc `yaml:"layers"`
}

// LayerDoc describes one urgency layer.
type LayerDoc struct {
	Name            string    `yaml:"name"`
	LowMarker       *TierDoc  `yaml:"low_marker,omitempty"`
	SkipOnLowMarker string    `yaml:"skip_on_low_marker,omitempty"`
	NegatedTiers    []string  `yaml:"negated_tiers,omitempty"`
	NegationWindow  int       `yaml:"negation_window,omitempty"`
	Tiers           []TierDoc `yaml:"tiers"`
}

// TierDoc is a named, weighted group of phrases and patterns.
type TierDoc struct {
	Name     string       `yaml:"name"`
	Weight   float64      `yaml:"weight"`
	Phrases  []string     `yaml:"phrases,omitempty"`
	Patterns []PatternDoc `yaml:"patterns,omitempty"`
}

// PatternDoc is a labelled regular expression. Expressions may use the
// placeholders {amt}, {amt2}, {usd} and {count}.
type PatternDoc struct {
	Label string `yaml:"label"`
	Expr  string `yaml:"expr"`
}

// CategoryDoc lists the keywords that mention a category.
type CategoryDoc struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// CuesDoc holds the cross-cutting cue word lists.
type CuesDoc struct {
	NeedVerbs        []string `yaml:"need_verbs"`
	Negations        []string `yaml:"negations"`
	HighValue        []string `yaml:"high_value"`
	SecondaryMarkers []string `yaml:"secondary_markers"`
	Fillers          []string `yaml:"fillers"`
}

// NameDoc holds the caller-name cues and filters.
type NameDoc struct {
	Cues      []NameCueDoc `yaml:"cues"`
	Fillers   []string     `yaml:"fillers"`
	Stopwords []string     `yaml:"stopwords"`
}

// NameCueDoc is a phrase introducing a name. Strong cues are also trusted on the
// lower-cased fuzz-cleaned view.
type NameCueDoc struct {
	Phrase string `yaml:"phrase"`
	Strong bool   `yaml:"strong,omitempty"`
}

// AmountDoc holds the amount-pass tables.
type AmountDoc struct {
	Spoken     SpokenDoc          `yaml:"spoken"`
	Explicit   []AmountPatternDoc `yaml:"explicit"`
	Contextual []AmountPatternDoc `yaml:"contextual"`
	Vague      []AmountPatternDoc `yaml:"vague"`
	Recovery   []AmountPatternDoc `yaml:"recovery"`
	Poison     []PoisonPatternDoc `yaml:"poison"`
}

// SpokenDoc sets the confidence of spoken-number candidates.
type SpokenDoc struct {
	Confidence     float64 `yaml:"confidence"`
	NeedConfidence float64 `yaml:"need_confidence"`
}

// AmountPatternDoc is one amount extraction rule.
type AmountPatternDoc struct {
	Label      string  `yaml:"label"`
	Expr       string  `yaml:"expr"`
	Op         string  `yaml:"op,omitempty"`
	Source     string  `yaml:"source,omitempty"`
	Confidence float64 `yaml:"confidence"`
	Value      float64 `yaml:"value,omitempty"`
	Min        float64 `yaml:"min,omitempty"`
	Max        float64 `yaml:"max,omitempty"`
}

// PoisonPatternDoc marks numbers that must never become a goal amount.
type PoisonPatternDoc struct {
	Label string `yaml:"label"`
	Kind  string `yaml:"kind"`
	Expr  string `yaml:"expr"`
}

// =============================================================================
// COMPILED LEXICON
// =============================================================================

// Lexicon is the compiled, read-only form of a Document.
type Lexicon struct {
	Version string

	layers map[string]*Layer

	Categories     []CategoryKeywords
	InherentCrisis map[types.Category]Set

	NeedVerbs        *regexp.Regexp
	Negations        *regexp.Regexp
	HighValue        *regexp.Regexp
	SecondaryMarkers *regexp.Regexp
	Fillers          *regexp.Regexp

	Name NameTables

	Amount AmountTables

	doc *Document
}

// Layer is a compiled urgency layer. The tier named by SkipOnLowMarker is the
// baseline need tier: a low marker suppresses it.
type Layer struct {
	Name            string
	LowMarker       *Tier
	SkipOnLowMarker string
	Tiers           []*Tier

	// Negations and NegationWindow gate the tiers marked Negatable: a hit
	// preceded by a negation cue in the same clause is ignored.
	Negations      *regexp.Regexp
	NegationWindow int
}

// Tier is a compiled, weighted matcher set.
type Tier struct {
	Name      string
	Weight    float64
	Matchers  Set
	Negatable bool
}

// CategoryKeywords is the compiled keyword set of one category.
type CategoryKeywords struct {
	Category types.Category
	Matchers Set
}

// NameTables holds the compiled name cues and word filters.
type NameTables struct {
	Cues       []*regexp.Regexp
	StrongCues []*regexp.Regexp
	Fillers    map[string]bool
	Stopwords  map[string]bool
}

// AmountTables holds the compiled amount-pass tables.
type AmountTables struct {
	SpokenConfidence     float64
	SpokenNeedConfidence float64

	Explicit   []*AmountPattern
	Contextual []*AmountPattern
	Vague      []*AmountPattern
	Recovery   []*AmountPattern
	Poison     []*PoisonPattern
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
	defaultErr  error
)

// Default returns the compiled embedded lexicon. It panics if the embedded tables
// do not compile, which is a build defect caught by the package tests.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		defaultLex, defaultErr = Parse(defaultYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", defaultErr))
	}
	return defaultLex
}

// DefaultYAML returns a copy of the embedded lexicon source.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Load reads and compiles a lexicon file.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse compiles a lexicon from YAML bytes.
func Parse(data []byte) (*Lexicon, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidLexicon, err)
	}
	return Compile(&doc)
}

// Layer returns the named urgency layer, or nil.
func (l *Lexicon) Layer(name string) *Layer {
	return l.layers[name]
}

// Document returns the source document the lexicon was compiled from.
func (l *Lexicon) Document() *Document {
	return l.doc
}

// CriticalSafety returns the label of the first critical-safety phrase found in
// text, if any.
func (l *Lexicon) CriticalSafety(text string) (string, bool) {
	layer := l.layers[LayerSafety]
	if layer == nil {
		return "", false
	}
	for _, tier := range layer.Tiers {
		if tier.Name != TierCritical {
			continue
		}
		if label, ok := tier.Matchers.First(text); ok {
			return label, true
		}
	}
	return "", false
}

// CategoryMatchers returns the keyword matchers for c, or nil.
func (l *Lexicon) CategoryMatchers(c types.Category) Set {
	for _, ck := range l.Categories {
		if ck.Category == c {
			return ck.Matchers
		}
	}
	return nil
}

// PatternCount reports the number of compiled matchers, for diagnostics.
func (l *Lexicon) PatternCount() int {
	n := 0
	for _, layer := range l.layers {
		if layer.LowMarker != nil {
			n += len(layer.LowMarker.Matchers)
		}
		for _, t := range layer.Tiers {
			n += len(t.Matchers)
		}
	}
	for _, c := range l.Categories {
		n += len(c.Matchers)
	}
	for _, s := range l.InherentCrisis {
		n += len(s)
	}
	a := l.Amount
	n += len(a.Explicit) + len(a.Contextual) + len(a.Vague) + len(a.Recovery) + len(a.Poison)
	return n
}
