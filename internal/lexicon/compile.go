package lexicon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"intake/internal/types"
)

// =============================================================================
// PLACEHOLDERS
// =============================================================================

// number matches a dollar figure with optional thousands separators and cents.
const number = `\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?`

// multiplier scales a figure by a thousand; "thousand" may carry a spoken
// hundreds tail ("3 thousand five hundred").
const multiplier = `\s?(?:k|grand|thousand(?:\s+(?:and\s+)?(?:one|two|three|four|five|six|seven|eight|nine)\s+hundred)?)\b`

var placeholders = map[string]string{
	"{amt}":   `\$?\s?(?P<a1>` + number + `)(?P<m1>` + multiplier + `)?`,
	"{amt2}":  `\$?\s?(?P<a2>` + number + `)(?P<m2>` + multiplier + `)?`,
	"{usd}":   `\$\s?(?P<a1>` + number + `)(?P<m1>` + multiplier + `)?`,
	"{count}": `(?P<n>\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`,
}

// expand substitutes placeholders in expr. Each placeholder may appear at most once
// because the capture group names must stay unique.
func expand(expr string) (string, error) {
	groups := map[string]string{"{amt}": "a1", "{usd}": "a1"}
	seen := map[string]bool{}
	out := expr
	for token, repl := range placeholders {
		n := strings.Count(out, token)
		if n == 0 {
			continue
		}
		if n > 1 {
			return "", fmt.Errorf("placeholder %s used %d times", token, n)
		}
		if g, ok := groups[token]; ok {
			if seen[g] {
				return "", fmt.Errorf("placeholders {amt} and {usd} cannot be combined")
			}
			seen[g] = true
		}
		out = strings.Replace(out, token, repl, 1)
	}
	return out, nil
}

func compilePattern(expr string) (*regexp.Regexp, error) {
	expanded, err := expand(expr)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(`(?i)` + expanded)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// phraseExpr turns a literal phrase into a case-insensitive word-bounded expression.
func phraseExpr(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `\b` + strings.Join(words, `\s+`) + `\b`
}

// Label renders a phrase as a reason tag.
func Label(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), "_")
}

// compileWords builds one alternation over phrases, longest first so that the
// regexp prefers "on top of that" over "on top".
func compileWords(phrases []string) (*regexp.Regexp, error) {
	if len(phrases) == 0 {
		return regexp.MustCompile(`\b\B`), nil
	}
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("empty phrase")
		}
		words := strings.Fields(strings.ToLower(p))
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

// =============================================================================
// MATCHERS
// =============================================================================

// Matcher is a labelled compiled expression.
type Matcher struct {
	Label string
	re    *regexp.Regexp
}

// Hit is one located match.
type Hit struct {
	Label string
	Start int
	End   int
}

// Match reports whether the matcher finds text.
func (m Matcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// Regexp exposes the compiled expression.
func (m Matcher) Regexp() *regexp.Regexp {
	return m.re
}

// Set is an ordered list of matchers.
type Set []Matcher

// First returns the label of the first matcher that matches text.
func (s Set) First(text string) (string, bool) {
	for _, m := range s {
		if m.re.MatchString(text) {
			return m.Label, true
		}
	}
	return "", false
}

// Any reports whether any matcher matches text.
func (s Set) Any(text string) bool {
	_, ok := s.First(text)
	return ok
}

// Labels returns up to limit labels of matching matchers in table order
// (limit <= 0 means no limit).
func (s Set) Labels(text string, limit int) []string {
	var out []string
	for _, m := range s {
		if limit > 0 && len(out) >= limit {
			break
		}
		if m.re.MatchString(text) {
			out = append(out, m.Label)
		}
	}
	return out
}

// LabelsWhere is Labels restricted to matchers with at least one hit that keep
// accepts.
func (s Set) LabelsWhere(text string, limit int, keep func(start, end int) bool) []string {
	var out []string
	for _, m := range s {
		if limit > 0 && len(out) >= limit {
			break
		}
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			if keep(loc[0], loc[1]) {
				out = append(out, m.Label)
				break
			}
		}
	}
	return out
}

// FindAll returns every non-overlapping hit of every matcher, ordered by position.
func (s Set) FindAll(text string) []Hit {
	var hits []Hit
	for _, m := range s {
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			hits = append(hits, Hit{Label: m.Label, Start: loc[0], End: loc[1]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Start != hits[j].Start {
			return hits[i].Start < hits[j].Start
		}
		return hits[i].End > hits[j].End
	})
	return hits
}

func compileSet(phrases []string, patterns []PatternDoc) (Set, error) {
	set := make(Set, 0, len(phrases)+len(patterns))
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("empty phrase")
		}
		re, err := regexp.Compile(`(?i)` + phraseExpr(p))
		if err != nil {
			return nil, fmt.Errorf("phrase %q: %w", p, err)
		}
		set = append(set, Matcher{Label: Label(p), re: re})
	}
	for _, p := range patterns {
		if p.Label == "" {
			return nil, fmt.Errorf("pattern %q has no label", p.Expr)
		}
		re, err := compilePattern(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.Label, err)
		}
		set = append(set, Matcher{Label: p.Label, re: re})
	}
	return set, nil
}

// =============================================================================
// AMOUNT PATTERNS
// =============================================================================

// Op selects how an amount pattern turns its captures into a value.
type Op string

const (
	OpValue    Op = "value"    // a1
	OpMultiply Op = "multiply" // a1 * n
	OpAdd      Op = "add"      // a1 + a2
	OpFixed    Op = "fixed"    // Value
	OpRange    Op = "range"    // midpoint of [Min, Max]
	OpBetween  Op = "between"  // midpoint of [a1, a2]
)

// Candidate sources, ranked explicit > contextual > vague > inferred.
const (
	SourceExplicit   = "explicit"
	SourceContextual = "contextual"
	SourceVague      = "vague"
	SourceInferred   = "inferred"
)

// Poison kinds.
const (
	KindWage  = "wage"
	KindAge   = "age"
	KindDate  = "date"
	KindOther = "other"
)

// AmountPattern is a compiled amount extraction rule.
type AmountPattern struct {
	Label      string
	Op         Op
	Source     string
	Confidence float64
	Value      float64
	Min        float64
	Max        float64
	Re         *regexp.Regexp
}

// PoisonPattern is a compiled rule whose captured numbers are never goal amounts.
type PoisonPattern struct {
	Label string
	Kind  string
	Re    *regexp.Regexp
}

func compileAmountPatterns(docs []AmountPatternDoc, defaultOp Op, defaultSource string) ([]*AmountPattern, error) {
	out := make([]*AmountPattern, 0, len(docs))
	for _, d := range docs {
		if d.Label == "" {
			return nil, fmt.Errorf("amount pattern %q has no label", d.Expr)
		}
		p := &AmountPattern{
			Label:      d.Label,
			Op:         Op(d.Op),
			Source:     d.Source,
			Confidence: d.Confidence,
			Value:      d.Value,
			Min:        d.Min,
			Max:        d.Max,
		}
		if p.Op == "" {
			p.Op = defaultOp
		}
		if p.Source == "" {
			p.Source = defaultSource
		}
		if p.Confidence <= 0 || p.Confidence > 1 {
			return nil, fmt.Errorf("amount pattern %s: confidence %.2f outside (0,1]", d.Label, d.Confidence)
		}
		switch p.Source {
		case SourceExplicit, SourceContextual, SourceVague, SourceInferred:
		default:
			return nil, fmt.Errorf("amount pattern %s: unknown source %q", d.Label, p.Source)
		}
		re, err := compilePattern(d.Expr)
		if err != nil {
			return nil, fmt.Errorf("amount pattern %s: %w", d.Label, err)
		}
		p.Re = re
		if err := checkGroups(p); err != nil {
			return nil, fmt.Errorf("amount pattern %s: %w", d.Label, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func checkGroups(p *AmountPattern) error {
	has := func(name string) bool { return p.Re.SubexpIndex(name) >= 0 }
	switch p.Op {
	case OpValue:
		if !has("a1") {
			return fmt.Errorf("op value needs {amt} or {usd}")
		}
	case OpMultiply:
		if !has("a1") || !has("n") {
			return fmt.Errorf("op multiply needs {amt} and {count}")
		}
	case OpAdd, OpBetween:
		if !has("a1") || !has("a2") {
			return fmt.Errorf("op %s needs {amt} and {amt2}", p.Op)
		}
	case OpFixed:
		if p.Value <= 0 {
			return fmt.Errorf("op fixed needs a positive value")
		}
	case OpRange:
		if p.Min <= 0 || p.Max <= p.Min {
			return fmt.Errorf("op range needs 0 < min < max")
		}
	default:
		return fmt.Errorf("unknown op %q", p.Op)
	}
	return nil
}

func compilePoison(docs []PoisonPatternDoc) ([]*PoisonPattern, error) {
	out := make([]*PoisonPattern, 0, len(docs))
	for _, d := range docs {
		switch d.Kind {
		case KindWage, KindAge, KindDate, KindOther:
		default:
			return nil, fmt.Errorf("poison pattern %s: unknown kind %q", d.Label, d.Kind)
		}
		re, err := compilePattern(d.Expr)
		if err != nil {
			return nil, fmt.Errorf("poison pattern %s: %w", d.Label, err)
		}
		out = append(out, &PoisonPattern{Label: d.Label, Kind: d.Kind, Re: re})
	}
	return out, nil
}

// =============================================================================
// COMPILE
// =============================================================================

// Compile validates doc and compiles every table.
func Compile(doc *Document) (*Lexicon, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidLexicon)
	}
	lex, err := compile(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLexicon, err)
	}
	return lex, nil
}

func compile(doc *Document) (*Lexicon, error) {
	if strings.TrimSpace(doc.Version) == "" {
		return nil, fmt.Errorf("version is required")
	}
	lex := &Lexicon{
		Version:        doc.Version,
		layers:         make(map[string]*Layer, len(LayerNames)),
		InherentCrisis: make(map[types.Category]Set),
		doc:            doc,
	}

	if err := lex.compileLayers(doc.Urgency.Layers); err != nil {
		return nil, err
	}

	for _, c := range doc.Categories {
		cat, ok := types.ParseCategory(c.Category)
		if !ok || cat == types.CategoryOther {
			return nil, fmt.Errorf("categories: unknown category %q", c.Category)
		}
		set, err := compileSet(c.Keywords, nil)
		if err != nil {
			return nil, fmt.Errorf("categories %s: %w", cat, err)
		}
		lex.Categories = append(lex.Categories, CategoryKeywords{Category: cat, Matchers: set})
	}
	if len(lex.Categories) == 0 {
		return nil, fmt.Errorf("categories: at least one category is required")
	}

	for name, phrases := range doc.InherentCrisis {
		cat, ok := types.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("inherent_crisis: unknown category %q", name)
		}
		set, err := compileSet(phrases, nil)
		if err != nil {
			return nil, fmt.Errorf("inherent_crisis %s: %w", cat, err)
		}
		lex.InherentCrisis[cat] = set
	}

	words := []struct {
		name string
		list []string
		dst  **regexp.Regexp
	}{
		{"need_verbs", doc.Cues.NeedVerbs, &lex.NeedVerbs},
		{"negations", doc.Cues.Negations, &lex.Negations},
		{"high_value", doc.Cues.HighValue, &lex.HighValue},
		{"secondary_markers", doc.Cues.SecondaryMarkers, &lex.SecondaryMarkers},
		{"fillers", doc.Cues.Fillers, &lex.Fillers},
	}
	for _, w := range words {
		if len(w.list) == 0 {
			return nil, fmt.Errorf("cues.%s is required", w.name)
		}
		re, err := compileWords(w.list)
		if err != nil {
			return nil, fmt.Errorf("cues.%s: %w", w.name, err)
		}
		*w.dst = re
	}
	for _, layer := range lex.layers {
		layer.Negations = lex.Negations
	}

	if err := lex.compileName(doc.Name); err != nil {
		return nil, err
	}
	if err := lex.compileAmount(doc.Amount); err != nil {
		return nil, err
	}
	return lex, nil
}

func (l *Lexicon) compileLayers(docs []LayerDoc) error {
	for _, ld := range docs {
		if !knownLayer(ld.Name) {
			return fmt.Errorf("urgency: unknown layer %q", ld.Name)
		}
		if _, dup := l.layers[ld.Name]; dup {
			return fmt.Errorf("urgency: duplicate layer %q", ld.Name)
		}
		if len(ld.Tiers) == 0 {
			return fmt.Errorf("urgency.%s: at least one tier is required", ld.Name)
		}
		if ld.NegationWindow < 0 {
			return fmt.Errorf("urgency.%s: negation_window must not be negative", ld.Name)
		}
		layer := &Layer{Name: ld.Name, SkipOnLowMarker: ld.SkipOnLowMarker, NegationWindow: ld.NegationWindow}
		tierNames := map[string]bool{}
		for _, td := range ld.Tiers {
			tier, err := compileTier(ld.Name, td)
			if err != nil {
				return err
			}
			if tierNames[tier.Name] {
				return fmt.Errorf("urgency.%s: duplicate tier %q", ld.Name, tier.Name)
			}
			tierNames[tier.Name] = true
			layer.Tiers = append(layer.Tiers, tier)
		}
		if ld.LowMarker != nil {
			tier, err := compileTier(ld.Name, *ld.LowMarker)
			if err != nil {
				return err
			}
			layer.LowMarker = tier
		}
		negated := map[string]bool{}
		for _, name := range ld.NegatedTiers {
			if !tierNames[name] {
				return fmt.Errorf("urgency.%s: negated_tiers names unknown tier %q", ld.Name, name)
			}
			negated[name] = true
		}
		if len(negated) > 0 && ld.NegationWindow == 0 {
			return fmt.Errorf("urgency.%s: negated_tiers needs a negation_window", ld.Name)
		}
		if ld.Name == LayerSafety && len(negated) > 0 {
			return fmt.Errorf("urgency.safety: tiers cannot be negated")
		}
		for _, tier := range layer.Tiers {
			tier.Negatable = negated[tier.Name]
		}
		if ld.SkipOnLowMarker != "" && !tierNames[ld.SkipOnLowMarker] {
			return fmt.Errorf("urgency.%s: skip_on_low_marker names unknown tier %q", ld.Name, ld.SkipOnLowMarker)
		}
		if ld.Name == LayerSafety && !tierNames[TierCritical] {
			return fmt.Errorf("urgency.safety: a %q tier is required", TierCritical)
		}
		l.layers[ld.Name] = layer
	}
	for _, name := range LayerNames {
		if l.layers[name] == nil {
			return fmt.Errorf("urgency: layer %q is missing", name)
		}
	}
	return nil
}

func compileTier(layer string, td TierDoc) (*Tier, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("urgency.%s: tier without a name", layer)
	}
	if td.Weight < 0 || td.Weight > 1 {
		return nil, fmt.Errorf("urgency.%s.%s: weight %.2f outside [0,1]", layer, td.Name, td.Weight)
	}
	if len(td.Phrases)+len(td.Patterns) == 0 {
		return nil, fmt.Errorf("urgency.%s.%s: no phrases or patterns", layer, td.Name)
	}
	set, err := compileSet(td.Phrases, td.Patterns)
	if err != nil {
		return nil, fmt.Errorf("urgency.%s.%s: %w", layer, td.Name, err)
	}
	return &Tier{Name: td.Name, Weight: td.Weight, Matchers: set}, nil
}

func knownLayer(name string) bool {
	for _, n := range LayerNames {
		if n == name {
			return true
		}
	}
	return false
}

const nameToken = `[\p{L}'\-]*`

func (l *Lexicon) compileName(doc NameDoc) error {
	if len(doc.Cues) == 0 {
		return fmt.Errorf("name.cues is required")
	}
	l.Name.Fillers = wordSet(doc.Fillers)
	l.Name.Stopwords = wordSet(doc.Stopwords)

	fillers := make([]string, 0, len(doc.Fillers))
	for _, f := range doc.Fillers {
		fillers = append(fillers, regexp.QuoteMeta(strings.ToLower(f)))
	}
	fillerSkip := ""
	if len(fillers) > 0 {
		fillerSkip = `(?:(?i:` + strings.Join(fillers, "|") + `)[\s,]+)*`
	}

	for _, cue := range doc.Cues {
		words := strings.Fields(strings.ToLower(cue.Phrase))
		if len(words) == 0 {
			return fmt.Errorf("name.cues: empty phrase")
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		cueExpr := strings.Join(words, `\s+`)
		cased, err := regexp.Compile(`(?:^|[^\p{L}])(?i:` + cueExpr + `)[\s,]+` + fillerSkip +
			`(?P<name>\p{Lu}` + nameToken + `(?:\s+\p{Lu}` + nameToken + `)?)`)
		if err != nil {
			return fmt.Errorf("name cue %q: %w", cue.Phrase, err)
		}
		l.Name.Cues = append(l.Name.Cues, cased)
		if cue.Strong {
			lower, err := regexp.Compile(`\b` + cueExpr + `\s+` + fillerSkip +
				`(?P<name>\p{Ll}` + nameToken + `(?:\s+\p{Ll}` + nameToken + `)?)`)
			if err != nil {
				return fmt.Errorf("name cue %q: %w", cue.Phrase, err)
			}
			l.Name.StrongCues = append(l.Name.StrongCues, lower)
		}
	}
	return nil
}

func wordSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return out
}

func (l *Lexicon) compileAmount(doc AmountDoc) error {
	var err error
	a := &l.Amount
	a.SpokenConfidence = doc.Spoken.Confidence
	a.SpokenNeedConfidence = doc.Spoken.NeedConfidence
	if a.SpokenConfidence <= 0 || a.SpokenConfidence > 1 || a.SpokenNeedConfidence < a.SpokenConfidence || a.SpokenNeedConfidence > 1 {
		return fmt.Errorf("amount.spoken: confidences must satisfy 0 < confidence <= need_confidence <= 1")
	}
	if a.Explicit, err = compileAmountPatterns(doc.Explicit, OpValue, SourceExplicit); err != nil {
		return fmt.Errorf("amount.explicit: %w", err)
	}
	if a.Contextual, err = compileAmountPatterns(doc.Contextual, OpValue, SourceContextual); err != nil {
		return fmt.Errorf("amount.contextual: %w", err)
	}
	if a.Vague, err = compileAmountPatterns(doc.Vague, OpRange, SourceVague); err != nil {
		return fmt.Errorf("amount.vague: %w", err)
	}
	if a.Recovery, err = compileAmountPatterns(doc.Recovery, OpValue, SourceExplicit); err != nil {
		return fmt.Errorf("amount.recovery: %w", err)
	}
	if a.Poison, err = compilePoison(doc.Poison); err != nil {
		return fmt.Errorf("amount.poison: %w", err)
	}
	if len(a.Explicit) == 0 {
		return fmt.Errorf("amount.explicit: at least one pattern is required")
	}
	return nil
}

// CompilePhrases compiles literal phrases into a Set, for callers that carry their
// own keyword lists (for example config-driven modifier rules).
func CompilePhrases(phrases []string) (Set, error) {
	set, err := compileSet(phrases, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLexicon, err)
	}
	return set, nil
}
