// Package amount implements the five-pass goal-amount engine: explicit, contextual
// and vague extraction, ambiguity rejection, then validation and selection.
package amount

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"intake/internal/lexicon"
	"intake/internal/transcript"
)

// Kind tags what a number denotes.
type Kind string

const (
	KindGoal  Kind = "goal"
	KindWage  Kind = lexicon.KindWage
	KindAge   Kind = lexicon.KindAge
	KindDate  Kind = lexicon.KindDate
	KindOther Kind = lexicon.KindOther
)

// Source tells which pass produced the selected amount.
type Source string

const (
	SourceExplicit   Source = lexicon.SourceExplicit
	SourceContextual Source = lexicon.SourceContextual
	SourceVague      Source = lexicon.SourceVague
	SourceInferred   Source = lexicon.SourceInferred
	SourceNone       Source = "none"
)

// rank orders sources for tie-breaking; lower is stronger.
func (s Source) rank() int {
	switch s {
	case SourceExplicit:
		return 0
	case SourceContextual:
		return 1
	case SourceVague:
		return 2
	case SourceInferred:
		return 3
	}
	return 4
}

// Candidate is one extracted number. Its identity is Value plus Kind.
type Candidate struct {
	Value      float64 `json:"value"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet"`
	Source     Source  `json:"source"`
	Label      string  `json:"label"`
	Start      int     `json:"-"`
	End        int     `json:"-"`
	// Marked is set when the figure carried a currency marker ($, dollars, k, grand).
	Marked bool `json:"-"`

	// span is set for range expressions; figures inside one are not goals of their own.
	span        bool
	adjustments []string
}

type candidateKey struct {
	value float64
	kind  Kind
}

func (c Candidate) key() candidateKey { return candidateKey{c.Value, c.Kind} }

// better reports whether c outranks o: confidence, then source, then position, then value.
func (c Candidate) better(o Candidate) bool {
	if c.Confidence != o.Confidence {
		return c.Confidence > o.Confidence
	}
	if c.Source.rank() != o.Source.rank() {
		return c.Source.rank() < o.Source.rank()
	}
	if c.Start != o.Start {
		return c.Start < o.Start
	}
	return c.Value < o.Value
}

// pool merges candidates of the extraction passes, keeping the strongest per identity.
func pool(groups ...[]Candidate) []Candidate {
	best := map[candidateKey]int{}
	var out []Candidate
	for _, g := range groups {
		for _, c := range g {
			if i, ok := best[c.key()]; ok {
				if c.better(out[i]) {
					out[i] = c
				}
				continue
			}
			best[c.key()] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// outsideRanges drops candidates whose figure starts inside a range expression
// found by another pattern, so "between $500 and $700 for rent" yields the
// midpoint rather than either end.
func outsideRanges(cs []Candidate, ranges []Candidate) []Candidate {
	if len(ranges) == 0 {
		return cs
	}
	out := cs[:0:0]
	for _, c := range cs {
		inside := false
		for _, r := range ranges {
			if !c.span && c.Start >= r.Start && c.Start < r.End {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, c)
		}
	}
	return out
}

func rangeSpans(groups ...[]Candidate) []Candidate {
	var out []Candidate
	for _, g := range groups {
		for _, c := range g {
			if c.span {
				out = append(out, c)
			}
		}
	}
	return out
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].better(cs[j]) })
}

// =============================================================================
// MATCHING
// =============================================================================

var currencyWords = regexp.MustCompile(`\$|\bdollars?\b|\bbucks?\b`)

func group(text string, loc []int, re *regexp.Regexp, name string) (string, int) {
	idx := re.SubexpIndex(name)
	if idx < 0 || loc[2*idx] < 0 {
		return "", -1
	}
	return text[loc[2*idx]:loc[2*idx+1]], loc[2*idx]
}

// figure parses the amount captured by group a (a1/a2) with its multiplier m.
func figure(text string, loc []int, re *regexp.Regexp, a, m string) (float64, int, bool) {
	s, pos := group(text, loc, re, a)
	if pos < 0 {
		return 0, -1, false
	}
	v, ok := transcript.ParseNumber(s)
	if !ok {
		return 0, -1, false
	}
	mult, _ := group(text, loc, re, m)
	return scaleBy(v, mult), pos, true
}

// scaleBy applies a captured multiplier: a thousand, plus the spoken hundreds
// of a "thousand five hundred" tail.
func scaleBy(v float64, mult string) float64 {
	words := strings.Fields(strings.ToLower(mult))
	if len(words) == 0 {
		return v
	}
	v *= 1000
	if n := len(words); n >= 3 && words[n-1] == "hundred" {
		if h, ok := transcript.ParseCount(words[n-2]); ok {
			v += float64(h) * 100
		}
	}
	return v
}

func hasMultiplier(text string, loc []int, re *regexp.Regexp, m string) bool {
	s, _ := group(text, loc, re, m)
	return strings.TrimSpace(s) != ""
}

// evaluate turns every match of p in text into candidates. scale applies to the
// approximate ops (fixed, range, between).
func evaluate(p *lexicon.AmountPattern, text string, scale float64) []Candidate {
	var out []Candidate
	for _, loc := range p.Re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		var v float64
		numStart := start

		switch p.Op {
		case lexicon.OpValue:
			a, pos, ok := figure(text, loc, p.Re, "a1", "m1")
			if !ok {
				continue
			}
			v, numStart = a, pos
		case lexicon.OpMultiply:
			a, pos, ok := figure(text, loc, p.Re, "a1", "m1")
			if !ok {
				continue
			}
			ns, _ := group(text, loc, p.Re, "n")
			n, ok := transcript.ParseCount(ns)
			if !ok || n <= 0 {
				continue
			}
			v, numStart = a*float64(n), pos
		case lexicon.OpAdd:
			a, pos, ok1 := figure(text, loc, p.Re, "a1", "m1")
			b, _, ok2 := figure(text, loc, p.Re, "a2", "m2")
			if !ok1 || !ok2 {
				continue
			}
			v, numStart = a+b, pos
		case lexicon.OpBetween:
			a, pos, ok1 := figure(text, loc, p.Re, "a1", "m1")
			b, _, ok2 := figure(text, loc, p.Re, "a2", "m2")
			if !ok1 || !ok2 {
				continue
			}
			// "2 to 3 thousand": the trailing multiplier applies to both ends.
			if !hasMultiplier(text, loc, p.Re, "m1") && hasMultiplier(text, loc, p.Re, "m2") {
				a *= 1000
			}
			lo, hi := min(a, b), max(a, b)
			v, numStart = (lo+hi)/2*scale, pos
		case lexicon.OpFixed:
			v = p.Value * scale
		case lexicon.OpRange:
			v = (p.Min + p.Max) / 2 * scale
		default:
			continue
		}

		match := text[start:end]
		out = append(out, Candidate{
			Value:      roundCents(v),
			Kind:       KindGoal,
			Confidence: p.Confidence,
			Snippet:    transcript.Snippet(text, start, end),
			Source:     Source(p.Source),
			Label:      p.Label,
			Start:      numStart,
			End:        end,
			Marked:     currencyWords.MatchString(match) || hasMultiplier(text, loc, p.Re, "m1"),
			span:       p.Op == lexicon.OpBetween,
		})
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
