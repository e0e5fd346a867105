package extract

import (
	"regexp"
	"sort"
	"strings"

	"intake/internal/transcript"
	"intake/internal/types"
)

// SecondaryWindow is how far (in bytes) before a keyword a secondary marker counts.
const SecondaryWindow = 25

// Resolution rules, in the order Resolve tries them.
const (
	RuleSafety    = "critical_safety"
	RuleDirectAsk = "direct_ask"
	RulePrimary   = "primary_mention"
	RulePriority  = "priority_mention"
	RuleNone      = "no_mention"
)

// Mention is one category keyword hit in the normalised transcript.
type Mention struct {
	Category types.Category `json:"category"`
	Keyword  string         `json:"keyword"`
	Start    int            `json:"start"`
	End      int            `json:"end"`
	// Direct is set when a need verb precedes the keyword in the same clause.
	Direct bool `json:"direct"`
	// Secondary is set when a marker such as "also" introduces the keyword.
	Secondary bool `json:"secondary"`
}

// Resolution is the outcome of multi-need category resolution.
type Resolution struct {
	Category types.Category `json:"category"`
	Rule     string         `json:"rule"`
	Keyword  string         `json:"keyword,omitempty"`
}

var clauseBreak = regexp.MustCompile(`[,.;!?]|\bbut\b`)

// clauseStart returns the offset just past the last clause break before pos.
func clauseStart(breaks [][]int, pos int) int {
	start := 0
	for _, b := range breaks {
		if b[1] > pos {
			break
		}
		start = b[1]
	}
	return start
}

// Mentions lists category keyword hits ordered by position. Hits nested inside a
// longer hit ("emergency" in "emergency room") are dropped.
func (x *Extractor) Mentions(t *transcript.Transcript) []Mention {
	text := t.Normalized()
	type hit struct {
		cat        types.Category
		label      string
		start, end int
	}
	var hits []hit
	for _, ck := range x.lex.Categories {
		for _, h := range ck.Matchers.FindAll(text) {
			hits = append(hits, hit{ck.Category, h.Label, h.Start, h.End})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end > hits[j].end
	})

	breaks := clauseBreak.FindAllStringIndex(text, -1)
	var out []Mention
	lastEnd := -1
	for _, h := range hits {
		if h.end <= lastEnd {
			continue
		}
		lastEnd = h.end

		cs := clauseStart(breaks, h.start)
		window := transcript.Before(text, h.start, SecondaryWindow)
		if offset := h.start - len(window); offset < cs {
			window = text[cs:h.start]
		}
		out = append(out, Mention{
			Category:  h.cat,
			Keyword:   h.label,
			Start:     h.start,
			End:       h.end,
			Direct:    x.lex.NeedVerbs.MatchString(text[cs:h.start]),
			Secondary: x.lex.SecondaryMarkers.MatchString(window),
		})
	}
	return out
}

// Resolve picks the primary category: SAFETY on critical-safety language, then the
// first direct ask that is not a secondary mention, then the highest-priority
// primary mention, then the highest-priority mention of any kind, else OTHER.
func (x *Extractor) Resolve(t *transcript.Transcript) Resolution {
	return x.resolve(t, x.Mentions(t))
}

func (x *Extractor) resolve(t *transcript.Transcript, ms []Mention) Resolution {
	if label, ok := x.lex.CriticalSafety(t.Normalized()); ok {
		return Resolution{Category: types.CategorySafety, Rule: RuleSafety, Keyword: label}
	}
	for _, m := range ms {
		if m.Direct && !m.Secondary {
			return Resolution{Category: m.Category, Rule: RuleDirectAsk, Keyword: m.Keyword}
		}
	}
	if m, ok := x.top(ms, true); ok {
		return Resolution{Category: m.Category, Rule: RulePrimary, Keyword: m.Keyword}
	}
	if m, ok := x.top(ms, false); ok {
		return Resolution{Category: m.Category, Rule: RulePriority, Keyword: m.Keyword}
	}
	return Resolution{Category: types.CategoryOther, Rule: RuleNone}
}

// top returns the highest-priority mention, earliest first on ties.
func (x *Extractor) top(ms []Mention, primaryOnly bool) (Mention, bool) {
	var best Mention
	found := false
	for _, m := range ms {
		if primaryOnly && m.Secondary {
			continue
		}
		if !found || x.rank(m.Category) < x.rank(best.Category) {
			best, found = m, true
		}
	}
	return best, found
}

// Outranks reports whether category a has a higher priority than b.
func (x *Extractor) Outranks(a, b types.Category) bool {
	return x.rank(a) < x.rank(b)
}

// StripSecondary removes every secondary clause: from a secondary marker up to the
// next clause break.
func (x *Extractor) StripSecondary(text string) string {
	locs := x.lex.SecondaryMarkers.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	pos := 0
	for _, loc := range locs {
		if loc[0] < pos {
			continue
		}
		b.WriteString(text[pos:loc[0]])
		end := len(text)
		if br := clauseBreak.FindStringIndex(text[loc[1]:]); br != nil {
			end = loc[1] + br[0]
		}
		pos = end
	}
	b.WriteString(text[pos:])
	return strings.Join(strings.Fields(b.String()), " ")
}
