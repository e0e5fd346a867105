package amount

import (
	"regexp"

	"intake/internal/transcript"
)

// =============================================================================
// PASS 4: AMBIGUITY REJECTION
// =============================================================================

// poison holds the numbers a transcript uses for something other than a goal.
type poison struct {
	values map[float64]Kind
	// scaled holds age×100 and age×1000, poisonous only for unmarked candidates.
	scaled map[float64]Kind
	spans  [][2]int
}

var digitGroup = regexp.MustCompile(`\d+`)

func (e *Engine) collectPoison(text string) poison {
	p := poison{values: map[float64]Kind{}, scaled: map[float64]Kind{}}
	for _, pat := range e.lex.Amount.Poison {
		for _, loc := range pat.Re.FindAllStringSubmatchIndex(text, -1) {
			kind := Kind(pat.Kind)
			if kind == KindOther {
				p.spans = append(p.spans, [2]int{loc[0], loc[1]})
				for _, d := range digitGroup.FindAllString(text[loc[0]:loc[1]], -1) {
					if v, ok := transcript.ParseNumber(d); ok {
						p.values[v] = kind
					}
				}
				continue
			}
			v, _, ok := figure(text, loc, pat.Re, "a1", "m1")
			if !ok {
				continue
			}
			if kind == KindDate && (v < 1900 || v > 2030) {
				continue
			}
			p.values[v] = kind
			if kind == KindAge {
				p.scaled[v*100] = kind
				p.scaled[v*1000] = kind
			}
		}
	}
	return p
}

// kindOf reports why v is poisoned, if it is.
func (p poison) kindOf(v float64, marked bool) (Kind, bool) {
	if k, ok := p.values[v]; ok {
		return k, true
	}
	if !marked {
		if k, ok := p.scaled[v]; ok {
			return k, true
		}
	}
	return "", false
}

func (p poison) inSpan(pos int) bool {
	for _, s := range p.spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

// reject filters pooled candidates. It returns the survivors and the rejection
// reasons in first-seen order.
func (e *Engine) reject(text string, cands []Candidate, p poison) ([]Candidate, []string) {
	var kept []Candidate
	var reasons []string
	seen := map[string]bool{}
	note := func(reason string) {
		if !seen[reason] {
			seen[reason] = true
			reasons = append(reasons, reason)
		}
	}

	for _, c := range cands {
		if reason := e.rejection(text, c, p); reason != "" {
			note("rejected:" + reason)
			continue
		}
		kept = append(kept, c)
	}
	return kept, reasons
}

func (e *Engine) rejection(text string, c Candidate, p poison) string {
	if p.inSpan(c.Start) {
		return string(KindOther)
	}
	if k, ok := p.kindOf(c.Value, c.Marked); ok {
		return string(k)
	}
	if !e.InRange(c.Value) {
		return "out_of_range"
	}
	if c.Confidence < e.cfg.StrongEvidence {
		if c.Value < e.cfg.SmallAmount && !e.needVerbBefore(text, c.Start) {
			return "small_unsupported"
		}
		if c.Value > e.cfg.LargeAmount && !e.lex.HighValue.MatchString(text) {
			return "large_unsupported"
		}
	}
	return ""
}

// InRange reports whether v lies within the accepted amount range.
func (e *Engine) InRange(v float64) bool {
	return v >= e.cfg.Min && v <= e.cfg.Max
}
