package amount

import (
	"intake/internal/lexicon"
	"intake/internal/transcript"
)

// =============================================================================
// PASS 1: EXPLICIT
// =============================================================================

// explicitPass matches direct statements ("need $X", "$X total") and the first
// spoken-number phrase.
func (e *Engine) explicitPass(text string) []Candidate {
	var out []Candidate
	for _, p := range e.lex.Amount.Explicit {
		out = append(out, evaluate(p, text, 1)...)
	}
	if sp, start, end, ok := lexicon.FindSpoken(text); ok && !withinFigure(out, start) {
		conf := e.lex.Amount.SpokenConfidence
		if e.needVerbBefore(text, start) {
			conf = e.lex.Amount.SpokenNeedConfidence
		}
		out = append(out, Candidate{
			Value:      sp.Value,
			Kind:       KindGoal,
			Confidence: conf,
			Snippet:    transcript.Snippet(text, start, end),
			Source:     SourceExplicit,
			Label:      "spoken",
			Start:      start,
			End:        end,
			Marked:     currencyWords.MatchString(transcript.After(text, end, 10)),
		})
	}
	return out
}

// =============================================================================
// PASS 2: CONTEXTUAL
// =============================================================================

// contextualPass derives amounts by arithmetic or direct assignment and maps the
// fixed vague table, scaled by category.
func (e *Engine) contextualPass(text string, scale float64) []Candidate {
	var out []Candidate
	for _, p := range e.lex.Amount.Contextual {
		out = append(out, evaluate(p, text, scale)...)
	}
	return out
}

// =============================================================================
// PASS 3: VAGUE
// =============================================================================

// vaguePass maps range expressions to the midpoint of the category-scaled range.
func (e *Engine) vaguePass(text string, scale float64) []Candidate {
	var out []Candidate
	for _, p := range e.lex.Amount.Vague {
		out = append(out, evaluate(p, text, scale)...)
	}
	return out
}

// withinFigure reports whether pos lies inside a figure another candidate already
// parsed, such as the "five hundred" of "3 thousand five hundred".
func withinFigure(cs []Candidate, pos int) bool {
	for _, c := range cs {
		if pos > c.Start && pos < c.End {
			return true
		}
	}
	return false
}

func (e *Engine) needVerbBefore(text string, pos int) bool {
	return e.lex.NeedVerbs.MatchString(transcript.Before(text, pos, e.cfg.ProximityWindow))
}

func (e *Engine) negationBefore(text string, pos int) bool {
	return e.lex.Negations.MatchString(transcript.Before(text, pos, e.cfg.NegationWindow))
}
