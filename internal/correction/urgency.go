package correction

import (
	"fmt"
	"strings"

	"intake/internal/types"
	"intake/internal/urgency"
)

// =============================================================================
// URGENCY CHAIN
// =============================================================================

// crisisGuard reports independent justification for high urgency: critical safety
// language, or an inherent-crisis phrase of the category.
func (e *Engine) crisisGuard(in *Input) bool {
	text := in.T.Normalized()
	if _, ok := e.lex.CriticalSafety(text); ok {
		return true
	}
	return e.lex.InherentCrisis[in.Fields.Category].Any(text)
}

// deescalated assesses the transcript with secondary clauses removed, under the
// corrected category and amount.
func (e *Engine) deescalated(in *Input) (types.Level, bool) {
	stripped := e.extractor.StripSecondary(in.T.Normalized())
	if strings.Trim(stripped, " ,.;!?") == "" {
		return types.LevelLow, false
	}
	a := e.urgency.AssessOutcome(stripped, urgency.Context{Category: in.Fields.Category, Amount: in.Fields.Amount})
	if a.Failed() {
		return types.LevelLow, false
	}
	return a.Value.Level, true
}

func (e *Engine) deriveLowerLevel(format string) func(*Input, types.Level) (types.Level, string, bool) {
	return func(in *Input, cur types.Level) (types.Level, string, bool) {
		u, ok := e.deescalated(in)
		if !ok || u >= cur {
			return cur, "", false
		}
		return u, fmt.Sprintf(format, cur, u), true
	}
}

func (e *Engine) urgencyChain() Chain[types.Level] {
	return Chain[types.Level]{
		Field: FieldUrgency,
		Equal: func(a, b types.Level) bool { return a == b },
		Rules: []Rule[types.Level]{
			{
				Name: "safety_escalation",
				Detect: func(in *Input, cur types.Level) bool {
					_, ok := e.lex.CriticalSafety(in.T.Normalized())
					return ok && cur != types.LevelCritical
				},
				Derive: func(in *Input, cur types.Level) (types.Level, string, bool) {
					label, _ := e.lex.CriticalSafety(in.T.Normalized())
					return types.LevelCritical, fmt.Sprintf("Critical safety signal %s escalates %s to CRITICAL", label, cur), true
				},
			},
			{
				Name: "inherited_from_corrected_category",
				Detect: func(in *Input, cur types.Level) bool {
					return in.CategoryFixed && cur > types.LevelLow && !e.crisisGuard(in)
				},
				Derive: e.deriveLowerLevel("Urgency %s was inherited from a corrected category; reassessed as %s"),
			},
			{
				Name: "secondary_mention_inflation",
				Detect: func(in *Input, cur types.Level) bool {
					if cur == types.LevelLow || e.crisisGuard(in) {
						return false
					}
					for _, m := range e.mentions(in) {
						if m.Secondary && m.Category != in.Fields.Category {
							return true
						}
					}
					return false
				},
				Derive: e.deriveLowerLevel("Urgency %s inflated by a secondary mention; reassessed as %s"),
			},
		},
	}
}
