package correction

import (
	"fmt"

	"intake/internal/extract"
	"intake/internal/types"
)

// =============================================================================
// CATEGORY CHAIN
// =============================================================================
// Every category rule replaces the current value with the resolved category of
// the transcript, and only when that resolution names a real category.

func (e *Engine) mentions(in *Input) []extract.Mention {
	if in.mentions == nil {
		in.mentions = e.extractor.Mentions(in.T)
		if in.mentions == nil {
			in.mentions = []extract.Mention{}
		}
	}
	return in.mentions
}

func (e *Engine) resolved(in *Input) extract.Resolution {
	if in.resolved == nil {
		r := e.extractor.Resolve(in.T)
		in.resolved = &r
	}
	return *in.resolved
}

// deriveCategory wraps the resolved category with a rule specific reason.
func (e *Engine) deriveCategory(reason func(cur, next types.Category) string) func(*Input, types.Category) (types.Category, string, bool) {
	return func(in *Input, cur types.Category) (types.Category, string, bool) {
		r := e.resolved(in)
		if r.Category.IsUnresolved() || r.Category == cur {
			return cur, "", false
		}
		return r.Category, reason(cur, r.Category), true
	}
}

func (e *Engine) categoryChain() Chain[types.Category] {
	return Chain[types.Category]{
		Field: FieldCategory,
		Equal: func(a, b types.Category) bool { return a == b },
		Rules: []Rule[types.Category]{
			{
				Name:   "secondary_mention_suppression",
				Detect: e.secondaryOnly,
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("Secondary %s mention overridden by primary need %s", cur, next)
				}),
			},
			{
				Name: "other_resolution",
				Detect: func(in *Input, cur types.Category) bool {
					return cur.IsUnresolved() && len(e.mentions(in)) > 0
				},
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("Unresolved category resolved to %s from keyword evidence", next)
				}),
			},
			{
				Name: "safety_escalation",
				Detect: func(in *Input, cur types.Category) bool {
					_, ok := e.lex.CriticalSafety(in.T.Normalized())
					return ok && cur != types.CategorySafety
				},
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("Critical safety language escalates %s to %s", cur, next)
				}),
			},
			{
				Name: "emergency_misclassification",
				Detect: func(in *Input, cur types.Category) bool {
					if cur != types.CategoryEmergency && cur != types.CategorySafety {
						return false
					}
					if _, ok := e.lex.CriticalSafety(in.T.Normalized()); ok {
						return false
					}
					return !hasMention(e.mentions(in), cur, false)
				},
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("%s not supported by the transcript; need is %s", cur, next)
				}),
			},
			{
				Name: "multi_need_priority",
				Detect: func(in *Input, cur types.Category) bool {
					ms := e.mentions(in)
					return hasMention(ms, cur, true) && len(primaryCategories(ms)) > 1
				},
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("Multiple needs mentioned; %s takes priority over %s", next, cur)
				}),
			},
			{
				Name: "direct_ask_override",
				Detect: func(in *Input, cur types.Category) bool {
					for _, m := range e.mentions(in) {
						if m.Direct && !m.Secondary && m.Category != cur {
							return true
						}
					}
					return false
				},
				Derive: e.deriveCategory(func(cur, next types.Category) string {
					return fmt.Sprintf("Direct ask for %s overrides %s", next, cur)
				}),
			},
		},
	}
}

// secondaryOnly detects a current category supported only by secondary mentions
// while another category has a primary mention.
func (e *Engine) secondaryOnly(in *Input, cur types.Category) bool {
	ms := e.mentions(in)
	if cur.IsUnresolved() || !hasMention(ms, cur, false) || hasMention(ms, cur, true) {
		return false
	}
	for _, m := range ms {
		if m.Category != cur && !m.Secondary {
			return true
		}
	}
	return false
}

func hasMention(ms []extract.Mention, c types.Category, primaryOnly bool) bool {
	for _, m := range ms {
		if m.Category == c && (!primaryOnly || !m.Secondary) {
			return true
		}
	}
	return false
}

func primaryCategories(ms []extract.Mention) map[types.Category]bool {
	out := map[types.Category]bool{}
	for _, m := range ms {
		if !m.Secondary {
			out[m.Category] = true
		}
	}
	return out
}
