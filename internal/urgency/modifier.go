package urgency

import (
	"fmt"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/types"
)

// Modifier applies category-specific floors and capped boosts to an aggregated score.
type Modifier struct {
	floors   []modifierRule
	boosts   []modifierRule
	boostCap float64
	large    config.LargeAmountRule
}

// capEpsilon absorbs float residue when the running boost total meets the cap.
const capEpsilon = 1e-9

type modifierRule struct {
	config.ModifierRule
	keywords lexicon.Set
}

// NewModifier compiles the modifier table of cfg.
func NewModifier(cfg config.UrgencyConfig) (*Modifier, error) {
	m := &Modifier{boostCap: cfg.BoostCap, large: cfg.LargeAmount}
	for _, r := range cfg.Modifiers {
		rule := modifierRule{ModifierRule: r}
		if len(r.Keywords) > 0 {
			set, err := lexicon.CompilePhrases(r.Keywords)
			if err != nil {
				return nil, fmt.Errorf("failed to compile modifier %s: %w", r.Name, err)
			}
			rule.keywords = set
		}
		switch r.Kind {
		case config.ModifierFloor:
			m.floors = append(m.floors, rule)
		case config.ModifierBoost:
			m.boosts = append(m.boosts, rule)
		default:
			return nil, fmt.Errorf("modifier %s: unknown kind %q", r.Name, r.Kind)
		}
	}
	return m, nil
}

func (r modifierRule) applies(category types.Category, text string) bool {
	if r.Category != category {
		return false
	}
	return len(r.keywords) == 0 || r.keywords.Any(text)
}

// Modify adjusts score for category. Floors apply first; boosts are then gated by
// their score range and all of them, including the large-amount boost, draw from
// one running total bounded by the boost cap. The result is never below score.
func (m *Modifier) Modify(score float64, category types.Category, amount *float64, text string) (float64, []string) {
	out := score
	var reasons []string

	for _, r := range m.floors {
		if r.applies(category, text) && out < r.Value {
			out = r.Value
			reasons = append(reasons, "floor:"+r.Name)
		}
	}

	used := 0.0
	boost := func(name string, value float64) {
		add := min(value, m.boostCap-used)
		if add <= capEpsilon {
			return
		}
		out += add
		used += add
		reasons = append(reasons, "boost:"+name)
	}
	for _, r := range m.boosts {
		if r.applies(category, text) && out >= r.MinScore && out < r.MaxScore {
			boost(r.Name, r.Value)
		}
	}
	if amount != nil && m.large.Threshold > 0 && *amount >= m.large.Threshold {
		boost("large_amount", m.large.Boost)
	}

	return clamp01(max(out, score)), reasons
}
