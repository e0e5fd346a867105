// Package urgency implements the six-layer urgency engine: independent layer
// assessors, a weighted aggregator with critical overrides, a bounded category
// modifier and a threshold level mapper.
package urgency

import (
	"strings"

	"intake/internal/lexicon"
	"intake/internal/transcript"
)

// Layer names one independent urgency signal detector.
type Layer string

const (
	LayerExplicit    Layer = lexicon.LayerExplicit
	LayerContextual  Layer = lexicon.LayerContextual
	LayerTemporal    Layer = lexicon.LayerTemporal
	LayerEmotional   Layer = lexicon.LayerEmotional
	LayerConsequence Layer = lexicon.LayerConsequence
	LayerSafety      Layer = lexicon.LayerSafety
)

// Layers returns every layer in aggregation order.
func Layers() []Layer {
	return []Layer{LayerExplicit, LayerContextual, LayerTemporal, LayerEmotional, LayerConsequence, LayerSafety}
}

// LayerScore is the output of one layer for one transcript.
type LayerScore struct {
	Score   float64
	Reasons []string
	// Critical is set when a tier named "critical" matched.
	Critical bool
	// Baseline is set when the baseline need tier matched, which only happens
	// without a low marker.
	Baseline bool
}

// Assessor scores a transcript against one layer table.
type Assessor struct {
	layer      Layer
	table      *lexicon.Layer
	maxReasons int
}

// NewAssessor binds a compiled layer table.
func NewAssessor(table *lexicon.Layer, maxReasons int) *Assessor {
	return &Assessor{layer: Layer(table.Name), table: table, maxReasons: maxReasons}
}

// Layer returns the layer this assessor scores.
func (a *Assessor) Layer() Layer { return a.layer }

// Assess scores t. Every tier is evaluated and the score is the maximum weight of
// the matching tiers. A low-marker hit seeds the score and skips the tier named by
// the table's skip_on_low_marker; higher tiers still apply, except for hits that
// lie inside the low-marker phrase ("urgent" in "not urgent"). Hits of negatable
// tiers preceded by a negation in the same clause are ignored. A critical safety
// hit scores exactly 1.
func (a *Assessor) Assess(t *transcript.Transcript) LayerScore {
	text := t.Normalized()
	var out LayerScore
	skip := ""
	var marked []lexicon.Hit

	if lm := a.table.LowMarker; lm != nil {
		if label, ok := lm.Matchers.First(text); ok {
			out.Score = lm.Weight
			out.Reasons = append(out.Reasons, a.reason(lm.Name, label))
			skip = a.table.SkipOnLowMarker
			marked = lm.Matchers.FindAll(text)
		}
	}

	for _, tier := range a.table.Tiers {
		if tier.Name == skip {
			continue
		}
		labels := tier.Matchers.LabelsWhere(text, a.maxReasons, func(start, end int) bool {
			if inside(marked, start, end) {
				return false
			}
			return !tier.Negatable || !a.negated(text, start)
		})
		if len(labels) == 0 {
			continue
		}
		if tier.Weight > out.Score {
			out.Score = tier.Weight
		}
		if tier.Name == lexicon.TierCritical {
			out.Critical = true
		}
		if tier.Name == a.table.SkipOnLowMarker {
			out.Baseline = true
		}
		for _, label := range labels {
			out.Reasons = append(out.Reasons, a.reason(tier.Name, label))
		}
	}

	if a.layer == LayerSafety && out.Critical {
		out.Score = 1
	}
	if a.maxReasons > 0 && len(out.Reasons) > a.maxReasons {
		out.Reasons = out.Reasons[:a.maxReasons]
	}
	out.Score = clamp01(out.Score)
	return out
}

// negated reports a negation cue between the start of pos's clause and pos,
// looking back at most the layer's negation window.
func (a *Assessor) negated(text string, pos int) bool {
	if a.table.Negations == nil || a.table.NegationWindow <= 0 {
		return false
	}
	window := transcript.Before(text, pos, a.table.NegationWindow)
	if i := strings.LastIndexAny(window, ",.;!?"); i >= 0 {
		window = window[i+1:]
	}
	return a.table.Negations.MatchString(window)
}

func inside(hits []lexicon.Hit, start, end int) bool {
	for _, h := range hits {
		if start >= h.Start && end <= h.End {
			return true
		}
	}
	return false
}

func (a *Assessor) reason(tier, label string) string {
	return string(a.layer) + "." + tier + ":" + label
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
