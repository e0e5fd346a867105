package urgency

import (
	"intake/internal/config"
)

// Aggregator combines layer scores into one urgency score.
type Aggregator struct {
	weights  config.LayerWeights
	override config.OverrideThresholds
	combo    config.CombinationRule
}

// NewAggregator builds an aggregator from the urgency config.
func NewAggregator(cfg config.UrgencyConfig) Aggregator {
	return Aggregator{weights: cfg.Weights, override: cfg.Override, combo: cfg.Combination}
}

// Weight returns the aggregation weight of a layer.
func (a Aggregator) Weight(l Layer) float64 {
	switch l {
	case LayerExplicit:
		return a.weights.Explicit
	case LayerContextual:
		return a.weights.Contextual
	case LayerTemporal:
		return a.weights.Temporal
	case LayerEmotional:
		return a.weights.Emotional
	case LayerConsequence:
		return a.weights.Consequence
	case LayerSafety:
		return a.weights.Safety
	}
	return 0
}

// Aggregate returns the weighted sum of scores, replaced by the strongest of the
// contextual, safety and explicit layers when any of them reaches its override
// threshold, and floored when a deadline coincides with a crisis context.
func (a Aggregator) Aggregate(scores map[Layer]float64) (float64, []string) {
	var weighted float64
	for _, l := range Layers() {
		weighted += clamp01(scores[l]) * a.Weight(l)
	}
	result := weighted
	var reasons []string

	contextual := clamp01(scores[LayerContextual])
	safety := clamp01(scores[LayerSafety])
	explicit := clamp01(scores[LayerExplicit])

	overrides := []struct {
		layer     Layer
		score     float64
		threshold float64
	}{
		{LayerContextual, contextual, a.override.Contextual},
		{LayerSafety, safety, a.override.Safety},
		{LayerExplicit, explicit, a.override.Explicit},
	}
	for _, o := range overrides {
		if o.threshold > 0 && o.score >= o.threshold {
			reasons = append(reasons, "override:"+string(o.layer))
		}
	}
	if len(reasons) > 0 {
		result = max(contextual, safety, explicit, weighted)
	}

	temporal := clamp01(scores[LayerTemporal])
	if temporal >= a.combo.Temporal && contextual >= a.combo.Contextual {
		result = max(result, a.combo.Floor)
		reasons = append(reasons, "combo:temporal+contextual")
	}

	return clamp01(result), reasons
}
