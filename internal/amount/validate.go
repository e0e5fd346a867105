package amount

import (
	"intake/internal/types"
)

// =============================================================================
// PASS 5: VALIDATION AND SELECTION
// =============================================================================

// rescore adjusts each survivor for need-verb proximity, nearby negation and
// category range alignment, then sorts them best first.
func (e *Engine) rescore(text string, cands []Candidate, category types.Category) []Candidate {
	rng, hasRange := e.cfg.CategoryRanges[category]
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		if e.needVerbBefore(text, c.Start) {
			c.Confidence += e.cfg.NeedVerbBonus
			c.adjustments = append(c.adjustments, "need_verb_bonus")
		}
		if e.negationBefore(text, c.Start) {
			c.Confidence -= e.cfg.NegationPenalty
			c.adjustments = append(c.adjustments, "negation_penalty")
		}
		if hasRange {
			if rng.Contains(c.Value) {
				c.Confidence += e.cfg.RangeBonus
				c.adjustments = append(c.adjustments, "category_range_bonus")
			} else {
				c.Confidence -= e.cfg.RangePenalty
				c.adjustments = append(c.adjustments, "category_range_penalty")
			}
		}
		c.Confidence = clamp01(c.Confidence)
		out[i] = c
	}
	sortCandidates(out)
	return out
}

// threshold is the minimum confidence for acceptance, relaxed for urgent cases.
func (e *Engine) threshold(urgency types.Level) float64 {
	t := e.cfg.MinConfidence
	if urgency >= types.LevelHigh {
		t -= e.cfg.UrgentConfidenceRelief
	}
	return t
}

// selectGoal picks the top candidate when it clears the threshold.
func (e *Engine) selectGoal(ranked []Candidate, urgency types.Level) Detection {
	d := Detection{Source: SourceNone}
	if n := min(len(ranked), e.cfg.MaxCandidates); n > 0 {
		d.Candidates = append([]Candidate(nil), ranked[:n]...)
	}
	if len(ranked) == 0 {
		d.Reasons = append(d.Reasons, ReasonNoCandidates)
		return d
	}
	top := ranked[0]
	if top.Confidence < e.threshold(urgency) {
		d.Reasons = append(d.Reasons, ReasonLowConfidence)
		return d
	}
	v := top.Value
	d.GoalAmount = &v
	d.Confidence = top.Confidence
	d.Source = top.Source
	d.Reasons = append(d.Reasons, "pattern:"+top.Label)
	d.Reasons = append(d.Reasons, top.adjustments...)
	return d
}
