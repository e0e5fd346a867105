package correction

import (
	"fmt"

	"intake/internal/amount"
	"intake/internal/types"
)

// =============================================================================
// AMOUNT CHAIN
// =============================================================================

// amountContext fixes urgency at LOW so re-derivation never depends on the urgency
// correction that runs after it.
func amountContext(in *Input) amount.Context {
	return amount.Context{Category: in.Fields.Category, Urgency: types.LevelLow}
}

// deriveAmount re-derives the goal amount: full detection over the normalised view,
// then the filler-tolerant recovery patterns, then detection over the fuzz-cleaned
// view. The first unpoisoned, in-range value wins. Every amount rule uses it, which
// keeps the chain a fixed point.
func (e *Engine) deriveAmount(in *Input) (float64, string, bool) {
	ctx := amountContext(in)
	accept := func(c amount.Candidate) bool {
		_, poisoned := e.amount.Poisoned(in.T, c.Value, c.Marked)
		return !poisoned && e.amount.InRange(c.Value)
	}

	if d := e.amount.DetectTranscript(in.T, ctx).Value; d.GoalAmount != nil && accept(d.Candidates[0]) {
		return *d.GoalAmount, "pattern:" + d.Candidates[0].Label, true
	}
	if c, ok := e.amount.Recover(in.T, ctx); ok && accept(c) {
		return c.Value, "recovery:" + c.Label, true
	}
	if d := e.amount.DetectText(in.T.Cleaned(), ctx).Value; d.GoalAmount != nil && accept(d.Candidates[0]) {
		return *d.GoalAmount, "cleaned:" + d.Candidates[0].Label, true
	}
	return 0, "", false
}

func (e *Engine) amountReplacement(format string) func(*Input, *float64) (*float64, string, bool) {
	return func(in *Input, cur *float64) (*float64, string, bool) {
		v, via, ok := e.deriveAmount(in)
		if !ok {
			return cur, "", false
		}
		return types.Amount(v), fmt.Sprintf(format, types.FormatAmount(cur), types.FormatAmount(&v), via), true
	}
}

func (e *Engine) amountChain() Chain[*float64] {
	return Chain[*float64]{
		Field: FieldAmount,
		Equal: func(a, b *float64) bool {
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return *a == *b
		},
		Rules: []Rule[*float64]{
			{
				Name: "income_as_goal",
				Detect: func(in *Input, cur *float64) bool {
					if cur == nil {
						return false
					}
					k, ok := e.amount.PoisonKind(in.T, *cur)
					return ok && k == amount.KindWage
				},
				Derive: e.amountReplacement("Amount %s is an income figure; goal %s re-derived (%s)"),
			},
			{
				Name: "age_or_date_as_goal",
				Detect: func(in *Input, cur *float64) bool {
					if cur == nil {
						return false
					}
					k, ok := e.amount.PoisonKind(in.T, *cur)
					return ok && k != amount.KindWage
				},
				Derive: e.amountReplacement("Amount %s is an age, date or phone figure; goal %s re-derived (%s)"),
			},
			{
				Name:   "missing_amount_recovery",
				Detect: func(_ *Input, cur *float64) bool { return cur == nil },
				Derive: e.amountReplacement("Amount %s recovered as %s (%s)"),
			},
			{
				Name: "implausible_amount",
				Detect: func(_ *Input, cur *float64) bool {
					return cur != nil && !e.amount.InRange(*cur)
				},
				Derive: e.amountReplacement("Amount %s outside the plausible range; goal %s re-derived (%s)"),
			},
		},
	}
}
