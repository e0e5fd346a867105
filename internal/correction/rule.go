// Package correction implements the post-hoc correction layer: ordered, guarded
// rule chains that repair one field of a primary extraction each, with an audited
// reason for every replacement.
package correction

import (
	"fmt"

	"intake/internal/extract"
	"intake/internal/transcript"
	"intake/internal/types"
)

// ReasonInternalError marks a chain that panicked.
const ReasonInternalError = "internal_error"

// Field names the extraction field a rule corrects.
type Field string

const (
	FieldCategory Field = "category"
	FieldName     Field = "name"
	FieldAmount   Field = "amount"
	FieldUrgency  Field = "urgency"
)

// Result records one chain evaluation. Original and Replacement hold the field
// values; Replacement is nil when no rule fired.
type Result struct {
	Fixed       bool   `json:"fixed"`
	Field       Field  `json:"field"`
	Rule        string `json:"rule,omitempty"`
	Original    any    `json:"original"`
	Replacement any    `json:"replacement"`
	Reason      string `json:"reason,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
}

// Input is what every rule sees: the transcript views, the fields as corrected so
// far in this run, and the fields as they were handed in.
type Input struct {
	T        *transcript.Transcript
	Fields   types.Fields
	Original types.Fields

	// CategoryFixed is set once the category chain has fired in this run.
	CategoryFixed bool

	mentions []extract.Mention
	resolved *extract.Resolution
}

// Rule is one guarded correction. Detect recognises the failure signature; Derive
// re-derives a replacement from the transcript and may decline.
type Rule[T any] struct {
	Name   string
	Detect func(in *Input, cur T) bool
	Derive func(in *Input, cur T) (T, string, bool)
}

// Chain evaluates its rules in order; the first rule that both detects its
// signature and derives a different value fires, and the rest are skipped.
type Chain[T any] struct {
	Field Field
	Rules []Rule[T]
	Equal func(a, b T) bool
}

// Apply runs the chain. A panic in any rule is recovered and reported as a failed
// result that leaves the value unchanged.
func (c Chain[T]) Apply(in *Input, cur T) (res Result, out T) {
	res = Result{Field: c.Field, Original: cur}
	out = cur
	defer func() {
		if r := recover(); r != nil {
			res = Result{Field: c.Field, Original: cur, Failed: true, Reason: ReasonInternalError, Rule: fmt.Sprintf("%T", r)}
			out = cur
		}
	}()

	for _, rule := range c.Rules {
		if !rule.Detect(in, cur) {
			continue
		}
		next, reason, ok := rule.Derive(in, cur)
		if !ok || c.Equal(next, cur) {
			continue
		}
		res.Fixed = true
		res.Rule = rule.Name
		res.Replacement = next
		res.Reason = reason
		return res, next
	}
	return res, cur
}
