package correction

import (
	"strings"

	"intake/internal/extract"
)

// =============================================================================
// NAME CHAIN
// =============================================================================
// Reasons never quote the name itself.

func (e *Engine) nameChain() Chain[string] {
	return Chain[string]{
		Field: FieldName,
		Equal: func(a, b string) bool { return a == b },
		Rules: []Rule[string]{
			{
				Name: "name_mismatch",
				Detect: func(in *Input, cur string) bool {
					clean := e.extractor.CleanName(cur)
					return clean != "" && !e.extractor.IsNonName(clean) && !occurs(in, clean)
				},
				Derive: e.reextractName("Extracted name does not occur in the transcript; replaced by the cued name"),
			},
			{
				Name:   "filler_prefix",
				Detect: func(_ *Input, cur string) bool { return e.extractor.HasFillerPrefix(cur) },
				Derive: e.sanitiseName("Filler word removed from the start of the name"),
			},
			{
				Name:   "trailing_stopword",
				Detect: func(_ *Input, cur string) bool { return e.extractor.HasTrailingStopword(cur) },
				Derive: e.sanitiseName("Trailing stop word removed from the name"),
			},
			{
				Name: "non_name_token",
				Detect: func(_ *Input, cur string) bool {
					return strings.TrimSpace(cur) != "" && e.extractor.IsNonName(cur)
				},
				Derive: e.reextractName("Extracted name is not a name; replaced by the cued name"),
			},
			{
				Name:   "missing_name",
				Detect: func(_ *Input, cur string) bool { return strings.TrimSpace(cur) == "" },
				Derive: e.reextractName("Missing name recovered from a name cue"),
			},
		},
	}
}

func occurs(in *Input, name string) bool {
	return extract.Occurs(in.T, name)
}

func (e *Engine) sanitiseName(reason string) func(*Input, string) (string, string, bool) {
	return func(_ *Input, cur string) (string, string, bool) {
		clean := e.extractor.CleanName(cur)
		if e.extractor.IsNonName(clean) {
			return cur, "", false
		}
		return clean, reason, true
	}
}

func (e *Engine) reextractName(reason string) func(*Input, string) (string, string, bool) {
	return func(in *Input, cur string) (string, string, bool) {
		name, ok := e.extractor.Name(in.T)
		if !ok || strings.EqualFold(name, cur) {
			return cur, "", false
		}
		return name, reason, true
	}
}
