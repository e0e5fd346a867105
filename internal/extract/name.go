package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"intake/internal/transcript"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type nameMatch struct {
	pos  int
	name string
}

func findNames(patterns []*regexp.Regexp, text string) []nameMatch {
	var out []nameMatch
	for _, re := range patterns {
		idx := re.SubexpIndex("name")
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if idx < 0 || loc[2*idx] < 0 {
				continue
			}
			out = append(out, nameMatch{pos: loc[2*idx], name: text[loc[2*idx]:loc[2*idx+1]]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}

// Name extracts the caller name. Capitalised names after any cue are read from the
// case-preserving view first; strong cues ("my name is") are then tried on the
// fuzz-cleaned view, which accepts lower-case names.
func (x *Extractor) Name(t *transcript.Transcript) (string, bool) {
	for _, m := range findNames(x.lex.Name.Cues, t.Cased()) {
		if n := x.CleanName(m.name); !x.IsNonName(n) {
			return n, true
		}
	}
	title := cases.Title(language.Und)
	for _, m := range findNames(x.lex.Name.StrongCues, t.Cleaned()) {
		if n := x.CleanName(m.name); !x.IsNonName(n) {
			return title.String(n), true
		}
	}
	return "", false
}

func trimToken(tok string) string {
	return strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	})
}

// CleanName strips punctuation, leading fillers and stop words, and trailing stop
// words from a name. CleanName(CleanName(n)) == CleanName(n).
func (x *Extractor) CleanName(name string) string {
	var toks []string
	for _, f := range strings.Fields(name) {
		if tok := strings.Trim(trimToken(f), "'-"); tok != "" {
			toks = append(toks, tok)
		}
	}
	for len(toks) > 0 && (x.isFiller(toks[0]) || x.isStopword(toks[0])) {
		toks = toks[1:]
	}
	for len(toks) > 0 && x.isStopword(toks[len(toks)-1]) {
		toks = toks[:len(toks)-1]
	}
	return strings.Join(toks, " ")
}

// IsNonName reports whether name cannot be a caller name: empty, containing a
// filler, stop word or digit, or a single letter.
func (x *Extractor) IsNonName(name string) bool {
	toks := strings.Fields(name)
	if len(toks) == 0 {
		return true
	}
	for _, tok := range toks {
		if x.isFiller(tok) || x.isStopword(tok) {
			return true
		}
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return true
		}
	}
	return len([]rune(strings.Join(toks, ""))) < 2
}

// HasFillerPrefix reports whether the first token of name is a filler word.
func (x *Extractor) HasFillerPrefix(name string) bool {
	toks := strings.Fields(name)
	return len(toks) > 0 && x.isFiller(trimToken(toks[0]))
}

// HasTrailingStopword reports whether the last token of name is a stop word.
func (x *Extractor) HasTrailingStopword(name string) bool {
	toks := strings.Fields(name)
	return len(toks) > 0 && x.isStopword(trimToken(toks[len(toks)-1]))
}

func (x *Extractor) isFiller(tok string) bool {
	return x.lex.Name.Fillers[strings.ToLower(tok)]
}

func (x *Extractor) isStopword(tok string) bool {
	return x.lex.Name.Stopwords[strings.ToLower(tok)]
}

// Occurs reports whether name appears in the normalised or fuzz-cleaned view of t.
func Occurs(t *transcript.Transcript, name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	return strings.Contains(t.Normalized(), n) || strings.Contains(t.Cleaned(), n)
}
