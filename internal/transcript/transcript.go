// Package transcript holds the immutable views of a call transcript used by the engines:
// the raw text, a normalised matching view and a fuzz-cleaned view with fillers removed.
// Transcript values must never be logged or persisted.
package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Transcript is a read-only bundle of views over one transcript.
type Transcript struct {
	raw        string
	cased      string
	normalized string
	cleaned    string
	truncated  bool
}

// New builds the views for raw. Input longer than maxRunes is truncated first
// (maxRunes <= 0 disables the limit). filler may be nil, in which case the cleaned
// view only strips punctuation.
func New(raw string, maxRunes int, filler *regexp.Regexp) *Transcript {
	t := &Transcript{raw: raw}
	if maxRunes > 0 && utf8.RuneCountInString(raw) > maxRunes {
		t.raw = truncateRunes(raw, maxRunes)
		t.truncated = true
	}
	t.cased = Fold(t.raw)
	t.normalized = strings.ToLower(t.cased)
	t.cleaned = Clean(t.normalized, filler)
	return t
}

// Raw returns the (possibly truncated) original text.
func (t *Transcript) Raw() string { return t.raw }

// Cased returns the folded view with the original letter case, used where
// capitalisation carries meaning (caller names).
func (t *Transcript) Cased() string { return t.cased }

// Normalized returns the lower-cased NFKC matching view.
func (t *Transcript) Normalized() string { return t.normalized }

// Cleaned returns the fuzz-cleaned view.
func (t *Transcript) Cleaned() string { return t.cleaned }

// Truncated reports whether the input exceeded the rune limit.
func (t *Transcript) Truncated() bool { return t.truncated }

// Empty reports whether the transcript carries no text at all.
func (t *Transcript) Empty() bool { return strings.TrimSpace(t.raw) == "" }

// Runes returns the rune length of the raw view, the only property safe to log.
func (t *Transcript) Runes() int { return utf8.RuneCountInString(t.raw) }

var quoteFolder = strings.NewReplacer(
	"‘", "'", "’", "'", "‛", "'", "`", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
)

// Fold applies NFKC, folds typographic quotes and dashes and collapses whitespace.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	s = quoteFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Normalize is Fold followed by lower-casing.
func Normalize(s string) string {
	return strings.ToLower(Fold(s))
}

var strayPunct = regexp.MustCompile(`[^\pL0-9$,.' ]+`)

// Clean produces the fuzz-cleaned view of an already normalised string: filler words
// matched by filler are dropped, punctuation other than currency and numeric
// separators is removed, and whitespace is collapsed.
func Clean(normalized string, filler *regexp.Regexp) string {
	s := normalized
	if filler != nil {
		s = filler.ReplaceAllString(s, " ")
	}
	s = strayPunct.ReplaceAllString(s, " ")
	s = dropLooseSeparators(s)
	return strings.Join(strings.Fields(s), " ")
}

// dropLooseSeparators blanks every comma or period not sitting between two digits.
func dropLooseSeparators(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != ',' && c != '.' {
			continue
		}
		if i > 0 && i < len(b)-1 && isDigit(b[i-1]) && isDigit(b[i+1]) {
			continue
		}
		b[i] = ' '
	}
	return string(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
