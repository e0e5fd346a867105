package transcript

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxSnippetRunes bounds every context snippet kept on a candidate.
const MaxSnippetRunes = 50

// ParseNumber parses a numeric token after removing currency signs, thousands
// separators and spaces.
func ParseNumber(token string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(token)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var smallNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"a couple": 2, "couple": 2, "a few": 3, "few": 3,
}

// ParseCount parses a small count given as digits or words ("3", "three").
func ParseCount(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if n, ok := smallNumbers[token]; ok {
		return n, true
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Before returns up to n bytes of text preceding pos, aligned to a rune boundary.
func Before(text string, pos, n int) string {
	if pos > len(text) {
		pos = len(text)
	}
	start := pos - n
	if start < 0 {
		start = 0
	}
	for start < pos && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:pos]
}

// After returns up to n bytes of text following pos, aligned to a rune boundary.
func After(text string, pos, n int) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(text) {
		return ""
	}
	end := pos + n
	if end > len(text) {
		end = len(text)
	}
	for end > pos && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[pos:end]
}

// Snippet returns a window of at most MaxSnippetRunes runes around text[start:end],
// used as privacy-bounded context on amount candidates.
func Snippet(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	match := utf8.RuneCountInString(text[start:end])
	if match >= MaxSnippetRunes {
		return firstRunes(text[start:end], MaxSnippetRunes)
	}
	pad := (MaxSnippetRunes - match) / 2
	left := lastRunes(text[:start], pad)
	right := firstRunes(text[end:], MaxSnippetRunes-match-utf8.RuneCountInString(left))
	return strings.TrimSpace(left + text[start:end] + right)
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	i := 0
	for pos := range s {
		if i == skip {
			return s[pos:]
		}
		i++
	}
	return ""
}
