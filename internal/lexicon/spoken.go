package lexicon

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// SpokenNumber is one generated spoken dollar phrase.
type SpokenNumber struct {
	Phrase string
	Value  float64
}

var (
	units = []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	teens = []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	tens  = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
)

// wordsUnder100 spells 1..99.
func wordsUnder100(n int) string {
	switch {
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n%10 == 0:
		return tens[n/10]
	default:
		return tens[n/10] + " " + units[n%10]
	}
}

var (
	spokenOnce  sync.Once
	spokenTable []SpokenNumber
	spokenIndex map[string]float64
)

// SpokenNumbers returns the generated spoken-number lexicon ordered longest phrase
// first: "n hundred", "n thousand" and "n thousand m hundred" for n in 1..99 and
// m in 1..9, plus "a hundred" and "a thousand".
func SpokenNumbers() []SpokenNumber {
	spokenOnce.Do(buildSpoken)
	out := make([]SpokenNumber, len(spokenTable))
	copy(out, spokenTable)
	return out
}

func buildSpoken() {
	add := func(phrase string, v float64) {
		spokenTable = append(spokenTable, SpokenNumber{Phrase: phrase, Value: v})
	}
	add("a hundred", 100)
	add("a thousand", 1000)
	for m := 1; m <= 9; m++ {
		add("a thousand "+units[m]+" hundred", float64(1000+m*100))
	}
	for n := 1; n <= 99; n++ {
		w := wordsUnder100(n)
		add(w+" hundred", float64(n*100))
		add(w+" thousand", float64(n*1000))
		for m := 1; m <= 9; m++ {
			add(w+" thousand "+units[m]+" hundred", float64(n*1000+m*100))
		}
	}
	sort.SliceStable(spokenTable, func(i, j int) bool {
		li, lj := len(spokenTable[i].Phrase), len(spokenTable[j].Phrase)
		if li != lj {
			return li > lj
		}
		return spokenTable[i].Phrase < spokenTable[j].Phrase
	})
	spokenIndex = make(map[string]float64, len(spokenTable))
	for _, s := range spokenTable {
		spokenIndex[s.Phrase] = s.Value
	}
}

// spokenRe locates candidate spans. Alternatives are ordered so that at any
// position the longest phrase wins, and digit-free words never match inside
// larger words.
var spokenRe = func() *regexp.Regexp {
	unit := `one|two|three|four|five|six|seven|eight|nine`
	under100 := `(?:(?:twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)(?:[\s-]+(?:` + unit + `))?` +
		`|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|` + unit + `)`
	lead := `(?:` + under100 + `|a)`
	thousands := lead + `\s+thousand(?:\s+(?:and\s+)?(?:` + unit + `)\s+hundred)?`
	hundreds := lead + `\s+hundred`
	return regexp.MustCompile(`(?i)\b(?:` + thousands + `|` + hundreds + `)\b`)
}()

var spokenSeparators = regexp.MustCompile(`[\s-]+`)

// FindSpoken returns the first spoken-number phrase in text together with its
// byte span. Only the first match is reported.
func FindSpoken(text string) (SpokenNumber, int, int, bool) {
	spokenOnce.Do(buildSpoken)
	loc := spokenRe.FindStringIndex(text)
	if loc == nil {
		return SpokenNumber{}, 0, 0, false
	}
	phrase := canonicalSpoken(text[loc[0]:loc[1]])
	v, ok := spokenIndex[phrase]
	if !ok {
		return SpokenNumber{}, 0, 0, false
	}
	return SpokenNumber{Phrase: phrase, Value: v}, loc[0], loc[1], true
}

func canonicalSpoken(s string) string {
	words := spokenSeparators.Split(strings.ToLower(strings.TrimSpace(s)), -1)
	out := words[:0]
	for _, w := range words {
		if w == "and" || w == "" {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
