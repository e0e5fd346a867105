// Package extract performs the primary field extraction that the correction layer
// repairs: category keyword mentions, multi-need category resolution and the
// caller name.
package extract

import (
	"fmt"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/logging"
	"intake/internal/transcript"
	"intake/internal/types"

	"go.uber.org/zap"
)

// Extractor reads categories and names from transcripts. It is safe for concurrent use.
type Extractor struct {
	lex      *lexicon.Lexicon
	priority map[types.Category]int
	maxRunes int
	logger   *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor logger. The extractor names it "extract".
func WithLogger(l *zap.Logger) Option {
	return func(x *Extractor) {
		x.logger = logging.For(l, logging.CategoryExtract)
	}
}

// New builds an extractor. Category priority comes from cfg.Correction.
func New(cfg *config.Config, lex *lexicon.Lexicon, opts ...Option) (*Extractor, error) {
	if cfg == nil || lex == nil {
		return nil, fmt.Errorf("extractor needs a config and a lexicon")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x := &Extractor{
		lex:      lex,
		priority: make(map[types.Category]int, len(cfg.Correction.CategoryPriority)),
		maxRunes: cfg.Limits.MaxTranscriptRunes,
		logger:   zap.NewNop(),
	}
	for i, c := range cfg.Correction.CategoryPriority {
		if _, seen := x.priority[c]; !seen {
			x.priority[c] = i
		}
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// View prepares transcript views with the extractor's limits.
func (x *Extractor) View(text string) *transcript.Transcript {
	return transcript.New(text, x.maxRunes, x.lex.Fillers)
}

// Lexicon returns the tables the extractor reads.
func (x *Extractor) Lexicon() *lexicon.Lexicon { return x.lex }

// rank returns the priority index of c; unlisted categories rank last.
func (x *Extractor) rank(c types.Category) int {
	if r, ok := x.priority[c]; ok {
		return r
	}
	return len(x.priority)
}

// Extract runs the primary extraction of category and name.
func (x *Extractor) Extract(t *transcript.Transcript) types.Fields {
	res := x.Resolve(t)
	name, _ := x.Name(t)
	x.logger.Debug("primary extraction",
		append(logging.TranscriptFields(t.Raw()),
			zap.String("category", string(res.Category)),
			zap.String("rule", res.Rule),
			zap.Bool("name_found", name != ""),
		)...)
	return types.Fields{Category: res.Category, Name: name}
}
