// Package intake is the public entry point of the intake core. It re-exports the
// result types of the internal engines and wires them into one Pipeline, so that
// surrounding intake and ticketing code can derive category, name, goal amount and
// urgency from a transcript without importing internal packages.
//
// Every call is total: invalid input and internal failures yield default values,
// never panics or errors.
package intake

import (
	"fmt"
	"sync"

	"intake/internal/amount"
	"intake/internal/config"
	"intake/internal/correction"
	"intake/internal/extract"
	"intake/internal/lexicon"
	"intake/internal/logging"
	"intake/internal/result"
	"intake/internal/types"
	"intake/internal/urgency"

	"go.uber.org/zap"
)

// Re-exported types.
type (
	Category       = types.Category
	Level          = types.Level
	Fields         = types.Fields
	Config         = config.Config
	Lexicon        = lexicon.Lexicon
	UrgencyContext = urgency.Context
	Assessment     = urgency.Assessment
	AmountContext  = amount.Context
	Detection      = amount.Detection
	Candidate      = amount.Candidate
	Corrected      = correction.Corrected
	Correction     = correction.Result
	Status         = result.Status
)

// Record is the full derivation of one transcript: the primary extraction, the
// urgency assessment and amount detection behind it, and the corrected fields.
type Record struct {
	Fields
	Primary    Fields       `json:"primary"`
	Assessment Assessment   `json:"assessment"`
	Detection  Detection    `json:"detection"`
	Fixes      []string     `json:"fixes"`
	Results    []Correction `json:"corrections"`
	Status     string       `json:"status"`
	Reasons    []string     `json:"status_reasons,omitempty"`
}

// Pipeline holds one immutable configuration and the engines built from it.
// It is safe for concurrent use.
type Pipeline struct {
	cfg        *config.Config
	lex        *lexicon.Lexicon
	extractor  *extract.Extractor
	urgency    *urgency.Engine
	amount     *amount.Engine
	correction *correction.Engine
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger routes every engine's diagnostics to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a pipeline. cfg is copied; lex is shared read-only.
func New(cfg *Config, lex *Lexicon, opts ...Option) (*Pipeline, error) {
	if cfg == nil || lex == nil {
		return nil, fmt.Errorf("pipeline needs a config and a lexicon")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	local := cfg.Clone()

	x, err := extract.New(local, lex, extract.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}
	u, err := urgency.New(local, lex, urgency.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build urgency engine: %w", err)
	}
	a, err := amount.New(local, lex, amount.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build amount engine: %w", err)
	}
	c := correction.NewWithEngines(lex, local.Limits.MaxTranscriptRunes, x, u, a, correction.WithLogger(o.logger))

	p := &Pipeline{
		cfg:        local,
		lex:        lex,
		extractor:  x,
		urgency:    u,
		amount:     a,
		correction: c,
		logger:     logging.For(o.logger, logging.CategoryBoot),
	}
	p.logger.Debug("pipeline ready",
		zap.String("preset", local.Preset),
		zap.String("lexicon_version", lex.Version),
		zap.Int("patterns", lex.PatternCount()),
	)
	return p, nil
}

var (
	defaultOnce     sync.Once
	defaultPipeline *Pipeline
)

// Default returns the shared pipeline built from the default config and the
// embedded lexicon.
func Default() *Pipeline {
	defaultOnce.Do(func() {
		p, err := New(config.Default(), lexicon.Default())
		if err != nil {
			panic(fmt.Sprintf("default pipeline: %v", err))
		}
		defaultPipeline = p
	})
	return defaultPipeline
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() *Config { return p.cfg.Clone() }

// Lexicon returns the shared pattern tables.
func (p *Pipeline) Lexicon() *Lexicon { return p.lex }

// =============================================================================
// CORE CALLS
// =============================================================================

// AssessUrgency scores text. Invalid input yields LOW with reason invalid_input.
func (p *Pipeline) AssessUrgency(text string, ctx UrgencyContext) Assessment {
	return p.urgency.Assess(text, ctx)
}

// AssessUrgencyOutcome is AssessUrgency with the outcome status.
func (p *Pipeline) AssessUrgencyOutcome(text string, ctx UrgencyContext) result.Outcome[Assessment] {
	return p.urgency.AssessOutcome(text, ctx)
}

// DetectGoalAmount runs the amount passes. Invalid input yields source none.
func (p *Pipeline) DetectGoalAmount(text string, ctx AmountContext) Detection {
	return p.amount.Detect(text, ctx)
}

// DetectGoalAmountOutcome is DetectGoalAmount with the outcome status.
func (p *Pipeline) DetectGoalAmountOutcome(text string, ctx AmountContext) result.Outcome[Detection] {
	return p.amount.DetectOutcome(text, ctx)
}

// ApplyCorrections repairs fields against text.
func (p *Pipeline) ApplyCorrections(text string, fields Fields) Corrected {
	return p.correction.Apply(text, fields)
}

// ApplyCorrectionsOutcome is ApplyCorrections with the outcome status.
func (p *Pipeline) ApplyCorrectionsOutcome(text string, fields Fields) result.Outcome[Corrected] {
	return p.correction.ApplyOutcome(text, fields)
}

// Process derives all four fields: primary extraction of category and name,
// urgency under that category, the goal amount under both, then corrections.
func (p *Pipeline) Process(text string) Record {
	t := p.extractor.View(text)
	primary := p.extractor.Extract(t)

	ua := p.urgency.AssessTranscript(t, urgency.Context{Category: primary.Category})
	primary.Urgency = ua.Value.Level

	ad := p.amount.DetectTranscript(t, amount.Context{Category: primary.Category, Urgency: primary.Urgency})
	if ad.Value.GoalAmount != nil {
		primary.Amount = types.Amount(*ad.Value.GoalAmount)
	}

	co := p.correction.ApplyTranscript(t, primary)

	rec := Record{
		Fields:     co.Value.Fields,
		Primary:    primary,
		Assessment: ua.Value,
		Detection:  ad.Value,
		Fixes:      co.Value.Fixes,
		Results:    co.Value.Results,
	}
	worst := result.StatusOK
	for _, o := range []struct {
		status result.Status
		reason string
	}{{ua.Status, ua.Reason}, {ad.Status, ad.Reason}, {co.Status, co.Reason}} {
		worst = max(worst, o.status)
		if o.reason != "" && !contains(rec.Reasons, o.reason) {
			rec.Reasons = append(rec.Reasons, o.reason)
		}
	}
	rec.Status = worst.String()
	return rec
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// PACKAGE-LEVEL CALLS ON THE DEFAULT PIPELINE
// =============================================================================

// AssessUrgency scores text with the default pipeline.
func AssessUrgency(text string, ctx UrgencyContext) Assessment {
	return Default().AssessUrgency(text, ctx)
}

// DetectGoalAmount detects the goal amount with the default pipeline.
func DetectGoalAmount(text string, ctx AmountContext) Detection {
	return Default().DetectGoalAmount(text, ctx)
}

// ApplyCorrections repairs fields with the default pipeline.
func ApplyCorrections(text string, fields Fields) Corrected {
	return Default().ApplyCorrections(text, fields)
}

// Process runs the full derivation with the default pipeline.
func Process(text string) Record {
	return Default().Process(text)
}
