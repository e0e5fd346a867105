package correction

import (
	"fmt"
	"strings"

	"intake/internal/amount"
	"intake/internal/config"
	"intake/internal/extract"
	"intake/internal/lexicon"
	"intake/internal/logging"
	"intake/internal/result"
	"intake/internal/transcript"
	"intake/internal/types"
	"intake/internal/urgency"

	"go.uber.org/zap"
)

// Reason tags of the outcome.
const (
	ReasonInvalidInput    = "invalid_input"
	ReasonTranscriptLimit = "transcript_truncated"
	ReasonChainFailed     = "chain_failed"
)

// Corrected is the folded result: final field values, the rendered reasons of every
// fired rule, and one Result per chain.
type Corrected struct {
	types.Fields
	Fixes   []string `json:"fixes"`
	Results []Result `json:"results"`
}

// Engine applies the correction chains. It is safe for concurrent use.
type Engine struct {
	lex       *lexicon.Lexicon
	maxRunes  int
	extractor *extract.Extractor
	urgency   *urgency.Engine
	amount    *amount.Engine
	logger    *zap.Logger

	category Chain[types.Category]
	name     Chain[string]
	amounts  Chain[*float64]
	urgencyC Chain[types.Level]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The engine names it "correction"; the
// engines it builds internally log under their own categories.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.For(l, logging.CategoryCorrection)
	}
}

// New builds the correction engine together with the extractor, urgency and amount
// engines its rules re-derive values with.
func New(cfg *config.Config, lex *lexicon.Lexicon, opts ...Option) (*Engine, error) {
	if cfg == nil || lex == nil {
		return nil, fmt.Errorf("correction engine needs a config and a lexicon")
	}
	x, err := extract.New(cfg, lex)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}
	u, err := urgency.New(cfg, lex)
	if err != nil {
		return nil, fmt.Errorf("failed to build urgency engine: %w", err)
	}
	a, err := amount.New(cfg, lex)
	if err != nil {
		return nil, fmt.Errorf("failed to build amount engine: %w", err)
	}
	return NewWithEngines(lex, cfg.Limits.MaxTranscriptRunes, x, u, a, opts...), nil
}

// NewWithEngines builds the correction engine over existing engines.
func NewWithEngines(lex *lexicon.Lexicon, maxRunes int, x *extract.Extractor, u *urgency.Engine, a *amount.Engine, opts ...Option) *Engine {
	e := &Engine{
		lex:       lex,
		maxRunes:  maxRunes,
		extractor: x,
		urgency:   u,
		amount:    a,
		logger:    zap.NewNop(),
	}
	e.category = e.categoryChain()
	e.name = e.nameChain()
	e.amounts = e.amountChain()
	e.urgencyC = e.urgencyChain()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply returns the corrected value of ApplyOutcome.
func (e *Engine) Apply(text string, fields types.Fields) Corrected {
	return e.ApplyOutcome(text, fields).Value
}

// ApplyOutcome corrects fields against text. It never panics; a failing chain
// leaves its field unchanged and degrades the outcome.
func (e *Engine) ApplyOutcome(text string, fields types.Fields) result.Outcome[Corrected] {
	return e.ApplyTranscript(transcript.New(text, e.maxRunes, e.lex.Fillers), fields)
}

// ApplyTranscript corrects fields against prepared transcript views. Chains run in
// the order category, name, amount, urgency; each sees the values the earlier
// chains produced.
func (e *Engine) ApplyTranscript(t *transcript.Transcript, fields types.Fields) result.Outcome[Corrected] {
	out := Corrected{Fields: fields.Clone(), Fixes: []string{}}
	if t == nil || t.Empty() {
		logging.Audit(e.logger, logging.AuditEvent{Type: logging.AuditInvalidInput, Field: "correction"})
		return result.Failed(out, ReasonInvalidInput)
	}

	in := &Input{T: t, Fields: fields.Clone(), Original: fields.Clone()}
	var failed []string
	record := func(res Result) {
		out.Results = append(out.Results, res)
		if res.Failed {
			failed = append(failed, string(res.Field))
			logging.Audit(e.logger, logging.AuditEvent{
				Type:   logging.AuditCorrectionFailed,
				Field:  string(res.Field),
				Detail: res.Rule,
			})
			return
		}
		if !res.Fixed {
			return
		}
		out.Fixes = append(out.Fixes, string(res.Field)+": "+res.Reason)
		logging.Audit(e.logger, logging.AuditEvent{
			Type:  logging.AuditCorrectionFired,
			Field: string(res.Field),
			Rule:  res.Rule,
			From:  render(res.Field, res.Original),
			To:    render(res.Field, res.Replacement),
		})
	}

	res, cat := e.category.Apply(in, in.Fields.Category)
	in.Fields.Category, in.CategoryFixed = cat, res.Fixed
	record(res)

	res, name := e.name.Apply(in, in.Fields.Name)
	in.Fields.Name = name
	record(res)

	res, amt := e.amounts.Apply(in, in.Fields.Amount)
	in.Fields.Amount = amt
	record(res)

	res, level := e.urgencyC.Apply(in, in.Fields.Urgency)
	in.Fields.Urgency = level
	record(res)

	out.Fields = in.Fields
	e.logger.Debug("corrections applied",
		append(logging.TranscriptFields(t.Raw()),
			zap.Int("fixes", len(out.Fixes)),
			zap.String("category", string(out.Category)),
			zap.Stringer("urgency", out.Urgency),
		)...)

	switch {
	case len(failed) > 0:
		return result.Degraded(out, ReasonChainFailed+":"+strings.Join(failed, ","))
	case t.Truncated():
		return result.Degraded(out, ReasonTranscriptLimit)
	}
	return result.OK(out)
}

// render formats a field value for the audit log. Names are personal data and are
// reduced to presence.
func render(f Field, v any) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case string:
		if f == FieldName {
			if val == "" {
				return "absent"
			}
			return "present"
		}
		return val
	case types.Category:
		return string(val)
	case types.Level:
		return val.String()
	case *float64:
		return types.FormatAmount(val)
	}
	return fmt.Sprintf("%v", v)
}
