package amount

import (
	"fmt"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/logging"
	"intake/internal/result"
	"intake/internal/transcript"
	"intake/internal/types"

	"go.uber.org/zap"
)

// Reason tags that are not pattern labels.
const (
	ReasonInvalidInput    = "invalid_input"
	ReasonInternalError   = "internal_error"
	ReasonNoCandidates    = "no_candidates"
	ReasonLowConfidence   = "below_min_confidence"
	ReasonTranscriptLimit = "transcript_truncated"
)

// Context carries the category and urgency of the primary extraction.
type Context struct {
	Category types.Category
	Urgency  types.Level
}

// Detection is the result of one amount evaluation.
type Detection struct {
	GoalAmount *float64    `json:"goal_amount"`
	Confidence float64     `json:"confidence"`
	Source     Source      `json:"source"`
	Reasons    []string    `json:"reasons"`
	Candidates []Candidate `json:"candidates"`
}

func fallback(reason string) Detection {
	return Detection{Source: SourceNone, Reasons: []string{reason}}
}

// Engine runs the amount passes. It is safe for concurrent use.
type Engine struct {
	cfg      config.AmountConfig
	maxRunes int
	lex      *lexicon.Lexicon
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The engine names it "amount".
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.For(l, logging.CategoryAmount)
	}
}

// New builds an engine from cfg and lex. cfg is copied.
func New(cfg *config.Config, lex *lexicon.Lexicon, opts ...Option) (*Engine, error) {
	if cfg == nil || lex == nil {
		return nil, fmt.Errorf("amount engine needs a config and a lexicon")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	local := cfg.Clone()
	e := &Engine{
		cfg:      local.Amount,
		maxRunes: local.Limits.MaxTranscriptRunes,
		lex:      lex,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Detect returns the detection value of DetectOutcome.
func (e *Engine) Detect(text string, ctx Context) Detection {
	return e.DetectOutcome(text, ctx).Value
}

// DetectOutcome runs all five passes over text.
func (e *Engine) DetectOutcome(text string, ctx Context) result.Outcome[Detection] {
	return e.DetectTranscript(e.View(text), ctx)
}

// View prepares transcript views with the engine's limits.
func (e *Engine) View(text string) *transcript.Transcript {
	return transcript.New(text, e.maxRunes, e.lex.Fillers)
}

// DetectTranscript runs all five passes over the normalised view of t.
func (e *Engine) DetectTranscript(t *transcript.Transcript, ctx Context) result.Outcome[Detection] {
	if t == nil || t.Empty() {
		logging.Audit(e.logger, logging.AuditEvent{Type: logging.AuditInvalidInput, Field: "amount"})
		return result.Failed(fallback(ReasonInvalidInput), ReasonInvalidInput)
	}
	out := e.DetectText(t.Normalized(), ctx)
	e.logger.Debug("amount detected",
		append(logging.TranscriptFields(t.Raw()),
			zap.String("source", string(out.Value.Source)),
			zap.Float64("confidence", out.Value.Confidence),
			zap.Int("candidates", len(out.Value.Candidates)),
			logging.Labels("reasons", out.Value.Reasons),
		)...)
	if out.Status == result.StatusOK && t.Truncated() {
		return result.Degraded(out.Value, ReasonTranscriptLimit)
	}
	return out
}

// DetectText runs the passes over an already normalised or cleaned string.
func (e *Engine) DetectText(text string, ctx Context) (out result.Outcome[Detection]) {
	defer func() {
		if r := recover(); r != nil {
			logging.Audit(e.logger, logging.AuditEvent{
				Type:   logging.AuditRecoveredPanic,
				Field:  "amount",
				Detail: fmt.Sprintf("%T", r),
			})
			out = result.Failed(fallback(ReasonInternalError), ReasonInternalError)
		}
	}()

	scale := e.scale(ctx.Category)
	explicit := e.explicitPass(text)
	contextual := e.contextualPass(text, scale)
	vague := e.vaguePass(text, scale)
	ranges := rangeSpans(contextual, vague)
	pooled := pool(
		outsideRanges(explicit, ranges),
		outsideRanges(contextual, ranges),
		outsideRanges(vague, ranges),
	)

	kept, rejected := e.reject(text, pooled, e.collectPoison(text))
	for _, r := range rejected {
		logging.Audit(e.logger, logging.AuditEvent{Type: logging.AuditAmountRejected, Field: "amount", Detail: r})
	}

	d := e.selectGoal(e.rescore(text, kept, ctx.Category), ctx.Urgency)
	d.Reasons = append(d.Reasons, rejected...)
	if d.GoalAmount != nil {
		logging.Audit(e.logger, logging.AuditEvent{
			Type:  logging.AuditAmountSelected,
			Field: "amount",
			Rule:  d.Candidates[0].Label,
			To:    types.FormatAmount(d.GoalAmount),
			Score: d.Confidence,
		})
	}
	return result.OK(d)
}

func (e *Engine) scale(c types.Category) float64 {
	if s, ok := e.cfg.CategoryScale[c]; ok && s > 0 {
		return s
	}
	return 1
}

// =============================================================================
// CORRECTION SUPPORT
// =============================================================================

// PoisonKind reports whether v is used in t as a wage, age, date or phone figure.
// v is treated as carrying no currency marker.
func (e *Engine) PoisonKind(t *transcript.Transcript, v float64) (Kind, bool) {
	return e.Poisoned(t, v, false)
}

// Poisoned reports whether v is a poisoned figure in either the normalised or the
// fuzz-cleaned view of t. marked exempts v from the scaled age guard.
func (e *Engine) Poisoned(t *transcript.Transcript, v float64, marked bool) (Kind, bool) {
	for _, text := range []string{t.Normalized(), t.Cleaned()} {
		if k, ok := e.collectPoison(text).kindOf(v, marked); ok {
			return k, true
		}
	}
	return "", false
}

// Recover applies the filler-tolerant recovery patterns to the normalised view and
// returns the strongest candidate that survives rejection in both views.
func (e *Engine) Recover(t *transcript.Transcript, ctx Context) (Candidate, bool) {
	text := t.Normalized()
	var found []Candidate
	for _, p := range e.lex.Amount.Recovery {
		found = append(found, evaluate(p, text, e.scale(ctx.Category))...)
	}
	kept, _ := e.reject(text, pool(found), e.collectPoison(text))
	sortCandidates(kept)
	for _, c := range kept {
		if _, bad := e.Poisoned(t, c.Value, c.Marked); !bad {
			return c, true
		}
	}
	return Candidate{}, false
}
