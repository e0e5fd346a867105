package urgency

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

// Reason tags that are not lexicon labels.
const (
	ReasonInvalidInput    = "invalid_input"
	ReasonInternalError   = "internal_error"
	ReasonNoSignals       = "no_urgency_signals"
	ReasonSafetyCritical  = "override:safety_critical"
	ReasonBaselineNeed    = "floor:baseline_need"
	ReasonTranscriptLimit = "transcript_truncated"
)

// Context carries optional hints from the primary extraction.
type Context struct {
	Category types.Category
	Amount   *float64
}

// Assessment is the result of one urgency evaluation.
type Assessment struct {
	Level       types.Level       `json:"level"`
	Score       float64           `json:"score"`
	LayerScores map[Layer]float64 `json:"layer_scores"`
	Reasons     []string          `json:"reasons"`
	Confidence  float64           `json:"confidence"`
}

// fallback is returned for unusable input and recovered failures.
func fallback(reason string) Assessment {
	return Assessment{
		Level:       types.LevelLow,
		LayerScores: map[Layer]float64{},
		Reasons:     []string{reason},
	}
}

// Engine evaluates transcripts. It is safe for concurrent use.
type Engine struct {
	cfg        config.UrgencyConfig
	maxRunes   int
	lex        *lexicon.Lexicon
	assessors  []*Assessor
	aggregator Aggregator
	modifier   *Modifier
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The engine names it "urgency".
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.For(l, logging.CategoryUrgency)
	}
}

// New builds an engine from cfg and lex. cfg is copied.
func New(cfg *config.Config, lex *lexicon.Lexicon, opts ...Option) (*Engine, error) {
	if cfg == nil || lex == nil {
		return nil, fmt.Errorf("urgency engine needs a config and a lexicon")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	local := cfg.Clone()
	e := &Engine{
		cfg:        local.Urgency,
		maxRunes:   local.Limits.MaxTranscriptRunes,
		lex:        lex,
		aggregator: NewAggregator(local.Urgency),
		logger:     zap.NewNop(),
	}
	for _, l := range Layers() {
		table := lex.Layer(string(l))
		if table == nil {
			return nil, fmt.Errorf("lexicon has no %s layer", l)
		}
		e.assessors = append(e.assessors, NewAssessor(table, local.Urgency.MaxReasonsPerLayer))
	}
	mod, err := NewModifier(local.Urgency)
	if err != nil {
		return nil, err
	}
	e.modifier = mod
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Thresholds returns the level thresholds the engine maps with.
func (e *Engine) Thresholds() config.LevelThresholds { return e.cfg.Thresholds }

// Assess scores text and returns the assessment value of AssessOutcome.
func (e *Engine) Assess(text string, ctx Context) Assessment {
	return e.AssessOutcome(text, ctx).Value
}

// AssessOutcome scores text. Empty input fails softly with a LOW assessment;
// oversized input is truncated and reported as degraded.
func (e *Engine) AssessOutcome(text string, ctx Context) result.Outcome[Assessment] {
	return e.AssessTranscript(transcript.New(text, e.maxRunes, e.lex.Fillers), ctx)
}

// AssessTranscript scores prepared transcript views.
func (e *Engine) AssessTranscript(t *transcript.Transcript, ctx Context) (out result.Outcome[Assessment]) {
	defer func() {
		if r := recover(); r != nil {
			logging.Audit(e.logger, logging.AuditEvent{
				Type:   logging.AuditRecoveredPanic,
				Detail: fmt.Sprintf("%T", r),
			})
			out = result.Failed(fallback(ReasonInternalError), ReasonInternalError)
		}
	}()

	if t == nil || t.Empty() {
		logging.Audit(e.logger, logging.AuditEvent{Type: logging.AuditInvalidInput, Field: "urgency"})
		return result.Failed(fallback(ReasonInvalidInput), ReasonInvalidInput)
	}

	a := e.assess(t, ctx)
	e.logger.Debug("urgency assessed",
		append(logging.TranscriptFields(t.Raw()),
			zap.Stringer("level", a.Level),
			zap.Float64("score", a.Score),
			zap.Float64("confidence", a.Confidence),
			logging.Labels("reasons", a.Reasons),
		)...)

	if t.Truncated() {
		return result.Degraded(a, ReasonTranscriptLimit)
	}
	return result.OK(a)
}

func (e *Engine) assess(t *transcript.Transcript, ctx Context) Assessment {
	scores := make(map[Layer]float64, len(e.assessors))
	var reasons []string
	safetyCritical := false
	baseline := false
	active := 0
	peak := 0.0

	for _, as := range e.assessors {
		ls := as.Assess(t)
		scores[as.Layer()] = ls.Score
		reasons = append(reasons, ls.Reasons...)
		if ls.Score > 0 {
			active++
		}
		peak = max(peak, ls.Score)
		if as.Layer() == LayerSafety && ls.Critical {
			safetyCritical = true
		}
		if as.Layer() == LayerExplicit && ls.Baseline {
			baseline = true
		}
	}

	score, aggReasons := e.aggregator.Aggregate(scores)
	reasons = append(reasons, aggReasons...)
	for _, r := range aggReasons {
		logging.Audit(e.logger, logging.AuditEvent{Type: logging.AuditUrgencyOverride, Rule: r, Score: score})
	}
	// Plain need language reaches the floor; a low marker suppresses the
	// baseline tier and with it this floor.
	if baseline && score < e.cfg.NeedFloor {
		score = e.cfg.NeedFloor
		reasons = append(reasons, ReasonBaselineNeed)
	}

	score, modReasons := e.modifier.Modify(score, ctx.Category, ctx.Amount, t.Normalized())
	reasons = append(reasons, modReasons...)

	level := ToLevel(score, e.cfg.Thresholds)
	if safetyCritical {
		score = max(score, scores[LayerSafety])
		level = types.LevelCritical
		reasons = append(reasons, ReasonSafetyCritical)
	}

	confidence := 0.3
	if active == 0 {
		reasons = append(reasons, ReasonNoSignals)
	} else {
		confidence = 0.4 + 0.1*float64(active)
		if peak >= 0.9 {
			confidence += 0.1
		}
	}

	return Assessment{
		Level:       level,
		Score:       clamp01(score),
		LayerScores: scores,
		Reasons:     reasons,
		Confidence:  clamp01(confidence),
	}
}
