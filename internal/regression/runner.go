package regression

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"intake/internal/logging"
	"intake/internal/types"
	"intake/pkg/intake"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Failure is one mismatched field of one case.
type Failure struct {
	CaseID string `json:"case_id"`
	Field  string `json:"field"`
	Want   string `json:"want"`
	Got    string `json:"got"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	CaseID     string   `json:"case_id"`
	Op         Op       `json:"op"`
	Passed     bool     `json:"passed"`
	Fields     []string `json:"mismatched,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Report summarises one run.
type Report struct {
	RunID          string        `json:"run_id"`
	Suite          string        `json:"suite,omitempty"`
	Preset         string        `json:"preset"`
	LexiconVersion string        `json:"lexicon_version"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Total          int           `json:"total"`
	Passed         int           `json:"passed"`
	Failures       []Failure     `json:"failures"`
	Cases          []CaseResult  `json:"cases"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool { return r.Passed == r.Total }

// Runner evaluates suites against one pipeline.
type Runner struct {
	pipeline *intake.Pipeline
	workers  int
	logger   *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds the number of cases evaluated at once. n <= 0 means GOMAXPROCS.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger routes run summaries to l.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.For(l, logging.CategoryRegression) }
}

// NewRunner builds a runner over p.
func NewRunner(p *intake.Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: p,
		workers:  runtime.GOMAXPROCS(0),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every case of s. Cases run in parallel; the report lists them in
// suite order. Run returns an error only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, s *Suite) (*Report, error) {
	if s == nil {
		return nil, fmt.Errorf("no suite to run")
	}
	cfg := r.pipeline.Config()
	rep := &Report{
		RunID:          uuid.NewString(),
		Suite:          s.Name,
		Preset:         cfg.Preset,
		LexiconVersion: r.pipeline.Lexicon().Version,
		StartedAt:      time.Now(),
		Total:          len(s.Cases),
	}

	results := make([]CaseResult, len(s.Cases))
	failures := make([][]Failure, len(s.Cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range s.Cases {
		c := s.Cases[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			failures[i] = r.evaluate(c)
			results[i] = CaseResult{
				CaseID:     c.ID,
				Op:         c.Op,
				Passed:     len(failures[i]) == 0,
				Fields:     fieldNames(failures[i]),
				DurationMs: time.Since(start).Milliseconds(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("regression run cancelled: %w", err)
	}

	rep.Cases = results
	rep.Failures = []Failure{}
	for i, res := range results {
		if res.Passed {
			rep.Passed++
		}
		rep.Failures = append(rep.Failures, failures[i]...)
	}
	rep.Duration = time.Since(rep.StartedAt)

	var failed []string
	for _, res := range results {
		if !res.Passed {
			failed = append(failed, res.CaseID)
		}
	}
	r.logger.Info("regression run finished",
		zap.String("run_id", rep.RunID),
		zap.Int("total", rep.Total),
		zap.Int("passed", rep.Passed),
		zap.Duration("duration", rep.Duration),
		logging.Labels("failed_cases", failed),
	)
	return rep, nil
}

// =============================================================================
// CASE EVALUATION
// =============================================================================

type checker struct {
	id       string
	failures []Failure
}

func (c *checker) check(field, want, got string) {
	if want != got {
		c.failures = append(c.failures, Failure{CaseID: c.id, Field: field, Want: want, Got: got})
	}
}

func (r *Runner) evaluate(c Case) []Failure {
	ck := &checker{id: c.ID}
	exp := c.Expect
	p := r.pipeline

	switch c.Op {
	case OpAssess:
		a := p.AssessUrgency(c.Transcript, intake.UrgencyContext{
			Category: category(c.Context.Category),
			Amount:   c.Context.Amount,
		})
		if exp.Level != "" {
			ck.check("level", exp.Level, a.Level.String())
		}

	case OpAmount:
		d := p.DetectGoalAmount(c.Transcript, intake.AmountContext{
			Category: category(c.Context.Category),
			Urgency:  level(c.Context.Urgency),
		})
		if exp.GoalAmount != nil {
			ck.check("goal_amount", types.FormatAmount(exp.GoalAmount), types.FormatAmount(d.GoalAmount))
		}
		if exp.Source != "" {
			ck.check("source", exp.Source, string(d.Source))
		}

	case OpCorrect:
		out := p.ApplyCorrectionsOutcome(c.Transcript, c.Fields.toFields())
		var fired []string
		for _, res := range out.Value.Results {
			if res.Fixed {
				fired = append(fired, res.Rule)
			}
		}
		checkFields(ck, exp, out.Value.Fields, fired)
		if exp.Status != "" {
			ck.check("status", exp.Status, out.Status.String())
		}

	case OpProcess:
		rec := p.Process(c.Transcript)
		var fired []string
		for _, res := range rec.Results {
			if res.Fixed {
				fired = append(fired, res.Rule)
			}
		}
		checkFields(ck, exp, rec.Fields, fired)
		if exp.Level != "" {
			ck.check("level", exp.Level, rec.Assessment.Level.String())
		}
		if exp.GoalAmount != nil {
			ck.check("goal_amount", types.FormatAmount(exp.GoalAmount), types.FormatAmount(rec.Detection.GoalAmount))
		}
		if exp.Source != "" {
			ck.check("source", exp.Source, string(rec.Detection.Source))
		}
		if exp.Status != "" {
			ck.check("status", exp.Status, rec.Status)
		}
	}
	return ck.failures
}

func checkFields(ck *checker, exp Expect, got types.Fields, fired []string) {
	if exp.Category != "" {
		ck.check("category", string(category(exp.Category)), string(got.Category))
	}
	if exp.Name != nil {
		ck.check("name", *exp.Name, got.Name)
	}
	if exp.Amount != nil {
		ck.check("amount", types.FormatAmount(exp.Amount), types.FormatAmount(got.Amount))
	}
	if exp.NoAmount {
		ck.check("amount", types.FormatAmount(nil), types.FormatAmount(got.Amount))
	}
	if exp.Urgency != "" {
		ck.check("urgency", strings.ToUpper(exp.Urgency), got.Urgency.String())
	}
	// fix_rules lists rules that must have fired; others may fire too.
	for _, rule := range exp.FixRules {
		if !contains(fired, rule) {
			ck.check("fix_rules", rule, strings.Join(fired, ","))
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func fieldNames(fs []Failure) []string {
	var out []string
	for _, f := range fs {
		if !contains(out, f.Field) {
			out = append(out, f.Field)
		}
	}
	return out
}
