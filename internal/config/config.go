package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"intake/internal/types"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

// Config is the immutable engine configuration. Engines copy it at construction;
// mutating a Config after passing it to an engine has no effect on that engine.
type Config struct {
	// Version of the weight/threshold table, reported in diagnostics.
	Version string `yaml:"version"`

	// Preset names the base table this config was derived from.
	Preset string `yaml:"preset"`

	// Lexicon is an optional path to a pattern table overriding the embedded one.
	Lexicon string `yaml:"lexicon,omitempty"`

	Urgency    UrgencyConfig    `yaml:"urgency"`
	Amount     AmountConfig     `yaml:"amount"`
	Correction CorrectionConfig `yaml:"correction"`
	Limits     LimitsConfig     `yaml:"limits"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// UrgencyConfig configures the six-layer urgency engine.
type UrgencyConfig struct {
	Weights            LayerWeights       `yaml:"weights"`
	Override           OverrideThresholds `yaml:"override"`
	Combination        CombinationRule    `yaml:"combination"`
	Thresholds         LevelThresholds    `yaml:"thresholds"`
	NeedFloor          float64            `yaml:"need_floor"`
	BoostCap           float64            `yaml:"boost_cap"`
	LargeAmount        LargeAmountRule    `yaml:"large_amount"`
	MaxReasonsPerLayer int                `yaml:"max_reasons_per_layer"`
	Modifiers          []ModifierRule     `yaml:"modifiers"`
}

// LayerWeights are the aggregation weights; they must sum to 1.
type LayerWeights struct {
	Explicit    float64 `yaml:"explicit"`
	Contextual  float64 `yaml:"contextual"`
	Temporal    float64 `yaml:"temporal"`
	Emotional   float64 `yaml:"emotional"`
	Consequence float64 `yaml:"consequence"`
	Safety      float64 `yaml:"safety"`
}

// Sum returns the total of all layer weights.
func (w LayerWeights) Sum() float64 {
	return w.Explicit + w.Contextual + w.Temporal + w.Emotional + w.Consequence + w.Safety
}

// OverrideThresholds are the per-layer critical override thresholds.
type OverrideThresholds struct {
	Contextual float64 `yaml:"contextual"`
	Safety     float64 `yaml:"safety"`
	Explicit   float64 `yaml:"explicit"`
}

// CombinationRule forces a floor when a deadline meets a crisis context.
type CombinationRule struct {
	Temporal   float64 `yaml:"temporal"`
	Contextual float64 `yaml:"contextual"`
	Floor      float64 `yaml:"floor"`
}

// LevelThresholds map a final score onto a level. Medium < High < Critical <= 1.
type LevelThresholds struct {
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// LargeAmountRule adds a small fixed boost for very large requests.
type LargeAmountRule struct {
	Threshold float64 `yaml:"threshold"`
	Boost     float64 `yaml:"boost"`
}

// ModifierKind is either a floor or an incremental boost.
type ModifierKind string

const (
	ModifierFloor ModifierKind = "floor"
	ModifierBoost ModifierKind = "boost"
)

// ModifierRule is one category-specific score adjustment.
// Boosts only apply when the score is within [MinScore, MaxScore).
type ModifierRule struct {
	Name     string         `yaml:"name"`
	Category types.Category `yaml:"category"`
	Kind     ModifierKind   `yaml:"kind"`
	Value    float64        `yaml:"value"`
	MinScore float64        `yaml:"min_score,omitempty"`
	MaxScore float64        `yaml:"max_score,omitempty"`
	Keywords []string       `yaml:"keywords,omitempty"`
}

// AmountConfig configures the five-pass amount engine.
type AmountConfig struct {
	Min                    float64                        `yaml:"min"`
	Max                    float64                        `yaml:"max"`
	MinConfidence          float64                        `yaml:"min_confidence"`
	UrgentConfidenceRelief float64                        `yaml:"urgent_confidence_relief"`
	StrongEvidence         float64                        `yaml:"strong_evidence"`
	NeedVerbBonus          float64                        `yaml:"need_verb_bonus"`
	NegationPenalty        float64                        `yaml:"negation_penalty"`
	RangeBonus             float64                        `yaml:"range_bonus"`
	RangePenalty           float64                        `yaml:"range_penalty"`
	ProximityWindow        int                            `yaml:"proximity_window"`
	NegationWindow         int                            `yaml:"negation_window"`
	SmallAmount            float64                        `yaml:"small_amount"`
	LargeAmount            float64                        `yaml:"large_amount"`
	MaxCandidates          int                            `yaml:"max_candidates"`
	CategoryScale          map[types.Category]float64     `yaml:"category_scale"`
	CategoryRanges         map[types.Category]AmountRange `yaml:"category_ranges"`
}

// AmountRange is an inclusive plausible range for a category.
type AmountRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies within the range.
func (r AmountRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// CorrectionConfig configures the post-hoc correction layer.
type CorrectionConfig struct {
	// CategoryPriority orders categories for multi-need resolution, highest first.
	CategoryPriority []types.Category `yaml:"category_priority"`
}

// LimitsConfig bounds the input size.
type LimitsConfig struct {
	MaxTranscriptRunes int `yaml:"max_transcript_runes"`
}

// Load loads configuration from a YAML file layered over a preset.
// A missing file yields the preset defaults. The preset is chosen by
// INTAKE_PRESET, then the file's preset key, then "default".
func Load(path string) (*Config, error) {
	return LoadPreset(path, "")
}

// LoadPreset is Load with an explicit base preset that wins over INTAKE_PRESET
// and the file's preset key. An empty preset behaves like Load.
func LoadPreset(path, preset string) (*Config, error) {
	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = raw
	}

	presetName := preset
	if presetName == "" {
		presetName = os.Getenv("INTAKE_PRESET")
	}
	if presetName == "" && len(data) > 0 {
		var head struct {
			Preset string `yaml:"preset"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		presetName = head.Preset
	}

	cfg, err := Preset(presetName)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if presetName != "" {
			cfg.Preset = presetName
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Only Load calls it;
// engines never read the environment.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("INTAKE_LEXICON"); path != "" {
		c.Lexicon = path
	}
	if level := os.Getenv("INTAKE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("INTAKE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c

	out.Urgency.Modifiers = make([]ModifierRule, len(c.Urgency.Modifiers))
	for i, m := range c.Urgency.Modifiers {
		m.Keywords = append([]string(nil), m.Keywords...)
		out.Urgency.Modifiers[i] = m
	}

	out.Amount.CategoryScale = make(map[types.Category]float64, len(c.Amount.CategoryScale))
	for k, v := range c.Amount.CategoryScale {
		out.Amount.CategoryScale[k] = v
	}
	out.Amount.CategoryRanges = make(map[types.Category]AmountRange, len(c.Amount.CategoryRanges))
	for k, v := range c.Amount.CategoryRanges {
		out.Amount.CategoryRanges[k] = v
	}

	out.Correction.CategoryPriority = append([]types.Category(nil), c.Correction.CategoryPriority...)
	return &out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u := c.Urgency
	if sum := u.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: urgency weights sum to %.4f, want 1", ErrInvalidConfig, sum)
	}
	for name, v := range map[string]float64{
		"weights.explicit":     u.Weights.Explicit,
		"weights.contextual":   u.Weights.Contextual,
		"weights.temporal":     u.Weights.Temporal,
		"weights.emotional":    u.Weights.Emotional,
		"weights.consequence":  u.Weights.Consequence,
		"weights.safety":       u.Weights.Safety,
		"override.contextual":  u.Override.Contextual,
		"override.safety":      u.Override.Safety,
		"override.explicit":    u.Override.Explicit,
		"combination.temporal": u.Combination.Temporal,
		"combination.floor":    u.Combination.Floor,
		"need_floor":           u.NeedFloor,
		"boost_cap":            u.BoostCap,
		"large_amount.boost":   u.LargeAmount.Boost,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: urgency.%s = %v outside [0,1]", ErrInvalidConfig, name, v)
		}
	}

	th := u.Thresholds
	if !(th.Medium > 0 && th.Medium < th.High && th.High < th.Critical && th.Critical <= 1) {
		return fmt.Errorf("%w: level thresholds must satisfy 0 < medium < high < critical <= 1 (got %.2f/%.2f/%.2f)",
			ErrInvalidConfig, th.Medium, th.High, th.Critical)
	}

	for _, m := range u.Modifiers {
		if !m.Category.Valid() {
			return fmt.Errorf("%w: modifier %q has unknown category %q", ErrInvalidConfig, m.Name, m.Category)
		}
		switch m.Kind {
		case ModifierFloor:
		case ModifierBoost:
			if m.MaxScore <= m.MinScore {
				return fmt.Errorf("%w: boost %q needs max_score > min_score", ErrInvalidConfig, m.Name)
			}
		default:
			return fmt.Errorf("%w: modifier %q has unknown kind %q", ErrInvalidConfig, m.Name, m.Kind)
		}
		if m.Value < 0 || m.Value > 1 {
			return fmt.Errorf("%w: modifier %q value %v outside [0,1]", ErrInvalidConfig, m.Name, m.Value)
		}
	}

	a := c.Amount
	if a.Min <= 0 || a.Min >= a.Max {
		return fmt.Errorf("%w: amount range must satisfy 0 < min < max (got %v..%v)", ErrInvalidConfig, a.Min, a.Max)
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 || a.StrongEvidence < 0 || a.StrongEvidence > 1 {
		return fmt.Errorf("%w: amount confidences must be within [0,1]", ErrInvalidConfig)
	}
	if a.MaxCandidates < 1 {
		return fmt.Errorf("%w: amount.max_candidates must be at least 1", ErrInvalidConfig)
	}
	for cat, scale := range a.CategoryScale {
		if scale <= 0 {
			return fmt.Errorf("%w: amount.category_scale[%s] must be positive", ErrInvalidConfig, cat)
		}
	}

	for _, cat := range c.Correction.CategoryPriority {
		if !cat.Valid() {
			return fmt.Errorf("%w: correction.category_priority has unknown category %q", ErrInvalidConfig, cat)
		}
	}

	if c.Limits.MaxTranscriptRunes <= 0 {
		return fmt.Errorf("%w: limits.max_transcript_runes must be positive", ErrInvalidConfig)
	}
	return nil
}
