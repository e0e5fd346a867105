package config

import (
	"fmt"
	"sort"

	"intake/internal/types"
)

// Default level thresholds. They are configuration, not structure: engines read
// them from Config.Urgency.Thresholds, these names only seed the default preset.
const (
	DefaultMediumThreshold   = 0.35
	DefaultHighThreshold     = 0.60
	DefaultCriticalThreshold = 0.85
)

// TableVersion identifies the default weight/threshold table.
const TableVersion = "2026.10"

// DefaultPreset is the name of the baseline preset.
const DefaultPreset = "default"

var presets = map[string]func(*Config){
	DefaultPreset: func(*Config) {},
	"conservative": func(c *Config) {
		c.Urgency.Thresholds = LevelThresholds{Medium: 0.40, High: 0.65, Critical: 0.90}
		c.Urgency.NeedFloor = 0.40
		c.Urgency.BoostCap = 0.10
		c.Amount.MinConfidence = 0.5
	},
	"sensitive": func(c *Config) {
		c.Urgency.Thresholds = LevelThresholds{Medium: 0.30, High: 0.55, Critical: 0.80}
		c.Urgency.NeedFloor = 0.30
		c.Urgency.BoostCap = 0.20
		c.Amount.MinConfidence = 0.35
	},
}

// Presets lists the available preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh configuration for the named preset. An empty name selects the default.
func Preset(name string) (*Config, error) {
	if name == "" {
		name = DefaultPreset
	}
	apply, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q (valid: %v)", ErrInvalidConfig, name, Presets())
	}
	cfg := Default()
	cfg.Preset = name
	apply(cfg)
	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: TableVersion,
		Preset:  DefaultPreset,

		Urgency: UrgencyConfig{
			Weights: LayerWeights{
				Explicit:    0.30,
				Contextual:  0.25,
				Temporal:    0.15,
				Emotional:   0.05,
				Consequence: 0.05,
				Safety:      0.20,
			},
			Override:    OverrideThresholds{Contextual: 0.9, Safety: 0.9, Explicit: 0.9},
			Combination: CombinationRule{Temporal: 0.7, Contextual: 0.8, Floor: 0.9},
			Thresholds: LevelThresholds{
				Medium:   DefaultMediumThreshold,
				High:     DefaultHighThreshold,
				Critical: DefaultCriticalThreshold,
			},
			NeedFloor:          DefaultMediumThreshold,
			BoostCap:           0.15,
			LargeAmount:        LargeAmountRule{Threshold: 10000, Boost: 0.05},
			MaxReasonsPerLayer: 3,
			Modifiers:          defaultModifiers(),
		},

		Amount: AmountConfig{
			Min:                    50,
			Max:                    100000,
			MinConfidence:          0.4,
			UrgentConfidenceRelief: 0.1,
			StrongEvidence:         0.85,
			NeedVerbBonus:          0.1,
			NegationPenalty:        0.3,
			RangeBonus:             0.05,
			RangePenalty:           0.05,
			ProximityWindow:        40,
			NegationWindow:         20,
			SmallAmount:            100,
			LargeAmount:            50000,
			MaxCandidates:          3,
			CategoryScale: map[types.Category]float64{
				types.CategoryHealthcare: 1.25,
				types.CategoryEmergency:  0.8,
			},
			CategoryRanges: map[types.Category]AmountRange{
				types.CategoryHousing:        {Min: 300, Max: 15000},
				types.CategoryHealthcare:     {Min: 100, Max: 100000},
				types.CategoryEmployment:     {Min: 50, Max: 5000},
				types.CategoryTransportation: {Min: 100, Max: 10000},
				types.CategoryLegal:          {Min: 200, Max: 25000},
				types.CategoryEmergency:      {Min: 50, Max: 5000},
				types.CategorySafety:         {Min: 50, Max: 10000},
				types.CategoryFamily:         {Min: 50, Max: 10000},
				types.CategoryEducation:      {Min: 100, Max: 20000},
				types.CategoryFood:           {Min: 50, Max: 1500},
				types.CategoryUtilities:      {Min: 50, Max: 3000},
			},
		},

		Correction: CorrectionConfig{
			CategoryPriority: []types.Category{
				types.CategorySafety,
				types.CategoryEmergency,
				types.CategoryHealthcare,
				types.CategoryHousing,
				types.CategoryUtilities,
				types.CategoryFood,
				types.CategoryLegal,
				types.CategoryTransportation,
				types.CategoryEmployment,
				types.CategoryFamily,
				types.CategoryEducation,
			},
		},

		Limits: LimitsConfig{MaxTranscriptRunes: 20000},

		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func defaultModifiers() []ModifierRule {
	return []ModifierRule{
		{Name: "safety_floor", Category: types.CategorySafety, Kind: ModifierFloor, Value: 0.75},
		{Name: "emergency_floor", Category: types.CategoryEmergency, Kind: ModifierFloor, Value: 0.6},
		{
			Name: "housing_eviction_floor", Category: types.CategoryHousing, Kind: ModifierFloor, Value: 0.6,
			Keywords: []string{"eviction", "evicted", "locked out", "homeless"},
		},
		{
			Name: "housing_pressure_boost", Category: types.CategoryHousing, Kind: ModifierBoost, Value: 0.08,
			MinScore: 0.35, MaxScore: 0.85,
			Keywords: []string{"landlord", "past due", "rent is due", "behind on rent", "late on rent"},
		},
		{
			Name: "healthcare_treatment_boost", Category: types.CategoryHealthcare, Kind: ModifierBoost, Value: 0.1,
			MinScore: 0.35, MaxScore: 0.85,
			Keywords: []string{"surgery", "hospital", "emergency room", "chemo", "chemotherapy", "prescription", "medication", "insulin"},
		},
		{
			Name: "legal_deadline_boost", Category: types.CategoryLegal, Kind: ModifierBoost, Value: 0.08,
			MinScore: 0.3, MaxScore: 0.85,
			Keywords: []string{"court date", "hearing", "warrant", "lawyer", "attorney", "bail"},
		},
		{
			Name: "employment_loss_boost", Category: types.CategoryEmployment, Kind: ModifierBoost, Value: 0.05,
			MinScore: 0.3, MaxScore: 0.8,
			Keywords: []string{"laid off", "fired", "lost my job", "final paycheck"},
		},
		{
			Name: "transportation_work_boost", Category: types.CategoryTransportation, Kind: ModifierBoost, Value: 0.05,
			MinScore: 0.3, MaxScore: 0.8,
			Keywords: []string{"get to work", "only way to work", "car broke down", "need my car"},
		},
		{
			Name: "family_children_boost", Category: types.CategoryFamily, Kind: ModifierBoost, Value: 0.08,
			MinScore: 0.35, MaxScore: 0.85,
			Keywords: []string{"kids", "children", "baby", "my son", "my daughter", "newborn"},
		},
	}
}
