package config

import (
	"os"
	"path/filepath"
	"testing"

	"intake/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.0, cfg.Urgency.Weights.Sum(), 1e-9)
	assert.Equal(t, DefaultCriticalThreshold, cfg.Urgency.Thresholds.Critical)
	assert.Equal(t, TableVersion, cfg.Version)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"conservative", "default", "sensitive"}, Presets())

	for _, name := range Presets() {
		t.Run(name, func(t *testing.T) {
			cfg, err := Preset(name)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, name, cfg.Preset)
			assert.Equal(t, cfg.Urgency.Thresholds.Medium, cfg.Urgency.NeedFloor, "plain need language maps to MEDIUM")
		})
	}

	conservative, err := Preset("conservative")
	require.NoError(t, err)
	assert.Greater(t, conservative.Urgency.Thresholds.High, Default().Urgency.Thresholds.High)

	_, err = Preset("reckless")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.Urgency.Weights.Explicit = 0.5 }},
		{"thresholds out of order", func(c *Config) { c.Urgency.Thresholds.High = 0.3 }},
		{"critical above one", func(c *Config) { c.Urgency.Thresholds.Critical = 1.2 }},
		{"negative boost cap", func(c *Config) { c.Urgency.BoostCap = -0.1 }},
		{"need floor above one", func(c *Config) { c.Urgency.NeedFloor = 1.5 }},
		{"unknown modifier kind", func(c *Config) { c.Urgency.Modifiers[0].Kind = "multiply" }},
		{"boost without range", func(c *Config) {
			c.Urgency.Modifiers = append(c.Urgency.Modifiers, ModifierRule{
				Name: "broken", Category: types.CategoryFood, Kind: ModifierBoost, Value: 0.1,
			})
		}},
		{"modifier unknown category", func(c *Config) { c.Urgency.Modifiers[0].Category = "PETS" }},
		{"amount range inverted", func(c *Config) { c.Amount.Min = 200000 }},
		{"no candidates", func(c *Config) { c.Amount.MaxCandidates = 0 }},
		{"zero scale", func(c *Config) { c.Amount.CategoryScale[types.CategoryFood] = 0 }},
		{"unknown priority", func(c *Config) { c.Correction.CategoryPriority = []types.Category{"PETS"} }},
		{"no transcript limit", func(c *Config) { c.Limits.MaxTranscriptRunes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.Urgency.Modifiers[0].Value = 0.99
	clone.Urgency.Modifiers[2].Keywords[0] = "changed"
	clone.Amount.CategoryScale[types.CategoryHealthcare] = 9
	clone.Amount.CategoryRanges[types.CategoryHousing] = AmountRange{Min: 1, Max: 2}
	clone.Correction.CategoryPriority[0] = types.CategoryOther

	assert.Equal(t, 0.75, cfg.Urgency.Modifiers[0].Value)
	assert.Equal(t, "eviction", cfg.Urgency.Modifiers[2].Keywords[0])
	assert.Equal(t, 1.25, cfg.Amount.CategoryScale[types.CategoryHealthcare])
	assert.Equal(t, 300.0, cfg.Amount.CategoryRanges[types.CategoryHousing].Min)
	assert.Equal(t, types.CategorySafety, cfg.Correction.CategoryPriority[0])
}

func TestLoad(t *testing.T) {
	t.Setenv("INTAKE_PRESET", "")
	t.Setenv("INTAKE_LEXICON", "")
	t.Setenv("INTAKE_LOG_LEVEL", "")
	t.Setenv("INTAKE_LOG_FORMAT", "")

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default().Urgency.Thresholds, cfg.Urgency.Thresholds)
	})

	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPreset, cfg.Preset)
	})

	t.Run("file overrides preset values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intake.yaml")
		data := []byte(`
preset: sensitive
urgency:
  boost_cap: 0.12
amount:
  min_confidence: 0.45
`)
		require.NoError(t, os.WriteFile(path, data, 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sensitive", cfg.Preset)
		assert.Equal(t, 0.30, cfg.Urgency.Thresholds.Medium)
		assert.Equal(t, 0.12, cfg.Urgency.BoostCap)
		assert.Equal(t, 0.45, cfg.Amount.MinConfidence)
		// untouched sections keep preset values
		assert.Equal(t, 100000.0, cfg.Amount.Max)
		assert.Len(t, cfg.Urgency.Modifiers, len(defaultModifiers()))
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("urgency:\n  thresholds:\n    medium: 0.9\n"), 0644))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("urgency: [unclosed"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("INTAKE_PRESET", "")
	path := filepath.Join(t.TempDir(), "nested", "intake.yaml")

	cfg, err := Preset("conservative")
	require.NoError(t, err)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Urgency.Thresholds, loaded.Urgency.Thresholds)
	assert.Equal(t, cfg.Amount.CategoryRanges, loaded.Amount.CategoryRanges)
}

func TestAmountRangeContains(t *testing.T) {
	r := AmountRange{Min: 100, Max: 200}
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(200))
	assert.False(t, r.Contains(99.99))
}
