package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("logging and lexicon from environment", func(t *testing.T) {
		t.Setenv("INTAKE_LEXICON", "/etc/intake/lexicon.yaml")
		t.Setenv("INTAKE_LOG_LEVEL", "debug")
		t.Setenv("INTAKE_LOG_FORMAT", "console")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/etc/intake/lexicon.yaml", cfg.Lexicon)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.False(t, cfg.Logging.IsJSON())
	})

	t.Run("empty variables leave values alone", func(t *testing.T) {
		t.Setenv("INTAKE_LEXICON", "")
		t.Setenv("INTAKE_LOG_LEVEL", "")
		t.Setenv("INTAKE_LOG_FORMAT", "")

		cfg := Default()
		cfg.applyEnvOverrides()

		assert.Empty(t, cfg.Lexicon)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Logging.IsJSON())
	})

	t.Run("INTAKE_PRESET beats file preset", func(t *testing.T) {
		t.Setenv("INTAKE_PRESET", "conservative")
		path := filepath.Join(t.TempDir(), "intake.yaml")
		require.NoError(t, os.WriteFile(path, []byte("preset: sensitive\n"), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "conservative", cfg.Preset)
		assert.Equal(t, 0.40, cfg.Urgency.Thresholds.Medium)
	})

	t.Run("explicit preset beats environment", func(t *testing.T) {
		t.Setenv("INTAKE_PRESET", "conservative")
		cfg, err := LoadPreset("", "sensitive")
		require.NoError(t, err)
		assert.Equal(t, "sensitive", cfg.Preset)
		assert.Equal(t, 0.80, cfg.Urgency.Thresholds.Critical)
	})

	t.Run("unknown preset in environment", func(t *testing.T) {
		t.Setenv("INTAKE_PRESET", "nope")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
