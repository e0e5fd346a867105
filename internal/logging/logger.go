// Package logging provides config-driven categorised zap loggers for the intake engines.
// Transcripts are sensitive: nothing in this package accepts transcript text, and
// TranscriptFields only ever reports its length.
package logging

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"intake/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config and lexicon loading
	CategoryUrgency    Category = "urgency"    // Layer scoring, aggregation, modifiers
	CategoryAmount     Category = "amount"     // Amount passes and rejection
	CategoryCorrection Category = "correction" // Correction rule firings
	CategoryExtract    Category = "extract"    // Primary category/name extraction
	CategoryRegression Category = "regression" // Regression harness runs
	CategoryCLI        Category = "cli"        // Command line front end
)

// ParseLevel maps a config level name onto a zap level. Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from the logging config: production JSON encoding by default,
// the development console encoder when format is "console". Output goes to stderr.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsJSON() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// For returns a sub-logger named after the category. A nil logger yields a no-op logger.
func For(l *zap.Logger, category Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(string(category))
}

// TranscriptFields describes a transcript for diagnostics without revealing it.
func TranscriptFields(transcript string) []zap.Field {
	return []zap.Field{zap.Int("transcript_runes", utf8.RuneCountInString(transcript))}
}

// Labels logs a list of lexicon labels (never transcript text).
func Labels(key string, labels []string) zap.Field {
	return zap.Strings(key, labels)
}
