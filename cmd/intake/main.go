package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"intake/internal/config"
	"intake/internal/lexicon"
	"intake/internal/logging"
	"intake/pkg/intake"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	presetName  string
	lexiconPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Derive category, name, goal amount and urgency from intake transcripts",
	Long: `intake runs the deterministic intake core over a single transcript or a
labelled regression suite.

Transcripts are read from the arguments, or from stdin when the only argument
is "-" or no argument is given. Results are printed as JSON on stdout; logs go
to stderr and never contain transcript text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lc := cfg.Logging
		if verbose {
			lc.Level = "debug"
		}
		l, err := logging.New(lc)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Engine config YAML (default: built-in preset)")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "Base preset: "+strings.Join(config.Presets(), ", "))
	rootCmd.PersistentFlags().StringVarP(&lexiconPath, "lexicon", "l", "", "Pattern table YAML (default: embedded)")

	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(amountCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(regressCmd)
	rootCmd.AddCommand(lexiconCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// loadConfig resolves the engine config from --config and --preset.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadPreset(configPath, presetName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lexiconPath != "" {
		cfg.Lexicon = lexiconPath
	}
	return cfg, nil
}

// loadLexicon returns the pattern table named by cfg, or the embedded one.
func loadLexicon(cfg *config.Config) (*lexicon.Lexicon, error) {
	if cfg.Lexicon == "" {
		return lexicon.Default(), nil
	}
	lex, err := lexicon.Load(cfg.Lexicon)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	return lex, nil
}

// buildPipeline loads config and lexicon and wires the engines.
func buildPipeline() (*intake.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lex, err := loadLexicon(cfg)
	if err != nil {
		return nil, err
	}
	return intake.New(cfg, lex, intake.WithLogger(cliLogger()))
}

func cliLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// readTranscript joins args, or reads in when args is empty or a lone "-".
func readTranscript(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
