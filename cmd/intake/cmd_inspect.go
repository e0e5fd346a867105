package main

import (
	"fmt"
	"os"

	"intake/internal/lexicon"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var dumpLexicon bool

// lexiconCmd describes the active pattern table
var lexiconCmd = &cobra.Command{
	Use:   "lexicon",
	Short: "Show the active pattern table",
	Long: `Prints the version and size of the active pattern table. With --dump, prints
its YAML source, which is a starting point for a custom --lexicon file.`,
	Args: cobra.NoArgs,
	RunE: runLexicon,
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective engine configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	lexiconCmd.Flags().BoolVar(&dumpLexicon, "dump", false, "Print the YAML source")
}

func runLexicon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lex, err := loadLexicon(cfg)
	if err != nil {
		return err
	}

	if dumpLexicon {
		src := lexicon.DefaultYAML()
		if cfg.Lexicon != "" {
			if src, err = os.ReadFile(cfg.Lexicon); err != nil {
				return fmt.Errorf("failed to read lexicon: %w", err)
			}
		}
		_, err := cmd.OutOrStdout().Write(src)
		return err
	}

	source := "embedded"
	if cfg.Lexicon != "" {
		source = cfg.Lexicon
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"version":    lex.Version,
		"source":     source,
		"patterns":   lex.PatternCount(),
		"categories": len(lex.Categories),
	})
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
