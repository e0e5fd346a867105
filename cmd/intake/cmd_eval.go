package main

import (
	"fmt"

	"intake/internal/logging"
	"intake/internal/types"
	"intake/pkg/intake"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagCategory string
	flagName     string
	flagAmount   float64
	flagUrgency  string
)

// assessCmd scores urgency
var assessCmd = &cobra.Command{
	Use:   "assess [transcript...]",
	Short: "Assess the urgency of a transcript",
	Long: `Runs the six urgency layers, the weighted aggregator, the context modifier
and the level mapper.

Example:
  intake assess --category HOUSING "the landlord says we are out by friday"
  echo "I need help" | intake assess -`,
	RunE: runAssess,
}

// amountCmd detects the goal amount
var amountCmd = &cobra.Command{
	Use:   "amount [transcript...]",
	Short: "Detect the goal amount of a transcript",
	Long: `Runs the explicit, contextual and vague amount passes, rejection and
validation, and prints the selected amount with its ranked candidates.`,
	RunE: runAmount,
}

// correctCmd repairs a primary extraction
var correctCmd = &cobra.Command{
	Use:   "correct [transcript...]",
	Short: "Apply the correction layer to extracted fields",
	Long: `Re-derives category, name, goal amount and urgency from the transcript
where the given fields show a known failure signature.

Example:
  intake correct --category HEALTHCARE --amount 500 "Also dealing with surgery, but really I need $500 for rent"`,
	RunE: runCorrect,
}

// processCmd runs the full derivation
var processCmd = &cobra.Command{
	Use:   "process [transcript...]",
	Short: "Extract, assess, detect and correct in one pass",
	RunE:  runProcess,
}

func init() {
	for _, c := range []*cobra.Command{assessCmd, amountCmd, correctCmd} {
		c.Flags().StringVar(&flagCategory, "category", "", "Category of the primary extraction")
	}
	assessCmd.Flags().Float64Var(&flagAmount, "amount", 0, "Goal amount hint")
	amountCmd.Flags().StringVar(&flagUrgency, "urgency", "", "Urgency level hint (LOW, MEDIUM, HIGH, CRITICAL)")

	correctCmd.Flags().StringVar(&flagName, "name", "", "Extracted caller name")
	correctCmd.Flags().Float64Var(&flagAmount, "amount", 0, "Extracted goal amount")
	correctCmd.Flags().StringVar(&flagUrgency, "urgency", "", "Extracted urgency level")
}

func parseCategory() (types.Category, error) {
	if flagCategory == "" {
		return "", nil
	}
	c, ok := types.ParseCategory(flagCategory)
	if !ok {
		return "", fmt.Errorf("unknown category %q", flagCategory)
	}
	return c, nil
}

func parseUrgency() (types.Level, error) {
	if flagUrgency == "" {
		return types.LevelLow, nil
	}
	l, ok := types.ParseLevel(flagUrgency)
	if !ok {
		return types.LevelLow, fmt.Errorf("unknown urgency level %q", flagUrgency)
	}
	return l, nil
}

func amountFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("amount") {
		return nil
	}
	return types.Amount(flagAmount)
}

func runAssess(cmd *cobra.Command, args []string) error {
	cat, err := parseCategory()
	if err != nil {
		return err
	}
	text, err := readTranscript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	out := p.AssessUrgencyOutcome(text, intake.UrgencyContext{Category: cat, Amount: amountFlag(cmd)})
	logOutcome("assess", text, out.Status, out.Reason)
	return writeJSON(cmd.OutOrStdout(), out.Value)
}

func runAmount(cmd *cobra.Command, args []string) error {
	cat, err := parseCategory()
	if err != nil {
		return err
	}
	lvl, err := parseUrgency()
	if err != nil {
		return err
	}
	text, err := readTranscript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	out := p.DetectGoalAmountOutcome(text, intake.AmountContext{Category: cat, Urgency: lvl})
	logOutcome("amount", text, out.Status, out.Reason)
	return writeJSON(cmd.OutOrStdout(), out.Value)
}

func runCorrect(cmd *cobra.Command, args []string) error {
	cat, err := parseCategory()
	if err != nil {
		return err
	}
	lvl, err := parseUrgency()
	if err != nil {
		return err
	}
	text, err := readTranscript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	fields := intake.Fields{Category: cat, Name: flagName, Amount: amountFlag(cmd), Urgency: lvl}
	out := p.ApplyCorrectionsOutcome(text, fields)
	logOutcome("correct", text, out.Status, out.Reason)
	return writeJSON(cmd.OutOrStdout(), out.Value)
}

func runProcess(cmd *cobra.Command, args []string) error {
	text, err := readTranscript(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	p, err := buildPipeline()
	if err != nil {
		return err
	}

	rec := p.Process(text)
	logging.For(cliLogger(), logging.CategoryCLI).Debug("process finished",
		append(logging.TranscriptFields(text),
			zap.String("status", rec.Status),
			zap.Int("fixes", len(rec.Fixes)),
		)...,
	)
	return writeJSON(cmd.OutOrStdout(), rec)
}

func logOutcome(op, text string, status fmt.Stringer, reason string) {
	l := logging.For(cliLogger(), logging.CategoryCLI)
	fields := append(logging.TranscriptFields(text), zap.String("op", op), zap.Stringer("status", status))
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	l.Debug("evaluation finished", fields...)
}
