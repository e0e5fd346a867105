// Package regression runs labelled transcript suites against the intake pipeline.
// Suites are YAML files of cases, each naming the call it exercises and the
// values it expects; runs are evaluated in parallel, can be recorded in a sqlite
// store, and can be re-triggered when watched files change.
package regression

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"intake/internal/types"

	"gopkg.in/yaml.v3"
)

// Op names the pipeline call a case exercises.
type Op string

const (
	OpAssess  Op = "assess"
	OpAmount  Op = "amount"
	OpCorrect Op = "correct"
	OpProcess Op = "process"
)

// Suite is a versioned collection of cases.
type Suite struct {
	Version int    `yaml:"version"`
	Name    string `yaml:"name,omitempty"`
	Cases   []Case `yaml:"cases"`
}

// Case is a single labelled transcript.
type Case struct {
	ID         string      `yaml:"id"`
	Op         Op          `yaml:"op"`
	Transcript string      `yaml:"transcript"`
	Context    CaseContext `yaml:"context,omitempty"`
	Fields     CaseFields  `yaml:"fields,omitempty"` // primary extraction handed to correct
	Expect     Expect      `yaml:"expect"`
}

// CaseContext carries the hints passed to assess and amount.
type CaseContext struct {
	Category string   `yaml:"category,omitempty"`
	Amount   *float64 `yaml:"amount,omitempty"`
	Urgency  string   `yaml:"urgency,omitempty"`
}

// CaseFields is the YAML form of types.Fields.
type CaseFields struct {
	Category string   `yaml:"category,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Amount   *float64 `yaml:"amount,omitempty"`
	Urgency  string   `yaml:"urgency,omitempty"`
}

// Expect lists the checked values. Unset entries are not checked.
type Expect struct {
	Level      string   `yaml:"level,omitempty"`
	GoalAmount *float64 `yaml:"goal_amount,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	Category   string   `yaml:"category,omitempty"`
	Name       *string  `yaml:"name,omitempty"`
	Amount     *float64 `yaml:"amount,omitempty"`
	NoAmount   bool     `yaml:"no_amount,omitempty"`
	Urgency    string   `yaml:"urgency,omitempty"`
	FixRules   []string `yaml:"fix_rules,omitempty"`
	Status     string   `yaml:"status,omitempty"`
}

//go:embed cases/default.yaml
var defaultSuite []byte

// DefaultSuite returns the embedded suite.
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuite)
}

// LoadSuite reads a YAML suite file from disk.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes and validates a YAML suite.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ids are unique and every category, level and op is known.
func (s *Suite) Validate() error {
	seen := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		c.Op = Op(strings.ToLower(strings.TrimSpace(string(c.Op))))
		if c.ID == "" {
			return fmt.Errorf("case %d: missing id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("case %s: duplicate id", c.ID)
		}
		seen[c.ID] = true

		switch c.Op {
		case OpAssess, OpAmount, OpCorrect, OpProcess:
		default:
			return fmt.Errorf("case %s: unsupported op %q", c.ID, c.Op)
		}
		for _, cat := range []string{c.Context.Category, c.Fields.Category, c.Expect.Category} {
			if _, ok := types.ParseCategory(cat); cat != "" && !ok {
				return fmt.Errorf("case %s: unknown category %q", c.ID, cat)
			}
		}
		for _, lvl := range []string{c.Context.Urgency, c.Fields.Urgency, c.Expect.Level, c.Expect.Urgency} {
			if _, ok := types.ParseLevel(lvl); lvl != "" && !ok {
				return fmt.Errorf("case %s: unknown urgency level %q", c.ID, lvl)
			}
		}
	}
	return nil
}

func category(s string) types.Category {
	c, _ := types.ParseCategory(s)
	if s == "" {
		return ""
	}
	return c
}

func level(s string) types.Level {
	l, _ := types.ParseLevel(s)
	return l
}

// toFields converts the YAML form to pipeline fields.
func (f CaseFields) toFields() types.Fields {
	out := types.Fields{
		Category: category(f.Category),
		Name:     f.Name,
		Urgency:  level(f.Urgency),
	}
	if f.Amount != nil {
		out.Amount = types.Amount(*f.Amount)
	}
	return out
}
