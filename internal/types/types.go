// Package types provides the shared intake field types used across the
// extraction, urgency, amount and correction packages.
// This package exists to break import cycles; it has no behaviour beyond parsing.
package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category is the need category assigned to a transcript.
type Category string

const (
	CategoryHousing        Category = "HOUSING"
	CategoryHealthcare     Category = "HEALTHCARE"
	CategoryEmployment     Category = "EMPLOYMENT"
	CategoryTransportation Category = "TRANSPORTATION"
	CategoryLegal          Category = "LEGAL"
	CategoryEmergency      Category = "EMERGENCY"
	CategorySafety         Category = "SAFETY"
	CategoryFamily         Category = "FAMILY"
	CategoryEducation      Category = "EDUCATION"
	CategoryFood           Category = "FOOD"
	CategoryUtilities      Category = "UTILITIES"
	CategoryOther          Category = "OTHER"
)

var allCategories = []Category{
	CategoryHousing,
	CategoryHealthcare,
	CategoryEmployment,
	CategoryTransportation,
	CategoryLegal,
	CategoryEmergency,
	CategorySafety,
	CategoryFamily,
	CategoryEducation,
	CategoryFood,
	CategoryUtilities,
	CategoryOther,
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory normalises s (trim + upper-case) and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsUnresolved reports whether c carries no usable category (empty or OTHER).
func (c Category) IsUnresolved() bool {
	return c == "" || c == CategoryOther
}

// =============================================================================
// URGENCY LEVEL
// =============================================================================

// Level is the four-step ordinal urgency level.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (l Level) String() string {
	if l < LevelLow || l > LevelCritical {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if up == name {
			return Level(i), true
		}
	}
	return LevelLow, false
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < LevelLow || l > LevelCritical {
		return nil, fmt.Errorf("invalid urgency level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, ok := ParseLevel(string(b))
	if !ok {
		return fmt.Errorf("unknown urgency level %q", string(b))
	}
	*l = parsed
	return nil
}

// =============================================================================
// FIELDS
// =============================================================================

// Fields holds the four structured values derived from a transcript.
// A nil Amount means no goal amount is known; an empty Name means no caller name.
type Fields struct {
	Category Category `json:"category" yaml:"category"`
	Name     string   `json:"name" yaml:"name"`
	Amount   *float64 `json:"amount" yaml:"amount"`
	Urgency  Level    `json:"urgency" yaml:"urgency"`
}

// Clone returns a copy of f that shares no pointers with it.
func (f Fields) Clone() Fields {
	out := f
	if f.Amount != nil {
		out.Amount = Amount(*f.Amount)
	}
	return out
}

// Amount returns a pointer to v, for building Fields literals.
func Amount(v float64) *float64 {
	return &v
}

// FormatAmount renders an optional amount for audit trails.
func FormatAmount(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%.0f", *v)
}
