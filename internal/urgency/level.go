package urgency

import (
	"intake/internal/config"
	"intake/internal/types"
)

// ToLevel maps a score onto a level by descending threshold comparison. Thresholds
// are strictly increasing, so the mapping is monotonic in score.
func ToLevel(score float64, th config.LevelThresholds) types.Level {
	switch {
	case score >= th.Critical:
		return types.LevelCritical
	case score >= th.High:
		return types.LevelHigh
	case score >= th.Medium:
		return types.LevelMedium
	default:
		return types.LevelLow
	}
}
