package scoring

// Level is the ordinal criticality assigned to an incident. Higher levels
// sort first in reports.
type Level int

const (
	LevelInfo Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the analyst-facing display name.
func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "CRITICAL"
	case LevelHigh:
		return "HIGH"
	case LevelMedium:
		return "MEDIUM"
	case LevelLow:
		return "LOW"
	default:
		return "INFO"
	}
}

// Order returns the numeric sort key (4 for CRITICAL down to 0 for INFO).
func (l Level) Order() int { return int(l) }

// LevelFromComposite assigns a level from the composite score via the
// ordered threshold ladder. The INFO branch is kept for forward
// compatibility; composite scores are non-negative by construction, so it
// is unreachable with the current score model.
func LevelFromComposite(composite float64) Level {
	switch {
	case composite >= 0.8:
		return LevelCritical
	case composite >= 0.6:
		return LevelHigh
	case composite >= 0.4:
		return LevelMedium
	case composite >= 0:
		return LevelLow
	default:
		return LevelInfo
	}
}
