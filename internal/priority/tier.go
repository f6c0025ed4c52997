package priority

// Tier is the urgency tier an action item falls into
type Tier string

const (
	TierUrgent Tier = "urgent"
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Score boundaries.
const (
	UrgentThreshold   = 80.0
	ModerateThreshold = 60.0
	MediumThreshold   = 40.0
)

var tierLabels = map[Tier]struct{ urgency, actionType string }{
	TierUrgent: {"URGENT - within 24 hours", "Critical Intervention"},
	TierHigh:   {"HIGH - within 3 days", "Fast Resolution"},
	TierMedium: {"MEDIUM - within 1 week", "Planned Improvement"},
	TierLow:    {"LOW - within 1 month", "Long-term Plan"},
}

// TierFor maps a priority score to its tier
func TierFor(score float64) Tier {
	switch {
	case score >= UrgentThreshold:
		return TierUrgent
	case score >= ModerateThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Urgency returns the human readable deadline of the tier
func (t Tier) Urgency() string { return tierLabels[t].urgency }

// ActionType returns the kind of action the tier calls for
func (t Tier) ActionType() string { return tierLabels[t].actionType }

// Rank orders tiers, higher is more urgent. Unknown tiers rank zero.
func (t Tier) Rank() int {
	switch t {
	case TierUrgent:
		return 4
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// ParseTier validates a tier name
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	return t, t.Rank() > 0
}
