package interpret

import (
	"strings"

	"stratagem-ai/internal/model"
)

// Tier is the display bucket for a risk severity.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// TierOf matches case-insensitively; unknown severities land in TierLow.
func TierOf(s model.Severity) Tier {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "high":
		return TierHigh
	case "medium":
		return TierMedium
	default:
		return TierLow
	}
}

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}
