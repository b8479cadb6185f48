package domain

// RiskTier buckets a score into an operational risk band.
type RiskTier string

const (
	TierVeryHigh RiskTier = "VERY_HIGH"
	TierHigh     RiskTier = "HIGH"
	TierMedium   RiskTier = "MEDIUM"
	TierLow      RiskTier = "LOW"
	TierVeryLow  RiskTier = "VERY_LOW"
)

// TierForScore maps a 0-1000 score to its risk tier. The bands
// partition the scale with no gaps or overlaps.
func TierForScore(score int) RiskTier {
	switch {
	case score <= 400:
		return TierVeryHigh
	case score <= 500:
		return TierHigh
	case score <= 650:
		return TierMedium
	case score <= 750:
		return TierLow
	default:
		return TierVeryLow
	}
}

// RiskAssessment quantifies expected loss for one exposure.
type RiskAssessment struct {
	Tier RiskTier `json:"tier"`
	PD   float64  `json:"pd"`
	// EAD is the exposure at default, the credit amount under analysis.
	EAD float64 `json:"ead"`
	// LGD is the loss-given-default ratio for the product.
	LGD float64 `json:"lgd"`
	// ExpectedLoss = PD * EAD * LGD.
	ExpectedLoss float64     `json:"expectedLoss"`
	Product      ProductType `json:"product"`
}
