package risk

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Rate clamps applied after risk-based pricing.
const (
	minMonthlyRate = 0.5
	maxMonthlyRate = 15.0
	// riskSpreadSlope scales how fast the rate rises past the policy
	// PD ceiling.
	riskSpreadSlope = 2.0
	// minLimitFraction is the floor on the score-driven limit scale:
	// an approval never offers less than 30% of the base limit.
	minLimitFraction = 0.3
	// absoluteLimitFloor is the smallest limit ever offered.
	absoluteLimitFloor = 100.0
)

// scoreFactor maps the score's position between the policy cutoff and
// the top of the scale into [0,1].
func scoreFactor(score, minScore int) float64 {
	if minScore >= 1000 {
		return 1
	}
	f := float64(score-minScore) / float64(1000-minScore)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// AdjustLimits scales the policy base limits by the applicant's score.
// Limits are rounded to the product granularity and never drop below
// the absolute floor.
func AdjustLimits(score int, criteria domain.PolicyCriteria, conditions domain.PolicyConditions) map[domain.ProductType]float64 {
	fraction := minLimitFraction + (1-minLimitFraction)*scoreFactor(score, criteria.MinScore)

	limits := make(map[domain.ProductType]float64, len(conditions.BaseLimits))
	for product, base := range conditions.BaseLimits {
		limit := base * fraction
		if gran := product.LimitGranularity(); gran > 0 {
			limit = math.Round(limit/gran) * gran
		}
		if limit < absoluteLimitFloor {
			limit = absoluteLimitFloor
		}
		limits[product] = limit
	}
	return limits
}

// AdjustRate prices the applicant's PD against the policy ceiling.
// Within the ceiling the base rate applies unchanged; past it the rate
// rises linearly with the excess PD. The result is clamped to the
// operational band.
func AdjustRate(pd float64, criteria domain.PolicyCriteria, conditions domain.PolicyConditions) float64 {
	rate := conditions.BaseMonthlyRate
	if pd > criteria.MaxPD {
		rate = conditions.BaseMonthlyRate * (1 + (pd-criteria.MaxPD)*riskSpreadSlope)
	}
	if rate < minMonthlyRate {
		rate = minMonthlyRate
	}
	if rate > maxMonthlyRate {
		rate = maxMonthlyRate
	}
	return rate
}

// BuildOffer assembles the commercial terms for an approved applicant.
func BuildOffer(score int, pd float64, criteria domain.PolicyCriteria, conditions domain.PolicyConditions) *domain.Offer {
	return &domain.Offer{
		Limits:             AdjustLimits(score, criteria, conditions),
		MonthlyRate:        AdjustRate(pd, criteria, conditions),
		MaxTermMonths:      conditions.MaxTermMonths,
		GracePeriod:        conditions.GracePeriod,
		RequiresCollateral: conditions.RequiresCollateral,
	}
}
