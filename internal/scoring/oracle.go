// Package scoring implements the credit scoring oracle: probability of
// default estimation and the 0-1000 score with its category breakdown.
package scoring

import (
	"context"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Oracle produces a score result for an applicant. Implementations may
// call remote model services; the reference implementation is local
// and deterministic.
type Oracle interface {
	Score(ctx context.Context, profile *domain.ApplicantProfile) (*domain.ScoreResult, error)
}

// HeuristicOracle is the reference oracle. The probability of default
// is built from additive per-factor increments on a base rate, and the
// headline score is a direct projection of the PD onto the 0-1000
// scale. The same profile always yields the same result.
type HeuristicOracle struct {
	weights *Weights
}

// NewHeuristicOracle creates an oracle with the given weight set.
func NewHeuristicOracle(weights *Weights) (*HeuristicOracle, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &HeuristicOracle{weights: weights}, nil
}

// Score evaluates the profile and returns the PD, the headline score
// and the category breakdown.
func (o *HeuristicOracle) Score(ctx context.Context, profile *domain.ApplicantProfile) (*domain.ScoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.NewApplicantDataError("nil profile")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	pd := o.defaultProbability(profile)
	score := scoreFromPD(pd)

	return &domain.ScoreResult{
		Score:      score,
		PD:         pd,
		Categories: o.breakdown(profile, score),
	}, nil
}

// defaultProbability estimates the PD from profile risk factors.
// Increments are additive on a 5% base rate; favorable alternative
// data signals subtract. The result is clamped to (0.001, 0.999).
func (o *HeuristicOracle) defaultProbability(p *domain.ApplicantProfile) float64 {
	pd := 0.05

	// A zero income falls in the low-income bracket and additionally
	// takes the zero-income penalty below.
	switch {
	case p.MonthlyIncome < 1500:
		pd += 0.10
	case p.MonthlyIncome < 3000:
		pd += 0.05
	}
	if p.MonthlyIncome > 0 && p.TotalDebt/p.MonthlyIncome > 0.8 {
		pd += 0.15
	} else if p.MonthlyIncome <= 0 {
		pd += 0.30
	}
	if p.Restrictions {
		pd += 0.20
	}
	switch {
	case p.CreditUtilization > 80:
		pd += 0.08
	case p.CreditUtilization > 50:
		pd += 0.04
	}
	if p.AccountAgeMonths < 12 {
		pd += 0.03
	}
	if p.EmploymentStabilityMonths < 12 {
		pd += 0.03
	}
	switch {
	case p.Inquiries30d > 2:
		pd += 0.05
	case p.Inquiries30d > 0:
		pd += 0.02
	}
	if p.UtilityBillOnTimeRatio < 0.7 {
		pd += 0.05
	}
	if p.InvestmentBalance > p.TotalDebt/2 {
		pd -= 0.02
	}

	if pd < 0.001 {
		pd = 0.001
	}
	if pd > 0.999 {
		pd = 0.999
	}
	return pd
}

// scoreFromPD projects a PD onto the 0-1000 score scale.
func scoreFromPD(pd float64) int {
	score := 1000 - int(math.Round(pd*1000))
	if score < 0 {
		score = 0
	}
	if score > 1000 {
		score = 1000
	}
	return score
}

// breakdown computes per-category sub-scores and normalizes the
// weighted contributions so they sum to the headline score exactly.
func (o *HeuristicOracle) breakdown(p *domain.ApplicantProfile, score int) []domain.CategoryScore {
	cats := domain.AllCategories()
	out := make([]domain.CategoryScore, 0, len(cats))

	var total float64
	weighted := make([]float64, len(cats))
	for i, cat := range cats {
		raw := factorScore(p, cat, o.weights.Detailed[cat])
		w := o.weights.Primary[cat]
		weighted[i] = raw * w
		total += weighted[i]
		out = append(out, domain.CategoryScore{
			Category: cat,
			Weight:   w,
			SubScore: raw,
		})
	}

	for i := range out {
		if total > 0 {
			out[i].Contribution = float64(score) * weighted[i] / total
		} else {
			// Degenerate profile with every sub-score at zero:
			// split by primary weight so the sum still holds.
			out[i].Contribution = float64(score) * out[i].Weight
		}
	}
	return out
}
