package policy

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/risk"
)

// Evaluator checks applicants against policies. Criteria never
// short-circuit: a rejection lists every violated criterion so the
// applicant sees the complete picture.
type Evaluator struct {
	analyzer *risk.Analyzer
}

// NewEvaluator creates an evaluator backed by the risk analyzer.
func NewEvaluator(analyzer *risk.Analyzer) *Evaluator {
	return &Evaluator{analyzer: analyzer}
}

// Evaluate checks one applicant against one policy from the snapshot.
// The score result is computed by the caller once and reused across
// the waterfall.
func (e *Evaluator) Evaluate(snap *Snapshot, profile *domain.ApplicantProfile, policyName string, score *domain.ScoreResult) (*domain.Evaluation, error) {
	pol := snap.Get(policyName)
	if pol == nil {
		return nil, domain.NewConfigurationError("unknown policy %q", policyName)
	}
	criteria := pol.Criteria

	eval := &domain.Evaluation{
		Policy:   pol.Name,
		Approved: true,
		Score:    score.Score,
		PD:       score.PD,
	}
	reject := func(format string, args ...any) {
		eval.Approved = false
		eval.Violations = append(eval.Violations, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		eval.Warnings = append(eval.Warnings, fmt.Sprintf(format, args...))
	}

	if score.Score < criteria.MinScore {
		reject("score (%d) below required minimum (%d)", score.Score, criteria.MinScore)
	}
	if score.PD > criteria.MaxPD {
		reject("default probability (%.1f%%) above allowed maximum (%.1f%%)", score.PD*100, criteria.MaxPD*100)
	}
	if profile.MonthlyIncome < criteria.MinMonthlyIncome {
		reject("income (%.2f) below required minimum (%.2f)", profile.MonthlyIncome, criteria.MinMonthlyIncome)
	}
	if profile.MonthlyIncome <= 0 {
		warn("monthly income is zero or negative; income-based checks treat commitment as 100%%")
	}
	commitment := profile.DebtToIncome()
	if commitment > criteria.MaxCommitmentPct {
		reject("income commitment (%.1f%%) above allowed limit (%.0f%%)", commitment, criteria.MaxCommitmentPct)
	}
	if profile.AccountAgeMonths < criteria.MinAccountAgeMonths {
		reject("relationship tenure (%d months) below required minimum (%d months)", profile.AccountAgeMonths, criteria.MinAccountAgeMonths)
	}
	if profile.Restrictions {
		if !criteria.AllowRestrictions {
			reject("applicant has active credit bureau restrictions, not allowed by this policy")
		} else {
			warn("applicant has restrictions; policy tolerates them with caution")
		}
	}
	if profile.Inquiries30d > criteria.MaxInquiries30d {
		reject("inquiries in the last 30 days (%d) above allowed maximum (%d)", profile.Inquiries30d, criteria.MaxInquiries30d)
	} else if profile.Inquiries30d > 0 && profile.Inquiries30d == criteria.MaxInquiries30d {
		warn("recent inquiry count is at the allowed maximum")
	}
	if profile.Age < criteria.MinAge || profile.Age > criteria.MaxAge {
		reject("age (%d) outside allowed range (%d-%d years)", profile.Age, criteria.MinAge, criteria.MaxAge)
	}
	if profile.EmploymentStabilityMonths < criteria.MinEmploymentMonths {
		reject("employment stability (%d months) below required minimum (%d months)", profile.EmploymentStabilityMonths, criteria.MinEmploymentMonths)
	}
	if profile.CreditUtilization > criteria.MaxUtilizationPct {
		reject("card utilization (%d%%) above allowed maximum (%d%%)", profile.CreditUtilization, criteria.MaxUtilizationPct)
	}

	if program := snap.Program(pol.Name); program != nil {
		ok, err := evalRule(program, profile)
		if err != nil {
			return nil, err
		}
		if !ok {
			reject("custom policy rule not satisfied")
		}
	}

	if !eval.Approved {
		eval.Recommendations = append(eval.Recommendations,
			"improve the credit profile: reduce indebtedness, pay bills on time, avoid excessive new credit inquiries")
		return eval, nil
	}

	eval.Offer = risk.BuildOffer(score.Score, score.PD, criteria, pol.Conditions)
	ratios := snap.LGD
	if ratios == nil {
		ratios = e.analyzer.LGD().Snapshot()
	}
	for _, product := range domain.AllProducts() {
		limit, ok := eval.Offer.Limits[product]
		if !ok {
			continue
		}
		assessment, err := e.analyzer.AssessWith(ratios, score.Score, score.PD, limit, product)
		if err != nil {
			return nil, err
		}
		eval.Risk = append(eval.Risk, *assessment)
		eval.TotalExpectedLoss += assessment.ExpectedLoss
	}

	if score.PD > criteria.MaxPD*0.8 || score.Score < criteria.MinScore+50 {
		warn("borderline credit decision; human review suggested for deeper analysis")
		eval.HumanReview = true
	}
	return eval, nil
}
