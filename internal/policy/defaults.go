package policy

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultOrder is the waterfall order: strictest policy first, the
// first approval wins.
func DefaultOrder() []string {
	return []string{"prime_plus", "prime", "standard", "risk_based", "microcredit"}
}

// DefaultPolicies returns the reference policy set.
func DefaultPolicies() []*domain.PolicyDefinition {
	return []*domain.PolicyDefinition{
		{
			Name:        "prime_plus",
			Description: "Prime Plus - top-tier applicants",
			Criteria: domain.PolicyCriteria{
				MinScore:            850,
				MinMonthlyIncome:    15000,
				MaxCommitmentPct:    15,
				MinAccountAgeMonths: 36,
				AllowRestrictions:   false,
				MaxInquiries30d:     0,
				MinAge:              28,
				MaxAge:              60,
				MinEmploymentMonths: 24,
				MaxUtilizationPct:   20,
				MaxPD:               0.03,
			},
			Conditions: domain.PolicyConditions{
				BaseLimits: map[domain.ProductType]float64{
					domain.ProductPersonalLoan: 500000,
					domain.ProductCreditCard:   100000,
					domain.ProductFinancing:    2000000,
					domain.ProductMicrocredit:  50000,
				},
				BaseMonthlyRate:    1.5,
				MaxTermMonths:      60,
				GracePeriod:        true,
				RequiresCollateral: false,
			},
		},
		{
			Name:        "prime",
			Description: "Prime - preferred applicants",
			Criteria: domain.PolicyCriteria{
				MinScore:            700,
				MinMonthlyIncome:    7000,
				MaxCommitmentPct:    25,
				MinAccountAgeMonths: 18,
				AllowRestrictions:   false,
				MaxInquiries30d:     1,
				MinAge:              25,
				MaxAge:              65,
				MinEmploymentMonths: 12,
				MaxUtilizationPct:   40,
				MaxPD:               0.08,
			},
			Conditions: domain.PolicyConditions{
				BaseLimits: map[domain.ProductType]float64{
					domain.ProductPersonalLoan: 200000,
					domain.ProductCreditCard:   50000,
					domain.ProductFinancing:    800000,
					domain.ProductMicrocredit:  30000,
				},
				BaseMonthlyRate:    2.2,
				MaxTermMonths:      48,
				GracePeriod:        true,
				RequiresCollateral: false,
			},
		},
		{
			Name:        "standard",
			Description: "Standard - regular applicants",
			Criteria: domain.PolicyCriteria{
				MinScore:            550,
				MinMonthlyIncome:    3000,
				MaxCommitmentPct:    35,
				MinAccountAgeMonths: 9,
				AllowRestrictions:   true,
				MaxInquiries30d:     2,
				MinAge:              21,
				MaxAge:              70,
				MinEmploymentMonths: 6,
				MaxUtilizationPct:   60,
				MaxPD:               0.20,
			},
			Conditions: domain.PolicyConditions{
				BaseLimits: map[domain.ProductType]float64{
					domain.ProductPersonalLoan: 50000,
					domain.ProductCreditCard:   20000,
					domain.ProductFinancing:    300000,
					domain.ProductMicrocredit:  15000,
				},
				BaseMonthlyRate:    3.5,
				MaxTermMonths:      36,
				GracePeriod:        false,
				RequiresCollateral: true,
			},
		},
		{
			Name:        "risk_based",
			Description: "Risk Based - applicants with restrictions, case by case",
			Experiment:  "challenger",
			Criteria: domain.PolicyCriteria{
				MinScore:            400,
				MinMonthlyIncome:    1800,
				MaxCommitmentPct:    45,
				MinAccountAgeMonths: 3,
				AllowRestrictions:   true,
				MaxInquiries30d:     4,
				MinAge:              21,
				MaxAge:              65,
				MinEmploymentMonths: 1,
				MaxUtilizationPct:   75,
				MaxPD:               0.40,
			},
			Conditions: domain.PolicyConditions{
				BaseLimits: map[domain.ProductType]float64{
					domain.ProductPersonalLoan: 15000,
					domain.ProductCreditCard:   5000,
					domain.ProductFinancing:    100000,
					domain.ProductMicrocredit:  8000,
				},
				BaseMonthlyRate:    6.0,
				MaxTermMonths:      24,
				GracePeriod:        false,
				RequiresCollateral: true,
			},
		},
		{
			Name:        "microcredit",
			Description: "Microcredit - social and entrepreneurial support",
			Criteria: domain.PolicyCriteria{
				MinScore:            300,
				MinMonthlyIncome:    800,
				MaxCommitmentPct:    55,
				MinAccountAgeMonths: 0,
				AllowRestrictions:   true,
				MaxInquiries30d:     7,
				MinAge:              18,
				MaxAge:              70,
				MinEmploymentMonths: 0,
				MaxUtilizationPct:   90,
				MaxPD:               0.60,
			},
			Conditions: domain.PolicyConditions{
				BaseLimits: map[domain.ProductType]float64{
					domain.ProductPersonalLoan: 5000,
					domain.ProductCreditCard:   1000,
					domain.ProductFinancing:    20000,
					domain.ProductMicrocredit:  5000,
				},
				BaseMonthlyRate:    8.0,
				MaxTermMonths:      18,
				GracePeriod:        false,
				RequiresCollateral: true,
			},
		},
	}
}
