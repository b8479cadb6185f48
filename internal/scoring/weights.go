package scoring

import (
	"encoding/json"
	"math"
	"os"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Criterion keys within each category. Detailed weights are keyed by
// these names so weight documents can tune individual criteria.
const (
	CritBureauRestrictions  = "bureau_restrictions"
	CritPunctuality12m      = "punctuality_12m"
	CritHistoricalDefault   = "historical_default"
	CritDebtRegularization  = "debt_regularization"
	CritNotaryProtests      = "notary_protests"
	CritIncomeCommitment    = "income_commitment"
	CritCardUtilization     = "card_utilization"
	CritActiveContracts     = "active_contracts"
	CritTotalDebtValue      = "total_debt_value"
	CritBankSectorDebt      = "bank_sector_debt"
	CritAccountTenure       = "account_tenure"
	CritFinancialTurnover   = "financial_turnover"
	CritProductsHeld        = "products_held"
	CritMultiBank           = "multi_bank"
	CritSalaryAccount       = "salary_account"
	CritDeclaredIncome      = "declared_income"
	CritEmploymentStability = "employment_stability"
	CritAgeBand             = "age_band"
	CritEducation           = "education"
	CritMaritalStatus       = "marital_status"
	CritInquiries30d        = "inquiries_30d"
	CritInquiries90d        = "inquiries_90d"
	CritSelfInquiries       = "self_inquiries"
	CritRegistryFreshness   = "registry_freshness"
	CritDataConsistency     = "data_consistency"
	CritValidatedPhones     = "validated_phones"
	CritAddressConfirmed    = "address_confirmed"
)

// Weights holds the category weights of the score model: the primary
// weight of each category in the headline score, and the weight of
// each criterion inside its category.
type Weights struct {
	Primary  map[domain.ScoreCategory]float64            `json:"primaryWeights"`
	Detailed map[domain.ScoreCategory]map[string]float64 `json:"detailedCriteriaWeights"`
}

// DefaultWeights returns the reference weight set.
func DefaultWeights() *Weights {
	return &Weights{
		Primary: map[domain.ScoreCategory]float64{
			domain.CategoryPaymentBehavior:     0.40,
			domain.CategoryCurrentDebt:         0.25,
			domain.CategoryBankingRelationship: 0.15,
			domain.CategoryDemographics:        0.10,
			domain.CategoryRecentInquiries:     0.05,
			domain.CategoryRegistrationData:    0.05,
		},
		Detailed: map[domain.ScoreCategory]map[string]float64{
			domain.CategoryPaymentBehavior: {
				CritBureauRestrictions: 0.35,
				CritPunctuality12m:     0.25,
				CritHistoricalDefault:  0.20,
				CritDebtRegularization: 0.15,
				CritNotaryProtests:     0.05,
			},
			domain.CategoryCurrentDebt: {
				CritIncomeCommitment: 0.40,
				CritCardUtilization:  0.25,
				CritActiveContracts:  0.15,
				CritTotalDebtValue:   0.10,
				CritBankSectorDebt:   0.10,
			},
			domain.CategoryBankingRelationship: {
				CritAccountTenure:     0.30,
				CritFinancialTurnover: 0.25,
				CritProductsHeld:      0.20,
				CritMultiBank:         0.15,
				CritSalaryAccount:     0.10,
			},
			domain.CategoryDemographics: {
				CritDeclaredIncome:      0.35,
				CritEmploymentStability: 0.25,
				CritAgeBand:             0.15,
				CritEducation:           0.15,
				CritMaritalStatus:       0.10,
			},
			domain.CategoryRecentInquiries: {
				CritInquiries30d:  0.50,
				CritInquiries90d:  0.30,
				CritSelfInquiries: 0.20,
			},
			domain.CategoryRegistrationData: {
				CritRegistryFreshness: 0.40,
				CritDataConsistency:   0.30,
				CritValidatedPhones:   0.20,
				CritAddressConfirmed:  0.10,
			},
		},
	}
}

// Validate checks the weight document is usable: every category is
// present and primary weights sum to 1.
func (w *Weights) Validate() error {
	var sum float64
	for _, cat := range domain.AllCategories() {
		weight, ok := w.Primary[cat]
		if !ok {
			return domain.NewConfigurationError("weights: missing primary weight for %s", cat)
		}
		if weight < 0 {
			return domain.NewConfigurationError("weights: negative primary weight for %s", cat)
		}
		if _, ok := w.Detailed[cat]; !ok {
			return domain.NewConfigurationError("weights: missing detailed weights for %s", cat)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return domain.NewConfigurationError("weights: primary weights sum to %.4f, want 1.0", sum)
	}
	return nil
}

// LoadWeights reads a weight document from path, or returns the
// defaults when path is empty.
func LoadWeights(path string) (*Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError("weights: read %s: %v", path, err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, domain.NewConfigurationError("weights: parse %s: %v", path, err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
