// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// ApplicantProfile holds the full feature set for one credit applicant.
// Profiles are created once per evaluation request and never mutated.
type ApplicantProfile struct {
	// Identity (carried for audit, excluded from the scoring feature set)
	ID   string `json:"id"`
	Name string `json:"name"`

	// Financial
	MonthlyIncome     float64 `json:"monthlyIncome"`
	TotalDebt         float64 `json:"totalDebt"`
	CreditUtilization int     `json:"creditUtilization"` // percent of card limits in use
	MonthlyTurnover   float64 `json:"monthlyTurnover"`

	// Behavioral
	PaymentHistory          int `json:"paymentHistory"` // 0-100
	HistoricalDefaultRate   int `json:"historicalDefaultRate"`
	DebtRegularizationSpeed int `json:"debtRegularizationSpeed"`
	Protests                int `json:"protests"`
	Inquiries30d            int `json:"inquiries30d"`
	Inquiries90d            int `json:"inquiries90d"`
	SelfInquiries           int `json:"selfInquiries"`
	Restrictions            bool `json:"restrictions"` // active credit-bureau restrictions

	// Relationship
	AccountAgeMonths       int  `json:"accountAgeMonths"`
	OpenAccounts           int  `json:"openAccounts"`
	BankDebtConcentration  int  `json:"bankDebtConcentration"` // percent
	BankProductsCount      int  `json:"bankProductsCount"`
	BanksRelationshipCount int  `json:"banksRelationshipCount"`
	HasSalaryAccount       bool `json:"hasSalaryAccount"`

	// Demographic
	Age                       int `json:"age"`
	EmploymentStabilityMonths int `json:"employmentStabilityMonths"`
	EducationLevel            int `json:"educationLevel"` // 1-5
	MaritalStatus             int `json:"maritalStatus"`  // 0 single, 1 married/union

	// Cadastral quality
	DaysSinceUpdate      int  `json:"daysSinceUpdate"`
	DataConsistencyScore int  `json:"dataConsistencyScore"` // 0-100
	ValidatedPhones      int  `json:"validatedPhones"`
	AddressConfirmed     bool `json:"addressConfirmed"`

	// Alternative data (open-finance style signals)
	AverageMonthlyTransactions  float64 `json:"averageMonthlyTransactions"`
	InvestmentBalance           float64 `json:"investmentBalance"`
	UtilityBillOnTimeRatio      float64 `json:"utilityBillOnTimeRatio"` // 0-1

	CreatedAt time.Time `json:"createdAt"`
}

// Features returns the profile as a flat variable map for custom policy
// rules. Identity fields are deliberately excluded.
func (p *ApplicantProfile) Features() map[string]any {
	boolToInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return map[string]any{
		"monthly_income":               p.MonthlyIncome,
		"total_debt":                   p.TotalDebt,
		"credit_utilization":           p.CreditUtilization,
		"monthly_turnover":             p.MonthlyTurnover,
		"payment_history":              p.PaymentHistory,
		"historical_default_rate":      p.HistoricalDefaultRate,
		"debt_regularization_speed":    p.DebtRegularizationSpeed,
		"protests":                     p.Protests,
		"inquiries_30d":                p.Inquiries30d,
		"inquiries_90d":                p.Inquiries90d,
		"self_inquiries":               p.SelfInquiries,
		"restrictions":                 p.Restrictions,
		"account_age_months":           p.AccountAgeMonths,
		"open_accounts":                p.OpenAccounts,
		"bank_debt_concentration":      p.BankDebtConcentration,
		"bank_products_count":          p.BankProductsCount,
		"banks_relationship_count":     p.BanksRelationshipCount,
		"has_salary_account":           boolToInt(p.HasSalaryAccount),
		"age":                          p.Age,
		"employment_stability_months":  p.EmploymentStabilityMonths,
		"education_level":              p.EducationLevel,
		"marital_status":               p.MaritalStatus,
		"days_since_update":            p.DaysSinceUpdate,
		"data_consistency_score":       p.DataConsistencyScore,
		"validated_phones":             p.ValidatedPhones,
		"address_confirmed":            boolToInt(p.AddressConfirmed),
		"average_monthly_transactions": p.AverageMonthlyTransactions,
		"investment_balance":           p.InvestmentBalance,
		"utility_bill_on_time_ratio":   p.UtilityBillOnTimeRatio,
	}
}

// DebtToIncome returns the debt-to-income commitment as a percentage.
// Zero or negative income is treated as full commitment.
func (p *ApplicantProfile) DebtToIncome() float64 {
	if p.MonthlyIncome <= 0 {
		return 100.0
	}
	return p.TotalDebt / p.MonthlyIncome * 100.0
}

// Validate checks the fields the engine cannot evaluate without.
func (p *ApplicantProfile) Validate() error {
	if p.ID == "" {
		return NewApplicantDataError("applicant id is required")
	}
	if p.Age < 0 {
		return NewApplicantDataError("age must be non-negative")
	}
	if p.MonthlyIncome < 0 {
		return NewApplicantDataError("monthly income must be non-negative")
	}
	if p.TotalDebt < 0 {
		return NewApplicantDataError("total debt must be non-negative")
	}
	if p.CreditUtilization < 0 || p.CreditUtilization > 100 {
		return NewApplicantDataError("credit utilization must be within 0-100")
	}
	if p.UtilityBillOnTimeRatio < 0 || p.UtilityBillOnTimeRatio > 1 {
		return NewApplicantDataError("utility bill on-time ratio must be within 0-1")
	}
	return nil
}

// ApplicantRequest is the API request payload for applicant evaluation.
type ApplicantRequest struct {
	Profile ApplicantProfile `json:"profile"`
}

// ToProfile stamps the request profile with a creation time.
func (r *ApplicantRequest) ToProfile() *ApplicantProfile {
	p := r.Profile
	p.CreatedAt = time.Now().UTC()
	return &p
}

// ApplicantSource produces applicant profiles from an external provider
// (credit bureau client, file import, or the mock bureau).
type ApplicantSource interface {
	Fetch(id string) (*ApplicantProfile, error)
}
