package domain

// ScoreCategory identifies one of the scoring factor groups.
type ScoreCategory string

const (
	CategoryPaymentBehavior     ScoreCategory = "payment_behavior"
	CategoryCurrentDebt         ScoreCategory = "current_debt"
	CategoryBankingRelationship ScoreCategory = "banking_relationship"
	CategoryDemographics        ScoreCategory = "demographics"
	CategoryRecentInquiries     ScoreCategory = "recent_inquiries"
	CategoryRegistrationData    ScoreCategory = "registration_data"
)

// AllCategories lists the scoring categories in report order.
func AllCategories() []ScoreCategory {
	return []ScoreCategory{
		CategoryPaymentBehavior,
		CategoryCurrentDebt,
		CategoryBankingRelationship,
		CategoryDemographics,
		CategoryRecentInquiries,
		CategoryRegistrationData,
	}
}

// CategoryScore is one row of a score breakdown.
type CategoryScore struct {
	Category ScoreCategory `json:"category"`
	Weight   float64       `json:"weight"`
	// SubScore is the raw 0-100 factor score for the category.
	SubScore float64 `json:"subScore"`
	// Contribution is the category's share of the headline score.
	// Contributions across a breakdown sum to the score exactly.
	Contribution float64 `json:"contribution"`
}

// ScoreResult is the scoring oracle output for one applicant.
type ScoreResult struct {
	// Score is the headline credit score on the 0-1000 scale.
	Score int `json:"score"`
	// PD is the probability of default in (0.001, 0.999).
	PD         float64         `json:"pd"`
	Categories []CategoryScore `json:"categories"`
}
