package domain

import "time"

// Offer holds the commercial terms extended on approval, after
// score-based limit and rate adjustment.
type Offer struct {
	Limits             map[ProductType]float64 `json:"limits"`
	MonthlyRate        float64                 `json:"monthlyRate"` // percent per month
	MaxTermMonths      int                     `json:"maxTermMonths"`
	GracePeriod        bool                    `json:"gracePeriod"`
	RequiresCollateral bool                    `json:"requiresCollateral"`
}

// Evaluation is the outcome of checking one applicant against one
// policy. Violations are exhaustive: every failed criterion is listed.
type Evaluation struct {
	Policy          string   `json:"policy"`
	Approved        bool     `json:"approved"`
	Score           int      `json:"score"`
	PD              float64  `json:"pd"`
	Violations      []string `json:"violations,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	HumanReview     bool     `json:"humanReview"`
	// Offer is set only on approval.
	Offer *Offer `json:"offer,omitempty"`
	// Risk holds one assessment per approved product limit.
	Risk []RiskAssessment `json:"risk,omitempty"`
	// TotalExpectedLoss sums the per-product expected losses.
	TotalExpectedLoss float64 `json:"totalExpectedLoss"`
}

// Decision is the final output for one applicant: the selected policy
// (or a synthetic rejection when no policy approves) plus the full
// evaluation history in waterfall order.
type Decision struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	ApplicantID string `json:"applicantId"`

	Approved bool `json:"approved"`
	// SelectedPolicy is empty when no policy approved.
	SelectedPolicy string `json:"selectedPolicy,omitempty"`

	Score     int             `json:"score"`
	PD        float64         `json:"pd"`
	Breakdown []CategoryScore `json:"breakdown"`

	Evaluation *Evaluation  `json:"evaluation"`
	History    []Evaluation `json:"history"`

	// ConfigVersion is the policy snapshot version the decision was
	// made against.
	ConfigVersion int64 `json:"configVersion"`

	EvaluatedAt time.Time `json:"evaluatedAt"`
	ElapsedMs   float64   `json:"elapsedMs"`

	// Error annotates placeholder decisions produced when evaluation
	// failed recoverably during a portfolio run.
	Error string `json:"error,omitempty"`
}
