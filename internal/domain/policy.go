package domain

import "time"

// PolicyCriteria are the eligibility cutoffs a profile must clear.
// All checks are evaluated even after the first failure so a rejection
// carries the complete violation list.
type PolicyCriteria struct {
	MinScore            int     `json:"minScore"`
	MinMonthlyIncome    float64 `json:"minMonthlyIncome"`
	MaxCommitmentPct    float64 `json:"maxCommitmentPct"` // debt-to-income ceiling, percent
	MinAccountAgeMonths int     `json:"minAccountAgeMonths"`
	AllowRestrictions   bool    `json:"allowRestrictions"`
	MaxInquiries30d     int     `json:"maxInquiries30d"`
	MinAge              int     `json:"minAge"`
	MaxAge              int     `json:"maxAge"`
	MinEmploymentMonths int     `json:"minEmploymentMonths"`
	MaxUtilizationPct   int     `json:"maxUtilizationPct"`
	MaxPD               float64 `json:"maxPD"`
}

// PolicyConditions are the commercial terms offered on approval,
// before score-based adjustment.
type PolicyConditions struct {
	BaseLimits         map[ProductType]float64 `json:"baseLimits"`
	BaseMonthlyRate    float64                 `json:"baseMonthlyRate"` // percent per month
	MaxTermMonths      int                     `json:"maxTermMonths"`
	GracePeriod        bool                    `json:"gracePeriod"`
	RequiresCollateral bool                    `json:"requiresCollateral"`
}

// PolicyDefinition is one credit policy in the waterfall.
type PolicyDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Criteria    PolicyCriteria   `json:"criteria"`
	Conditions  PolicyConditions `json:"conditions"`

	// CustomRule is an optional CEL expression over the applicant
	// feature map. It must evaluate to bool and is checked alongside
	// the built-in criteria. Compile failures are configuration errors.
	CustomRule string `json:"customRule,omitempty"`

	// Experiment tags a policy as part of an A/B rollout (for example
	// "challenger"). Informational only.
	Experiment string `json:"experiment,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Snapshots hand these out so admin edits
// never reach in-flight evaluations.
func (p *PolicyDefinition) Clone() *PolicyDefinition {
	cp := *p
	cp.Conditions.BaseLimits = make(map[ProductType]float64, len(p.Conditions.BaseLimits))
	for k, v := range p.Conditions.BaseLimits {
		cp.Conditions.BaseLimits[k] = v
	}
	return &cp
}

// Validate rejects policy documents the engine cannot run.
func (p *PolicyDefinition) Validate() error {
	if p.Name == "" {
		return NewConfigurationError("policy name is required")
	}
	if p.Criteria.MinScore < 0 || p.Criteria.MinScore > 1000 {
		return NewConfigurationError("policy %s: minScore must be within 0-1000", p.Name)
	}
	if p.Criteria.MaxPD <= 0 || p.Criteria.MaxPD >= 1 {
		return NewConfigurationError("policy %s: maxPD must be within (0,1)", p.Name)
	}
	if p.Criteria.MinAge < 0 || p.Criteria.MaxAge < p.Criteria.MinAge {
		return NewConfigurationError("policy %s: invalid age range", p.Name)
	}
	if p.Conditions.BaseMonthlyRate <= 0 {
		return NewConfigurationError("policy %s: baseMonthlyRate must be positive", p.Name)
	}
	if p.Conditions.MaxTermMonths <= 0 {
		return NewConfigurationError("policy %s: maxTermMonths must be positive", p.Name)
	}
	for product, limit := range p.Conditions.BaseLimits {
		if !product.Valid() {
			return NewConfigurationError("policy %s: unknown product %q", p.Name, product)
		}
		if limit <= 0 {
			return NewConfigurationError("policy %s: base limit for %s must be positive", p.Name, product)
		}
	}
	return nil
}

// PolicySet is a versioned, ordered collection of policies. The order
// is the waterfall order: the selector tries policies front to back
// and the first approval wins.
type PolicySet struct {
	Version  int64               `json:"version"`
	Order    []string            `json:"order"`
	Policies []*PolicyDefinition `json:"policies"`
}

// Get returns the named policy or nil.
func (s *PolicySet) Get(name string) *PolicyDefinition {
	for _, p := range s.Policies {
		if p.Name == name {
			return p
		}
	}
	return nil
}
