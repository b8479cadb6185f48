// Package bureau simulates a credit bureau integration. It produces
// realistic applicant profiles deterministically from a seed, for the
// simulation CLI and for tests that need populations.
package bureau

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MockBureau is a deterministic applicant source. The same seed and
// applicant id always produce the same profile.
type MockBureau struct {
	seed int64
}

// NewMockBureau creates a bureau with the given seed.
func NewMockBureau(seed int64) *MockBureau {
	return &MockBureau{seed: seed}
}

// Fetch returns the simulated bureau response for one applicant id.
func (b *MockBureau) Fetch(id string) (*domain.ApplicantProfile, error) {
	if id == "" {
		return nil, domain.NewApplicantDataError("applicant id is required")
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	rng := rand.New(rand.NewSource(b.seed ^ int64(h.Sum64())))
	return b.generate(rng, id), nil
}

// Generate returns n profiles with sequential ids.
func (b *MockBureau) Generate(n int) []*domain.ApplicantProfile {
	profiles := make([]*domain.ApplicantProfile, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sim-%06d", i+1)
		p, _ := b.Fetch(id)
		profiles = append(profiles, p)
	}
	return profiles
}

func (b *MockBureau) generate(rng *rand.Rand, id string) *domain.ApplicantProfile {
	normal := func(mean, stddev float64) float64 {
		return rng.NormFloat64()*stddev + mean
	}
	clampInt := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	round100 := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return float64(int(v/100+0.5)) * 100
	}

	income := round100(normal(5000, 3000))
	if income < 800 {
		income = 800
	}
	debt := round100(normal(income*0.5, income*1.5))

	// Utility bill punctuality skews high for most of the population.
	utility := 0.7 + 0.3*rng.Float64()
	if rng.Float64() >= 0.9 {
		utility = 0.3 * rng.Float64()
	}

	turnover := normal(income*1.5, income*0.5)
	if turnover < 0 {
		turnover = 0
	}

	return &domain.ApplicantProfile{
		ID:                         id,
		Name:                       "Simulated Applicant " + id[len(id)-4:],
		MonthlyIncome:              income,
		TotalDebt:                  debt,
		CreditUtilization:          clampInt(int(normal(40, 25)), 0, 100),
		MonthlyTurnover:            turnover,
		PaymentHistory:             60 + rng.Intn(40),
		HistoricalDefaultRate:      rng.Intn(20),
		DebtRegularizationSpeed:    30 + rng.Intn(70),
		Protests:                   rng.Intn(2),
		Inquiries30d:               rng.Intn(5),
		Inquiries90d:               rng.Intn(10),
		SelfInquiries:              rng.Intn(2),
		Restrictions:               rng.Float64() < 0.2,
		AccountAgeMonths:           clampInt(int(normal(36, 24)), 1, 120),
		OpenAccounts:               1 + rng.Intn(14),
		BankDebtConcentration:      20 + rng.Intn(70),
		BankProductsCount:          1 + rng.Intn(4),
		BanksRelationshipCount:     1 + rng.Intn(4),
		HasSalaryAccount:           rng.Intn(2) == 0,
		Age:                        clampInt(int(normal(38, 10)), 18, 70),
		EmploymentStabilityMonths:  clampInt(int(normal(24, 18)), 0, 120),
		EducationLevel:             1 + rng.Intn(4),
		MaritalStatus:              rng.Intn(2),
		DaysSinceUpdate:            rng.Intn(365),
		DataConsistencyScore:       50 + rng.Intn(50),
		ValidatedPhones:            rng.Intn(3),
		AddressConfirmed:           rng.Intn(2) == 0,
		AverageMonthlyTransactions: round100(normal(income*0.8, income*0.3)),
		InvestmentBalance:          round100(normal(income*5, income*10)),
		UtilityBillOnTimeRatio:     utility,
		CreatedAt:                  time.Unix(0, 0).UTC(),
	}
}
