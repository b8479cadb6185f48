package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestTierPartition(t *testing.T) {
	// Every score maps to exactly one tier and tiers never improve as
	// the score drops.
	rank := map[domain.RiskTier]int{
		domain.TierVeryHigh: 0,
		domain.TierHigh:     1,
		domain.TierMedium:   2,
		domain.TierLow:      3,
		domain.TierVeryLow:  4,
	}
	prev := -1
	for score := 0; score <= 1000; score++ {
		tier := domain.TierForScore(score)
		r, ok := rank[tier]
		if !ok {
			t.Fatalf("score %d mapped to unknown tier %s", score, tier)
		}
		if r < prev {
			t.Fatalf("tier rank regressed at score %d", score)
		}
		prev = r
	}

	boundaries := map[int]domain.RiskTier{
		0: domain.TierVeryHigh, 400: domain.TierVeryHigh,
		401: domain.TierHigh, 500: domain.TierHigh,
		501: domain.TierMedium, 650: domain.TierMedium,
		651: domain.TierLow, 750: domain.TierLow,
		751: domain.TierVeryLow, 1000: domain.TierVeryLow,
	}
	for score, want := range boundaries {
		if got := domain.TierForScore(score); got != want {
			t.Errorf("TierForScore(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestExpectedLoss(t *testing.T) {
	table, err := NewLGDTable(nil)
	if err != nil {
		t.Fatalf("NewLGDTable: %v", err)
	}
	analyzer := NewAnalyzer(table)

	assessment, err := analyzer.Assess(700, 0.08, 50000, domain.ProductPersonalLoan)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	want := 0.08 * 50000 * 0.60
	if math.Abs(assessment.ExpectedLoss-want) > 1e-9 {
		t.Errorf("ExpectedLoss = %f, want %f", assessment.ExpectedLoss, want)
	}
	if assessment.Tier != domain.TierLow {
		t.Errorf("Tier = %s, want LOW", assessment.Tier)
	}

	if _, err := analyzer.Assess(700, 0.08, -1, domain.ProductPersonalLoan); !errors.Is(err, domain.ErrApplicantData) {
		t.Errorf("negative EAD: got %v, want ErrApplicantData", err)
	}
}

func TestLGDFallback(t *testing.T) {
	table, _ := NewLGDTable(nil)

	if r := table.Ratio(domain.ProductType("boat_loan")); r != 0.60 {
		t.Errorf("unknown product ratio = %f, want personal loan fallback 0.60", r)
	}
}

func TestLGDSetValidation(t *testing.T) {
	table, _ := NewLGDTable(nil)

	if err := table.Set(domain.ProductCreditCard, 0.75); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r := table.Ratio(domain.ProductCreditCard); r != 0.75 {
		t.Errorf("ratio after set = %f, want 0.75", r)
	}

	if err := table.Set(domain.ProductCreditCard, 1.5); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("ratio 1.5: got %v, want ErrConfiguration", err)
	}
	if err := table.Set(domain.ProductType("boat_loan"), 0.5); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown product: got %v, want ErrConfiguration", err)
	}
}

func TestLGDSnapshotIsolation(t *testing.T) {
	table, _ := NewLGDTable(nil)
	snap := table.Snapshot()

	if err := table.Set(domain.ProductFinancing, 0.45); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if snap[domain.ProductFinancing] != 0.30 {
		t.Errorf("snapshot mutated by later edit: %f", snap[domain.ProductFinancing])
	}
}

func TestAdjustLimits(t *testing.T) {
	criteria := domain.PolicyCriteria{MinScore: 550, MaxPD: 0.20}
	conditions := domain.PolicyConditions{
		BaseLimits: map[domain.ProductType]float64{
			domain.ProductPersonalLoan: 50000,
			domain.ProductCreditCard:   20000,
			domain.ProductFinancing:    300000,
		},
		BaseMonthlyRate: 3.5,
	}

	for _, score := range []int{550, 600, 700, 850, 1000} {
		limits := AdjustLimits(score, criteria, conditions)
		for product, base := range conditions.BaseLimits {
			limit := limits[product]
			// Rounding moves a limit by at most half a granularity
			// step around the 30%-100% band.
			gran := product.LimitGranularity()
			if limit < 0.3*base-gran/2 || limit > base+gran/2 {
				t.Errorf("score %d: %s limit %f outside [%f, %f]",
					score, product, limit, 0.3*base, base)
			}
			if math.Mod(limit, gran) != 0 {
				t.Errorf("%s limit %f not aligned to granularity %f", product, limit, gran)
			}
		}
	}

	// At the cutoff only the floor fraction is offered.
	atCutoff := AdjustLimits(550, criteria, conditions)
	if got := atCutoff[domain.ProductPersonalLoan]; got != 15000 {
		t.Errorf("limit at cutoff = %f, want 15000", got)
	}
	// At the top of the scale the full base is offered.
	atTop := AdjustLimits(1000, criteria, conditions)
	if got := atTop[domain.ProductPersonalLoan]; got != 50000 {
		t.Errorf("limit at top = %f, want 50000", got)
	}
}

func TestAdjustLimitMicrocreditUnrounded(t *testing.T) {
	criteria := domain.PolicyCriteria{MinScore: 300}
	conditions := domain.PolicyConditions{
		BaseLimits: map[domain.ProductType]float64{
			domain.ProductMicrocredit: 5000,
		},
	}

	// scoreFactor 0.25 gives fraction 0.475: the raw 2375 carries
	// through without step rounding.
	limits := AdjustLimits(475, criteria, conditions)
	if got := limits[domain.ProductMicrocredit]; math.Abs(got-2375) > 1e-9 {
		t.Errorf("microcredit limit = %f, want unrounded 2375", got)
	}
}

func TestAdjustLimitFloor(t *testing.T) {
	criteria := domain.PolicyCriteria{MinScore: 300}
	conditions := domain.PolicyConditions{
		BaseLimits: map[domain.ProductType]float64{
			domain.ProductCreditCard: 300,
		},
	}
	limits := AdjustLimits(300, criteria, conditions)
	if got := limits[domain.ProductCreditCard]; got != 100 {
		t.Errorf("tiny limit = %f, want floor 100", got)
	}
}

func TestAdjustRate(t *testing.T) {
	criteria := domain.PolicyCriteria{MinScore: 550, MaxPD: 0.20}
	conditions := domain.PolicyConditions{BaseMonthlyRate: 3.5}

	// PD at or below the ceiling keeps the base rate.
	if rate := AdjustRate(0.20, criteria, conditions); rate != 3.5 {
		t.Errorf("rate at ceiling = %f, want 3.5", rate)
	}
	if rate := AdjustRate(0.10, criteria, conditions); rate != 3.5 {
		t.Errorf("rate below ceiling = %f, want 3.5", rate)
	}

	// 10 points of excess PD add 20% to the rate.
	want := 3.5 * (1 + 0.10*2.0)
	if rate := AdjustRate(0.30, criteria, conditions); math.Abs(rate-want) > 1e-9 {
		t.Errorf("rate above ceiling = %f, want %f", rate, want)
	}

	// Extreme PD clamps at the band ceiling.
	if rate := AdjustRate(0.99, criteria, domain.PolicyConditions{BaseMonthlyRate: 10}); rate != 15.0 {
		t.Errorf("extreme rate = %f, want 15.0", rate)
	}
}
