package policy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	set, err := LoadPolicySet("")
	if err != nil {
		t.Fatalf("LoadPolicySet: %v", err)
	}
	store, err := NewStore(set)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	table, err := risk.NewLGDTable(nil)
	if err != nil {
		t.Fatalf("NewLGDTable: %v", err)
	}
	return NewEvaluator(risk.NewAnalyzer(table))
}

func scoreOf(t *testing.T, p *domain.ApplicantProfile) *domain.ScoreResult {
	t.Helper()
	oracle, err := scoring.NewHeuristicOracle(nil)
	if err != nil {
		t.Fatalf("NewHeuristicOracle: %v", err)
	}
	result, err := oracle.Score(context.Background(), p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	return result
}

func topProfile() *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		ID:                        "app-top",
		MonthlyIncome:             20000,
		TotalDebt:                 1000,
		CreditUtilization:         10,
		MonthlyTurnover:           25000,
		PaymentHistory:            98,
		AccountAgeMonths:          60,
		OpenAccounts:              3,
		BankProductsCount:         4,
		BanksRelationshipCount:    2,
		HasSalaryAccount:          true,
		Age:                       35,
		EmploymentStabilityMonths: 48,
		EducationLevel:            5,
		MaritalStatus:             1,
		DataConsistencyScore:      95,
		ValidatedPhones:           2,
		AddressConfirmed:          true,
		InvestmentBalance:         100000,
		UtilityBillOnTimeRatio:    0.95,
	}
}

func midProfile() *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		ID:                        "app-mid",
		MonthlyIncome:             4000,
		TotalDebt:                 1000,
		CreditUtilization:         45,
		MonthlyTurnover:           5000,
		PaymentHistory:            70,
		Inquiries30d:              2,
		AccountAgeMonths:          12,
		OpenAccounts:              2,
		BanksRelationshipCount:    1,
		Age:                       30,
		EmploymentStabilityMonths: 8,
		EducationLevel:            3,
		DataConsistencyScore:      70,
		ValidatedPhones:           1,
		UtilityBillOnTimeRatio:    0.8,
	}
}

func weakProfile() *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		ID:                     "app-weak",
		MonthlyIncome:          500,
		TotalDebt:              2000,
		CreditUtilization:      95,
		Restrictions:           true,
		Inquiries30d:           9,
		Age:                    17,
		UtilityBillOnTimeRatio: 0.3,
	}
}

func TestEvaluateApprovesTopProfile(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)
	profile := topProfile()
	score := scoreOf(t, profile)

	eval, err := evaluator.Evaluate(store.Snapshot(), profile, "prime_plus", score)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !eval.Approved {
		t.Fatalf("top profile rejected by prime_plus: %v", eval.Violations)
	}
	if eval.Offer == nil {
		t.Fatal("approved evaluation has no offer")
	}
	// PD of 3% sits above 80% of the prime_plus ceiling, so approval
	// comes flagged for review.
	if !eval.HumanReview {
		t.Error("borderline prime_plus approval not flagged for human review")
	}

	var sum float64
	for _, r := range eval.Risk {
		want := r.PD * r.EAD * r.LGD
		if math.Abs(r.ExpectedLoss-want) > 1e-9 {
			t.Errorf("%s expected loss %f, want %f", r.Product, r.ExpectedLoss, want)
		}
		sum += r.ExpectedLoss
	}
	if math.Abs(eval.TotalExpectedLoss-sum) > 1e-9 {
		t.Errorf("total expected loss %f, want %f", eval.TotalExpectedLoss, sum)
	}
}

func TestEvaluateListsAllViolations(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)
	profile := weakProfile()
	score := scoreOf(t, profile)

	eval, err := evaluator.Evaluate(store.Snapshot(), profile, "prime_plus", score)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Approved {
		t.Fatal("weak profile approved by prime_plus")
	}
	// Checks never short-circuit: score, PD, income, tenure,
	// restrictions, inquiries, age and utilization all fail here.
	if len(eval.Violations) < 7 {
		t.Errorf("got %d violations, want the full list: %v", len(eval.Violations), eval.Violations)
	}
	if len(eval.Recommendations) == 0 {
		t.Error("rejection carries no recommendations")
	}
	if eval.Offer != nil {
		t.Error("rejected evaluation carries an offer")
	}
}

func TestEvaluateZeroIncomeWarning(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)
	profile := midProfile()
	profile.MonthlyIncome = 0
	profile.TotalDebt = 0
	score := scoreOf(t, profile)

	eval, err := evaluator.Evaluate(store.Snapshot(), profile, "microcredit", score)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	var warned bool
	for _, w := range eval.Warnings {
		if strings.Contains(w, "zero or negative") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("zero income produced no warning: %v", eval.Warnings)
	}
	// Commitment is treated as 100% and violates the ceiling.
	var violated bool
	for _, v := range eval.Violations {
		if strings.Contains(v, "commitment") {
			violated = true
		}
	}
	if !violated {
		t.Errorf("zero income did not violate commitment ceiling: %v", eval.Violations)
	}
}

func TestEvaluateInquiriesAtMaxWarning(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)
	profile := midProfile() // two inquiries, the standard policy maximum
	score := scoreOf(t, profile)

	eval, err := evaluator.Evaluate(store.Snapshot(), profile, "standard", score)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !eval.Approved {
		t.Fatalf("mid profile rejected by standard: %v", eval.Violations)
	}
	var warned bool
	for _, w := range eval.Warnings {
		if strings.Contains(w, "allowed maximum") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("inquiries at the limit produced no warning: %v", eval.Warnings)
	}
}

func TestEvaluateUnknownPolicy(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)
	profile := midProfile()
	score := scoreOf(t, profile)

	_, err := evaluator.Evaluate(store.Snapshot(), profile, "platinum", score)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("got %v, want ErrConfiguration", err)
	}
}

func TestSelectBestWaterfall(t *testing.T) {
	store := newTestStore(t)
	selector := NewSelector(newTestEvaluator(t))
	profile := midProfile()
	score := scoreOf(t, profile)

	best, history, err := selector.SelectBest(store.Snapshot(), profile, score)
	if err != nil {
		t.Fatalf("SelectBest: %v", err)
	}
	if !best.Approved || best.Policy != "standard" {
		t.Fatalf("best policy = %q (approved=%v), want standard", best.Policy, best.Approved)
	}
	// The walk stops at the first approval: prime_plus and prime were
	// tried and rejected before standard.
	if len(history) != 3 {
		t.Fatalf("history length %d, want 3", len(history))
	}
	if history[0].Policy != "prime_plus" || history[0].Approved {
		t.Errorf("history[0] = %q approved=%v", history[0].Policy, history[0].Approved)
	}
	if history[1].Policy != "prime" || history[1].Approved {
		t.Errorf("history[1] = %q approved=%v", history[1].Policy, history[1].Approved)
	}
}

func TestSelectBestNoPolicy(t *testing.T) {
	store := newTestStore(t)
	selector := NewSelector(newTestEvaluator(t))
	profile := weakProfile()
	score := scoreOf(t, profile)

	best, history, err := selector.SelectBest(store.Snapshot(), profile, score)
	if err != nil {
		t.Fatalf("SelectBest: %v", err)
	}
	if best.Approved {
		t.Fatal("weak profile approved")
	}
	if best.Policy != "" {
		t.Errorf("synthetic rejection names policy %q", best.Policy)
	}
	if !best.HumanReview {
		t.Error("synthetic rejection not flagged for review")
	}
	if best.Score != score.Score || best.PD != score.PD {
		t.Error("synthetic rejection lost the computed score")
	}
	if len(history) != 5 {
		t.Errorf("history length %d, want all 5 policies", len(history))
	}
}

func TestCustomRule(t *testing.T) {
	store := newTestStore(t)
	evaluator := newTestEvaluator(t)

	pol, err := store.Get("standard")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pol.CustomRule = "monthly_income >= 5000.0"
	if _, err := store.Update(pol); err != nil {
		t.Fatalf("Update: %v", err)
	}

	profile := midProfile() // income 4000 fails the custom rule
	score := scoreOf(t, profile)
	eval, err := evaluator.Evaluate(store.Snapshot(), profile, "standard", score)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Approved {
		t.Fatal("custom rule did not reject")
	}
	var found bool
	for _, v := range eval.Violations {
		if strings.Contains(v, "custom policy rule") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations missing custom rule entry: %v", eval.Violations)
	}
}

func TestCustomRuleCompileErrors(t *testing.T) {
	store := newTestStore(t)

	pol, _ := store.Get("standard")
	pol.CustomRule = "monthly_income >>> 5000"
	if _, err := store.Update(pol); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("syntax error: got %v, want ErrConfiguration", err)
	}

	pol, _ = store.Get("standard")
	pol.CustomRule = "monthly_income + 1.0"
	if _, err := store.Update(pol); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("non-bool rule: got %v, want ErrConfiguration", err)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store := newTestStore(t)
	snap := store.Snapshot()

	pol, _ := store.Get("standard")
	pol.Criteria.MinScore = 999
	version, err := store.Update(pol)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if version != 2 {
		t.Errorf("version after update = %d, want 2", version)
	}

	if got := snap.Get("standard").Criteria.MinScore; got != 550 {
		t.Errorf("snapshot saw the edit: minScore = %d", got)
	}
	if got := store.Snapshot().Get("standard").Criteria.MinScore; got != 999 {
		t.Errorf("new snapshot missed the edit: minScore = %d", got)
	}
}

func TestStoreReset(t *testing.T) {
	store := newTestStore(t)

	pol, _ := store.Get("prime")
	pol.Criteria.MinMonthlyIncome = 1
	if _, err := store.Update(pol); err != nil {
		t.Fatalf("Update: %v", err)
	}

	restored, version, err := store.Reset("prime")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if restored.Criteria.MinMonthlyIncome != 7000 {
		t.Errorf("reset income = %f, want 7000", restored.Criteria.MinMonthlyIncome)
	}
	if version != 3 {
		t.Errorf("version after reset = %d, want 3", version)
	}

	if _, _, err := store.Reset("platinum"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown reset: got %v, want ErrConfiguration", err)
	}
}

func TestStoreRejectsInvalidPolicy(t *testing.T) {
	store := newTestStore(t)

	pol, _ := store.Get("standard")
	pol.Criteria.MaxPD = 1.5
	if _, err := store.Update(pol); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("got %v, want ErrConfiguration", err)
	}
}
