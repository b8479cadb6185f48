//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel credit
// decisioning engine.
//
// These tests verify the COMPLETE decisioning pipeline:
//
//	Applicant → Scoring → Policy Waterfall → Risk → Offer
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. APPLICANT: A credit applicant profile (income, debt, bureau data,
//    relationship history, stability, and behavioral signals)
//
// 2. SCORING: The heuristic oracle estimates a probability of default
//    (PD) and maps it to a 0-1000 score with a per-category breakdown
//
// 3. POLICY: A credit policy with eligibility criteria (min score, min
//    income, max commitment, ...) plus product limits and pricing
//
// 4. WATERFALL: Policies are tried strictest first
//    (prime_plus → prime → standard → risk_based → microcredit);
//    the first approval wins and prices the offer
//
// 5. DECISION: Final verdict - approved with an offer, or rejected with
//    the per-policy evaluation history
//
// The server ships with builtin policies, so no seeding is required:
//
//	go run cmd/kestrel/main.go
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// Profile is the applicant payload sent to POST /evaluate
type Profile struct {
	ID                        string  `json:"id"`
	Name                      string  `json:"name,omitempty"`
	MonthlyIncome             float64 `json:"monthlyIncome"`
	TotalDebt                 float64 `json:"totalDebt"`
	CreditUtilization         int     `json:"creditUtilization"`
	MonthlyTurnover           float64 `json:"monthlyTurnover"`
	PaymentHistory            int     `json:"paymentHistory"`
	AccountAgeMonths          int     `json:"accountAgeMonths"`
	OpenAccounts              int     `json:"openAccounts"`
	BankProductsCount         int     `json:"bankProductsCount"`
	BanksRelationshipCount    int     `json:"banksRelationshipCount"`
	HasSalaryAccount          bool    `json:"hasSalaryAccount"`
	Age                       int     `json:"age"`
	EmploymentStabilityMonths int     `json:"employmentStabilityMonths"`
	EducationLevel            int     `json:"educationLevel"`
	MaritalStatus             int     `json:"maritalStatus"`
	DataConsistencyScore      int     `json:"dataConsistencyScore"`
	ValidatedPhones           int     `json:"validatedPhones"`
	AddressConfirmed          bool    `json:"addressConfirmed"`
	InvestmentBalance         float64 `json:"investmentBalance"`
	UtilityBillOnTimeRatio    float64 `json:"utilityBillOnTimeRatio"`
	Restrictions              bool    `json:"restrictions"`
}

// EvaluateRequest is the body of POST /evaluate
type EvaluateRequest struct {
	Profile Profile `json:"profile"`
}

// Offer mirrors the credit terms attached to an approval
type Offer struct {
	Limits        map[string]float64 `json:"limits"`
	MonthlyRate   float64            `json:"monthlyRate"`
	MaxTermMonths int                `json:"maxTermMonths"`
}

// Evaluation mirrors one policy's verdict within the waterfall
type Evaluation struct {
	Policy     string   `json:"policy"`
	Approved   bool     `json:"approved"`
	Violations []string `json:"violations"`
}

// DecisionResponse is what POST /evaluate returns
type DecisionResponse struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenantId"`
	ApplicantID    string       `json:"applicantId"`
	Approved       bool         `json:"approved"`
	SelectedPolicy string       `json:"selectedPolicy"`
	Score          int          `json:"score"`
	PD             float64      `json:"pd"`
	Evaluation     *Evaluation  `json:"evaluation"`
	History        []Evaluation `json:"history"`
	ConfigVersion  int64        `json:"configVersion"`
	ElapsedMs      float64      `json:"elapsedMs"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func strongProfile(id string) Profile {
	return Profile{
		ID:                        id,
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

func weakProfile(id string) Profile {
	return Profile{
		ID:                     id,
		MonthlyIncome:          500,
		TotalDebt:              2000,
		CreditUtilization:      95,
		Restrictions:           true,
		Age:                    19,
		UtilityBillOnTimeRatio: 0.3,
	}
}

func doJSON(t *testing.T, config TestConfig, method, path string, payload any, withTenant bool) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if withTenant {
		httpReq.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func evaluate(t *testing.T, config TestConfig, profile Profile) DecisionResponse {
	t.Helper()

	resp, body := doJSON(t, config, "POST", "/evaluate", EvaluateRequest{Profile: profile}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result DecisionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

// ============================================================================
// SCENARIO 1: Strong Applicant (Approved by the Top Policy)
// ============================================================================

func TestStrongApplicant_Approved(t *testing.T) {
	/*
	   SCENARIO: High income, clean history, long relationship, stable job

	   EXPECTED BEHAVIOR:
	   - Scoring yields a low PD and a score above 850
	   - prime_plus criteria all pass, so the waterfall stops there
	   - The decision carries an offer priced from the prime_plus policy
	*/
	config := getTestConfig()

	result := evaluate(t, config, strongProfile("itest-strong-001"))

	if !result.Approved {
		t.Fatalf("Expected approval for strong applicant, history=%+v", result.History)
	}
	if result.SelectedPolicy != "prime_plus" {
		t.Errorf("Expected prime_plus, got %s", result.SelectedPolicy)
	}
	if result.Score < 850 {
		t.Errorf("Expected score >= 850, got %d", result.Score)
	}

	t.Logf("✓ Strong applicant approved: policy=%s, score=%d, pd=%.3f",
		result.SelectedPolicy, result.Score, result.PD)
}

// ============================================================================
// SCENARIO 2: Weak Applicant (Rejected by Every Policy)
// ============================================================================

func TestWeakApplicant_Rejected(t *testing.T) {
	/*
	   SCENARIO: Low income, maxed-out utilization, active restrictions,
	   under the minimum age for most policies

	   EXPECTED BEHAVIOR:
	   - Every policy in the waterfall rejects, so approved=false
	   - The history records one evaluation per policy with violations
	   - Rejection is still HTTP 200: a rejection is a decision, not an
	     error
	*/
	config := getTestConfig()

	result := evaluate(t, config, weakProfile("itest-weak-001"))

	if result.Approved {
		t.Fatalf("Expected rejection, got approval under %s", result.SelectedPolicy)
	}
	if len(result.History) == 0 {
		t.Error("Expected per-policy evaluation history on rejection")
	}
	for _, ev := range result.History {
		if ev.Approved {
			t.Errorf("Policy %s approved a profile that should fail everywhere", ev.Policy)
		}
		if len(ev.Violations) == 0 {
			t.Errorf("Policy %s rejected without naming a violation", ev.Policy)
		}
	}

	t.Logf("✓ Weak applicant rejected across %d policies, score=%d",
		len(result.History), result.Score)
}

// ============================================================================
// SCENARIO 3: Named Policy Evaluation
// ============================================================================

func TestNamedPolicyEvaluation(t *testing.T) {
	/*
	   SCENARIO: Evaluate one applicant against a single named policy,
	   bypassing the waterfall

	   EXPECTED BEHAVIOR:
	   - POST /evaluate/standard runs only the standard policy
	   - The history has exactly one entry
	*/
	config := getTestConfig()

	resp, body := doJSON(t, config, "POST", "/evaluate/standard",
		EvaluateRequest{Profile: strongProfile("itest-named-001")}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result DecisionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if result.SelectedPolicy != "standard" {
		t.Errorf("Expected standard, got %s", result.SelectedPolicy)
	}
	if len(result.History) != 1 {
		t.Errorf("Expected single-entry history, got %d", len(result.History))
	}

	// An unknown policy name is a configuration problem, not a rejection.
	resp, _ = doJSON(t, config, "POST", "/evaluate/no_such_policy",
		EvaluateRequest{Profile: strongProfile("itest-named-002")}, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for unknown policy, got %d", resp.StatusCode)
	}

	t.Logf("✓ Named policy evaluation: approved=%v", result.Approved)
}

// ============================================================================
// SCENARIO 4: Policy Update Round-Trip
// ============================================================================

func TestPolicyUpdateAndReset(t *testing.T) {
	/*
	   SCENARIO: Tighten the standard policy, confirm the config version
	   advances, then restore the default

	   EXPECTED BEHAVIOR:
	   - GET /policies/standard returns the current definition
	   - PUT /policies/standard bumps configVersion
	   - POST /policies/standard/reset restores the builtin definition
	     and bumps the version again
	*/
	config := getTestConfig()

	resp, body := doJSON(t, config, "GET", "/policies/standard", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET policy failed: %d: %s", resp.StatusCode, string(body))
	}

	var policyDoc map[string]any
	if err := json.Unmarshal(body, &policyDoc); err != nil {
		t.Fatalf("Failed to unmarshal policy: %v", err)
	}

	criteria, ok := policyDoc["criteria"].(map[string]any)
	if !ok {
		t.Fatalf("Policy document missing criteria: %s", string(body))
	}
	criteria["minScore"] = float64(600)

	resp, body = doJSON(t, config, "PUT", "/policies/standard", policyDoc, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT policy failed: %d: %s", resp.StatusCode, string(body))
	}

	var updated struct {
		ConfigVersion int64 `json:"configVersion"`
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("Failed to unmarshal update response: %v", err)
	}
	if updated.ConfigVersion < 2 {
		t.Errorf("Expected configVersion >= 2 after update, got %d", updated.ConfigVersion)
	}

	// Restore the default so the suite leaves the server as found.
	resp, body = doJSON(t, config, "POST", "/policies/standard/reset", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Reset policy failed: %d: %s", resp.StatusCode, string(body))
	}

	t.Logf("✓ Policy round-trip complete, configVersion=%d", updated.ConfigVersion)
}

// ============================================================================
// SCENARIO 5: LGD Table
// ============================================================================

func TestLGDTable(t *testing.T) {
	/*
	   SCENARIO: Read the loss-given-default table and reject an invalid
	   ratio

	   EXPECTED BEHAVIOR:
	   - GET /lgd returns a ratio per product in (0, 1]
	   - PUT /lgd/{product} with a ratio above 1 returns 422
	*/
	config := getTestConfig()

	resp, body := doJSON(t, config, "GET", "/lgd", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET lgd failed: %d: %s", resp.StatusCode, string(body))
	}

	var table struct {
		Ratios map[string]float64 `json:"ratios"`
	}
	if err := json.Unmarshal(body, &table); err != nil {
		t.Fatalf("Failed to unmarshal lgd table: %v (body: %s)", err, string(body))
	}
	for product, ratio := range table.Ratios {
		if ratio <= 0 || ratio > 1 {
			t.Errorf("Product %s has ratio %.2f outside (0,1]", product, ratio)
		}
	}

	resp, _ = doJSON(t, config, "PUT", "/lgd/credit_card", map[string]float64{"ratio": 1.5}, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for ratio 1.5, got %d", resp.StatusCode)
	}

	t.Logf("✓ LGD table verified: %d products", len(table.Ratios))
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestMissingApplicantID_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing the required profile.id field

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	profile := strongProfile("")
	resp, _ := doJSON(t, config, "POST", "/evaluate", EvaluateRequest{Profile: profile}, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing profile.id, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing profile.id → HTTP %d", resp.StatusCode)
}

func TestNegativeIncome_Error(t *testing.T) {
	/*
	   SCENARIO: Profile with a negative monthly income

	   EXPECTED: HTTP 400 Bad Request (applicant data error)
	*/
	config := getTestConfig()

	profile := strongProfile("itest-invalid-001")
	profile.MonthlyIncome = -100
	resp, _ := doJSON(t, config, "POST", "/evaluate", EvaluateRequest{Profile: profile}, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative income, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: negative income → HTTP %d", resp.StatusCode)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header

	   Tenant ID is validated as a required field, not as auth, so the
	   expected status is 400 rather than 401.
	*/
	config := getTestConfig()

	resp, _ := doJSON(t, config, "POST", "/evaluate",
		EvaluateRequest{Profile: strongProfile("itest-notenant-001")}, false)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 7: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify the decision carries the fields clients rely on

	   This ensures the API contract is stable.
	*/
	config := getTestConfig()

	result := evaluate(t, config, strongProfile("itest-metadata-001"))

	if result.ID == "" {
		t.Error("Missing decision id")
	}
	if result.ApplicantID != "itest-metadata-001" {
		t.Errorf("Wrong applicantId: %s", result.ApplicantID)
	}
	if result.TenantID != config.TenantID {
		t.Errorf("Wrong tenantId: %s", result.TenantID)
	}
	if result.Score < 0 || result.Score > 1000 {
		t.Errorf("Score out of range: %d (expected 0-1000)", result.Score)
	}
	if result.PD < 0 || result.PD > 1 {
		t.Errorf("PD out of range: %.3f (expected 0-1)", result.PD)
	}
	if result.ConfigVersion < 1 {
		t.Errorf("Invalid configVersion: %d", result.ConfigVersion)
	}

	t.Logf("✓ Metadata complete: id=%s, configVersion=%d, elapsedMs=%.2f",
		result.ID, result.ConfigVersion, result.ElapsedMs)
}
