// Package policy implements the credit policy engine: the versioned
// policy store, per-policy criteria evaluation, and the waterfall
// selector.
package policy

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// RuleCompiler compiles the optional per-policy custom rules. Rules
// are CEL expressions over the applicant feature map and must return
// bool.
type RuleCompiler struct {
	env *cel.Env
}

// NewRuleCompiler creates a compiler with the applicant variables
// declared.
func NewRuleCompiler() (*RuleCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("applicant", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("monthly_income", cel.DoubleType),
		cel.Variable("total_debt", cel.DoubleType),
		cel.Variable("credit_utilization", cel.IntType),
		cel.Variable("age", cel.IntType),
		cel.Variable("restrictions", cel.BoolType),
		cel.Variable("inquiries_30d", cel.IntType),
	)
	if err != nil {
		return nil, domain.NewConfigurationError("rules: create CEL environment: %v", err)
	}
	return &RuleCompiler{env: env}, nil
}

// Compile compiles one custom rule expression.
func (c *RuleCompiler) Compile(policyName, expression string) (cel.Program, error) {
	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, domain.NewConfigurationError("policy %s: compile custom rule: %v", policyName, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, domain.NewConfigurationError("policy %s: custom rule must return bool, got %s", policyName, ast.OutputType())
	}
	program, err := c.env.Program(ast)
	if err != nil {
		return nil, domain.NewConfigurationError("policy %s: build custom rule program: %v", policyName, err)
	}
	return program, nil
}

// evalRule runs a compiled custom rule against a profile.
func evalRule(program cel.Program, profile *domain.ApplicantProfile) (bool, error) {
	features := profile.Features()
	activation := map[string]any{
		"applicant":          features,
		"monthly_income":     profile.MonthlyIncome,
		"total_debt":         profile.TotalDebt,
		"credit_utilization": profile.CreditUtilization,
		"age":                profile.Age,
		"restrictions":       profile.Restrictions,
		"inquiries_30d":      profile.Inquiries30d,
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return false, domain.NewConfigurationError("custom rule evaluation: %v", err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, domain.NewConfigurationError("custom rule returned non-bool value")
	}
	return bool(b), nil
}
