// Package engine wires the decisioning pipeline together: scoring,
// policy evaluation, risk adjustment, caching, persistence and audit
// events.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/portfolio"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// bestPolicyKey marks waterfall decisions in the decision cache.
const bestPolicyKey = "best"

// Engine is the decisioning facade the API and CLIs talk to.
type Engine struct {
	oracle    scoring.Oracle
	store     *policy.Store
	evaluator *policy.Evaluator
	selector  *policy.Selector
	analyzer  *risk.Analyzer

	repo  domain.Repository
	cache domain.Cache
	bus   domain.EventBus

	cacheTTL         time.Duration
	portfolioWorkers int
}

// Options configures optional engine collaborators.
type Options struct {
	Repository       domain.Repository
	Cache            domain.Cache
	EventBus         domain.EventBus
	CacheTTL         time.Duration
	PortfolioWorkers int
}

// New creates an engine. Repository, cache and bus may be nil; the
// engine then runs purely in memory.
func New(oracle scoring.Oracle, store *policy.Store, analyzer *risk.Analyzer, opts Options) *Engine {
	evaluator := policy.NewEvaluator(analyzer)
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{
		oracle:           oracle,
		store:            store,
		evaluator:        evaluator,
		selector:         policy.NewSelector(evaluator),
		analyzer:         analyzer,
		repo:             opts.Repository,
		cache:            opts.Cache,
		bus:              opts.EventBus,
		cacheTTL:         ttl,
		portfolioWorkers: opts.PortfolioWorkers,
	}
}

// Version returns the current configuration version.
func (e *Engine) Version() int64 {
	return e.store.Version()
}

// EvaluateApplicant runs the applicant through the policy waterfall
// and returns the final decision.
func (e *Engine) EvaluateApplicant(ctx context.Context, tenantID string, profile *domain.ApplicantProfile) (*domain.Decision, error) {
	return e.decide(ctx, tenantID, profile, bestPolicyKey)
}

// EvaluateAgainstPolicy checks the applicant against one named policy,
// for side-by-side comparisons.
func (e *Engine) EvaluateAgainstPolicy(ctx context.Context, tenantID string, profile *domain.ApplicantProfile, policyName string) (*domain.Decision, error) {
	if policyName == "" || policyName == bestPolicyKey {
		return nil, domain.NewConfigurationError("policy name is required")
	}
	return e.decide(ctx, tenantID, profile, policyName)
}

func (e *Engine) decide(ctx context.Context, tenantID string, profile *domain.ApplicantProfile, policyName string) (*domain.Decision, error) {
	start := time.Now()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	snap := e.snapshot()
	fp := fingerprint(profile)

	if cached := e.cachedDecision(ctx, tenantID, profile.ID, fp, policyName, snap.Version); cached != nil {
		return cached, nil
	}

	score, err := e.scoreProfile(ctx, tenantID, fp, profile)
	if err != nil {
		return nil, err
	}

	var (
		eval    *domain.Evaluation
		history []domain.Evaluation
	)
	if policyName == bestPolicyKey {
		eval, history, err = e.selector.SelectBest(snap, profile, score)
	} else {
		eval, err = e.evaluator.Evaluate(snap, profile, policyName, score)
		if err == nil {
			history = []domain.Evaluation{*eval}
		}
	}
	if err != nil {
		e.publishConfigError(ctx, tenantID, err)
		return nil, err
	}

	decision := &domain.Decision{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		ApplicantID:   profile.ID,
		Approved:      eval.Approved,
		Score:         score.Score,
		PD:            score.PD,
		Breakdown:     score.Categories,
		Evaluation:    eval,
		History:       history,
		ConfigVersion: snap.Version,
		EvaluatedAt:   time.Now().UTC(),
		ElapsedMs:     float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if eval.Approved {
		decision.SelectedPolicy = eval.Policy
	}

	slog.Info("decision made",
		"tenant_id", tenantID,
		"applicant_id", profile.ID,
		"policy", decision.SelectedPolicy,
		"approved", decision.Approved,
		"score", decision.Score,
		"pd", decision.PD,
		"config_version", decision.ConfigVersion,
	)

	e.storeDecision(ctx, tenantID, fp, policyName, decision)
	e.publish(ctx, tenantID, domain.TopicDecision, decision)
	return decision, nil
}

// snapshot freezes the full pricing configuration: the policy set plus
// the LGD table it will be priced against.
func (e *Engine) snapshot() *policy.Snapshot {
	snap := e.store.Snapshot()
	snap.LGD = e.analyzer.LGD().Snapshot()
	return snap
}

// EvaluatePortfolio runs a batch over one configuration snapshot.
// Every applicant sees the same policies and LGD ratios even if an
// admin edits either mid-run.
func (e *Engine) EvaluatePortfolio(ctx context.Context, tenantID string, profiles []*domain.ApplicantProfile) (*portfolio.Result, error) {
	snap := e.snapshot()

	evaluate := func(ctx context.Context, profile *domain.ApplicantProfile) (*domain.Decision, error) {
		return e.decideWithSnapshot(ctx, tenantID, profile, snap)
	}

	result, err := portfolio.NewEvaluator(evaluate, e.portfolioWorkers).Run(ctx, profiles)
	if err != nil {
		e.publishConfigError(ctx, tenantID, err)
		return nil, err
	}
	result.Version = snap.Version

	slog.Info("portfolio evaluated",
		"tenant_id", tenantID,
		"total", result.Metrics.Total,
		"approved", result.Metrics.Approved,
		"failures", result.Metrics.Failures,
		"approval_rate", result.Metrics.ApprovalRate,
		"config_version", snap.Version,
	)
	e.publish(ctx, tenantID, domain.TopicPortfolioCompleted, result.Metrics)
	return result, nil
}

// decideWithSnapshot is the portfolio path: no decision cache writes,
// one shared snapshot, no per-decision audit events.
func (e *Engine) decideWithSnapshot(ctx context.Context, tenantID string, profile *domain.ApplicantProfile, snap *policy.Snapshot) (*domain.Decision, error) {
	start := time.Now()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	score, err := e.scoreProfile(ctx, tenantID, fingerprint(profile), profile)
	if err != nil {
		return nil, err
	}
	eval, history, err := e.selector.SelectBest(snap, profile, score)
	if err != nil {
		return nil, err
	}

	decision := &domain.Decision{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		ApplicantID:   profile.ID,
		Approved:      eval.Approved,
		Score:         score.Score,
		PD:            score.PD,
		Breakdown:     score.Categories,
		Evaluation:    eval,
		History:       history,
		ConfigVersion: snap.Version,
		EvaluatedAt:   time.Now().UTC(),
		ElapsedMs:     float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if eval.Approved {
		decision.SelectedPolicy = eval.Policy
	}
	return decision, nil
}

// scoreProfile computes the score, using the cache keyed by the
// profile fingerprint. Scores do not depend on policy configuration,
// so the key carries no version.
func (e *Engine) scoreProfile(ctx context.Context, tenantID, fp string, profile *domain.ApplicantProfile) (*domain.ScoreResult, error) {
	key := "score:" + fp
	if e.cache != nil && fp != "" {
		if data, err := e.cache.Get(ctx, tenantID, key); err == nil && data != nil {
			var cached domain.ScoreResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	score, err := e.oracle.Score(ctx, profile)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && fp != "" {
		if data, err := json.Marshal(score); err == nil {
			_ = e.cache.Set(ctx, tenantID, key, data, e.cacheTTL)
		}
	}
	return score, nil
}

// decisionKey includes the applicant id so two applicants with
// identical features still get their own decisions.
func decisionKey(applicantID, fp, policyName string, version int64) string {
	return fmt.Sprintf("decision:%s:%s:%s:%d", applicantID, fp, policyName, version)
}

func (e *Engine) cachedDecision(ctx context.Context, tenantID, applicantID, fp, policyName string, version int64) *domain.Decision {
	if e.cache == nil || fp == "" {
		return nil
	}
	data, err := e.cache.Get(ctx, tenantID, decisionKey(applicantID, fp, policyName, version))
	if err != nil || data == nil {
		return nil
	}
	var cached domain.Decision
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	return &cached
}

func (e *Engine) storeDecision(ctx context.Context, tenantID, fp, policyName string, decision *domain.Decision) {
	if e.cache != nil && fp != "" {
		if data, err := json.Marshal(decision); err == nil {
			_ = e.cache.Set(ctx, tenantID, decisionKey(decision.ApplicantID, fp, policyName, decision.ConfigVersion), data, e.cacheTTL)
		}
	}
	if e.repo != nil {
		if err := e.repo.SaveDecision(ctx, tenantID, decision); err != nil {
			slog.Error("failed to persist decision",
				"tenant_id", tenantID,
				"decision_id", decision.ID,
				"error", err,
			)
		}
	}
}

// GetDecision loads a persisted decision.
func (e *Engine) GetDecision(ctx context.Context, tenantID, decisionID string) (*domain.Decision, error) {
	if e.repo == nil {
		return nil, domain.ErrNotFound
	}
	return e.repo.GetDecision(ctx, tenantID, decisionID)
}

// Policies lists the active policies in waterfall order.
func (e *Engine) Policies() []*domain.PolicyDefinition {
	return e.store.List()
}

// GetPolicy returns one active policy.
func (e *Engine) GetPolicy(name string) (*domain.PolicyDefinition, error) {
	return e.store.Get(name)
}

// UpdatePolicy validates, installs and persists a policy edit. The
// configuration version is bumped so cached decisions go stale.
func (e *Engine) UpdatePolicy(ctx context.Context, tenantID string, p *domain.PolicyDefinition) (int64, error) {
	version, err := e.store.Update(p)
	if err != nil {
		e.publishConfigError(ctx, tenantID, err)
		return 0, err
	}
	if e.repo != nil {
		if err := e.repo.SavePolicy(ctx, tenantID, p); err != nil {
			slog.Error("failed to persist policy",
				"tenant_id", tenantID,
				"policy", p.Name,
				"error", err,
			)
		}
	}
	slog.Info("policy updated",
		"tenant_id", tenantID,
		"policy", p.Name,
		"config_version", version,
	)
	e.publish(ctx, tenantID, domain.TopicPolicyUpdated, map[string]any{
		"policy":        p.Name,
		"configVersion": version,
	})
	return version, nil
}

// ResetPolicy restores one policy to its compiled-in default.
func (e *Engine) ResetPolicy(ctx context.Context, tenantID, name string) (*domain.PolicyDefinition, int64, error) {
	restored, version, err := e.store.Reset(name)
	if err != nil {
		e.publishConfigError(ctx, tenantID, err)
		return nil, 0, err
	}
	if e.repo != nil {
		if err := e.repo.SavePolicy(ctx, tenantID, restored); err != nil {
			slog.Error("failed to persist policy reset",
				"tenant_id", tenantID,
				"policy", name,
				"error", err,
			)
		}
	}
	e.publish(ctx, tenantID, domain.TopicPolicyUpdated, map[string]any{
		"policy":        name,
		"configVersion": version,
		"reset":         true,
	})
	return restored, version, nil
}

// LGDRatios returns the active loss-given-default table.
func (e *Engine) LGDRatios() map[domain.ProductType]float64 {
	return e.analyzer.LGD().Snapshot()
}

// SetLGD updates one product's loss-given-default ratio. LGD feeds
// expected loss, so the configuration version is bumped to invalidate
// cached decisions.
func (e *Engine) SetLGD(ctx context.Context, tenantID string, product domain.ProductType, ratio float64) (int64, error) {
	if err := e.analyzer.LGD().Set(product, ratio); err != nil {
		e.publishConfigError(ctx, tenantID, err)
		return 0, err
	}
	version := e.store.Bump()
	if e.repo != nil {
		if err := e.repo.SaveLGDOverride(ctx, tenantID, product, ratio); err != nil {
			slog.Error("failed to persist LGD override",
				"tenant_id", tenantID,
				"product", product,
				"error", err,
			)
		}
	}
	slog.Info("lgd updated",
		"tenant_id", tenantID,
		"product", product,
		"ratio", ratio,
		"config_version", version,
	)
	e.publish(ctx, tenantID, domain.TopicPolicyUpdated, map[string]any{
		"lgd":           product,
		"ratio":         ratio,
		"configVersion": version,
	})
	return version, nil
}

func (e *Engine) publish(ctx context.Context, tenantID, topic string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish audit event",
			"tenant_id", tenantID,
			"topic", topic,
			"error", err,
		)
	}
}

func (e *Engine) publishConfigError(ctx context.Context, tenantID string, err error) {
	e.publish(ctx, tenantID, domain.TopicConfigError, map[string]string{
		"error": err.Error(),
	})
}
