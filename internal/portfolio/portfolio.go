// Package portfolio runs batch credit evaluations over applicant
// populations and aggregates the outcomes.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EvaluateFunc produces a decision for one applicant. The portfolio
// evaluator supplies every applicant with the same immutable policy
// snapshot through this closure.
type EvaluateFunc func(ctx context.Context, profile *domain.ApplicantProfile) (*domain.Decision, error)

// Item is one applicant's slot in a portfolio result.
type Item struct {
	ApplicantID string           `json:"applicantId"`
	Decision    *domain.Decision `json:"decision,omitempty"`
	// ExpectedLoss is the decision's total expected loss, or NaN when
	// evaluation failed and the item is a placeholder.
	ExpectedLoss float64 `json:"-"`
	Err          string  `json:"error,omitempty"`
}

// MarshalJSON renders the NaN expected loss of placeholders as null.
func (it Item) MarshalJSON() ([]byte, error) {
	type alias Item
	wrapper := struct {
		alias
		ExpectedLoss *float64 `json:"expectedLoss"`
	}{alias: alias(it)}
	if !math.IsNaN(it.ExpectedLoss) {
		wrapper.ExpectedLoss = &it.ExpectedLoss
	}
	return json.Marshal(wrapper)
}

// Result is the outcome of one portfolio run.
type Result struct {
	Items     []Item        `json:"items"`
	Metrics   Metrics       `json:"metrics"`
	Version   int64         `json:"configVersion"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMs float64       `json:"elapsedMs"`
}

// Evaluator runs applicants through an evaluation function in
// parallel, bounded by a worker count.
type Evaluator struct {
	evaluate EvaluateFunc
	workers  int
}

// NewEvaluator creates a portfolio evaluator. A non-positive worker
// count defaults to the CPU count.
func NewEvaluator(evaluate EvaluateFunc, workers int) *Evaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{evaluate: evaluate, workers: workers}
}

// Run evaluates every profile. Recoverable failures (bad applicant
// data, oracle errors, panics) become placeholder items with NaN
// expected loss; configuration errors abort the whole run.
func (e *Evaluator) Run(ctx context.Context, profiles []*domain.ApplicantProfile) (*Result, error) {
	start := time.Now()
	items := make([]Item, len(profiles))
	fatals := make([]error, len(profiles))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)

	for i, profile := range profiles {
		wg.Add(1)
		go func(idx int, p *domain.ApplicantProfile) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			items[idx] = e.evaluateOne(ctx, p, &fatals[idx])
		}(i, profile)
	}
	wg.Wait()

	for _, err := range fatals {
		if err != nil {
			return nil, err
		}
	}

	acc := newAggregate()
	var version int64
	for i := range items {
		acc.observe(&items[i])
		if items[i].Decision != nil && items[i].Decision.ConfigVersion > version {
			version = items[i].Decision.ConfigVersion
		}
	}

	elapsed := time.Since(start)
	return &Result{
		Items:     items,
		Metrics:   acc.finalize(),
		Version:   version,
		Elapsed:   elapsed,
		ElapsedMs: float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

// evaluateOne wraps a single evaluation with panic recovery. A fatal
// configuration error is reported through fatal instead of the item.
func (e *Evaluator) evaluateOne(ctx context.Context, profile *domain.ApplicantProfile, fatal *error) (item Item) {
	applicantID := ""
	if profile != nil {
		applicantID = profile.ID
	}
	item = Item{ApplicantID: applicantID, ExpectedLoss: math.NaN()}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("portfolio evaluation panicked",
				"applicant_id", applicantID,
				"panic", r,
			)
			item.Decision = placeholder(applicantID, fmt.Sprintf("evaluation panic: %v", r))
			item.Err = item.Decision.Error
		}
	}()

	if profile == nil {
		item.Decision = placeholder(applicantID, "nil applicant profile")
		item.Err = item.Decision.Error
		return item
	}

	decision, err := e.evaluate(ctx, profile)
	if err != nil {
		if domain.IsRecoverable(err) {
			slog.Warn("portfolio applicant skipped",
				"applicant_id", applicantID,
				"error", err,
			)
			item.Decision = placeholder(applicantID, err.Error())
			item.Err = item.Decision.Error
			return item
		}
		*fatal = err
		return item
	}

	item.Decision = decision
	if decision.Approved && decision.Evaluation != nil {
		item.ExpectedLoss = decision.Evaluation.TotalExpectedLoss
	} else {
		item.ExpectedLoss = 0
	}
	return item
}

// placeholder builds the rejected stand-in decision for a failed
// applicant.
func placeholder(applicantID, reason string) *domain.Decision {
	return &domain.Decision{
		ApplicantID: applicantID,
		Approved:    false,
		Error:       reason,
		EvaluatedAt: time.Now().UTC(),
	}
}
