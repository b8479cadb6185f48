package policy

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Selector walks the policy waterfall for one applicant: strictest
// policy first, first approval wins.
type Selector struct {
	evaluator *Evaluator
}

// NewSelector creates a selector using the given evaluator.
func NewSelector(evaluator *Evaluator) *Selector {
	return &Selector{evaluator: evaluator}
}

// SelectBest evaluates the applicant against the snapshot's policies
// in order. The returned evaluation is the first approval, or a
// synthetic rejection carrying the full comparison set. The history
// holds every policy evaluated before the walk stopped.
func (s *Selector) SelectBest(snap *Snapshot, profile *domain.ApplicantProfile, score *domain.ScoreResult) (*domain.Evaluation, []domain.Evaluation, error) {
	history := make([]domain.Evaluation, 0, len(snap.Order))

	for _, name := range snap.Order {
		eval, err := s.evaluator.Evaluate(snap, profile, name, score)
		if err != nil {
			return nil, nil, err
		}
		history = append(history, *eval)
		if eval.Approved {
			return eval, history, nil
		}
	}

	// No policy approved: synthesize a rejection that still carries
	// the score so the applicant gets a complete answer.
	rejection := &domain.Evaluation{
		Policy:   "",
		Approved: false,
		Score:    score.Score,
		PD:       score.PD,
		Violations: []string{
			"no available credit policy matches the applicant profile",
		},
		Recommendations: []string{
			"consider improving the financial profile: reduce debt, increase income, keep a clean payment history",
		},
		HumanReview: true,
	}
	return rejection, history, nil
}
