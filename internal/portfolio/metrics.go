package portfolio

// Metrics summarizes a portfolio run. All ratios are in [0,1].
type Metrics struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	// Failures counts applicants whose evaluation failed recoverably
	// and produced a placeholder.
	Failures int `json:"failures"`

	ApprovalRate    float64 `json:"approvalRate"`
	HumanReviewRate float64 `json:"humanReviewRate"`

	MeanScoreApproved float64 `json:"meanScoreApproved"`
	MeanPDApproved    float64 `json:"meanPDApproved"`

	TotalExpectedLoss float64 `json:"totalExpectedLoss"`
	MeanExpectedLoss  float64 `json:"meanExpectedLoss"`

	// ByPolicy breaks the run down per policy; the "none" bucket holds
	// applicants no policy accepted. Failed records are not routed.
	ByPolicy map[string]PolicyMetrics `json:"byPolicy"`
}

// PolicyMetrics summarizes the applicants the waterfall routed to one
// policy.
type PolicyMetrics struct {
	Routed       int     `json:"routed"`
	Approved     int     `json:"approved"`
	ApprovalRate float64 `json:"approvalRate"`
	// MeanExpectedLoss averages over the policy's approvals only.
	MeanExpectedLoss float64 `json:"meanExpectedLoss"`
}

// aggregate carries the associative accumulators a Metrics is computed
// from, so chunked runs merge exactly.
type aggregate struct {
	total       int
	approved    int
	rejected    int
	failures    int
	humanReview int

	scoreSum float64
	pdSum    float64
	elSum    float64

	byPolicy map[string]*policyAggregate
}

// policyAggregate accumulates one policy's routed applicants.
type policyAggregate struct {
	routed   int
	approved int
	elSum    float64
}

func newAggregate() *aggregate {
	return &aggregate{byPolicy: make(map[string]*policyAggregate)}
}

func (a *aggregate) bucket(policy string) *policyAggregate {
	b, ok := a.byPolicy[policy]
	if !ok {
		b = &policyAggregate{}
		a.byPolicy[policy] = b
	}
	return b
}

func (a *aggregate) observe(item *Item) {
	a.total++
	if item.Err != "" {
		a.failures++
		return
	}
	d := item.Decision
	if d.Evaluation != nil && d.Evaluation.HumanReview {
		a.humanReview++
	}
	if !d.Approved {
		a.rejected++
		a.bucket("none").routed++
		return
	}
	a.approved++
	a.scoreSum += float64(d.Score)
	a.pdSum += d.PD
	a.elSum += item.ExpectedLoss

	b := a.bucket(d.SelectedPolicy)
	b.routed++
	b.approved++
	b.elSum += item.ExpectedLoss
}

// merge folds another aggregate in. Merging is associative and
// commutative, so chunks can be combined in any order.
func (a *aggregate) merge(b *aggregate) {
	a.total += b.total
	a.approved += b.approved
	a.rejected += b.rejected
	a.failures += b.failures
	a.humanReview += b.humanReview
	a.scoreSum += b.scoreSum
	a.pdSum += b.pdSum
	a.elSum += b.elSum
	for k, v := range b.byPolicy {
		dst := a.bucket(k)
		dst.routed += v.routed
		dst.approved += v.approved
		dst.elSum += v.elSum
	}
}

func (a *aggregate) finalize() Metrics {
	m := Metrics{
		Total:             a.total,
		Approved:          a.approved,
		Rejected:          a.rejected,
		Failures:          a.failures,
		TotalExpectedLoss: a.elSum,
		ByPolicy:          make(map[string]PolicyMetrics, len(a.byPolicy)),
	}
	if a.total > 0 {
		m.ApprovalRate = float64(a.approved) / float64(a.total)
		m.HumanReviewRate = float64(a.humanReview) / float64(a.total)
	}
	if a.approved > 0 {
		m.MeanScoreApproved = a.scoreSum / float64(a.approved)
		m.MeanPDApproved = a.pdSum / float64(a.approved)
		m.MeanExpectedLoss = a.elSum / float64(a.approved)
	}
	for name, b := range a.byPolicy {
		pm := PolicyMetrics{Routed: b.routed, Approved: b.approved}
		if b.routed > 0 {
			pm.ApprovalRate = float64(b.approved) / float64(b.routed)
		}
		if b.approved > 0 {
			pm.MeanExpectedLoss = b.elSum / float64(b.approved)
		}
		m.ByPolicy[name] = pm
	}
	return m
}

// MergeMetrics recombines per-chunk aggregates into one Metrics.
func MergeMetrics(results ...*Result) Metrics {
	acc := newAggregate()
	for _, r := range results {
		for i := range r.Items {
			acc.observe(&r.Items[i])
		}
	}
	return acc.finalize()
}
