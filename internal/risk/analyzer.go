package risk

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Analyzer computes risk assessments from score, PD and exposure.
type Analyzer struct {
	lgd *LGDTable
}

// NewAnalyzer creates an analyzer backed by the given LGD table.
func NewAnalyzer(lgd *LGDTable) *Analyzer {
	return &Analyzer{lgd: lgd}
}

// LGD exposes the table for administrative tuning.
func (a *Analyzer) LGD() *LGDTable {
	return a.lgd
}

// Assess returns the tier and expected loss for one exposure, priced
// against the table as it stands now. EL = PD * EAD * LGD(product).
func (a *Analyzer) Assess(score int, pd float64, ead float64, product domain.ProductType) (*domain.RiskAssessment, error) {
	return a.AssessWith(a.lgd.Snapshot(), score, pd, ead, product)
}

// AssessWith prices one exposure against a frozen set of LGD ratios.
// Batch runs pass the ratios captured when the run started so table
// edits never reach in-flight work. Unknown products fall back to the
// personal loan ratio, matching LGDTable.Ratio.
func (a *Analyzer) AssessWith(ratios map[domain.ProductType]float64, score int, pd float64, ead float64, product domain.ProductType) (*domain.RiskAssessment, error) {
	if ead < 0 {
		return nil, domain.NewApplicantDataError("exposure at default must be non-negative")
	}
	lgd, ok := ratios[product]
	if !ok {
		lgd = ratios[domain.ProductPersonalLoan]
	}
	return &domain.RiskAssessment{
		Tier:         domain.TierForScore(score),
		PD:           pd,
		EAD:          ead,
		LGD:          lgd,
		ExpectedLoss: pd * ead * lgd,
		Product:      product,
	}, nil
}
