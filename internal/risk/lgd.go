// Package risk quantifies credit risk: tiering, expected loss, and
// score-driven adjustment of offered limits and rates.
package risk

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LGDTable holds per-product loss-given-default ratios. It is tunable
// at runtime; readers take a snapshot so a decision in flight never
// sees a mid-edit table.
type LGDTable struct {
	mu     sync.RWMutex
	ratios map[domain.ProductType]float64
}

// DefaultLGDRatios returns the reference loss-given-default table.
func DefaultLGDRatios() map[domain.ProductType]float64 {
	return map[domain.ProductType]float64{
		domain.ProductPersonalLoan: 0.60,
		domain.ProductCreditCard:   0.70,
		domain.ProductFinancing:    0.30,
		domain.ProductMicrocredit:  0.80,
	}
}

// NewLGDTable creates a table seeded with the given ratios, or the
// defaults when ratios is nil.
func NewLGDTable(ratios map[domain.ProductType]float64) (*LGDTable, error) {
	if ratios == nil {
		ratios = DefaultLGDRatios()
	}
	for product, ratio := range ratios {
		if !product.Valid() {
			return nil, domain.NewConfigurationError("lgd: unknown product %q", product)
		}
		if ratio <= 0 || ratio > 1 {
			return nil, domain.NewConfigurationError("lgd: ratio for %s must be within (0,1], got %f", product, ratio)
		}
	}
	t := &LGDTable{ratios: make(map[domain.ProductType]float64, len(ratios))}
	for k, v := range ratios {
		t.ratios[k] = v
	}
	return t, nil
}

// LoadLGDTable reads a JSON ratio document from path, or returns the
// default table when path is empty.
func LoadLGDTable(path string) (*LGDTable, error) {
	if path == "" {
		return NewLGDTable(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigurationError("lgd: read %s: %v", path, err)
	}
	var ratios map[domain.ProductType]float64
	if err := json.Unmarshal(data, &ratios); err != nil {
		return nil, domain.NewConfigurationError("lgd: parse %s: %v", path, err)
	}
	return NewLGDTable(ratios)
}

// Ratio returns the ratio for a product. Unknown products fall back to
// the personal loan ratio.
func (t *LGDTable) Ratio(product domain.ProductType) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.ratios[product]; ok {
		return r
	}
	return t.ratios[domain.ProductPersonalLoan]
}

// Set updates one product ratio.
func (t *LGDTable) Set(product domain.ProductType, ratio float64) error {
	if !product.Valid() {
		return domain.NewConfigurationError("lgd: unknown product %q", product)
	}
	if ratio <= 0 || ratio > 1 {
		return domain.NewConfigurationError("lgd: ratio must be within (0,1], got %f", ratio)
	}
	t.mu.Lock()
	t.ratios[product] = ratio
	t.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current table.
func (t *LGDTable) Snapshot() map[domain.ProductType]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.ProductType]float64, len(t.ratios))
	for k, v := range t.ratios {
		out[k] = v
	}
	return out
}
