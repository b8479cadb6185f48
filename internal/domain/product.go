package domain

// ProductType identifies a credit product line.
type ProductType string

const (
	ProductPersonalLoan ProductType = "personal_loan"
	ProductCreditCard   ProductType = "credit_card"
	ProductFinancing    ProductType = "financing"
	ProductMicrocredit  ProductType = "microcredit"
)

// AllProducts lists the supported product types in display order.
func AllProducts() []ProductType {
	return []ProductType{
		ProductPersonalLoan,
		ProductCreditCard,
		ProductFinancing,
		ProductMicrocredit,
	}
}

// Valid reports whether the product type is one the engine knows.
func (p ProductType) Valid() bool {
	switch p {
	case ProductPersonalLoan, ProductCreditCard, ProductFinancing, ProductMicrocredit:
		return true
	}
	return false
}

// LimitGranularity returns the rounding unit for adjusted credit
// limits. Loan and financing limits move in steps of 1000, card limits
// in steps of 100. Microcredit limits are not rounded (zero
// granularity); only the absolute floor applies.
func (p ProductType) LimitGranularity() float64 {
	switch p {
	case ProductCreditCard:
		return 100
	case ProductMicrocredit:
		return 0
	}
	return 1000
}
