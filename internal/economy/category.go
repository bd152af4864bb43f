// Package economy provides the service vocabulary, work items, the settled-payment
// ledger, and the per-category market that prices work.
package economy

import "fmt"

// Category is the fixed service kind an actor specializes in.
type Category string

const (
	CategoryDataAnalysis   Category = "data-analysis"
	CategoryContentWriting Category = "content-writing"
	CategoryCodeReview     Category = "code-review"
	CategoryTranslation    Category = "translation"
	CategoryResearch       Category = "research"
	CategorySecurityAudit  Category = "security-audit"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryDataAnalysis,
	CategoryContentWriting,
	CategoryCodeReview,
	CategoryTranslation,
	CategoryResearch,
	CategorySecurityAudit,
}

// basePrices are the starting market prices in currency units.
var basePrices = map[Category]float64{
	CategoryDataAnalysis:   0.05,
	CategoryContentWriting: 0.03,
	CategoryCodeReview:     0.06,
	CategoryTranslation:    0.02,
	CategoryResearch:       0.04,
	CategorySecurityAudit:  0.08,
}

// BasePrice returns the starting market price for a category.
func BasePrice(c Category) float64 {
	return basePrices[c]
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	_, ok := basePrices[c]
	return ok
}

// Index returns the position of c in Categories, or -1.
func (c Category) Index() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return -1
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
