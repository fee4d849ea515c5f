package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// AllCategories is the category label that matches every product.
const AllCategories = "All"

// Default price bounds of a fresh filter, matching the shop's price slider.
var (
	DefaultMinPrice = decimal.Zero
	DefaultMaxPrice = decimal.NewFromInt(1000)
)

// PriceRange is an inclusive [Min, Max] bound.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Contains reports whether price lies within the range, bounds included.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(r.Min) && price.LessThanOrEqual(r.Max)
}

// Criteria selects products. Empty sets place no restriction.
type Criteria struct {
	Category   []string   `json:"category"`
	Size       []string   `json:"size"`
	Color      []string   `json:"color"`
	PriceRange PriceRange `json:"priceRange"`
	InStock    bool       `json:"inStock"`
}

// DefaultCriteria returns criteria that let every in-range product through.
func DefaultCriteria() Criteria {
	return Criteria{
		Category:   []string{},
		Size:       []string{},
		Color:      []string{},
		PriceRange: PriceRange{Min: DefaultMinPrice, Max: DefaultMaxPrice},
	}
}

// Clone returns a deep copy so callers can't alias the selection slices.
func (c Criteria) Clone() Criteria {
	c.Category = slices.Clone(c.Category)
	c.Size = slices.Clone(c.Size)
	c.Color = slices.Clone(c.Color)
	return c
}

// Matches reports whether p passes every criterion.
func (c Criteria) Matches(p Product) bool {
	if len(c.Category) > 0 && !slices.Contains(c.Category, p.Category) && !slices.Contains(c.Category, AllCategories) {
		return false
	}
	if len(c.Size) > 0 && !intersects(p.Sizes, c.Size) {
		return false
	}
	if len(c.Color) > 0 && !intersects(p.Colors, c.Color) {
		return false
	}
	if !c.PriceRange.Contains(p.Price) {
		return false
	}
	return !c.InStock || p.InStock
}

// Filter returns the products that match c, preserving input order.
func Filter(products []Product, c Criteria) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if c.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func intersects(available, selected []string) bool {
	for _, v := range available {
		if slices.Contains(selected, v) {
			return true
		}
	}
	return false
}

// SortOrder names an ordering applied after filtering.
type SortOrder string

const (
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// Valid reports whether o is a known sort order.
func (o SortOrder) Valid() bool {
	switch o {
	case SortPriceAsc, SortPriceDesc, SortRating, SortNewest:
		return true
	}
	return false
}

// Sort orders products in place. Ties keep their relative order; an unknown order is a no-op.
func Sort(products []Product, order SortOrder) {
	switch order {
	case SortPriceAsc:
		slices.SortStableFunc(products, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(products, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortRating:
		slices.SortStableFunc(products, func(a, b Product) int { return cmp.Compare(b.Rating, a.Rating) })
	case SortNewest:
		slices.SortStableFunc(products, func(a, b Product) int { return cmp.Compare(rank(b.New), rank(a.New)) })
	}
}

func rank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Search returns products whose name, category, a material or a color contains query,
// ignoring case. A blank query matches nothing.
func Search(products []Product, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Product{}
	}
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }
	out := make([]Product, 0)
	for _, p := range products {
		if contains(p.Name) || contains(p.Category) ||
			slices.ContainsFunc(p.Materials, contains) ||
			slices.ContainsFunc(p.Colors, contains) {
			out = append(out, p)
		}
	}
	return out
}
