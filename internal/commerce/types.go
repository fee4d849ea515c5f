// Package commerce implements the shopper's commerce state: cart, wishlist,
// catalog filters and panel visibility, with snapshot persistence of the cart
// and wishlist.
package commerce

import (
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// LineKey identifies a cart line. Lines that differ in any component are distinct.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// CartLine is one product variant in the cart. Price is the unit price recorded
// when the line was created and is not refreshed from the catalog.
type CartLine struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Key returns the line's identity key.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Subtotal is price × quantity for the line.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// WishlistEntry marks a product as saved. At most one entry exists per product.
type WishlistEntry struct {
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}

// Panels holds the UI visibility flags. They are never persisted.
type Panels struct {
	CartOpen       bool `json:"cartOpen"`
	SearchOpen     bool `json:"searchOpen"`
	MobileMenuOpen bool `json:"mobileMenuOpen"`
}

// FilterPatch lists the filter fields to overwrite; nil fields keep their value.
type FilterPatch struct {
	Category   *[]string           `json:"category,omitempty"`
	Size       *[]string           `json:"size,omitempty"`
	Color      *[]string           `json:"color,omitempty"`
	PriceRange *catalog.PriceRange `json:"priceRange,omitempty"`
	InStock    *bool               `json:"inStock,omitempty"`
}

// Total sums price × quantity over lines.
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count sums quantities over lines; it counts items, not lines.
func Count(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
