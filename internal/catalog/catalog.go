// Package catalog holds the read-only product reference data and the pure
// functions the storefront runs over it: filtering, sorting and search.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var defaultDocument []byte

// Product is a catalog item. The store never mutates it.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Images        []string
	Colors        []string
	Sizes         []string
	Materials     []string
	Description   string
	Rating        float64
	Reviews       int
	Category      string
	InStock       bool
	Featured      bool
	New           bool
}

// OnSale reports whether the product carries a struck-through original price.
func (p Product) OnSale() bool {
	return p.OriginalPrice != nil && p.OriginalPrice.GreaterThan(p.Price)
}

// HasSize reports whether size is one of the product's available sizes.
func (p Product) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

// HasColor reports whether color is one of the product's available colors.
func (p Product) HasColor(color string) bool {
	return slices.Contains(p.Colors, color)
}

// Catalog is an immutable, ordered product collection.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// New builds a Catalog from products, rejecting blank or duplicate ids and negative prices.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: product %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("catalog: product %q has a negative price", p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Load reads the catalog document at path, or the embedded default document when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultDocument
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

type document struct {
	Products []productRecord `yaml:"products"`
}

type productRecord struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Price         float64  `yaml:"price"`
	OriginalPrice *float64 `yaml:"originalPrice"`
	Images        []string `yaml:"images"`
	Colors        []string `yaml:"colors"`
	Sizes         []string `yaml:"sizes"`
	Materials     []string `yaml:"materials"`
	Description   string   `yaml:"description"`
	Rating        float64  `yaml:"rating"`
	Reviews       int      `yaml:"reviews"`
	Category      string   `yaml:"category"`
	InStock       bool     `yaml:"inStock"`
	Featured      bool     `yaml:"featured"`
	New           bool     `yaml:"new"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog document: %w", err)
	}
	products := make([]Product, 0, len(doc.Products))
	for _, r := range doc.Products {
		p := Product{
			ID:          r.ID,
			Name:        r.Name,
			Price:       decimal.NewFromFloat(r.Price),
			Images:      r.Images,
			Colors:      r.Colors,
			Sizes:       r.Sizes,
			Materials:   r.Materials,
			Description: r.Description,
			Rating:      r.Rating,
			Reviews:     r.Reviews,
			Category:    r.Category,
			InStock:     r.InStock,
			Featured:    r.Featured,
			New:         r.New,
		}
		if r.OriginalPrice != nil {
			op := decimal.NewFromFloat(*r.OriginalPrice)
			p.OriginalPrice = &op
		}
		products = append(products, p)
	}
	return New(products)
}

// All returns a copy of every product in catalog order.
func (c *Catalog) All() []Product {
	return slices.Clone(c.products)
}

// ByID looks a product up by id.
func (c *Catalog) ByID(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Featured returns the products flagged for the home page.
func (c *Catalog) Featured() []Product {
	var out []Product
	for _, p := range c.products {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	return distinct(c.products, func(p Product) []string { return []string{p.Category} })
}

// Sizes returns the distinct size labels in first-seen order.
func (c *Catalog) Sizes() []string {
	return distinct(c.products, func(p Product) []string { return p.Sizes })
}

// Colors returns the distinct color labels in first-seen order.
func (c *Catalog) Colors() []string {
	return distinct(c.products, func(p Product) []string { return p.Colors })
}

// PriceBounds returns the lowest and highest price in the catalog.
func (c *Catalog) PriceBounds() (decimal.Decimal, decimal.Decimal) {
	if len(c.products) == 0 {
		return decimal.Zero, decimal.Zero
	}
	lo, hi := c.products[0].Price, c.products[0].Price
	for _, p := range c.products[1:] {
		lo = decimal.Min(lo, p.Price)
		hi = decimal.Max(hi, p.Price)
	}
	return lo, hi
}

func distinct(products []Product, values func(Product) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		for _, v := range values(p) {
			if _, ok := seen[v]; ok || v == "" {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
