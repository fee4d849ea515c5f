// Package service implements the storefront use cases on top of the per-session
// commerce stores and the product catalog.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/commerce"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/sizeguide"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StorefrontService defines the shopper-facing operations.
// Every session-scoped method takes the session key resolved by the transport.
type StorefrontService interface {
	// Cart returns the session's cart with its derived total and count.
	Cart(ctx context.Context, session string) (*CartDto, error)

	// AddToCart adds one unit of a product variant at the current catalog price.
	// Returns ErrProductNotFound or ErrInvalidVariant.
	AddToCart(ctx context.Context, session string, item AddToCartDto) (*CartDto, error)

	// UpdateQuantity sets a line's quantity; zero or less removes it.
	UpdateQuantity(ctx context.Context, session string, item UpdateQuantityDto) (*CartDto, error)

	// RemoveFromCart deletes a line; an unknown line is a no-op.
	RemoveFromCart(ctx context.Context, session string, key LineKeyDto) (*CartDto, error)

	// ClearCart empties the cart.
	ClearCart(ctx context.Context, session string) (*CartDto, error)

	Wishlist(ctx context.Context, session string) (*WishlistDto, error)

	// AddToWishlist saves a product. Returns ErrProductNotFound for unknown ids.
	AddToWishlist(ctx context.Context, session string, productID string) (*WishlistDto, error)

	RemoveFromWishlist(ctx context.Context, session string, productID string) (*WishlistDto, error)

	IsInWishlist(ctx context.Context, session string, productID string) (bool, error)

	Filters(ctx context.Context, session string) (*FiltersDto, error)

	// SetFilters overwrites the fields present in patch. Returns ErrInvalidFilter
	// for a negative or inverted price range.
	SetFilters(ctx context.Context, session string, patch FiltersPatchDto) (*FiltersDto, error)

	ResetFilters(ctx context.Context, session string) (*FiltersDto, error)

	Panels(ctx context.Context, session string) (*PanelsDto, error)

	SetPanels(ctx context.Context, session string, patch PanelsPatchDto) (*PanelsDto, error)

	// Products lists the catalog through the session's filters in the given
	// order. An empty session browses with default filters; an unknown order
	// keeps catalog order.
	Products(ctx context.Context, session string, order string) ([]ProductDto, error)

	// Product returns one product. Returns ErrProductNotFound.
	Product(ctx context.Context, id string) (*ProductDto, error)

	Featured(ctx context.Context) ([]ProductDto, error)

	// Search matches name, category, materials and colors, ignoring case.
	Search(ctx context.Context, query string) ([]ProductDto, error)

	// Facets lists the values the shop filters can offer.
	Facets(ctx context.Context) (*FacetsDto, error)

	// RecommendSize maps measurements to a size. Returns ErrInvalidMeasurements.
	RecommendSize(ctx context.Context, m MeasurementsDto) (*sizeguide.Recommendation, error)
}

// Service implements StorefrontService.
type Service struct {
	catalog   *catalog.Catalog
	sessions  *Sessions
	mutations metric.Int64Counter
}

// NewService creates a Service over the catalog and the session registry.
func NewService(c *catalog.Catalog, sessions *Sessions) *Service {
	mutations, err := otel.Meter("github.com/abgdnv/storefront/internal/service").Int64Counter(
		"storefront.store.mutations",
		metric.WithDescription("Cart and wishlist mutations by operation"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Service{catalog: c, sessions: sessions, mutations: mutations}
}

// AddToCartDto represents a request to add one unit of a variant.
type AddToCartDto struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Size      string `json:"size"      validate:"required,max=16"`
	Color     string `json:"color"     validate:"required,max=64"`
}

// UpdateQuantityDto represents a quantity change for an existing line.
type UpdateQuantityDto struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Size      string `json:"size"      validate:"required,max=16"`
	Color     string `json:"color"     validate:"required,max=64"`
	Quantity  int    `json:"quantity"  validate:"max=999"`
}

// LineKeyDto identifies a cart line.
type LineKeyDto struct {
	ProductID string `validate:"required,max=64"`
	Size      string `validate:"required,max=16"`
	Color     string `validate:"required,max=64"`
}

type CartLineDto struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartDto is the cart with its derived aggregates.
type CartDto struct {
	Items []CartLineDto   `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type WishlistEntryDto struct {
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}

type WishlistDto struct {
	Items []WishlistEntryDto `json:"items"`
}

type PriceRangeDto struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type FiltersDto struct {
	Category   []string      `json:"category"`
	Size       []string      `json:"size"`
	Color      []string      `json:"color"`
	PriceRange PriceRangeDto `json:"priceRange"`
	InStock    bool          `json:"inStock"`
}

// FiltersPatchDto carries only the filter fields to change.
type FiltersPatchDto struct {
	Category   *[]string      `json:"category,omitempty"   validate:"omitempty,max=20,dive,required,max=64"`
	Size       *[]string      `json:"size,omitempty"       validate:"omitempty,max=20,dive,required,max=16"`
	Color      *[]string      `json:"color,omitempty"      validate:"omitempty,max=20,dive,required,max=64"`
	PriceRange *PriceRangeDto `json:"priceRange,omitempty"`
	InStock    *bool          `json:"inStock,omitempty"`
}

type PanelsDto struct {
	CartOpen       bool `json:"cartOpen"`
	SearchOpen     bool `json:"searchOpen"`
	MobileMenuOpen bool `json:"mobileMenuOpen"`
}

// PanelsPatchDto carries only the panel flags to change.
type PanelsPatchDto struct {
	CartOpen       *bool `json:"cartOpen,omitempty"`
	SearchOpen     *bool `json:"searchOpen,omitempty"`
	MobileMenuOpen *bool `json:"mobileMenuOpen,omitempty"`
}

type ProductDto struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	OnSale        bool             `json:"onSale"`
	Images        []string         `json:"images"`
	Colors        []string         `json:"colors"`
	Sizes         []string         `json:"sizes"`
	Materials     []string         `json:"materials"`
	Description   string           `json:"description"`
	Rating        float64          `json:"rating"`
	Reviews       int              `json:"reviews"`
	Category      string           `json:"category"`
	InStock       bool             `json:"inStock"`
	Featured      bool             `json:"featured"`
	New           bool             `json:"new"`
}

type FacetsDto struct {
	Categories []string        `json:"categories"`
	Sizes      []string        `json:"sizes"`
	Colors     []string        `json:"colors"`
	MinPrice   decimal.Decimal `json:"minPrice"`
	MaxPrice   decimal.Decimal `json:"maxPrice"`
}

// MeasurementsDto holds body measurements in centimeters.
type MeasurementsDto struct {
	Bust  float64 `json:"bust"  validate:"gt=0,lt=300"`
	Waist float64 `json:"waist" validate:"gt=0,lt=300"`
	Hips  float64 `json:"hips"  validate:"gt=0,lt=300"`
}

func (s *Service) store(ctx context.Context, session string) (*commerce.Store, error) {
	if session == "" {
		return nil, sferrors.ErrSessionRequired
	}
	return s.sessions.Get(ctx, session), nil
}

func (s *Service) count(ctx context.Context, operation string) {
	if s.mutations != nil {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}
}

// Cart returns the session's cart.
func (s *Service) Cart(ctx context.Context, session string) (*CartDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.toCartDto(st.Cart()), nil
}

// AddToCart records the variant at the catalog's current price.
// Returns ErrProductNotFound or ErrInvalidVariant.
func (s *Service) AddToCart(ctx context.Context, session string, item AddToCartDto) (*CartDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	p, ok := s.catalog.ByID(item.ProductID)
	if !ok {
		return nil, fmt.Errorf("failed to add product %s to cart: %w", item.ProductID, sferrors.ErrProductNotFound)
	}
	if !p.HasSize(item.Size) || !p.HasColor(item.Color) {
		return nil, fmt.Errorf("failed to add product %s (%s/%s) to cart: %w", item.ProductID, item.Size, item.Color, sferrors.ErrInvalidVariant)
	}
	st.AddToCart(ctx, p.ID, item.Size, item.Color, p.Price)
	s.count(ctx, "addToCart")
	return s.toCartDto(st.Cart()), nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, session string, item UpdateQuantityDto) (*CartDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	st.UpdateQuantity(ctx, item.ProductID, item.Size, item.Color, item.Quantity)
	s.count(ctx, "updateQuantity")
	return s.toCartDto(st.Cart()), nil
}

// RemoveFromCart deletes a line if present.
func (s *Service) RemoveFromCart(ctx context.Context, session string, key LineKeyDto) (*CartDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	st.RemoveFromCart(ctx, key.ProductID, key.Size, key.Color)
	s.count(ctx, "removeFromCart")
	return s.toCartDto(st.Cart()), nil
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context, session string) (*CartDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	st.ClearCart(ctx)
	s.count(ctx, "clearCart")
	return s.toCartDto(st.Cart()), nil
}

func (s *Service) Wishlist(ctx context.Context, session string) (*WishlistDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	return toWishlistDto(st.Wishlist()), nil
}

// AddToWishlist saves a catalog product; saving it twice keeps one entry.
func (s *Service) AddToWishlist(ctx context.Context, session string, productID string) (*WishlistDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	if _, ok := s.catalog.ByID(productID); !ok {
		return nil, fmt.Errorf("failed to add product %s to wishlist: %w", productID, sferrors.ErrProductNotFound)
	}
	st.AddToWishlist(ctx, productID)
	s.count(ctx, "addToWishlist")
	return toWishlistDto(st.Wishlist()), nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, session string, productID string) (*WishlistDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	st.RemoveFromWishlist(ctx, productID)
	s.count(ctx, "removeFromWishlist")
	return toWishlistDto(st.Wishlist()), nil
}

func (s *Service) IsInWishlist(ctx context.Context, session string, productID string) (bool, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return false, err
	}
	return st.IsInWishlist(productID), nil
}

func (s *Service) Filters(ctx context.Context, session string) (*FiltersDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	return toFiltersDto(st.Filters()), nil
}

// SetFilters merges patch into the session's filters.
// Returns ErrInvalidFilter for a negative or inverted price range.
func (s *Service) SetFilters(ctx context.Context, session string, patch FiltersPatchDto) (*FiltersDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	fp := commerce.FilterPatch{
		Category: patch.Category,
		Size:     patch.Size,
		Color:    patch.Color,
		InStock:  patch.InStock,
	}
	if pr := patch.PriceRange; pr != nil {
		if pr.Min.IsNegative() || pr.Max.LessThan(pr.Min) {
			return nil, fmt.Errorf("price range [%s, %s]: %w", pr.Min, pr.Max, sferrors.ErrInvalidFilter)
		}
		fp.PriceRange = &catalog.PriceRange{Min: pr.Min, Max: pr.Max}
	}
	st.SetFilters(fp)
	return toFiltersDto(st.Filters()), nil
}

func (s *Service) ResetFilters(ctx context.Context, session string) (*FiltersDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	st.ResetFilters()
	return toFiltersDto(st.Filters()), nil
}

func (s *Service) Panels(ctx context.Context, session string) (*PanelsDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	return toPanelsDto(st.Panels()), nil
}

// SetPanels assigns the flags present in patch.
func (s *Service) SetPanels(ctx context.Context, session string, patch PanelsPatchDto) (*PanelsDto, error) {
	st, err := s.store(ctx, session)
	if err != nil {
		return nil, err
	}
	if patch.CartOpen != nil {
		st.SetCartOpen(*patch.CartOpen)
	}
	if patch.SearchOpen != nil {
		st.SetSearchOpen(*patch.SearchOpen)
	}
	if patch.MobileMenuOpen != nil {
		st.SetMobileMenuOpen(*patch.MobileMenuOpen)
	}
	return toPanelsDto(st.Panels()), nil
}

// Products lists the catalog through the session's filters.
func (s *Service) Products(ctx context.Context, session string, order string) ([]ProductDto, error) {
	sortOrder := catalog.SortOrder(order)
	var products []catalog.Product
	if session == "" {
		products = catalog.Filter(s.catalog.All(), catalog.DefaultCriteria())
		catalog.Sort(products, sortOrder)
	} else {
		products = s.sessions.Get(ctx, session).Browse(s.catalog.All(), sortOrder)
	}
	return toProductDtos(products), nil
}

// Product returns one product. Returns ErrProductNotFound.
func (s *Service) Product(_ context.Context, id string) (*ProductDto, error) {
	p, ok := s.catalog.ByID(id)
	if !ok {
		return nil, fmt.Errorf("failed to fetch product %s: %w", id, sferrors.ErrProductNotFound)
	}
	dto := toProductDto(p)
	return &dto, nil
}

func (s *Service) Featured(_ context.Context) ([]ProductDto, error) {
	return toProductDtos(s.catalog.Featured()), nil
}

func (s *Service) Search(_ context.Context, query string) ([]ProductDto, error) {
	return toProductDtos(catalog.Search(s.catalog.All(), query)), nil
}

func (s *Service) Facets(_ context.Context) (*FacetsDto, error) {
	lo, hi := s.catalog.PriceBounds()
	return &FacetsDto{
		Categories: append([]string{catalog.AllCategories}, s.catalog.Categories()...),
		Sizes:      nonNil(s.catalog.Sizes()),
		Colors:     nonNil(s.catalog.Colors()),
		MinPrice:   lo,
		MaxPrice:   hi,
	}, nil
}

// RecommendSize maps measurements to a size. Returns ErrInvalidMeasurements.
func (s *Service) RecommendSize(_ context.Context, m MeasurementsDto) (*sizeguide.Recommendation, error) {
	rec, err := sizeguide.Recommend(sizeguide.Measurements{Bust: m.Bust, Waist: m.Waist, Hips: m.Hips})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// toCartDto enriches lines with the product name and first image when the
// product is still in the catalog.
func (s *Service) toCartDto(lines []commerce.CartLine) *CartDto {
	items := make([]CartLineDto, len(lines))
	for i, l := range lines {
		items[i] = CartLineDto{
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Subtotal:  l.Subtotal(),
		}
		if p, ok := s.catalog.ByID(l.ProductID); ok {
			items[i].Name = p.Name
			if len(p.Images) > 0 {
				items[i].Image = p.Images[0]
			}
		}
	}
	return &CartDto{Items: items, Total: commerce.Total(lines), Count: commerce.Count(lines)}
}

func toWishlistDto(entries []commerce.WishlistEntry) *WishlistDto {
	items := make([]WishlistEntryDto, len(entries))
	for i, e := range entries {
		items[i] = WishlistEntryDto{ProductID: e.ProductID, AddedAt: e.AddedAt}
	}
	return &WishlistDto{Items: items}
}

func toFiltersDto(c catalog.Criteria) *FiltersDto {
	return &FiltersDto{
		Category:   nonNil(c.Category),
		Size:       nonNil(c.Size),
		Color:      nonNil(c.Color),
		PriceRange: PriceRangeDto{Min: c.PriceRange.Min, Max: c.PriceRange.Max},
		InStock:    c.InStock,
	}
}

func toPanelsDto(p commerce.Panels) *PanelsDto {
	return &PanelsDto{CartOpen: p.CartOpen, SearchOpen: p.SearchOpen, MobileMenuOpen: p.MobileMenuOpen}
}

func toProductDto(p catalog.Product) ProductDto {
	return ProductDto{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		OnSale:        p.OnSale(),
		Images:        nonNil(p.Images),
		Colors:        nonNil(p.Colors),
		Sizes:         nonNil(p.Sizes),
		Materials:     nonNil(p.Materials),
		Description:   p.Description,
		Rating:        p.Rating,
		Reviews:       p.Reviews,
		Category:      p.Category,
		InStock:       p.InStock,
		Featured:      p.Featured,
		New:           p.New,
	}
}

func toProductDtos(products []catalog.Product) []ProductDto {
	out := make([]ProductDto, len(products))
	for i, p := range products {
		out[i] = toProductDto(p)
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
