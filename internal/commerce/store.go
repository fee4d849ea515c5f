package commerce

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/reporter"
	"github.com/abgdnv/storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// Storage keeps encoded snapshots under a key. Get returns ErrSnapshotNotFound
// when nothing was stored.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Store is the single owner of one shopper's commerce state. All mutation goes
// through its methods; every cart or wishlist change ends with a snapshot
// write. Operations never fail: persistence errors go to the reporter, the
// in-memory state stays authoritative and is marked unsaved until a later write
// succeeds.
type Store struct {
	mu       sync.RWMutex
	cart     []CartLine
	wishlist []WishlistEntry
	filters  catalog.Criteria
	panels   Panels

	key         string
	storage     Storage
	reporter    reporter.Reporter
	now         func() time.Time
	saveTimeout time.Duration
	unsaved     bool
}

// Option configures a Store.
type Option func(*Store)

// WithStorage persists snapshots to storage under key.
func WithStorage(storage Storage, key string) Option {
	return func(s *Store) {
		s.storage = storage
		s.key = key
	}
}

// WithReporter sets the collaborator that receives persistence failures.
func WithReporter(r reporter.Reporter) Option {
	return func(s *Store) { s.reporter = r }
}

// WithClock overrides the wishlist timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSaveTimeout bounds each snapshot write.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// New returns an empty store with default filters and closed panels.
func New(opts ...Option) *Store {
	s := &Store{
		cart:        []CartLine{},
		wishlist:    []WishlistEntry{},
		filters:     catalog.DefaultCriteria(),
		reporter:    reporter.Nop{},
		now:         time.Now,
		saveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a store rehydrated from its storage. A missing or unreadable
// snapshot yields empty collections.
func Open(ctx context.Context, opts ...Option) *Store {
	s := New(opts...)
	if s.storage == nil {
		return s
	}
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, sferrors.ErrSnapshotNotFound) {
			s.reporter.Report(ctx, fmt.Errorf("failed to load snapshot: %w", err), reporter.ErrorContext{
				Type: reporter.TypeStorage,
				Info: map[string]any{"operation": "load", "key": logger.RedactSession(s.key)},
			})
		}
		return s
	}
	snap, err := Decode(data)
	if err != nil {
		s.reporter.Report(ctx, err, reporter.ErrorContext{
			Type: reporter.TypeValidation,
			Info: map[string]any{"operation": "load", "key": logger.RedactSession(s.key)},
		})
		return s
	}
	s.cart = snap.Cart
	s.wishlist = snap.Wishlist
	return s
}

// AddToCart merges into the line with the same key, or appends a new line of
// quantity 1 at price. An existing line keeps its original price.
func (s *Store) AddToCart(ctx context.Context, productID, size, color string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey{ProductID: productID, Size: size, Color: color}
	if i := s.indexOf(key); i >= 0 {
		s.cart[i].Quantity++
	} else {
		s.cart = append(s.cart, CartLine{
			ProductID: productID,
			Size:      size,
			Color:     color,
			Quantity:  1,
			Price:     price,
		})
	}
	s.persist(ctx, "addToCart")
}

// RemoveFromCart deletes the matching line, if any.
func (s *Store) RemoveFromCart(ctx context.Context, productID, size, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commit(ctx, "removeFromCart", s.remove(LineKey{ProductID: productID, Size: size, Color: color}))
}

// UpdateQuantity sets the matching line's quantity. A quantity of zero or
// less removes the line; an unknown key changes nothing.
func (s *Store) UpdateQuantity(ctx context.Context, productID, size, color string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey{ProductID: productID, Size: size, Color: color}
	changed := false
	if quantity <= 0 {
		changed = s.remove(key)
	} else if i := s.indexOf(key); i >= 0 && s.cart[i].Quantity != quantity {
		s.cart[i].Quantity = quantity
		changed = true
	}
	s.commit(ctx, "updateQuantity", changed)
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := len(s.cart) > 0
	s.cart = []CartLine{}
	s.commit(ctx, "clearCart", changed)
}

// Cart returns a copy of the cart lines in insertion order.
func (s *Store) Cart() []CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cart)
}

// CartTotal is computed from the current lines on every call.
func (s *Store) CartTotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.cart)
}

// CartCount is the number of items across all lines.
func (s *Store) CartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Count(s.cart)
}

// AddToWishlist saves productID; saving it again is a no-op.
func (s *Store) AddToWishlist(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := !s.inWishlist(productID)
	if changed {
		s.wishlist = append(s.wishlist, WishlistEntry{ProductID: productID, AddedAt: s.now()})
	}
	s.commit(ctx, "addToWishlist", changed)
}

// RemoveFromWishlist drops productID, if present.
func (s *Store) RemoveFromWishlist(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.wishlist)
	s.wishlist = slices.DeleteFunc(s.wishlist, func(e WishlistEntry) bool { return e.ProductID == productID })
	s.commit(ctx, "removeFromWishlist", len(s.wishlist) != n)
}

// IsInWishlist reports membership.
func (s *Store) IsInWishlist(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inWishlist(productID)
}

// Wishlist returns a copy of the entries in insertion order.
func (s *Store) Wishlist() []WishlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.wishlist)
}

// Filters returns a copy of the current filter criteria.
func (s *Store) Filters() catalog.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetFilters overwrites only the fields present in patch.
func (s *Store) SetFilters(patch FilterPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Category != nil {
		s.filters.Category = nonNil(*patch.Category)
	}
	if patch.Size != nil {
		s.filters.Size = nonNil(*patch.Size)
	}
	if patch.Color != nil {
		s.filters.Color = nonNil(*patch.Color)
	}
	if patch.PriceRange != nil {
		s.filters.PriceRange = *patch.PriceRange
	}
	if patch.InStock != nil {
		s.filters.InStock = *patch.InStock
	}
}

// ResetFilters restores the default criteria.
func (s *Store) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = catalog.DefaultCriteria()
}

// Browse filters products with the current criteria, then applies order.
func (s *Store) Browse(products []catalog.Product, order catalog.SortOrder) []catalog.Product {
	filtered := catalog.Filter(products, s.Filters())
	catalog.Sort(filtered, order)
	return filtered
}

// Panels returns the open/closed state of the UI panels.
func (s *Store) Panels() Panels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panels
}

// SetCartOpen opens or closes the cart drawer.
func (s *Store) SetCartOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels.CartOpen = open
}

// SetSearchOpen opens or closes the search overlay.
func (s *Store) SetSearchOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels.SearchOpen = open
}

// SetMobileMenuOpen opens or closes the mobile navigation menu.
func (s *Store) SetMobileMenuOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels.MobileMenuOpen = open
}

// Snapshot returns the persisted subset of the state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Cart: slices.Clone(s.cart), Wishlist: slices.Clone(s.wishlist)}
}

// Unsaved reports whether the last snapshot write failed, leaving the
// in-memory cart and wishlist ahead of storage.
func (s *Store) Unsaved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsaved
}

// Flush retries the snapshot write of an unsaved store. It reports whether
// storage now holds the current state.
func (s *Store) Flush(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsaved {
		s.persist(ctx, "flush")
	}
	return !s.unsaved
}

func (s *Store) indexOf(key LineKey) int {
	return slices.IndexFunc(s.cart, func(l CartLine) bool { return l.Key() == key })
}

func (s *Store) remove(key LineKey) bool {
	n := len(s.cart)
	s.cart = slices.DeleteFunc(s.cart, func(l CartLine) bool { return l.Key() == key })
	return len(s.cart) != n
}

func (s *Store) inWishlist(productID string) bool {
	return slices.ContainsFunc(s.wishlist, func(e WishlistEntry) bool { return e.ProductID == productID })
}

// commit persists after a change. An unchanged store is still written while an
// earlier write is outstanding.
func (s *Store) commit(ctx context.Context, operation string, changed bool) {
	if changed || s.unsaved {
		s.persist(ctx, operation)
	}
}

// persist writes the cart and wishlist snapshot. Callers hold the write lock,
// so writes land in mutation order.
func (s *Store) persist(ctx context.Context, operation string) {
	if s.storage == nil {
		return
	}
	data, err := Encode(Snapshot{Cart: s.cart, Wishlist: s.wishlist})
	if err == nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
		err = s.storage.Put(saveCtx, s.key, data)
		cancel()
	}
	s.unsaved = err != nil
	if err != nil {
		s.reporter.Report(ctx, fmt.Errorf("failed to save snapshot: %w", err), reporter.ErrorContext{
			Type: reporter.TypeStorage,
			Info: map[string]any{"operation": operation, "key": logger.RedactSession(s.key)},
		})
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}
