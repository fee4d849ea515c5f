package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the persisted subset of the store: the cart and the wishlist.
// Filters and panels are never part of it.
type Snapshot struct {
	Cart     []CartLine      `json:"cart"`
	Wishlist []WishlistEntry `json:"wishlist"`
}

type lineRecord struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type wishRecord struct {
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}

type document struct {
	Cart     []lineRecord `json:"cart"`
	Wishlist []wishRecord `json:"wishlist"`
}

// envelope is the browser-side persisted layout, {"state": {...}, "version": n}.
type envelope struct {
	State *document `json:"state"`
}

type encodedLine struct {
	ProductID string      `json:"productId"`
	Size      string      `json:"size"`
	Color     string      `json:"color"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

type encodedDocument struct {
	Cart     []encodedLine   `json:"cart"`
	Wishlist []WishlistEntry `json:"wishlist"`
}

// Encode serializes snap. Prices are written as JSON numbers.
func Encode(snap Snapshot) ([]byte, error) {
	doc := encodedDocument{
		Cart:     make([]encodedLine, 0, len(snap.Cart)),
		Wishlist: snap.Wishlist,
	}
	if doc.Wishlist == nil {
		doc.Wishlist = []WishlistEntry{}
	}
	for _, l := range snap.Cart {
		doc.Cart = append(doc.Cart, encodedLine{
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Quantity:  l.Quantity,
			Price:     json.Number(l.Price.String()),
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot in either the plain or the enveloped layout and
// repairs what it can: lines with quantity below 1, blank ids or negative
// prices are dropped, repeated line keys are merged keeping the first price,
// and repeated wishlist ids keep their first entry.
func Decode(data []byte) (Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if doc.Cart == nil && doc.Wishlist == nil && bytes.Contains(data, []byte(`"state"`)) {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode snapshot envelope: %w", err)
		}
		if env.State != nil {
			doc = *env.State
		}
	}

	snap := Snapshot{Cart: []CartLine{}, Wishlist: []WishlistEntry{}}
	index := make(map[LineKey]int, len(doc.Cart))
	for _, r := range doc.Cart {
		if r.ProductID == "" || r.Quantity < 1 || r.Price.IsNegative() {
			continue
		}
		line := CartLine(r)
		if i, ok := index[line.Key()]; ok {
			snap.Cart[i].Quantity += line.Quantity
			continue
		}
		index[line.Key()] = len(snap.Cart)
		snap.Cart = append(snap.Cart, line)
	}

	seen := make(map[string]struct{}, len(doc.Wishlist))
	for _, r := range doc.Wishlist {
		if r.ProductID == "" {
			continue
		}
		if _, ok := seen[r.ProductID]; ok {
			continue
		}
		seen[r.ProductID] = struct{}{}
		snap.Wishlist = append(snap.Wishlist, WishlistEntry(r))
	}
	return snap, nil
}
