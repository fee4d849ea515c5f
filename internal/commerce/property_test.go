package commerce

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Property: n adds of one key leave one line with quantity n at the first price.
func TestRepeatedAddMerges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated add merges into one line", prop.ForAll(
		func(n int, cents []int64) bool {
			s := New()
			first := decimal.New(cents[0], -2)
			for i := 0; i < n; i++ {
				s.AddToCart(context.Background(), "p", "M", "Black", decimal.New(cents[i%len(cents)], -2))
			}
			cart := s.Cart()
			return len(cart) == 1 && cart[0].Quantity == n && cart[0].Price.Equal(first)
		},
		gen.IntRange(1, 60),
		gen.SliceOfN(5, gen.Int64Range(0, 100000)),
	))

	properties.TestingRun(t)
}

type op struct {
	kind     int
	product  int
	size     int
	quantity int
}

var genOp = gopter.CombineGens(
	gen.IntRange(0, 3),
	gen.IntRange(0, 3),
	gen.IntRange(0, 2),
	gen.IntRange(-2, 5),
).Map(func(v []any) op {
	return op{kind: v[0].(int), product: v[1].(int), size: v[2].(int), quantity: v[3].(int)}
})

// Property: any mutation sequence keeps keys unique, quantities positive and
// total and count consistent with the lines.
func TestCartInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	products := []string{"a", "b", "c", "d"}
	sizes := []string{"S", "M", "L"}

	properties.Property("cart invariants hold after any mutation sequence", prop.ForAll(
		func(ops []op) bool {
			ctx := context.Background()
			s := New()
			for _, o := range ops {
				p, sz := products[o.product], sizes[o.size]
				switch o.kind {
				case 0:
					s.AddToCart(ctx, p, sz, "Black", decimal.NewFromInt(int64(o.product+1)*10))
				case 1:
					s.RemoveFromCart(ctx, p, sz, "Black")
				case 2:
					s.UpdateQuantity(ctx, p, sz, "Black", o.quantity)
				case 3:
					if o.quantity == 5 {
						s.ClearCart(ctx)
					}
				}
			}
			cart := s.Cart()
			seen := map[LineKey]bool{}
			total := decimal.Zero
			count := 0
			for _, l := range cart {
				if seen[l.Key()] || l.Quantity < 1 {
					return false
				}
				seen[l.Key()] = true
				total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
				count += l.Quantity
			}
			return total.Equal(s.CartTotal()) && count == s.CartCount()
		},
		gen.SliceOf(genOp),
	))

	properties.Property("snapshot round trip preserves the cart", prop.ForAll(
		func(ops []op) bool {
			ctx := context.Background()
			s := New()
			for _, o := range ops {
				s.AddToCart(ctx, products[o.product], sizes[o.size], "Black", decimal.New(int64(o.quantity+3)*199, -2))
				if o.kind == 0 {
					s.AddToWishlist(ctx, products[o.product])
				}
			}
			data, err := Encode(s.Snapshot())
			if err != nil {
				return false
			}
			snap, err := Decode(data)
			if err != nil || len(snap.Cart) != len(s.Cart()) || len(snap.Wishlist) != len(s.Wishlist()) {
				return false
			}
			for i, l := range s.Cart() {
				got := snap.Cart[i]
				if got.Key() != l.Key() || got.Quantity != l.Quantity || !got.Price.Equal(l.Price) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.TestingRun(t)
}
