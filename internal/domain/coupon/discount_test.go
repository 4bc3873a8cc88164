package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(product, category string, qty int, price string) Item {
	p := dec(price)
	return Item{
		ProductID:  product,
		CategoryID: category,
		Quantity:   qty,
		Price:      p,
		Subtotal:   p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func cartOf(items ...Item) *Cart {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return &Cart{Items: items, Total: total}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		cart   *Cart
		want   string
	}{
		{
			name:   "percentage of full cart",
			coupon: Coupon{Benefit: Percentage{Rate: dec("10")}},
			cart:   cartOf(line("p1", "books", 2, "50")),
			want:   "10",
		},
		{
			name:   "percentage capped at max discount",
			coupon: Coupon{Benefit: Percentage{Rate: dec("20"), MaxDiscount: dec("50")}},
			cart:   cartOf(line("p1", "books", 1, "500")),
			want:   "50",
		},
		{
			name:   "percentage under cap is not clamped",
			coupon: Coupon{Benefit: Percentage{Rate: dec("20"), MaxDiscount: dec("50")}},
			cart:   cartOf(line("p1", "books", 1, "100")),
			want:   "20",
		},
		{
			name:   "fixed amount below subtotal",
			coupon: Coupon{Benefit: FixedAmount{Amount: dec("30")}},
			cart:   cartOf(line("p1", "books", 1, "100")),
			want:   "30",
		},
		{
			name:   "fixed amount capped at subtotal",
			coupon: Coupon{Benefit: FixedAmount{Amount: dec("30")}},
			cart:   cartOf(line("p1", "books", 1, "20")),
			want:   "20",
		},
		{
			name:   "free shipping refunds shipping cost",
			coupon: Coupon{Benefit: FreeShipping{}},
			cart: &Cart{
				Items:        []Item{line("p1", "books", 1, "100")},
				Total:        dec("100"),
				ShippingCost: dec("7.50"),
			},
			want: "7.5",
		},
		{
			name:   "free shipping with no shipping cost",
			coupon: Coupon{Benefit: FreeShipping{}},
			cart:   cartOf(line("p1", "books", 1, "100")),
			want:   "0",
		},
		{
			name: "buy two get one consumes cheapest units first",
			coupon: Coupon{
				Benefit: BuyXGetY{BuyQuantity: 2, GetQuantity: 1},
			},
			// qty=6 across lines, 3 eligible sets, 3 free units:
			// both units at 5, then one unit at 10.
			cart: cartOf(
				line("p1", "toys", 4, "10"),
				line("p2", "toys", 2, "5"),
			),
			want: "20",
		},
		{
			name: "buy x get y with too few units",
			coupon: Coupon{
				Benefit: BuyXGetY{BuyQuantity: 3, GetQuantity: 1},
			},
			cart: cartOf(line("p1", "toys", 2, "10")),
			want: "0",
		},
		{
			name: "allow-list limits the discount base",
			coupon: Coupon{
				Benefit:            Percentage{Rate: dec("50")},
				ApplicableProducts: []string{"p1"},
			},
			cart: cartOf(
				line("p1", "books", 1, "40"),
				line("p2", "toys", 1, "100"),
			),
			want: "20",
		},
		{
			name: "category allow-list matches lines",
			coupon: Coupon{
				Benefit:              Percentage{Rate: dec("10")},
				ApplicableCategories: []string{"books"},
			},
			cart: cartOf(
				line("p1", "books", 1, "40"),
				line("p2", "toys", 1, "100"),
			),
			want: "4",
		},
		{
			name: "deny-list removes lines from the base",
			coupon: Coupon{
				Benefit:         Percentage{Rate: dec("10")},
				ExcludeProducts: []string{"p2"},
			},
			cart: cartOf(
				line("p1", "books", 1, "40"),
				line("p2", "toys", 1, "100"),
			),
			want: "4",
		},
		{
			name: "deny-list wins over allow-list",
			coupon: Coupon{
				Benefit:              Percentage{Rate: dec("10")},
				ApplicableCategories: []string{"books"},
				ExcludeProducts:      []string{"p1"},
			},
			cart: cartOf(line("p1", "books", 1, "40")),
			want: "0",
		},
		{
			name:   "fixed amount never exceeds applicable base of empty cart",
			coupon: Coupon{Benefit: FixedAmount{Amount: dec("30")}},
			cart:   cartOf(),
			want:   "0",
		},
		{
			name:   "nil benefit yields nothing",
			coupon: Coupon{},
			cart:   cartOf(line("p1", "books", 1, "40")),
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(&tt.coupon, tt.cart)
			assert.True(t, dec(tt.want).Equal(got),
				"expected discount %s, got %s", tt.want, got)
		})
	}
}

// The discount is bounded by the applicable subtotal and never negative, for
// every benefit type.
func TestComputeDiscount_Bounds(t *testing.T) {
	cart := cartOf(
		line("p1", "books", 3, "19.99"),
		line("p2", "toys", 1, "4.25"),
		line("p3", "toys", 2, "0.99"),
	)
	cart.ShippingCost = dec("250")

	benefits := []Benefit{
		Percentage{Rate: dec("100")},
		Percentage{Rate: dec("35"), MaxDiscount: dec("2")},
		FixedAmount{Amount: dec("10000")},
		FreeShipping{},
		BuyXGetY{BuyQuantity: 1, GetQuantity: 5},
	}

	applicableAmount := cart.Total

	for _, b := range benefits {
		c := &Coupon{Benefit: b}
		got := ComputeDiscount(c, cart)
		assert.False(t, got.IsNegative(), "%s: negative discount %s", b.Type(), got)
		assert.True(t, got.LessThanOrEqual(applicableAmount),
			"%s: discount %s exceeds applicable amount %s", b.Type(), got, applicableAmount)
	}
}

// ComputeDiscount is pure: identical inputs give identical outputs.
func TestComputeDiscount_Pure(t *testing.T) {
	c := &Coupon{
		Benefit:            BuyXGetY{BuyQuantity: 2, GetQuantity: 1},
		ApplicableProducts: []string{"p1", "p2"},
	}
	cart := cartOf(
		line("p1", "toys", 4, "10"),
		line("p2", "toys", 2, "5"),
	)

	first := ComputeDiscount(c, cart)
	second := ComputeDiscount(c, cart)
	assert.True(t, first.Equal(second), "expected %s, got %s", first, second)
	// The input cart must not have been reordered by the cheapest-first sort.
	assert.Equal(t, "p1", cart.Items[0].ProductID)
}
