package coupon

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount calculates the monetary discount the coupon yields for the
// cart snapshot. The result is never negative and never exceeds the
// applicable amount (the subtotal of lines surviving the allow/deny lists),
// regardless of benefit type.
func ComputeDiscount(c *Coupon, cart *Cart) decimal.Decimal {
	applicable := applicableItems(c, cart.Items)

	applicableAmount := decimal.Zero
	for _, item := range applicable {
		applicableAmount = applicableAmount.Add(item.Subtotal)
	}

	var amount decimal.Decimal
	switch b := c.Benefit.(type) {
	case Percentage:
		amount = applicableAmount.Mul(b.Rate).Div(hundred)
		if b.MaxDiscount.IsPositive() && amount.GreaterThan(b.MaxDiscount) {
			amount = b.MaxDiscount
		}
	case FixedAmount:
		amount = decimal.Min(b.Amount, applicableAmount)
	case FreeShipping:
		amount = cart.ShippingCost
	case BuyXGetY:
		amount = buyXGetYDiscount(b, applicable)
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, applicableAmount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// applicableItems filters cart lines through the coupon's allow-lists, then
// removes lines matching the deny-lists.
func applicableItems(c *Coupon, items []Item) []Item {
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if itemAllowed(c, item) && !itemExcluded(c, item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// buyXGetYDiscount gives away the cheapest units first: for every
// BuyQuantity units across the applicable lines the customer earns
// GetQuantity free units, and free units are consumed from lines in
// ascending unit-price order, splitting a line's quantity when needed.
func buyXGetYDiscount(b BuyXGetY, items []Item) decimal.Decimal {
	if b.BuyQuantity <= 0 || b.GetQuantity <= 0 {
		return decimal.Zero
	}

	totalQty := 0
	for _, item := range items {
		totalQty += item.Quantity
	}

	eligibleSets := totalQty / b.BuyQuantity
	freeUnits := eligibleSets * b.GetQuantity
	if freeUnits == 0 {
		return decimal.Zero
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})

	discount := decimal.Zero
	for _, item := range sorted {
		if freeUnits == 0 {
			break
		}
		units := item.Quantity
		if units > freeUnits {
			units = freeUnits
		}
		discount = discount.Add(item.Price.Mul(decimal.NewFromInt(int64(units))))
		freeUnits -= units
	}
	return discount
}
