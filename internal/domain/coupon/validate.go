package coupon

import (
	"fmt"
	"time"
)

// CartReport is the outcome of cart-level validation. Unlike eligibility,
// validation does not short-circuit: Errors lists every failed condition so
// the customer can fix all of them at once.
type CartReport struct {
	Valid  bool
	Errors []string
}

// ValidateCart checks every cart-level condition of the coupon against the
// snapshot, in a fixed order: minimum purchase, item-quantity bounds,
// allow-lists, deny-lists, weekday, time range.
func ValidateCart(c *Coupon, cart *Cart, now time.Time) CartReport {
	var errs []string

	if cart.Total.LessThan(c.MinimumPurchase) {
		errs = append(errs, fmt.Sprintf("minimum purchase of %s required", c.MinimumPurchase.StringFixed(2)))
	}

	totalQty := cart.TotalQuantity()
	if c.Conditions.MinItemQuantity > 0 && totalQty < c.Conditions.MinItemQuantity {
		errs = append(errs, fmt.Sprintf("at least %d items required", c.Conditions.MinItemQuantity))
	}
	if c.Conditions.MaxItemQuantity > 0 && totalQty > c.Conditions.MaxItemQuantity {
		errs = append(errs, fmt.Sprintf("at most %d items allowed", c.Conditions.MaxItemQuantity))
	}

	if len(c.ApplicableProducts) > 0 || len(c.ApplicableCategories) > 0 {
		if !anyItemAllowed(c, cart.Items) {
			errs = append(errs, "coupon is not applicable to items in cart")
		}
	}

	// A single excluded line invalidates the whole cart. The admin tooling
	// relies on this when fencing off sale items.
	if anyItemExcluded(c, cart.Items) {
		errs = append(errs, "cart contains items excluded from this coupon")
	}

	if len(c.Conditions.DaysOfWeek) > 0 && !weekdayIn(now.Weekday(), c.Conditions.DaysOfWeek) {
		errs = append(errs, "coupon is not valid today")
	}

	if c.Conditions.TimeStart != "" && c.Conditions.TimeEnd != "" {
		// "HH:MM" strings order lexicographically, matching the stored form.
		hhmm := now.Format("15:04")
		if hhmm < c.Conditions.TimeStart || hhmm > c.Conditions.TimeEnd {
			errs = append(errs, fmt.Sprintf("coupon is only valid between %s and %s", c.Conditions.TimeStart, c.Conditions.TimeEnd))
		}
	}

	return CartReport{Valid: len(errs) == 0, Errors: errs}
}

// itemAllowed reports whether the line passes the coupon's allow-lists.
// Empty allow-lists admit every line.
func itemAllowed(c *Coupon, item Item) bool {
	if len(c.ApplicableProducts) == 0 && len(c.ApplicableCategories) == 0 {
		return true
	}
	return contains(c.ApplicableProducts, item.ProductID) ||
		contains(c.ApplicableCategories, item.CategoryID)
}

// itemExcluded reports whether the line matches either deny-list.
func itemExcluded(c *Coupon, item Item) bool {
	return contains(c.ExcludeProducts, item.ProductID) ||
		contains(c.ExcludeCategories, item.CategoryID)
}

func anyItemAllowed(c *Coupon, items []Item) bool {
	for _, item := range items {
		if itemAllowed(c, item) {
			return true
		}
	}
	return false
}

func anyItemExcluded(c *Coupon, items []Item) bool {
	for _, item := range items {
		if itemExcluded(c, item) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func weekdayIn(day time.Weekday, days []time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
