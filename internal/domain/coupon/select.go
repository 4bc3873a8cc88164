package coupon

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

// SelectAvailable filters coupons down to those the customer could redeem
// against a cart of the given total: currently valid, minimum purchase met,
// and the customer passes the eligibility rules. The result is sorted by
// descending priority; equal priorities keep their input order.
func SelectAvailable(coupons []Coupon, cust *customer.Customer, completedOrders int, cartTotal decimal.Decimal, now time.Time) []Coupon {
	selected := make([]Coupon, 0, len(coupons))
	for _, c := range coupons {
		if !c.CurrentlyValid(now) {
			continue
		}
		if cartTotal.LessThan(c.MinimumPurchase) {
			continue
		}
		if d := CanUse(&c, cust, completedOrders, now); !d.Eligible {
			continue
		}
		selected = append(selected, c)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority > selected[j].Priority
	})
	return selected
}

// SelectAutoApply returns the available coupons the system applies without
// the customer entering a code.
func SelectAutoApply(coupons []Coupon, cust *customer.Customer, completedOrders int, cartTotal decimal.Decimal, now time.Time) []Coupon {
	available := SelectAvailable(coupons, cust, completedOrders, cartTotal, now)
	auto := available[:0]
	for _, c := range available {
		if c.AutoApply {
			auto = append(auto, c)
		}
	}
	return auto
}
