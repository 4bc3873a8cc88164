package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordUsage returns a copy of the coupon with its counters and stats
// advanced for one redemption by the given customer. The input is not
// modified.
//
// This operation is deliberately not idempotent: recording the same order
// twice double-counts. Callers must guarantee at-most-once invocation per
// confirmed order; at the persistence boundary Repository.RecordRedemption
// enforces the limits atomically.
func RecordUsage(c Coupon, customerID string, orderValue, discountGiven decimal.Decimal, now time.Time) Coupon {
	perUser := make(map[string]UserUsage, len(c.Usage.PerUser)+1)
	for id, u := range c.Usage.PerUser {
		perUser[id] = u
	}
	entry := perUser[customerID]
	entry.Count++
	entry.LastUsed = now
	perUser[customerID] = entry

	c.Usage.PerUser = perUser
	c.Usage.UsedCount++

	c.Stats.TotalUsage++
	c.Stats.TotalDiscountGiven = c.Stats.TotalDiscountGiven.Add(discountGiven)
	c.Stats.TotalRevenue = c.Stats.TotalRevenue.Add(orderValue)
	c.Stats.AverageOrderValue = c.Stats.TotalRevenue.
		Div(decimal.NewFromInt(int64(c.Stats.TotalUsage))).
		Round(2)

	return c
}
