package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

func TestSelectAvailable(t *testing.T) {
	cust := &customer.Customer{ID: "u1", CreatedAt: fixedNow.Add(-24 * time.Hour)}

	mk := func(code string, priority int, mutate func(*Coupon)) Coupon {
		c := activeCoupon()
		c.Code = code
		c.Priority = priority
		if mutate != nil {
			mutate(&c)
		}
		return c
	}

	coupons := []Coupon{
		mk("LOW", 2, nil),
		mk("INACTIVE", 9, func(c *Coupon) { c.Active = false }),
		mk("HIGH", 8, nil),
		mk("PRICY", 5, func(c *Coupon) { c.MinimumPurchase = dec("500") }),
		mk("USED", 7, func(c *Coupon) {
			c.Usage.PerUser = map[string]UserUsage{"u1": {Count: 1}}
		}),
		mk("MID", 5, nil),
	}

	got := SelectAvailable(coupons, cust, 0, dec("100"), fixedNow)

	codes := make([]string, len(got))
	for i, c := range got {
		codes[i] = c.Code
	}
	assert.Equal(t, []string{"HIGH", "MID", "LOW"}, codes)
}

// Equal priorities keep their input order, so repeated selections are stable.
func TestSelectAvailable_StableTies(t *testing.T) {
	cust := &customer.Customer{ID: "u1", CreatedAt: fixedNow.Add(-24 * time.Hour)}

	var coupons []Coupon
	for _, code := range []string{"A", "B", "C", "D"} {
		c := activeCoupon()
		c.Code = code
		c.Priority = 5
		coupons = append(coupons, c)
	}

	got := SelectAvailable(coupons, cust, 0, dec("100"), fixedNow)

	require.Len(t, got, 4)
	for i, code := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, code, got[i].Code)
	}
}

func TestSelectAutoApply(t *testing.T) {
	cust := &customer.Customer{ID: "u1", CreatedAt: fixedNow.Add(-24 * time.Hour)}

	manual := activeCoupon()
	manual.Code = "MANUAL"
	manual.Priority = 9

	auto := activeCoupon()
	auto.Code = "AUTO"
	auto.AutoApply = true
	auto.Priority = 3

	got := SelectAutoApply([]Coupon{manual, auto}, cust, 0, dec("100"), fixedNow)

	require.Len(t, got, 1)
	assert.Equal(t, "AUTO", got[0].Code)
}
