package coupon

import (
	"time"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

// Customer-facing reasons returned by CanUse. Exactly one is reported: the
// first rule that fails.
const (
	ReasonNotValid          = "coupon is not valid"
	ReasonUsageLimitReached = "usage limit exceeded"
	ReasonNewCustomersOnly  = "coupon is only for new customers"
	ReasonReturningOnly     = "coupon is only for returning customers"
	ReasonWrongLoyaltyTier  = "coupon is not available for your loyalty tier"
	ReasonNotInAudience     = "coupon is not available for your account"
	ReasonFirstOrderOnly    = "coupon is only valid on your first order"
)

// Decision is the outcome of an eligibility check. Reason is empty when
// Eligible is true.
type Decision struct {
	Eligible bool
	Reason   string
}

func rejected(reason string) Decision {
	return Decision{Eligible: false, Reason: reason}
}

// CanUse decides whether the customer may redeem the coupon at the given
// instant. Rules run in a fixed order and short-circuit on the first
// failure: overall validity, per-user usage, audience, first-order-only.
// completedOrders is the customer's non-cancelled order count.
func CanUse(c *Coupon, cust *customer.Customer, completedOrders int, now time.Time) Decision {
	if !c.CurrentlyValid(now) {
		return rejected(ReasonNotValid)
	}

	if c.UsedBy(cust.ID) >= c.PerUserLimit() {
		return rejected(ReasonUsageLimitReached)
	}

	if d, ok := checkAudience(c.Audience, cust, completedOrders, now); !ok {
		return d
	}

	if c.Conditions.FirstOrderOnly && completedOrders >= 1 {
		return rejected(ReasonFirstOrderOnly)
	}

	return Decision{Eligible: true}
}

func checkAudience(a Audience, cust *customer.Customer, completedOrders int, now time.Time) (Decision, bool) {
	switch aud := a.(type) {
	case nil, AllCustomers:
		// No targeting configured.
	case NewCustomers:
		accountAgeDays := now.Sub(cust.CreatedAt).Hours() / 24
		if accountAgeDays > float64(aud.WithinDays) {
			return rejected(ReasonNewCustomersOnly), false
		}
	case ReturningCustomers:
		if completedOrders < 2 {
			return rejected(ReasonReturningOnly), false
		}
	case LoyaltyTier:
		if cust.LoyaltyTier != aud.Tier {
			return rejected(ReasonWrongLoyaltyTier), false
		}
	case SpecificUsers:
		if _, ok := aud.IDs[cust.ID]; !ok {
			return rejected(ReasonNotInAudience), false
		}
	default:
		return rejected(ReasonNotInAudience), false
	}
	return Decision{Eligible: true}, true
}
