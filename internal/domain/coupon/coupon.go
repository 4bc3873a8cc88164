package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a coupon code does not resolve to a record.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotValid is returned when a coupon is inactive, outside its validity
	// window, or has exhausted its total usage limit.
	ErrNotValid = errors.New("coupon is not valid")
	// ErrUsageLimitExceeded is returned when the requesting customer has
	// reached the coupon's per-user limit.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
	// ErrNotEligible is returned when the customer fails the coupon's
	// audience or first-order rules.
	ErrNotEligible = errors.New("customer is not eligible for this coupon")
	// ErrRedemptionConflict is returned when the store rejects a usage
	// increment because a limit was reached between validation and recording.
	ErrRedemptionConflict = errors.New("coupon redemption conflict")
	// ErrPaymentMethodNotAllowed is returned at redemption time when the
	// order's payment method is outside the coupon's allow-list.
	ErrPaymentMethodNotAllowed = errors.New("payment method not allowed for this coupon")
)

// CartValidationError carries every cart-level condition the coupon failed,
// so the caller can surface all of them at once.
type CartValidationError struct {
	Errors []string
}

func (e *CartValidationError) Error() string {
	return "cart validation failed: " + strings.Join(e.Errors, "; ")
}

// BenefitType discriminates the supported discount strategies.
type BenefitType string

const (
	BenefitPercentage   BenefitType = "percentage"
	BenefitFixedAmount  BenefitType = "fixed_amount"
	BenefitFreeShipping BenefitType = "free_shipping"
	BenefitBuyXGetY     BenefitType = "buy_x_get_y"
)

// Benefit is the tagged union of discount strategies. Each variant carries
// only the parameters its calculation needs.
type Benefit interface {
	Type() BenefitType
}

// Percentage takes Rate percent off the applicable amount, optionally capped
// at MaxDiscount. A non-positive MaxDiscount means no cap.
type Percentage struct {
	Rate        decimal.Decimal
	MaxDiscount decimal.Decimal
}

func (Percentage) Type() BenefitType { return BenefitPercentage }

// FixedAmount takes a flat Amount off, never more than the applicable amount.
type FixedAmount struct {
	Amount decimal.Decimal
}

func (FixedAmount) Type() BenefitType { return BenefitFixedAmount }

// FreeShipping refunds the cart's shipping cost.
type FreeShipping struct{}

func (FreeShipping) Type() BenefitType { return BenefitFreeShipping }

// BuyXGetY grants GetQuantity free units per BuyQuantity units purchased,
// consuming the cheapest applicable units first. GetProducts is carried from
// the admin screens but does not restrict consumption.
type BuyXGetY struct {
	BuyQuantity int
	GetQuantity int
	GetProducts []string
}

func (BuyXGetY) Type() BenefitType { return BenefitBuyXGetY }

// AudienceType discriminates the customer-targeting variants.
type AudienceType string

const (
	AudienceAll       AudienceType = "all"
	AudienceNew       AudienceType = "new_customers"
	AudienceReturning AudienceType = "returning_customers"
	AudienceLoyalty   AudienceType = "loyalty_tier"
	AudienceSpecific  AudienceType = "specific_users"
)

// Audience is the tagged union of customer-targeting rules.
type Audience interface {
	Type() AudienceType
}

// AllCustomers places no restriction on who may use the coupon.
type AllCustomers struct{}

func (AllCustomers) Type() AudienceType { return AudienceAll }

// NewCustomers restricts the coupon to accounts created within WithinDays.
type NewCustomers struct {
	WithinDays int
}

func (NewCustomers) Type() AudienceType { return AudienceNew }

// ReturningCustomers restricts the coupon to customers with at least two
// completed orders.
type ReturningCustomers struct{}

func (ReturningCustomers) Type() AudienceType { return AudienceReturning }

// LoyaltyTier restricts the coupon to customers on the named tier.
type LoyaltyTier struct {
	Tier string
}

func (LoyaltyTier) Type() AudienceType { return AudienceLoyalty }

// SpecificUsers restricts the coupon to an explicit customer allow-list.
type SpecificUsers struct {
	IDs map[string]struct{}
}

func (SpecificUsers) Type() AudienceType { return AudienceSpecific }

// UserUsage tracks one customer's redemptions of a coupon.
type UserUsage struct {
	Count    int
	LastUsed time.Time
}

// Usage holds a coupon's redemption counters. PerUser is keyed by customer
// identity for O(1) lookup.
type Usage struct {
	// TotalLimit caps redemptions across all customers; nil means unlimited.
	TotalLimit *int
	UsedCount  int
	// PerUserLimit caps redemptions per customer. Zero or negative is
	// treated as the default of one.
	PerUserLimit int
	PerUser      map[string]UserUsage
}

// Conditions are optional cart- and context-level requirements.
type Conditions struct {
	FirstOrderOnly bool
	// MinItemQuantity and MaxItemQuantity bound the total cart quantity.
	// Zero means unset.
	MinItemQuantity int
	MaxItemQuantity int
	// DaysOfWeek restricts redemption to the listed weekdays when non-empty.
	DaysOfWeek []time.Weekday
	// TimeStart and TimeEnd are inclusive "HH:MM" bounds compared
	// lexicographically against the evaluating clock. Both must be set for
	// the check to apply.
	TimeStart string
	TimeEnd   string
	// PaymentMethods is an allow-list enforced at redemption time.
	PaymentMethods []string
}

// Stats holds running aggregates updated only by usage recording.
type Stats struct {
	TotalUsage         int
	TotalDiscountGiven decimal.Decimal
	TotalRevenue       decimal.Decimal
	AverageOrderValue  decimal.Decimal
}

// Coupon is a discount rule with eligibility, validity window, and usage
// caps. It is read-mostly; only RecordUsage produces a changed copy.
type Coupon struct {
	Code        string
	Description string
	Benefit     Benefit
	Audience    Audience

	MinimumPurchase decimal.Decimal

	ApplicableProducts   []string
	ApplicableCategories []string
	ExcludeProducts      []string
	ExcludeCategories    []string

	ValidFrom time.Time
	ValidTo   time.Time
	// Timezone is informational. Date, weekday, and time-range checks use
	// the evaluating clock's instant, matching the reference behaviour.
	Timezone string

	Conditions Conditions
	Usage      Usage
	Stats      Stats

	Stackable bool
	Priority  int
	Active    bool
	AutoApply bool
}

// NormalizeCode upper-cases and trims a coupon code for lookup and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CurrentlyValid reports whether the coupon can be redeemed at all at the
// given instant: active, inside its validity window, and below its total
// usage limit.
func (c *Coupon) CurrentlyValid(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return false
	}
	if c.Usage.TotalLimit != nil && c.Usage.UsedCount >= *c.Usage.TotalLimit {
		return false
	}
	return true
}

// PerUserLimit returns the effective per-customer redemption cap.
func (c *Coupon) PerUserLimit() int {
	if c.Usage.PerUserLimit <= 0 {
		return 1
	}
	return c.Usage.PerUserLimit
}

// UsedBy returns how many times the given customer has redeemed the coupon.
func (c *Coupon) UsedBy(customerID string) int {
	return c.Usage.PerUser[customerID].Count
}

// Item is a cart line as seen by the engine. Subtotal is carried from the
// cart snapshot rather than recomputed, since the storefront may have
// applied per-line adjustments upstream.
type Item struct {
	ProductID  string
	CategoryID string
	Quantity   int
	Price      decimal.Decimal
	Subtotal   decimal.Decimal
}

// Cart is the snapshot the checkout flow hands to the engine.
type Cart struct {
	Items        []Item
	Total        decimal.Decimal
	ShippingCost decimal.Decimal
}

// TotalQuantity sums the quantities across all cart lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Repository provides lookup and redemption recording for coupons.
type Repository interface {
	// FindByCode resolves a coupon by its normalized code.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListActive returns every active coupon.
	ListActive(ctx context.Context) ([]Coupon, error)
	// RecordRedemption atomically increments the coupon's counters for the
	// given customer, refusing with ErrRedemptionConflict when the total or
	// per-user limit has been reached in the meantime.
	RecordRedemption(ctx context.Context, code, customerID string, orderValue, discountGiven decimal.Decimal) error
}

// OrderCounter reports a customer's completed (non-cancelled) order count,
// used by the first-order and returning-customer rules.
type OrderCounter interface {
	CountCompleted(ctx context.Context, customerID string) (int, error)
}

func (t BenefitType) String() string  { return string(t) }
func (t AudienceType) String() string { return string(t) }

// ParseBenefitType validates a stored benefit discriminator.
func ParseBenefitType(s string) (BenefitType, error) {
	switch t := BenefitType(s); t {
	case BenefitPercentage, BenefitFixedAmount, BenefitFreeShipping, BenefitBuyXGetY:
		return t, nil
	default:
		return "", errors.Errorf("unknown benefit type %q", s)
	}
}

// ParseAudienceType validates a stored audience discriminator.
func ParseAudienceType(s string) (AudienceType, error) {
	switch t := AudienceType(s); t {
	case AudienceAll, AudienceNew, AudienceReturning, AudienceLoyalty, AudienceSpecific:
		return t, nil
	default:
		return "", errors.Errorf("unknown audience type %q", s)
	}
}
