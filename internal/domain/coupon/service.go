package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

// Applied is the outcome of a successful evaluation: the coupon that was
// applied and the discount it yields for the cart.
type Applied struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// Service orchestrates coupon evaluation and redemption over the injected
// collaborators. The evaluation itself is pure; the only mutation happens in
// Redeem, through the repository's atomic redemption recording.
type Service struct {
	coupons   Repository
	customers customer.Directory
	orders    OrderCounter
	now       func() time.Time
}

// NewService creates a Service with the required collaborators.
func NewService(coupons Repository, customers customer.Directory, orders OrderCounter) *Service {
	return &Service{
		coupons:   coupons,
		customers: customers,
		orders:    orders,
		now:       time.Now,
	}
}

// Apply evaluates a coupon code against a customer and cart snapshot without
// recording usage: the preview path for "enter coupon code" in checkout.
func (s *Service) Apply(ctx context.Context, code, customerID string, cart *Cart) (*Applied, error) {
	c, cust, completedOrders, err := s.load(ctx, code, customerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.evaluate(c, cust, completedOrders, cart, now); err != nil {
		return nil, err
	}

	return &Applied{Coupon: *c, Discount: ComputeDiscount(c, cart)}, nil
}

// Redeem evaluates the coupon like Apply, enforces the payment-method
// allow-list, and records the redemption atomically. When the store rejects
// the increment because a limit was reached since validation, the
// ErrRedemptionConflict is surfaced as-is; callers should re-validate rather
// than retry blindly.
func (s *Service) Redeem(ctx context.Context, code, customerID, paymentMethod string, cart *Cart) (*Applied, error) {
	c, cust, completedOrders, err := s.load(ctx, code, customerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.evaluate(c, cust, completedOrders, cart, now); err != nil {
		return nil, err
	}

	if len(c.Conditions.PaymentMethods) > 0 && !contains(c.Conditions.PaymentMethods, paymentMethod) {
		return nil, ErrPaymentMethodNotAllowed
	}

	discount := ComputeDiscount(c, cart)
	if err := s.coupons.RecordRedemption(ctx, c.Code, customerID, cart.Total, discount); err != nil {
		if errors.Is(err, ErrRedemptionConflict) {
			return nil, err
		}
		return nil, errors.Wrap(err, "record redemption")
	}

	return &Applied{
		Coupon:   RecordUsage(*c, customerID, cart.Total, discount, now),
		Discount: discount,
	}, nil
}

// Available lists the coupons the customer could redeem against the given
// cart total, best priority first.
func (s *Service) Available(ctx context.Context, customerID string, cartTotal decimal.Decimal) ([]Coupon, error) {
	coupons, cust, completedOrders, err := s.loadActive(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return SelectAvailable(coupons, cust, completedOrders, cartTotal, s.now()), nil
}

// AutoApply lists the coupons the system applies without a code.
func (s *Service) AutoApply(ctx context.Context, customerID string, cartTotal decimal.Decimal) ([]Coupon, error) {
	coupons, cust, completedOrders, err := s.loadActive(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return SelectAutoApply(coupons, cust, completedOrders, cartTotal, s.now()), nil
}

// Stats returns the coupon's usage aggregates for admin reporting.
func (s *Service) Stats(ctx context.Context, code string) (*Coupon, error) {
	c, err := s.coupons.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, code, customerID string) (*Coupon, *customer.Customer, int, error) {
	c, err := s.coupons.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, 0, ErrNotFound
		}
		return nil, nil, 0, errors.Wrap(err, "lookup coupon")
	}

	cust, completedOrders, err := s.customerContext(ctx, customerID)
	if err != nil {
		return nil, nil, 0, err
	}
	return c, cust, completedOrders, nil
}

func (s *Service) loadActive(ctx context.Context, customerID string) ([]Coupon, *customer.Customer, int, error) {
	coupons, err := s.coupons.ListActive(ctx)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "list active coupons")
	}

	cust, completedOrders, err := s.customerContext(ctx, customerID)
	if err != nil {
		return nil, nil, 0, err
	}
	return coupons, cust, completedOrders, nil
}

func (s *Service) customerContext(ctx context.Context, customerID string) (*customer.Customer, int, error) {
	cust, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "lookup customer")
	}

	completedOrders, err := s.orders.CountCompleted(ctx, customerID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count completed orders")
	}
	return cust, completedOrders, nil
}

// evaluate runs eligibility and cart validation, mapping the outcomes onto
// the sentinel error taxonomy.
func (s *Service) evaluate(c *Coupon, cust *customer.Customer, completedOrders int, cart *Cart, now time.Time) error {
	if d := CanUse(c, cust, completedOrders, now); !d.Eligible {
		switch d.Reason {
		case ReasonNotValid:
			return ErrNotValid
		case ReasonUsageLimitReached:
			return ErrUsageLimitExceeded
		default:
			return errors.Wrap(ErrNotEligible, d.Reason)
		}
	}

	if report := ValidateCart(c, cart, now); !report.Valid {
		return &CartValidationError{Errors: report.Errors}
	}
	return nil
}
