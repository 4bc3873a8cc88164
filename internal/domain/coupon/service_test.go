package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

// --- Mock implementations ---

type mockCouponRepo struct {
	coupons map[string]*Coupon

	redeemErr    error
	redeemedCode string
	redeemedUser string
	redemptions  int
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) ListActive(_ context.Context) ([]Coupon, error) {
	out := make([]Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCouponRepo) RecordRedemption(_ context.Context, code, customerID string, _, _ decimal.Decimal) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.redeemedCode = code
	m.redeemedUser = customerID
	m.redemptions++
	return nil
}

type mockDirectory struct {
	customers map[string]*customer.Customer
}

func (m *mockDirectory) FindByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

type mockOrderCounter struct {
	counts map[string]int
	err    error
}

func (m *mockOrderCounter) CountCompleted(_ context.Context, customerID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[customerID], nil
}

// --- Helpers ---

func newTestService(repo *mockCouponRepo) *Service {
	svc := NewService(repo,
		&mockDirectory{customers: map[string]*customer.Customer{
			"u1": {ID: "u1", CreatedAt: fixedNow.Add(-30 * 24 * time.Hour), LoyaltyTier: "silver"},
		}},
		&mockOrderCounter{counts: map[string]int{"u1": 3}},
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func repoWith(coupons ...Coupon) *mockCouponRepo {
	m := &mockCouponRepo{coupons: make(map[string]*Coupon, len(coupons))}
	for i := range coupons {
		m.coupons[coupons[i].Code] = &coupons[i]
	}
	return m
}

// --- Tests ---

func TestService_Apply(t *testing.T) {
	svc := newTestService(repoWith(activeCoupon()))

	applied, err := svc.Apply(context.Background(), "save10", "u1", cartOf(line("p1", "books", 1, "100")))

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", applied.Coupon.Code)
	assert.True(t, dec("10").Equal(applied.Discount), "got %s", applied.Discount)
}

func TestService_Apply_UnknownCode(t *testing.T) {
	svc := newTestService(repoWith())

	_, err := svc.Apply(context.Background(), "BOGUS", "u1", cartOf(line("p1", "books", 1, "100")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Apply_ExpiredCoupon(t *testing.T) {
	c := activeCoupon()
	c.ValidTo = fixedNow.Add(-time.Hour)
	svc := newTestService(repoWith(c))

	_, err := svc.Apply(context.Background(), "SAVE10", "u1", cartOf(line("p1", "books", 1, "100")))
	require.ErrorIs(t, err, ErrNotValid)
}

func TestService_Apply_PerUserLimit(t *testing.T) {
	c := activeCoupon()
	c.Usage.PerUser = map[string]UserUsage{"u1": {Count: 1, LastUsed: fixedNow.Add(-time.Hour)}}
	svc := newTestService(repoWith(c))

	_, err := svc.Apply(context.Background(), "SAVE10", "u1", cartOf(line("p1", "books", 1, "100")))
	require.ErrorIs(t, err, ErrUsageLimitExceeded)
}

func TestService_Apply_NotEligible(t *testing.T) {
	c := activeCoupon()
	c.Audience = LoyaltyTier{Tier: "gold"}
	svc := newTestService(repoWith(c))

	_, err := svc.Apply(context.Background(), "SAVE10", "u1", cartOf(line("p1", "books", 1, "100")))
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestService_Apply_CartValidationAccumulates(t *testing.T) {
	c := activeCoupon()
	c.MinimumPurchase = dec("1000")
	c.Conditions.MinItemQuantity = 5
	svc := newTestService(repoWith(c))

	_, err := svc.Apply(context.Background(), "SAVE10", "u1", cartOf(line("p1", "books", 1, "100")))

	var cvErr *CartValidationError
	require.ErrorAs(t, err, &cvErr)
	assert.Len(t, cvErr.Errors, 2)
}

func TestService_Apply_DoesNotRecordUsage(t *testing.T) {
	repo := repoWith(activeCoupon())
	svc := newTestService(repo)

	_, err := svc.Apply(context.Background(), "SAVE10", "u1", cartOf(line("p1", "books", 1, "100")))

	require.NoError(t, err)
	assert.Zero(t, repo.redemptions)
}

func TestService_Redeem(t *testing.T) {
	repo := repoWith(activeCoupon())
	svc := newTestService(repo)

	applied, err := svc.Redeem(context.Background(), "SAVE10", "u1", "cash_on_delivery", cartOf(line("p1", "books", 1, "100")))

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", repo.redeemedCode)
	assert.Equal(t, "u1", repo.redeemedUser)
	assert.Equal(t, 1, applied.Coupon.Usage.UsedCount)
	assert.Equal(t, 1, applied.Coupon.Usage.PerUser["u1"].Count)
	assert.True(t, dec("10").Equal(applied.Coupon.Stats.TotalDiscountGiven))
}

func TestService_Redeem_PaymentMethodNotAllowed(t *testing.T) {
	c := activeCoupon()
	c.Conditions.PaymentMethods = []string{"card"}
	repo := repoWith(c)
	svc := newTestService(repo)

	_, err := svc.Redeem(context.Background(), "SAVE10", "u1", "cash_on_delivery", cartOf(line("p1", "books", 1, "100")))

	require.ErrorIs(t, err, ErrPaymentMethodNotAllowed)
	assert.Zero(t, repo.redemptions)
}

func TestService_Redeem_Conflict(t *testing.T) {
	repo := repoWith(activeCoupon())
	repo.redeemErr = ErrRedemptionConflict
	svc := newTestService(repo)

	_, err := svc.Redeem(context.Background(), "SAVE10", "u1", "card", cartOf(line("p1", "books", 1, "100")))
	require.ErrorIs(t, err, ErrRedemptionConflict)
}

func TestService_Redeem_StoreFailure(t *testing.T) {
	repo := repoWith(activeCoupon())
	repo.redeemErr = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.Redeem(context.Background(), "SAVE10", "u1", "card", cartOf(line("p1", "books", 1, "100")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record redemption")
}

func TestService_Available(t *testing.T) {
	high := activeCoupon()
	high.Code = "HIGH"
	high.Priority = 9

	low := activeCoupon()
	low.Code = "LOW"
	low.Priority = 1

	pricy := activeCoupon()
	pricy.Code = "PRICY"
	pricy.MinimumPurchase = dec("500")

	svc := newTestService(repoWith(high, low, pricy))

	got, err := svc.Available(context.Background(), "u1", dec("100"))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "HIGH", got[0].Code)
	assert.Equal(t, "LOW", got[1].Code)
}

func TestService_AutoApply(t *testing.T) {
	auto := activeCoupon()
	auto.Code = "AUTO"
	auto.AutoApply = true

	svc := newTestService(repoWith(activeCoupon(), auto))

	got, err := svc.AutoApply(context.Background(), "u1", dec("100"))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AUTO", got[0].Code)
}

func TestService_Stats_UnknownCode(t *testing.T) {
	svc := newTestService(repoWith())

	_, err := svc.Stats(context.Background(), "BOGUS")
	require.ErrorIs(t, err, ErrNotFound)
}
