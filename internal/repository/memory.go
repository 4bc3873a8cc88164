package repository

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

var _ coupon.Repository = (*MemoryStore)(nil)

var (
	_ customer.Directory  = (*MemoryStore)(nil)
	_ coupon.OrderCounter = (*MemoryStore)(nil)
)

// MemoryStore is a mutex-guarded in-memory implementation of the engine's
// collaborator interfaces. It backs unit and handler tests and the
// concurrency checks around redemption recording; RecordRedemption applies
// the same conditional-increment semantics as the Postgres adapter.
type MemoryStore struct {
	mu          sync.Mutex
	coupons     map[string]coupon.Coupon
	customers   map[string]customer.Customer
	orderCounts map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons:     make(map[string]coupon.Coupon),
		customers:   make(map[string]customer.Customer),
		orderCounts: make(map[string]int),
	}
}

// PutCoupon stores a coupon under its normalized code.
func (s *MemoryStore) PutCoupon(c coupon.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Code = coupon.NormalizeCode(c.Code)
	s.coupons[c.Code] = c
}

// PutCustomer stores a customer profile.
func (s *MemoryStore) PutCustomer(c customer.Customer, completedOrders int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	s.orderCounts[c.ID] = completedOrders
}

// FindByCode implements coupon.Repository.
func (s *MemoryStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := copyCoupon(c)
	return &cp, nil
}

// ListActive implements coupon.Repository.
func (s *MemoryStore) ListActive(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]coupon.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		if c.Active {
			out = append(out, copyCoupon(c))
		}
	}
	return out, nil
}

// RecordRedemption implements coupon.Repository with the same
// check-then-increment critical section the Postgres adapter runs in a
// transaction. The store mutex is the per-coupon serialization scope.
func (s *MemoryStore) RecordRedemption(_ context.Context, code, customerID string, orderValue, discountGiven decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return coupon.ErrNotFound
	}

	if c.Usage.TotalLimit != nil && c.Usage.UsedCount >= *c.Usage.TotalLimit {
		return coupon.ErrRedemptionConflict
	}
	if c.UsedBy(customerID) >= c.PerUserLimit() {
		return coupon.ErrRedemptionConflict
	}

	s.coupons[c.Code] = coupon.RecordUsage(c, customerID, orderValue, discountGiven, time.Now())
	return nil
}

// FindByID implements customer.Directory.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

// CountCompleted implements coupon.OrderCounter.
func (s *MemoryStore) CountCompleted(_ context.Context, customerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderCounts[customerID], nil
}

// copyCoupon deep-copies the per-user usage map so callers cannot observe
// later mutations.
func copyCoupon(c coupon.Coupon) coupon.Coupon {
	if c.Usage.PerUser != nil {
		perUser := make(map[string]coupon.UserUsage, len(c.Usage.PerUser))
		for id, u := range c.Usage.PerUser {
			perUser[id] = u
		}
		c.Usage.PerUser = perUser
	}
	return c
}
