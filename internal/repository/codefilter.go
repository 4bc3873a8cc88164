package repository

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
)

const (
	// Sized for the bulk-ingested one-time code space, far above the
	// hand-created coupon count.
	codeFilterCapacity = 1_000_000
	codeFilterFPR      = 0.001
)

var _ coupon.Repository = (*CodeFilter)(nil)

// CodeFilter fronts a coupon store with a bloom filter over known codes, so
// typo'd and guessed codes are rejected without a store round-trip. False
// positives fall through to the store, which stays authoritative; codes
// created after the last rebuild are invisible until the next one, which is
// why Rebuild runs on an interval.
type CodeFilter struct {
	next coupon.Repository

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter builds the initial filter from the store's active codes.
func NewCodeFilter(ctx context.Context, next coupon.Repository) (*CodeFilter, error) {
	f := &CodeFilter{next: next}
	if err := f.Rebuild(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Rebuild replaces the filter with one freshly populated from the store.
func (f *CodeFilter) Rebuild(ctx context.Context) error {
	active, err := f.next.ListActive(ctx)
	if err != nil {
		return err
	}

	filter := bloom.NewWithEstimates(codeFilterCapacity, codeFilterFPR)
	for _, c := range active {
		filter.AddString(c.Code)
	}

	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return nil
}

// RebuildEvery rebuilds the filter on the given interval until the context
// is cancelled. Rebuild failures are ignored; the previous filter keeps
// serving.
func (f *CodeFilter) RebuildEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = f.Rebuild(ctx)
		}
	}
}

// FindByCode short-circuits to coupon.ErrNotFound when the filter has
// definitely never seen the code.
func (f *CodeFilter) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	f.mu.RLock()
	known := f.filter.TestString(coupon.NormalizeCode(code))
	f.mu.RUnlock()

	if !known {
		return nil, coupon.ErrNotFound
	}
	return f.next.FindByCode(ctx, code)
}

// ListActive delegates to the underlying store.
func (f *CodeFilter) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	return f.next.ListActive(ctx)
}

// RecordRedemption delegates to the underlying store.
func (f *CodeFilter) RecordRedemption(ctx context.Context, code, customerID string, orderValue, discountGiven decimal.Decimal) error {
	return f.next.RecordRedemption(ctx, code, customerID, orderValue, discountGiven)
}
