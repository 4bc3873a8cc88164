package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
)

var _ coupon.OrderCounter = (*OrderRepository)(nil)

// OrderRepository implements coupon.OrderCounter backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CountCompleted returns the customer's non-cancelled order count, the input
// to the first-order and returning-customer rules.
func (r *OrderRepository) CountCompleted(ctx context.Context, customerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE customer_id = $1 AND status <> 'cancelled'`,
		customerID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "count orders for customer %q", customerID)
	}
	return count, nil
}

// Insert records an order row. Used by seeding; the storefront's order
// service owns the real order lifecycle.
func (r *OrderRepository) Insert(ctx context.Context, id, customerID, status string, total decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, customer_id, status, total) VALUES ($1, $2, $3, $4)`,
		id, customerID, status, total,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", id)
	}
	return nil
}
