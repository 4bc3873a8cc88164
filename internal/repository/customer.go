package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

var _ customer.Directory = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Directory backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByID resolves a customer identity.
// Returns customer.ErrNotFound when no such customer exists.
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, created_at, loyalty_tier FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.CreatedAt, &c.LoyaltyTier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find customer %q", id)
	}
	return &c, nil
}

// Upsert inserts or refreshes a customer profile. Used by seeding and by the
// storefront's account sync.
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customers (id, created_at, loyalty_tier) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET loyalty_tier = EXCLUDED.loyalty_tier`,
		c.ID, c.CreatedAt, c.LoyaltyTier,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert customer %q", c.ID)
	}
	return nil
}
