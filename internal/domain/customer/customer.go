// Package customer holds the minimal customer profile the coupon engine
// needs for its audience rules.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a customer identity does not resolve.
var ErrNotFound = errors.New("customer not found")

// Customer is the profile slice relevant to coupon eligibility.
type Customer struct {
	ID          string
	CreatedAt   time.Time
	LoyaltyTier string
}

// Directory provides customer lookup by identity.
type Directory interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
}
