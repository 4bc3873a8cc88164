// Command seed-db populates a fresh database with demo coupons, customers,
// and an admin API key so the API can be exercised locally.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
	"github.com/rahim2025/chottola-promo/internal/domain/customer"
	"github.com/rahim2025/chottola-promo/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.Migrate(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCustomers(ctx, repository.NewCustomerRepository(pool), repository.NewOrderRepository(pool)); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCustomers(ctx context.Context, customers *repository.CustomerRepository, orders *repository.OrderRepository) error {
	slog.Info("seeding demo customers")

	now := time.Now().UTC()
	demo := []struct {
		c               customer.Customer
		completedOrders int
	}{
		{customer.Customer{ID: "cust-new", CreatedAt: now.AddDate(0, 0, -5)}, 0},
		{customer.Customer{ID: "cust-returning", CreatedAt: now.AddDate(-1, 0, 0)}, 4},
		{customer.Customer{ID: "cust-gold", CreatedAt: now.AddDate(-2, 0, 0), LoyaltyTier: "gold"}, 12},
	}

	for _, d := range demo {
		if err := customers.Upsert(ctx, &d.c); err != nil {
			return errors.Wrapf(err, "upsert customer %s", d.c.ID)
		}
		for range d.completedOrders {
			err := orders.Insert(ctx, uuid.NewString(), d.c.ID, "completed", decimal.NewFromInt(100))
			if err != nil {
				return errors.Wrapf(err, "insert order for %s", d.c.ID)
			}
		}
		slog.Info("seeded customer", slog.String("id", d.c.ID), slog.Int("orders", d.completedOrders))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding demo coupons")

	now := time.Now().UTC()
	limit50 := 50
	coupons := []coupon.Coupon{
		{
			Code:        "WELCOME10",
			Description: "10% off your first order",
			Benefit:     coupon.Percentage{Rate: decimal.NewFromInt(10), MaxDiscount: decimal.NewFromInt(50)},
			Audience:    coupon.NewCustomers{WithinDays: 30},
			Conditions:  coupon.Conditions{FirstOrderOnly: true},
			ValidFrom:   now,
			ValidTo:     now.AddDate(1, 0, 0),
			Active:      true,
			AutoApply:   true,
			Priority:    10,
		},
		{
			Code:            "COMEBACK25",
			Description:     "$25 off for returning customers",
			Benefit:         coupon.FixedAmount{Amount: decimal.NewFromInt(25)},
			Audience:        coupon.ReturningCustomers{},
			MinimumPurchase: decimal.NewFromInt(100),
			Usage:           coupon.Usage{TotalLimit: &limit50, PerUserLimit: 2},
			ValidFrom:       now,
			ValidTo:         now.AddDate(0, 3, 0),
			Active:          true,
			Priority:        5,
		},
		{
			Code:        "GOLDSHIP",
			Description: "Free shipping for gold tier",
			Benefit:     coupon.FreeShipping{},
			Audience:    coupon.LoyaltyTier{Tier: "gold"},
			ValidFrom:   now,
			ValidTo:     now.AddDate(1, 0, 0),
			Active:      true,
			AutoApply:   true,
		},
		{
			Code:        "WEEKEND3FOR2",
			Description: "Buy 2 get 1 free, weekends only",
			Benefit:     coupon.BuyXGetY{BuyQuantity: 2, GetQuantity: 1},
			Audience:    coupon.AllCustomers{},
			Conditions: coupon.Conditions{
				MinItemQuantity: 3,
				DaysOfWeek:      []time.Weekday{time.Saturday, time.Sunday},
			},
			ValidFrom: now,
			ValidTo:   now.AddDate(0, 6, 0),
			Active:    true,
		},
	}

	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		slog.Info("seeded coupon",
			slog.String("code", coupons[i].Code),
			slog.String("description", coupons[i].Description),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Insert(ctx, "admin", keyHash, "Admin seed key", []string{"coupon_stats"}); err != nil {
		return errors.Wrap(err, "insert admin API key")
	}

	slog.Info("seeded API key", slog.String("id", "admin"))
	return nil
}
