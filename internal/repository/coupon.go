package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
)

const (
	selectCouponSQL = `SELECT code, description, rule, minimum_purchase,
		valid_from, valid_to, timezone,
		total_limit, used_count, per_user_limit,
		stackable, priority, active, auto_apply,
		total_usage, total_discount_given, total_revenue, average_order_value
		FROM coupons`

	getCouponByCodeSQL = selectCouponSQL + ` WHERE code = UPPER($1)`

	listActiveCouponsSQL = selectCouponSQL + ` WHERE active = TRUE ORDER BY code`

	listRedemptionsSQL = `SELECT coupon_code, customer_id, count, last_used
		FROM coupon_redemptions WHERE coupon_code = ANY($1)`

	// The conditional increment is the compare-and-swap that keeps
	// used_count within total_limit under concurrent redemptions. Stats
	// advance in the same statement so a partially applied redemption can
	// never be observed.
	redeemCouponSQL = `UPDATE coupons SET
		used_count = used_count + 1,
		total_usage = total_usage + 1,
		total_discount_given = total_discount_given + $2,
		total_revenue = total_revenue + $3,
		average_order_value = round((total_revenue + $3) / (total_usage + 1), 2),
		updated_at = now()
		WHERE code = $1 AND active = TRUE
		AND (total_limit IS NULL OR used_count < total_limit)`

	redeemPerUserSQL = `INSERT INTO coupon_redemptions AS r (coupon_code, customer_id, count, last_used)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (coupon_code, customer_id)
		DO UPDATE SET count = r.count + 1, last_used = now()
		WHERE r.count < $3`

	upsertCouponSQL = `INSERT INTO coupons (code, description, rule, minimum_purchase,
		valid_from, valid_to, timezone, total_limit, per_user_limit,
		stackable, priority, active, auto_apply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO UPDATE SET
		description = EXCLUDED.description,
		rule = EXCLUDED.rule,
		minimum_purchase = EXCLUDED.minimum_purchase,
		valid_from = EXCLUDED.valid_from,
		valid_to = EXCLUDED.valid_to,
		timezone = EXCLUDED.timezone,
		total_limit = EXCLUDED.total_limit,
		per_user_limit = EXCLUDED.per_user_limit,
		stackable = EXCLUDED.stackable,
		priority = EXCLUDED.priority,
		active = EXCLUDED.active,
		auto_apply = EXCLUDED.auto_apply,
		updated_at = now()`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ruleDoc is the JSONB shape of the coupon's benefit, audience,
// applicability lists, and conditions. Field names mirror the storefront's
// original document schema so existing records load unchanged.
type ruleDoc struct {
	BenefitType string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MaxDiscount decimal.Decimal `json:"maxDiscount"`
	BuyQuantity int             `json:"buyQuantity,omitempty"`
	GetQuantity int             `json:"getQuantity,omitempty"`
	GetProducts []string        `json:"getProducts,omitempty"`

	AudienceType    string   `json:"targetCustomers"`
	NewCustomerDays int      `json:"newCustomerDays,omitempty"`
	LoyaltyTier     string   `json:"loyaltyTier,omitempty"`
	SpecificUsers   []string `json:"specificUsers,omitempty"`

	ApplicableProducts   []string `json:"applicableProducts,omitempty"`
	ApplicableCategories []string `json:"applicableCategories,omitempty"`
	ExcludeProducts      []string `json:"excludeProducts,omitempty"`
	ExcludeCategories    []string `json:"excludeCategories,omitempty"`

	FirstOrderOnly  bool     `json:"firstOrderOnly,omitempty"`
	MinItemQuantity int      `json:"minItemQuantity,omitempty"`
	MaxItemQuantity int      `json:"maxItemQuantity,omitempty"`
	DaysOfWeek      []int    `json:"dayOfWeek,omitempty"`
	TimeStart       string   `json:"timeStart,omitempty"`
	TimeEnd         string   `json:"timeEnd,omitempty"`
	PaymentMethods  []string `json:"paymentMethods,omitempty"`
}

// FindByCode looks up a coupon by its code (upper-cased in SQL) together
// with its per-customer redemption counters.
// Returns coupon.ErrNotFound when the code does not resolve.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	if err := r.attachRedemptions(ctx, []*coupon.Coupon{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive returns every active coupon with redemption counters attached.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}

	refs := make([]*coupon.Coupon, len(coupons))
	for i := range coupons {
		refs[i] = &coupons[i]
	}
	if err := r.attachRedemptions(ctx, refs); err != nil {
		return nil, err
	}
	return coupons, nil
}

// RecordRedemption advances the coupon's counters for one confirmed order.
// Both increments run in a single transaction; if either the total or the
// per-user limit has been reached in the meantime, nothing is written and
// coupon.ErrRedemptionConflict is returned.
func (r *CouponRepository) RecordRedemption(ctx context.Context, code, customerID string, orderValue, discountGiven decimal.Decimal) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin redemption tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	perUserLimit, err := r.perUserLimit(ctx, tx, code)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, redeemCouponSQL, code, discountGiven, orderValue)
	if err != nil {
		return errors.Wrapf(err, "increment usage for coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrRedemptionConflict
	}

	tag, err = tx.Exec(ctx, redeemPerUserSQL, code, customerID, perUserLimit)
	if err != nil {
		return errors.Wrapf(err, "increment per-user usage for coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrRedemptionConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit redemption tx")
	}
	return nil
}

// Upsert inserts or replaces a coupon definition. Counters and stats are
// never overwritten; they belong to RecordRedemption.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	doc, err := json.Marshal(ruleFromCoupon(c))
	if err != nil {
		return errors.Wrapf(err, "marshal rule for coupon %q", c.Code)
	}

	_, err = r.pool.Exec(ctx, upsertCouponSQL,
		coupon.NormalizeCode(c.Code), c.Description, doc, c.MinimumPurchase,
		c.ValidFrom, c.ValidTo, c.Timezone,
		c.Usage.TotalLimit, c.PerUserLimit(),
		c.Stackable, c.Priority, c.Active, c.AutoApply,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

func (r *CouponRepository) perUserLimit(ctx context.Context, tx pgx.Tx, code string) (int, error) {
	var limit int
	err := tx.QueryRow(ctx, `SELECT per_user_limit FROM coupons WHERE code = $1 FOR UPDATE`, code).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, coupon.ErrNotFound
		}
		return 0, errors.Wrapf(err, "lock coupon %q", code)
	}
	if limit <= 0 {
		limit = 1
	}
	return limit, nil
}

func (r *CouponRepository) attachRedemptions(ctx context.Context, coupons []*coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	codes := make([]string, len(coupons))
	byCode := make(map[string]*coupon.Coupon, len(coupons))
	for i, c := range coupons {
		codes[i] = c.Code
		byCode[c.Code] = c
	}

	rows, err := r.pool.Query(ctx, listRedemptionsSQL, codes)
	if err != nil {
		return errors.Wrap(err, "list redemptions")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code, customerID string
			count            int
			lastUsed         time.Time
		)
		if err := rows.Scan(&code, &customerID, &count, &lastUsed); err != nil {
			return errors.Wrap(err, "scan redemption")
		}
		c := byCode[code]
		if c.Usage.PerUser == nil {
			c.Usage.PerUser = make(map[string]coupon.UserUsage)
		}
		c.Usage.PerUser[customerID] = coupon.UserUsage{Count: count, LastUsed: lastUsed}
	}
	return errors.Wrap(rows.Err(), "iterate redemptions")
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		ruleRaw []byte
	)
	err := row.Scan(
		&c.Code, &c.Description, &ruleRaw, &c.MinimumPurchase,
		&c.ValidFrom, &c.ValidTo, &c.Timezone,
		&c.Usage.TotalLimit, &c.Usage.UsedCount, &c.Usage.PerUserLimit,
		&c.Stackable, &c.Priority, &c.Active, &c.AutoApply,
		&c.Stats.TotalUsage, &c.Stats.TotalDiscountGiven, &c.Stats.TotalRevenue, &c.Stats.AverageOrderValue,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	var doc ruleDoc
	if err := json.Unmarshal(ruleRaw, &doc); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "decode rule for coupon %q", c.Code)
	}
	if err := applyRule(&c, &doc); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "coupon %q", c.Code)
	}
	return c, nil
}

func applyRule(c *coupon.Coupon, doc *ruleDoc) error {
	benefitType, err := coupon.ParseBenefitType(doc.BenefitType)
	if err != nil {
		return err
	}
	switch benefitType {
	case coupon.BenefitPercentage:
		c.Benefit = coupon.Percentage{Rate: doc.Value, MaxDiscount: doc.MaxDiscount}
	case coupon.BenefitFixedAmount:
		c.Benefit = coupon.FixedAmount{Amount: doc.Value}
	case coupon.BenefitFreeShipping:
		c.Benefit = coupon.FreeShipping{}
	case coupon.BenefitBuyXGetY:
		c.Benefit = coupon.BuyXGetY{
			BuyQuantity: doc.BuyQuantity,
			GetQuantity: doc.GetQuantity,
			GetProducts: doc.GetProducts,
		}
	}

	audienceType := coupon.AudienceAll
	if doc.AudienceType != "" {
		audienceType, err = coupon.ParseAudienceType(doc.AudienceType)
		if err != nil {
			return err
		}
	}
	switch audienceType {
	case coupon.AudienceAll:
		c.Audience = coupon.AllCustomers{}
	case coupon.AudienceNew:
		c.Audience = coupon.NewCustomers{WithinDays: doc.NewCustomerDays}
	case coupon.AudienceReturning:
		c.Audience = coupon.ReturningCustomers{}
	case coupon.AudienceLoyalty:
		c.Audience = coupon.LoyaltyTier{Tier: doc.LoyaltyTier}
	case coupon.AudienceSpecific:
		ids := make(map[string]struct{}, len(doc.SpecificUsers))
		for _, id := range doc.SpecificUsers {
			ids[id] = struct{}{}
		}
		c.Audience = coupon.SpecificUsers{IDs: ids}
	}

	c.ApplicableProducts = doc.ApplicableProducts
	c.ApplicableCategories = doc.ApplicableCategories
	c.ExcludeProducts = doc.ExcludeProducts
	c.ExcludeCategories = doc.ExcludeCategories

	days := make([]time.Weekday, len(doc.DaysOfWeek))
	for i, d := range doc.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	c.Conditions = coupon.Conditions{
		FirstOrderOnly:  doc.FirstOrderOnly,
		MinItemQuantity: doc.MinItemQuantity,
		MaxItemQuantity: doc.MaxItemQuantity,
		DaysOfWeek:      days,
		TimeStart:       doc.TimeStart,
		TimeEnd:         doc.TimeEnd,
		PaymentMethods:  doc.PaymentMethods,
	}
	return nil
}

func ruleFromCoupon(c *coupon.Coupon) ruleDoc {
	doc := ruleDoc{
		ApplicableProducts:   c.ApplicableProducts,
		ApplicableCategories: c.ApplicableCategories,
		ExcludeProducts:      c.ExcludeProducts,
		ExcludeCategories:    c.ExcludeCategories,
		FirstOrderOnly:       c.Conditions.FirstOrderOnly,
		MinItemQuantity:      c.Conditions.MinItemQuantity,
		MaxItemQuantity:      c.Conditions.MaxItemQuantity,
		TimeStart:            c.Conditions.TimeStart,
		TimeEnd:              c.Conditions.TimeEnd,
		PaymentMethods:       c.Conditions.PaymentMethods,
	}

	for _, d := range c.Conditions.DaysOfWeek {
		doc.DaysOfWeek = append(doc.DaysOfWeek, int(d))
	}

	switch b := c.Benefit.(type) {
	case coupon.Percentage:
		doc.BenefitType = string(coupon.BenefitPercentage)
		doc.Value = b.Rate
		doc.MaxDiscount = b.MaxDiscount
	case coupon.FixedAmount:
		doc.BenefitType = string(coupon.BenefitFixedAmount)
		doc.Value = b.Amount
	case coupon.FreeShipping:
		doc.BenefitType = string(coupon.BenefitFreeShipping)
	case coupon.BuyXGetY:
		doc.BenefitType = string(coupon.BenefitBuyXGetY)
		doc.BuyQuantity = b.BuyQuantity
		doc.GetQuantity = b.GetQuantity
		doc.GetProducts = b.GetProducts
	}

	switch a := c.Audience.(type) {
	case nil, coupon.AllCustomers:
		doc.AudienceType = string(coupon.AudienceAll)
	case coupon.NewCustomers:
		doc.AudienceType = string(coupon.AudienceNew)
		doc.NewCustomerDays = a.WithinDays
	case coupon.ReturningCustomers:
		doc.AudienceType = string(coupon.AudienceReturning)
	case coupon.LoyaltyTier:
		doc.AudienceType = string(coupon.AudienceLoyalty)
		doc.LoyaltyTier = a.Tier
	case coupon.SpecificUsers:
		doc.AudienceType = string(coupon.AudienceSpecific)
		for id := range a.IDs {
			doc.SpecificUsers = append(doc.SpecificUsers, id)
		}
	}

	return doc
}
