package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
	"github.com/rahim2025/chottola-promo/internal/domain/customer"
)

// applyCoupon previews a coupon against a cart snapshot without recording
// usage.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEvaluateRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	applied, err := h.coupons.Apply(r.Context(), req.Code, req.CustomerID, &req.Cart)
	if err != nil {
		writeCouponError(w, err)
		return
	}

	var e jx.Encoder
	encodeAppliedCoupon(&e, applied)
	writeJSON(w, http.StatusOK, &e)
}

// redeemCoupon evaluates and records a redemption; the order-confirmation
// path.
func (h *Handler) redeemCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEvaluateRequest(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	applied, err := h.coupons.Redeem(r.Context(), req.Code, req.CustomerID, req.PaymentMethod, &req.Cart)
	if err != nil {
		writeCouponError(w, err)
		return
	}

	var e jx.Encoder
	encodeAppliedCoupon(&e, applied)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) availableCoupons(w http.ResponseWriter, r *http.Request) {
	h.listCoupons(w, r, h.coupons.Available)
}

func (h *Handler) autoApplyCoupons(w http.ResponseWriter, r *http.Request) {
	h.listCoupons(w, r, h.coupons.AutoApply)
}

func (h *Handler) listCoupons(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, customerID string, cartTotal decimal.Decimal) ([]coupon.Coupon, error),
) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		writeBadRequest(w, errors.New("customerId is required"))
		return
	}

	cartTotal := decimal.Zero
	if raw := r.URL.Query().Get("cartTotal"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			writeBadRequest(w, errors.Wrap(err, "parse cartTotal"))
			return
		}
		cartTotal = v
	}

	coupons, err := list(r.Context(), customerID, cartTotal)
	if err != nil {
		writeCouponError(w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range coupons {
		encodeCouponSummary(&e, &coupons[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) couponStats(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		writeCouponError(w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("totalUsage")
	e.Int(c.Stats.TotalUsage)
	e.FieldStart("totalDiscountGiven")
	encodeMoney(&e, c.Stats.TotalDiscountGiven)
	e.FieldStart("totalRevenue")
	encodeMoney(&e, c.Stats.TotalRevenue)
	e.FieldStart("averageOrderValue")
	encodeMoney(&e, c.Stats.AverageOrderValue)
	e.FieldStart("usedCount")
	e.Int(c.Usage.UsedCount)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	var e jx.Encoder
	encodeError(&e, http.StatusBadRequest, err.Error(), nil)
	writeJSON(w, http.StatusBadRequest, &e)
}

// writeCouponError maps the engine's error taxonomy onto HTTP statuses.
func writeCouponError(w http.ResponseWriter, err error) {
	var (
		status  int
		message string
		details []string
	)

	var cvErr *coupon.CartValidationError
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		status, message = http.StatusNotFound, "invalid coupon code"
	case errors.Is(err, customer.ErrNotFound):
		status, message = http.StatusNotFound, "unknown customer"
	case errors.Is(err, coupon.ErrNotValid):
		status, message = http.StatusGone, "coupon is no longer valid"
	case errors.Is(err, coupon.ErrUsageLimitExceeded):
		status, message = http.StatusForbidden, "coupon usage limit exceeded"
	case errors.Is(err, coupon.ErrNotEligible):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, coupon.ErrPaymentMethodNotAllowed):
		status, message = http.StatusForbidden, err.Error()
	case errors.As(err, &cvErr):
		status, message = http.StatusUnprocessableEntity, "cart does not meet coupon conditions"
		details = cvErr.Errors
	case errors.Is(err, coupon.ErrRedemptionConflict):
		status, message = http.StatusConflict, "coupon is no longer available"
	default:
		status, message = http.StatusInternalServerError, "internal error"
	}

	var e jx.Encoder
	encodeError(&e, status, message, details)
	writeJSON(w, status, &e)
}
