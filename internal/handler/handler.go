// Package handler exposes the coupon engine over JSON HTTP: the checkout
// apply/redeem flow, coupon discovery for carts, and the admin stats
// surface.
package handler

import (
	"net/http"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
)

// Handler routes coupon evaluation requests to the coupon service.
type Handler struct {
	coupons  *coupon.Service
	security *Security
}

// NewHandler constructs a Handler. security guards the admin routes.
func NewHandler(coupons *coupon.Service, security *Security) *Handler {
	return &Handler{coupons: coupons, security: security}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/apply", h.applyCoupon)
	mux.HandleFunc("POST /api/coupons/redeem", h.redeemCoupon)
	mux.HandleFunc("GET /api/coupons/available", h.availableCoupons)
	mux.HandleFunc("GET /api/coupons/auto-apply", h.autoApplyCoupons)
	mux.Handle("GET /api/admin/coupons/{code}/stats", h.security.Require(http.HandlerFunc(h.couponStats)))
}
