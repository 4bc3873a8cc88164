//go:build integration

package integration

import (
	"net/http"
	"testing"
)

const adminAPIKey = "integration-test-key"

func smallCart(total float64) cartRequest {
	return cartRequest{
		Items: []cartItemRequest{
			{ProductID: "p1", CategoryID: "books", Quantity: 1, Price: total, Subtotal: total},
		},
		Total: total,
	}
}

func TestApplyCoupon_NewCustomer(t *testing.T) {
	req := evaluateRequest{
		Code:       "WELCOME10",
		CustomerID: "cust-new",
		Cart:       smallCart(80),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	applied := decodeJSON[appliedResponse](t, resp)
	if applied.Code != "WELCOME10" {
		t.Errorf("code: got %q, want WELCOME10", applied.Code)
	}
	if applied.Type != "percentage" {
		t.Errorf("type: got %q, want percentage", applied.Type)
	}
	// 80.00 * 10% = 8.00
	if applied.Discount != 8 {
		t.Errorf("discount: got %v, want 8", applied.Discount)
	}
}

func TestApplyCoupon_LowercaseCode(t *testing.T) {
	req := evaluateRequest{
		Code:       "welcome10",
		CustomerID: "cust-new",
		Cart:       smallCart(80),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestApplyCoupon_UnknownCode(t *testing.T) {
	req := evaluateRequest{
		Code:       "NOSUCHCODE",
		CustomerID: "cust-new",
		Cart:       smallCart(80),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestApplyCoupon_WrongAudience(t *testing.T) {
	// WELCOME10 targets accounts created in the last 30 days.
	req := evaluateRequest{
		Code:       "WELCOME10",
		CustomerID: "cust-returning",
		Cart:       smallCart(80),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestApplyCoupon_MinimumPurchase(t *testing.T) {
	// COMEBACK25 requires a 100.00 cart.
	req := evaluateRequest{
		Code:       "COMEBACK25",
		CustomerID: "cust-returning",
		Cart:       smallCart(50),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if len(body.Errors) == 0 {
		t.Fatal("expected validation errors in response")
	}
	if body.Errors[0] != "minimum purchase of 100.00 required" {
		t.Errorf("unexpected first error: %q", body.Errors[0])
	}
}

func TestApplyCoupon_MinItemQuantity(t *testing.T) {
	// WEEKEND3FOR2 needs at least 3 items in the cart.
	req := evaluateRequest{
		Code:       "WEEKEND3FOR2",
		CustomerID: "cust-returning",
		Cart:       smallCart(30),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	found := false
	for _, msg := range body.Errors {
		if msg == "at least 3 items required" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected item-quantity error, got %v", body.Errors)
	}
}

func TestApplyCoupon_DoesNotConsumeUsage(t *testing.T) {
	req := evaluateRequest{
		Code:       "WELCOME10",
		CustomerID: "cust-new",
		Cart:       smallCart(80),
	}

	for i := 0; i < 3; i++ {
		resp := doPost(t, "/api/coupons/apply", req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("apply %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestApplyCoupon_MissingCode(t *testing.T) {
	req := evaluateRequest{
		CustomerID: "cust-new",
		Cart:       smallCart(80),
	}
	resp := doPost(t, "/api/coupons/apply", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAvailableCoupons(t *testing.T) {
	resp := doGet(t, "/api/coupons/available?customerId=cust-returning&cartTotal=150")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	coupons := decodeJSON[[]couponSummary](t, resp)
	if len(coupons) != 2 {
		t.Fatalf("expected 2 coupons, got %d: %v", len(coupons), coupons)
	}
	// Sorted by priority, highest first.
	if coupons[0].Code != "COMEBACK25" {
		t.Errorf("first coupon: got %q, want COMEBACK25", coupons[0].Code)
	}
	if coupons[1].Code != "WEEKEND3FOR2" {
		t.Errorf("second coupon: got %q, want WEEKEND3FOR2", coupons[1].Code)
	}
}

func TestAvailableCoupons_MissingCustomer(t *testing.T) {
	resp := doGet(t, "/api/coupons/available")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAutoApplyCoupons(t *testing.T) {
	resp := doGet(t, "/api/coupons/auto-apply?customerId=cust-gold&cartTotal=60")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	coupons := decodeJSON[[]couponSummary](t, resp)
	if len(coupons) != 1 {
		t.Fatalf("expected 1 coupon, got %d: %v", len(coupons), coupons)
	}
	if coupons[0].Code != "GOLDSHIP" {
		t.Errorf("coupon: got %q, want GOLDSHIP", coupons[0].Code)
	}
	if !coupons[0].AutoApply {
		t.Error("expected autoApply=true")
	}
}

// Redemption tests run after the read-only tests above; they consume
// COMEBACK25 usage for cust-gold (per-user limit 2).

func TestRedeemCoupon(t *testing.T) {
	req := evaluateRequest{
		Code:       "COMEBACK25",
		CustomerID: "cust-gold",
		Cart:       smallCart(150),
	}

	resp := doPost(t, "/api/coupons/redeem", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	applied := decodeJSON[appliedResponse](t, resp)
	if applied.Discount != 25 {
		t.Errorf("discount: got %v, want 25", applied.Discount)
	}
}

func TestRedeemCoupon_PerUserLimit(t *testing.T) {
	req := evaluateRequest{
		Code:       "COMEBACK25",
		CustomerID: "cust-gold",
		Cart:       smallCart(150),
	}

	// Second redemption is still within the per-user limit of 2.
	resp := doPost(t, "/api/coupons/redeem", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second redeem: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Third crosses it.
	resp = doPost(t, "/api/coupons/redeem", req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("third redeem: expected 403, got %d", resp.StatusCode)
	}
}

func TestCouponStats(t *testing.T) {
	resp := doGetWithKey(t, "/api/admin/coupons/COMEBACK25/stats", adminAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stats := decodeJSON[statsResponse](t, resp)
	if stats.Code != "COMEBACK25" {
		t.Errorf("code: got %q, want COMEBACK25", stats.Code)
	}
	// Two successful redemptions of a 150.00 cart with a 25.00 discount each.
	if stats.TotalUsage != 2 {
		t.Errorf("totalUsage: got %d, want 2", stats.TotalUsage)
	}
	if stats.UsedCount != 2 {
		t.Errorf("usedCount: got %d, want 2", stats.UsedCount)
	}
	if stats.TotalDiscountGiven != 50 {
		t.Errorf("totalDiscountGiven: got %v, want 50", stats.TotalDiscountGiven)
	}
	if stats.TotalRevenue != 300 {
		t.Errorf("totalRevenue: got %v, want 300", stats.TotalRevenue)
	}
	if stats.AverageOrderValue != 150 {
		t.Errorf("averageOrderValue: got %v, want 150", stats.AverageOrderValue)
	}
}

func TestCouponStats_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/admin/coupons/COMEBACK25/stats")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCouponStats_WrongKey(t *testing.T) {
	resp := doGetWithKey(t, "/api/admin/coupons/COMEBACK25/stats", "not-the-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
