package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/rahim2025/chottola-promo/internal/domain/coupon"
)

// evaluateRequest is the body of the apply and redeem endpoints.
type evaluateRequest struct {
	Code          string
	CustomerID    string
	PaymentMethod string
	Cart          coupon.Cart
}

func decodeEvaluateRequest(r *http.Request) (*evaluateRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	var req evaluateRequest
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			req.Code, err = d.Str()
			return err
		case "customerId":
			req.CustomerID, err = d.Str()
			return err
		case "paymentMethod":
			req.PaymentMethod, err = d.Str()
			return err
		case "cart":
			return decodeCart(d, &req.Cart)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	if req.Code == "" {
		return nil, errors.New("code is required")
	}
	if req.CustomerID == "" {
		return nil, errors.New("customerId is required")
	}
	return &req, nil
}

func decodeCart(d *jx.Decoder, cart *coupon.Cart) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				cart.Items = append(cart.Items, item)
				return nil
			})
		case "total":
			return decodeMoney(d, &cart.Total)
		case "shippingCost":
			return decodeMoney(d, &cart.ShippingCost)
		default:
			return d.Skip()
		}
	})
}

func decodeCartItem(d *jx.Decoder) (coupon.Item, error) {
	var item coupon.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			item.ProductID, err = d.Str()
			return err
		case "categoryId":
			item.CategoryID, err = d.Str()
			return err
		case "quantity":
			item.Quantity, err = d.Int()
			return err
		case "price":
			return decodeMoney(d, &item.Price)
		case "subtotal":
			return decodeMoney(d, &item.Subtotal)
		default:
			return d.Skip()
		}
	})
	return item, err
}

// decodeMoney accepts a JSON number or a numeric string, preserving decimal
// precision either way.
func decodeMoney(d *jx.Decoder, out *decimal.Decimal) error {
	var raw string
	switch d.Next() {
	case jx.Number:
		num, err := d.Num()
		if err != nil {
			return err
		}
		raw = num.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		raw = s
	default:
		return errors.New("expected number or string")
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.Wrapf(err, "parse amount %q", raw)
	}
	*out = v
	return nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeAppliedCoupon(e *jx.Encoder, a *coupon.Applied) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(a.Coupon.Code)
	e.FieldStart("description")
	e.Str(a.Coupon.Description)
	e.FieldStart("type")
	e.Str(a.Coupon.Benefit.Type().String())
	e.FieldStart("discount")
	encodeMoney(e, a.Discount)
	e.FieldStart("stackable")
	e.Bool(a.Coupon.Stackable)
	e.ObjEnd()
}

func encodeCouponSummary(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("type")
	e.Str(c.Benefit.Type().String())
	e.FieldStart("minimumPurchase")
	encodeMoney(e, c.MinimumPurchase)
	e.FieldStart("priority")
	e.Int(c.Priority)
	e.FieldStart("autoApply")
	e.Bool(c.AutoApply)
	e.FieldStart("stackable")
	e.Bool(c.Stackable)
	e.ObjEnd()
}

func encodeError(e *jx.Encoder, code int, message string, details []string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	if len(details) > 0 {
		e.FieldStart("errors")
		e.ArrStart()
		for _, d := range details {
			e.Str(d)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}
