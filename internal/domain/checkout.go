package domain

import "time"

// SessionItem is a cart line enriched by the server at session creation.
type SessionItem struct {
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	ProductNameDE   string  `json:"product_name_de"`
	ProductNameEN   string  `json:"product_name_en"`
	ProductPrice    float64 `json:"product_price"`
	ProductImageURL string  `json:"product_image_url"`
	Subtotal        float64 `json:"subtotal"`
}

// CheckoutSession is the server-issued snapshot bound to a session token.
// All monetary fields are authoritative; the client must not recompute them.
type CheckoutSession struct {
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	ShippingAddress string        `json:"shipping_address"`
	ShippingCity    string        `json:"shipping_city"`
	ShippingPostal  string        `json:"shipping_postal"`
	ShippingCountry string        `json:"shipping_country"`
	Items           []SessionItem `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	ShippingCost    float64       `json:"shipping_cost"`
	DiscountAmount  float64       `json:"discount_amount"`
	TotalAmount     float64       `json:"total_amount"`
	CouponCode      string        `json:"coupon_code,omitempty"`
	IsDemo          bool          `json:"is_demo"`
	ExpiresAt       time.Time     `json:"expires_at,omitempty"`
}

// Expired reports whether the snapshot carries an expiry that has passed.
func (s CheckoutSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
