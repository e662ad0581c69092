package domain

import "time"

// Order is the durable result of a completed checkout session. Created by
// the backend exactly once per session; the client only reads it.
type Order struct {
	ID              string        `json:"id"`
	TrackingNumber  string        `json:"tracking_number"`
	InvoiceNumber   string        `json:"invoice_number,omitempty"`
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	ShippingAddress string        `json:"shipping_address"`
	ShippingCity    string        `json:"shipping_city"`
	ShippingPostal  string        `json:"shipping_postal"`
	ShippingCountry string        `json:"shipping_country"`
	Items           []SessionItem `json:"item_details"`
	Subtotal        float64       `json:"subtotal"`
	ShippingCost    float64       `json:"shipping_cost"`
	DiscountAmount  float64       `json:"discount_amount"`
	TotalAmount     float64       `json:"total_amount"`
	Status          string        `json:"status"`
	PaymentStatus   string        `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at,omitempty"`
}

// Customer is the authenticated shopper profile.
type Customer struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Phone          string `json:"phone,omitempty"`
	DefaultAddress string `json:"default_address,omitempty"`
	DefaultCity    string `json:"default_city,omitempty"`
	DefaultPostal  string `json:"default_postal,omitempty"`
	DefaultCountry string `json:"default_country,omitempty"`
}
