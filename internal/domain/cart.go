package domain

import "time"

// LineItem is one cart position. UnitPrice and Stock are snapshots taken
// when the product was added; the server recomputes authoritative prices at
// checkout time.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Stock     int     `json:"stock"`
}

// Subtotal is the display subtotal for this line.
func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// Cart holds line items in insertion order.
type Cart struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Subtotal derives Σ(unit price × quantity). It is never stored so it cannot
// drift from the items.
func (c Cart) Subtotal() float64 {
	var sum float64
	for _, li := range c.Items {
		sum += li.Subtotal()
	}
	return sum
}

// Find returns the index of the line for productID, or -1.
func (c Cart) Find(productID string) int {
	for i, li := range c.Items {
		if li.ProductID == productID {
			return i
		}
	}
	return -1
}

// ItemCount returns the number of distinct lines.
func (c Cart) ItemCount() int {
	return len(c.Items)
}
