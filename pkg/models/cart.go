package models

import "math"

// TaxRate is the flat sales tax applied on top of the cart subtotal.
const TaxRate = 0.10

// CartItem is one line of the cart broadcast by the cashier terminal.
// Price is in the smallest currency unit.
type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	ImageURL  string `json:"image_url,omitempty"`
}

func (i CartItem) LineTotal() int64 {
	return i.Price * i.Qty
}

// Totals is derived from the cart on the display side; the terminal never sends it.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// CalculateTotals sums the cart and applies TaxRate, rounding the tax half up
// to the nearest whole unit the same way the terminal does.
func CalculateTotals(items []CartItem) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}

	tax := int64(math.Floor(float64(subtotal)*TaxRate + 0.5))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// CartUpdate is the payload of a cart-update broadcast.
type CartUpdate struct {
	Cart []CartItem `json:"cart"`
}

// PaymentStart is the payload of a payment-start broadcast.
type PaymentStart struct {
	Method  string `json:"method"`
	QrisURL string `json:"qrisUrl,omitempty"`
}

// PaymentSuccess is the payload of a payment-success broadcast.
type PaymentSuccess struct {
	Change int64 `json:"change,omitempty"`
}
