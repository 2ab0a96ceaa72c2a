package types

import "github.com/shopspring/decimal"

// CartLineItem is one product-quantity pairing within the cart. Name, Image
// and Price are display snapshots taken by the server; Total is computed
// server-side and trusted as authoritative.
type CartLineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// QuantitySum returns the total quantity across line items.
func QuantitySum(items []CartLineItem) int {
	sum := 0
	for _, item := range items {
		sum += item.Quantity
	}
	return sum
}

// Subtotal sums the server-computed line totals.
func Subtotal(items []CartLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total)
	}
	return sum
}
