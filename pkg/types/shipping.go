package types

// ShippingDetails carries the contact and delivery fields collected at
// checkout. Everything except Notes is required.
type ShippingDetails struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required"`
	Address string  `json:"address" validate:"required"`
	City    string  `json:"city" validate:"required"`
	Country string  `json:"country" validate:"required"`
	Notes   *string `json:"notes,omitempty"`
}
