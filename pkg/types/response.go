package types

// Wire shapes shared between the API client and the reference server. The
// remote API signals failure with a non-2xx status and an `error` string.

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message   string `json:"message"`
	CartCount int    `json:"cart_count,omitempty"`
}

type CheckoutRequest struct {
	Shipping      ShippingDetails `json:"shipping"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

type CheckoutResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
