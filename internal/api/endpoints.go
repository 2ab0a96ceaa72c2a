package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/nerakcos/storefront-go/pkg/types"
)

// ListCart fetches the authoritative cart contents.
func (c *Client) ListCart(ctx context.Context) ([]types.CartLineItem, error) {
	var items []types.CartLineItem
	if err := c.doJSON(ctx, "list_cart", http.MethodGet, "/cart", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem adds quantity units of a product to the cart.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) error {
	payload := types.AddItemRequest{ProductID: productID, Quantity: quantity}
	return c.doJSON(ctx, "add_item", http.MethodPost, "/cart", payload, nil)
}

// UpdateItem changes the quantity of an existing line item.
func (c *Client) UpdateItem(ctx context.Context, lineItemID string, quantity int) error {
	payload := types.UpdateItemRequest{Quantity: quantity}
	return c.doJSON(ctx, "update_item", http.MethodPut, "/cart/"+url.PathEscape(lineItemID), payload, nil)
}

// RemoveItem deletes a line item from the cart.
func (c *Client) RemoveItem(ctx context.Context, lineItemID string) error {
	return c.doJSON(ctx, "remove_item", http.MethodDelete, "/cart/"+url.PathEscape(lineItemID), nil, nil)
}

// Checkout converts the cart into an order and returns the order id.
func (c *Client) Checkout(ctx context.Context, shipping types.ShippingDetails, method types.PaymentMethod) (string, error) {
	payload := types.CheckoutRequest{Shipping: shipping, PaymentMethod: method}
	var resp types.CheckoutResponse
	if err := c.doJSON(ctx, "checkout", http.MethodPost, "/checkout", payload, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// Login exchanges credentials for a bearer token. Storing the token is the
// caller's concern; the session holds it for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	payload := types.LoginRequest{Email: email, Password: password}
	var resp types.LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/login", payload, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// UploadImage sends a file through the multipart path and returns its URL.
func (c *Client) UploadImage(ctx context.Context, filename string, file io.Reader) (string, error) {
	var resp types.UploadResponse
	if err := c.doMultipart(ctx, "upload_image", http.MethodPost, "/blog/upload", "image", filename, file, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
