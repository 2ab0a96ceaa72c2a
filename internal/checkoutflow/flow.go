// Package checkoutflow drives order placement: guards entry while the cart
// is empty, validates the shipping draft, submits through the cart store, and
// tracks the submission state machine.
package checkoutflow

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	pkgerrors "github.com/nerakcos/storefront-go/pkg/errors"
	"github.com/nerakcos/storefront-go/pkg/types"
)

type SubmissionStatus string

const (
	StatusIdle       SubmissionStatus = "idle"
	StatusSubmitting SubmissionStatus = "submitting"
	StatusSucceeded  SubmissionStatus = "succeeded"
	StatusFailed     SubmissionStatus = "failed"
)

// RouteCart is where an empty-cart visitor is sent instead of checkout.
const RouteCart = "/cart"

// RouteOrderSuccess is the confirmation view for a placed order.
func RouteOrderSuccess(orderID string) string {
	return "/order-success?order_id=" + url.QueryEscape(orderID)
}

var (
	errCartRequired      = errors.New("checkout cart source is required")
	errNavigatorRequired = errors.New("checkout navigator is required")
	errSubmitInFlight    = errors.New("submission already in flight")
	errNoPendingRedirect = errors.New("no redirect confirmation pending")
)

// cartSource is the slice of the cart store the flow consumes.
type cartSource interface {
	Items() []types.CartLineItem
	Count() int
	Checkout(ctx context.Context, shipping types.ShippingDetails, method types.PaymentMethod) (string, error)
}

// Navigator receives route changes; the presentation layer implements it.
type Navigator interface {
	NavigateTo(route string)
}

// Draft is the view-local checkout input, never shared state.
type Draft struct {
	Shipping      types.ShippingDetails
	PaymentMethod types.PaymentMethod
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate reports every problem with the draft, not just the first.
func (d Draft) Validate() error {
	var errs []error
	if !d.PaymentMethod.Valid() {
		errs = append(errs, pkgerrors.New(pkgerrors.CodeValidation, "payment_method is invalid"))
	}
	if err := validate.Struct(d.Shipping); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, pkgerrors.New(pkgerrors.CodeValidation, fe.Field()+" "+validationMessage(fe)))
			}
		} else {
			errs = append(errs, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping details invalid"))
		}
	}
	return multierr.Combine(errs...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}

// Flow is one checkout attempt's state machine. Succeeded is terminal; build
// a new Flow for the next order.
type Flow struct {
	cart        cartSource
	nav         Navigator
	shippingFee decimal.Decimal

	mu              sync.Mutex
	status          SubmissionStatus
	orderID         string
	lastError       string
	pendingRedirect bool
}

// NewFlow builds a checkout flow with the configured flat shipping fee.
func NewFlow(cart cartSource, nav Navigator, shippingFee decimal.Decimal) (*Flow, error) {
	if cart == nil {
		return nil, errCartRequired
	}
	if nav == nil {
		return nil, errNavigatorRequired
	}
	return &Flow{
		cart:        cart,
		nav:         nav,
		shippingFee: shippingFee,
		status:      StatusIdle,
	}, nil
}

func (f *Flow) Status() SubmissionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// OrderID is set once the flow succeeds.
func (f *Flow) OrderID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderID
}

// LastError holds the message from the most recent failed submission.
func (f *Flow) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// AcknowledgeError hands the failure message to the view and returns the
// flow to idle so the form re-enables for a retry.
func (f *Flow) AcknowledgeError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusFailed {
		return ""
	}
	f.status = StatusIdle
	return f.lastError
}

// Guard runs on every render of the checkout view: an empty cart redirects
// away entirely. Returns true when checkout may proceed.
func (f *Flow) Guard() bool {
	if f.cart.Count() == 0 {
		f.nav.NavigateTo(RouteCart)
		return false
	}
	return true
}

// Subtotal sums the server-computed line totals for display. The server
// recomputes authoritatively at order creation.
func (f *Flow) Subtotal() decimal.Decimal {
	return types.Subtotal(f.cart.Items())
}

// GrandTotal is subtotal plus the flat shipping fee.
func (f *Flow) GrandTotal() decimal.Decimal {
	return f.Subtotal().Add(f.shippingFee)
}

// Submit places the order. Card and bank-transfer methods settle with the
// store call; the redirect method stays submitting until ConfirmRedirect is
// invoked by the external callback. On failure the error propagates so the
// view stays put; the status moves to failed and returns to idle once the
// view acknowledges the message.
func (f *Flow) Submit(ctx context.Context, draft Draft) error {
	if !f.Guard() {
		return nil
	}

	f.mu.Lock()
	if f.status == StatusSubmitting || f.status == StatusSucceeded {
		f.mu.Unlock()
		return errSubmitInFlight
	}
	f.mu.Unlock()

	if err := draft.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	f.status = StatusSubmitting
	f.lastError = ""
	f.mu.Unlock()

	orderID, err := f.cart.Checkout(ctx, draft.Shipping, draft.PaymentMethod)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.lastError = pkgerrors.UserMessage(err, "Checkout failed")
		f.status = StatusFailed
		return err
	}

	f.orderID = orderID
	if draft.PaymentMethod == types.PaymentMethodRedirect {
		f.pendingRedirect = true
		return nil
	}

	f.status = StatusSucceeded
	f.nav.NavigateTo(RouteOrderSuccess(orderID))
	return nil
}

// ConfirmRedirect completes a redirect-method submission once the external
// provider confirms. Only valid while such a confirmation is pending.
func (f *Flow) ConfirmRedirect() error {
	f.mu.Lock()
	if !f.pendingRedirect || f.status != StatusSubmitting {
		f.mu.Unlock()
		return errNoPendingRedirect
	}
	f.pendingRedirect = false
	f.status = StatusSucceeded
	orderID := f.orderID
	f.mu.Unlock()

	f.nav.NavigateTo(RouteOrderSuccess(orderID))
	return nil
}
