// Package cartstore holds the session's cart state and is its only writer.
// Every mutation re-fetches the authoritative cart from the server after the
// mutating request settles, rather than patching local state; the server owns
// prices, stock constraints, and totals.
package cartstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerakcos/storefront-go/pkg/config"
	pkgerrors "github.com/nerakcos/storefront-go/pkg/errors"
	"github.com/nerakcos/storefront-go/pkg/logger"
	"github.com/nerakcos/storefront-go/pkg/types"
)

// Toast messages surfaced to the user. Failures from add/update/remove are
// absorbed here and never returned to views.
const (
	ToastAdded          = "Added to cart!"
	ToastAddFailed      = "Failed to add item"
	ToastLoginRequired  = "Please log in to add to cart."
	ToastUpdateFailed   = "Update failed"
	ToastRemoveFailed   = "Remove failed"
	ToastOrderPlaced    = "Order placed!"
	ToastCheckoutFailed = "Checkout failed"
	ToastCartSynced     = "Cart synced"
)

const defaultToastTTL = 3 * time.Second

var (
	errAPIRequired    = errors.New("cart api is required")
	errLoggerRequired = errors.New("cart logger is required")
)

type cartAPI interface {
	ListCart(ctx context.Context) ([]types.CartLineItem, error)
	AddItem(ctx context.Context, productID string, quantity int) error
	UpdateItem(ctx context.Context, lineItemID string, quantity int) error
	RemoveItem(ctx context.Context, lineItemID string) error
	Checkout(ctx context.Context, shipping types.ShippingDetails, method types.PaymentMethod) (string, error)
}

// Snapshot is a consistent read of the store for views.
type Snapshot struct {
	Items   []types.CartLineItem
	Count   int
	Loading bool
	Toast   string
}

type Store struct {
	api      cartAPI
	logg     *logger.Logger
	toastTTL time.Duration

	mu         sync.Mutex
	items      []types.CartLineItem
	count      int
	loading    bool
	toast      string
	toastGen   int
	toastTimer *time.Timer
	closed     bool
}

// NewStore builds the cart store. The store starts empty; callers run
// Reload once on mount.
func NewStore(api cartAPI, logg *logger.Logger, cfg config.CartConfig) (*Store, error) {
	if api == nil {
		return nil, errAPIRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	ttl := cfg.ToastTTL
	if ttl <= 0 {
		ttl = defaultToastTTL
	}
	return &Store{
		api:      api,
		logg:     logg,
		toastTTL: ttl,
	}, nil
}

// Items returns a copy of the current line items in server order.
func (s *Store) Items() []types.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]types.CartLineItem, len(s.items))
	copy(items, s.items)
	return items
}

// Count is the sum of quantities across line items.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Toast returns the current transient message, empty once expired.
func (s *Store) Toast() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toast
}

func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]types.CartLineItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:   items,
		Count:   s.count,
		Loading: s.loading,
		Toast:   s.toast,
	}
}

// Reload replaces the cart wholesale from the server. A failed fetch resets
// to an empty cart rather than keeping a stale one; the error is logged, not
// returned. The loading transition is the only completion signal.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()

	items, err := s.api.ListCart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loading = false
	if err != nil {
		s.logg.Error(ctx, "reloading cart", err)
		s.items = nil
		s.count = 0
		return
	}
	s.items = items
	s.count = types.QuantitySum(items)
}

// AddToCart requests an item creation and reconciles by reload regardless of
// outcome. quantity < 1 is a guarded no-op.
func (s *Store) AddToCart(ctx context.Context, productID string, quantity int) {
	if quantity < 1 {
		return
	}
	ctx = s.logg.WithProductID(ctx, productID)

	err := s.api.AddItem(ctx, productID, quantity)
	switch {
	case err == nil:
		s.setToast(ToastAdded)
	case pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized):
		s.logg.Warn(ctx, "add to cart requires login")
		s.setToast(ToastLoginRequired)
	default:
		s.logg.Error(ctx, "adding item to cart", err)
		s.setToast(ToastAddFailed)
	}

	s.Reload(ctx)
}

// UpdateQuantity changes a line item's quantity. quantity < 1 never issues a
// network call. A reload runs even on failure, since a partial update may
// have applied server-side.
func (s *Store) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) {
	if quantity < 1 {
		return
	}
	ctx = s.logg.WithLineItemID(ctx, lineItemID)

	if err := s.api.UpdateItem(ctx, lineItemID, quantity); err != nil {
		s.logg.Error(ctx, "updating line item quantity", err)
		s.setToast(ToastUpdateFailed)
	}

	s.Reload(ctx)
}

// RemoveFromCart deletes a line item and reconciles by reload.
func (s *Store) RemoveFromCart(ctx context.Context, lineItemID string) {
	ctx = s.logg.WithLineItemID(ctx, lineItemID)

	if err := s.api.RemoveItem(ctx, lineItemID); err != nil {
		s.logg.Error(ctx, "removing line item", err)
		s.setToast(ToastRemoveFailed)
	}

	s.Reload(ctx)
}

// Checkout converts the cart into an order. On success the cart clears
// locally, since the server has consumed it. Unlike the other mutations the
// error is returned as well as toasted, so the checkout view can stay on the
// page instead of navigating away.
func (s *Store) Checkout(ctx context.Context, shipping types.ShippingDetails, method types.PaymentMethod) (string, error) {
	orderID, err := s.api.Checkout(ctx, shipping, method)
	if err != nil {
		s.logg.Error(ctx, "placing order", err)
		s.setToast(pkgerrors.UserMessage(err, ToastCheckoutFailed))
		return "", err
	}

	s.mu.Lock()
	if !s.closed {
		s.items = nil
		s.count = 0
	}
	s.mu.Unlock()

	s.setToast(ToastOrderPlaced)
	return orderID, nil
}

// MergeOnLogin re-fetches after authentication; the guest-to-user merge
// itself happens server-side off the session correlation.
func (s *Store) MergeOnLogin(ctx context.Context) {
	s.Reload(ctx)
	s.setToast(ToastCartSynced)
}

// Close marks the store as disposed. In-flight operations discard their
// eventual state updates instead of writing to a dead store.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
}

func (s *Store) setToast(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.toastGen++
	gen := s.toastGen
	s.toast = message
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.toastTimer = time.AfterFunc(s.toastTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.toastGen != gen {
			return
		}
		s.toast = ""
	})
}
