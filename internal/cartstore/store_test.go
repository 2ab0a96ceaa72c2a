package cartstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerakcos/storefront-go/pkg/config"
	pkgerrors "github.com/nerakcos/storefront-go/pkg/errors"
	"github.com/nerakcos/storefront-go/pkg/logger"
	"github.com/nerakcos/storefront-go/pkg/types"
	"github.com/shopspring/decimal"
)

// stubAPI mimics the server: AddItem/UpdateItem/RemoveItem mutate the items
// it will hand back from ListCart, so reconciliation is observable.
type stubAPI struct {
	items []types.CartLineItem

	listErr     error
	addErr      error
	updateErr   error
	removeErr   error
	checkoutID  string
	checkoutErr error

	listCalls     int
	addCalls      int
	updateCalls   int
	removeCalls   int
	checkoutCalls int
}

func lineItem(id, productID string, qty int, price int64) types.CartLineItem {
	p := decimal.NewFromInt(price)
	return types.CartLineItem{
		ID:        id,
		ProductID: productID,
		Name:      "Item " + productID,
		Price:     p,
		Quantity:  qty,
		Total:     p.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func (s *stubAPI) ListCart(ctx context.Context) ([]types.CartLineItem, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	items := make([]types.CartLineItem, len(s.items))
	copy(items, s.items)
	return items, nil
}

func (s *stubAPI) AddItem(ctx context.Context, productID string, quantity int) error {
	s.addCalls++
	if s.addErr != nil {
		return s.addErr
	}
	s.items = append(s.items, lineItem("li-new", productID, quantity, 10))
	return nil
}

func (s *stubAPI) UpdateItem(ctx context.Context, lineItemID string, quantity int) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.items {
		if s.items[i].ID == lineItemID {
			s.items[i].Quantity = quantity
			s.items[i].Total = s.items[i].Price.Mul(decimal.NewFromInt(int64(quantity)))
		}
	}
	return nil
}

func (s *stubAPI) RemoveItem(ctx context.Context, lineItemID string) error {
	s.removeCalls++
	if s.removeErr != nil {
		return s.removeErr
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ID != lineItemID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return nil
}

func (s *stubAPI) Checkout(ctx context.Context, shipping types.ShippingDetails, method types.PaymentMethod) (string, error) {
	s.checkoutCalls++
	if s.checkoutErr != nil {
		return "", s.checkoutErr
	}
	s.items = nil
	return s.checkoutID, nil
}

func newTestStore(t *testing.T, api *stubAPI) *Store {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")})
	store, err := NewStore(api, logg, config.CartConfig{ToastTTL: time.Minute})
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func assertCountInvariant(t *testing.T, store *Store) {
	t.Helper()
	if got, want := store.Count(), types.QuantitySum(store.Items()); got != want {
		t.Fatalf("count invariant broken: count=%d, sum=%d", got, want)
	}
}

func TestNewStoreRequiresCollaborators(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewStore(nil, logg, config.CartConfig{}); err == nil {
		t.Fatal("expected error for missing api")
	}
	if _, err := NewStore(&stubAPI{}, nil, config.CartConfig{}); err == nil {
		t.Fatal("expected error for missing logger")
	}
}

func TestAddToCartHappyPath(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{}
	store := newTestStore(t, stub)

	store.AddToCart(context.Background(), "prod-42", 2)

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected one line item, got %d", len(items))
	}
	got := items[0]
	if got.ProductID != "prod-42" || got.Quantity != 2 {
		t.Fatalf("unexpected line item %+v", got)
	}
	if !got.Price.Equal(decimal.NewFromInt(10)) || !got.Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected money fields %+v", got)
	}
	if store.Count() != 2 {
		t.Fatalf("expected count 2, got %d", store.Count())
	}
	if store.Toast() != ToastAdded {
		t.Fatalf("expected toast %q, got %q", ToastAdded, store.Toast())
	}
	assertCountInvariant(t, store)
}

func TestAddToCartFailureReloadsAnyway(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{addErr: errors.New("boom")}
	store := newTestStore(t, stub)

	store.AddToCart(context.Background(), "prod-1", 1)

	if stub.addCalls != 1 || stub.listCalls != 1 {
		t.Fatalf("expected add then reload, got add=%d list=%d", stub.addCalls, stub.listCalls)
	}
	if store.Toast() != ToastAddFailed {
		t.Fatalf("expected toast %q, got %q", ToastAddFailed, store.Toast())
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty cart, got count %d", store.Count())
	}
}

func TestAddToCartUnauthorizedToast(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{addErr: pkgerrors.FromStatus(401, "authentication required")}
	store := newTestStore(t, stub)

	store.AddToCart(context.Background(), "prod-1", 1)

	if store.Toast() != ToastLoginRequired {
		t.Fatalf("expected login toast, got %q", store.Toast())
	}
}

func TestAddToCartQuantityFloor(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{}
	store := newTestStore(t, stub)

	store.AddToCart(context.Background(), "prod-1", 0)

	if stub.addCalls != 0 || stub.listCalls != 0 {
		t.Fatalf("quantity < 1 must not hit the network, got add=%d list=%d", stub.addCalls, stub.listCalls)
	}
	if store.Toast() != "" {
		t.Fatalf("no toast expected, got %q", store.Toast())
	}
}

func TestUpdateQuantityFloor(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{items: []types.CartLineItem{lineItem("li-1", "prod-1", 3, 10)}}
	store := newTestStore(t, stub)
	store.Reload(context.Background())
	before := store.Items()

	store.UpdateQuantity(context.Background(), "li-1", 0)
	store.UpdateQuantity(context.Background(), "li-1", -4)

	if stub.updateCalls != 0 {
		t.Fatalf("quantity < 1 must not issue a network call, got %d", stub.updateCalls)
	}
	if !reflect.DeepEqual(before, store.Items()) {
		t.Fatal("state must not change on a guarded no-op")
	}
}

func TestUpdateQuantityFailureReflectsServerState(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{
		items:     []types.CartLineItem{lineItem("li-1", "prod-1", 3, 10)},
		updateErr: errors.New("boom"),
	}
	store := newTestStore(t, stub)
	store.Reload(context.Background())

	store.UpdateQuantity(context.Background(), "li-1", 5)

	if store.Toast() != ToastUpdateFailed {
		t.Fatalf("expected toast %q, got %q", ToastUpdateFailed, store.Toast())
	}
	if stub.listCalls != 2 {
		t.Fatalf("expected reconciling reload after failure, got %d list calls", stub.listCalls)
	}
	items := store.Items()
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected server state (qty 3) reflected, got %+v", items)
	}
	assertCountInvariant(t, store)
}

func TestRemoveFromCartFailureToast(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{
		items:     []types.CartLineItem{lineItem("li-1", "prod-1", 1, 10)},
		removeErr: errors.New("boom"),
	}
	store := newTestStore(t, stub)
	store.Reload(context.Background())

	store.RemoveFromCart(context.Background(), "li-1")

	if store.Toast() != ToastRemoveFailed {
		t.Fatalf("expected toast %q, got %q", ToastRemoveFailed, store.Toast())
	}
	if store.Count() != 1 {
		t.Fatalf("failed remove should leave server state, got count %d", store.Count())
	}
}

func TestReloadFailureResetsToEmptyCart(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{items: []types.CartLineItem{lineItem("li-1", "prod-1", 2, 10)}}
	store := newTestStore(t, stub)
	store.Reload(context.Background())
	if store.Count() != 2 {
		t.Fatalf("precondition: expected count 2, got %d", store.Count())
	}

	stub.listErr = errors.New("boom")
	store.Reload(context.Background())

	if len(store.Items()) != 0 || store.Count() != 0 {
		t.Fatalf("expected fail-safe empty cart, got %d items count %d", len(store.Items()), store.Count())
	}
	if store.Loading() {
		t.Fatal("loading must be false after reload settles")
	}
}

func TestReloadIdempotence(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{items: []types.CartLineItem{
		lineItem("li-1", "prod-1", 2, 10),
		lineItem("li-2", "prod-2", 1, 25),
	}}
	store := newTestStore(t, stub)

	store.Reload(context.Background())
	first := store.Items()
	store.Reload(context.Background())
	second := store.Items()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("back-to-back reloads must agree:\n%+v\n%+v", first, second)
	}
}

func TestAddMatchesIndependentReload(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{}
	store := newTestStore(t, stub)

	store.AddToCart(context.Background(), "prod-42", 2)
	afterAdd := store.Items()

	store.Reload(context.Background())
	afterReload := store.Items()

	if !reflect.DeepEqual(afterAdd, afterReload) {
		t.Fatalf("optimistic and authoritative state drifted:\n%+v\n%+v", afterAdd, afterReload)
	}
}

func TestCountInvariantAcrossOperationSequence(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{}
	store := newTestStore(t, stub)

	steps := []func(){
		func() { store.Reload(context.Background()) },
		func() { store.AddToCart(context.Background(), "prod-1", 2) },
		func() { store.AddToCart(context.Background(), "prod-2", 0) }, // guarded no-op
		func() {
			stub.updateErr = errors.New("boom")
			store.UpdateQuantity(context.Background(), "li-new", 4)
			stub.updateErr = nil
		},
		func() { store.UpdateQuantity(context.Background(), "li-new", 4) },
		func() {
			stub.listErr = errors.New("boom")
			store.Reload(context.Background())
			stub.listErr = nil
		},
		func() { store.Reload(context.Background()) },
		func() { store.RemoveFromCart(context.Background(), "li-new") },
	}

	for i, step := range steps {
		step()
		if got, want := store.Count(), types.QuantitySum(store.Items()); got != want {
			t.Fatalf("step %d: count invariant broken: count=%d, sum=%d", i, got, want)
		}
	}
}

func TestCheckoutSuccessClearsCart(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{
		items:      []types.CartLineItem{lineItem("li-1", "prod-1", 2, 10)},
		checkoutID: "ord-9",
	}
	store := newTestStore(t, stub)
	store.Reload(context.Background())

	orderID, err := store.Checkout(context.Background(), types.ShippingDetails{
		Name: "A", Email: "a@example.com", Phone: "1", Address: "Street 1", City: "Berlin", Country: "Germany",
	}, types.PaymentMethodCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "ord-9" {
		t.Fatalf("expected order id ord-9, got %q", orderID)
	}
	if len(store.Items()) != 0 || store.Count() != 0 {
		t.Fatal("checkout success must clear the cart")
	}
	if store.Toast() != ToastOrderPlaced {
		t.Fatalf("expected toast %q, got %q", ToastOrderPlaced, store.Toast())
	}
}

func TestCheckoutFailureKeepsCartAndRethrows(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{
		items:       []types.CartLineItem{lineItem("li-1", "prod-1", 2, 10)},
		checkoutErr: pkgerrors.FromStatus(400, "Out of stock"),
	}
	store := newTestStore(t, stub)
	store.Reload(context.Background())

	_, err := store.Checkout(context.Background(), types.ShippingDetails{
		Name: "A", Email: "a@example.com", Phone: "1", Address: "Street 1", City: "Berlin", Country: "Germany",
	}, types.PaymentMethodCard)
	if err == nil {
		t.Fatal("checkout failure must propagate to the caller")
	}
	if store.Toast() != "Out of stock" {
		t.Fatalf("expected server message toasted, got %q", store.Toast())
	}
	if store.Count() != 2 {
		t.Fatalf("cart must stay intact on checkout failure, got count %d", store.Count())
	}
}

func TestMergeOnLogin(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{items: []types.CartLineItem{lineItem("li-1", "prod-1", 3, 10)}}
	store := newTestStore(t, stub)

	store.MergeOnLogin(context.Background())

	if store.Count() != 3 {
		t.Fatalf("expected merged cart reloaded, got count %d", store.Count())
	}
	if store.Toast() != ToastCartSynced {
		t.Fatalf("expected toast %q, got %q", ToastCartSynced, store.Toast())
	}
}

func TestToastExpires(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")})
	store, err := NewStore(stub, logg, config.CartConfig{ToastTTL: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	t.Cleanup(store.Close)

	store.AddToCart(context.Background(), "prod-1", 1)
	if store.Toast() != ToastAdded {
		t.Fatalf("expected toast set, got %q", store.Toast())
	}

	deadline := time.Now().Add(time.Second)
	for store.Toast() != "" {
		if time.Now().After(deadline) {
			t.Fatal("toast never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClosedStoreDiscardsLateUpdates(t *testing.T) {
	t.Parallel()

	stub := &stubAPI{items: []types.CartLineItem{lineItem("li-1", "prod-1", 2, 10)}}
	store := newTestStore(t, stub)

	store.Close()
	store.Reload(context.Background())

	if store.Count() != 0 || store.Loading() {
		t.Fatal("closed store must drop state updates")
	}
}
