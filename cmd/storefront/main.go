// Command storefront is a small terminal client for the cart API: it renders
// the cart, dispatches store operations, and walks the checkout flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerakcos/storefront-go/internal/api"
	"github.com/nerakcos/storefront-go/internal/cartstore"
	"github.com/nerakcos/storefront-go/internal/checkoutflow"
	"github.com/nerakcos/storefront-go/internal/session"
	"github.com/nerakcos/storefront-go/pkg/config"
	"github.com/nerakcos/storefront-go/pkg/logger"
	"github.com/nerakcos/storefront-go/pkg/metrics"
	"github.com/nerakcos/storefront-go/pkg/types"
)

type printNavigator struct{}

func (printNavigator) NavigateTo(route string) {
	fmt.Printf("-> %s\n", route)
}

func main() {
	var (
		add      = flag.String("add", "", "add product to the cart, as product-id[:quantity]")
		update   = flag.String("update", "", "set a line item quantity, as line-item-id:quantity")
		remove   = flag.String("remove", "", "remove a line item by id")
		checkout = flag.Bool("checkout", false, "place an order for the current cart")
		method   = flag.String("method", string(types.PaymentMethodCard), "payment method: card, bank_transfer, redirect")
		name     = flag.String("name", "", "shipping: full name")
		email    = flag.String("email", "", "shipping: email")
		phone    = flag.String("phone", "", "shipping: phone")
		address  = flag.String("address", "", "shipping: street address")
		city     = flag.String("city", "", "shipping: city")
		country  = flag.String("country", "Germany", "shipping: country")
		token    = flag.String("token", "", "bearer token for an authenticated session")
	)
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	sess := session.New()
	if *token != "" {
		sess.SetToken(*token)
	}

	reqMetrics := metrics.NewRequestMetrics(prometheus.NewRegistry())
	client, err := api.NewClient(cfg.API, sess, logg, reqMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build api client", err)
		os.Exit(1)
	}

	store, err := cartstore.NewStore(client, logg, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart store", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	store.Reload(ctx)

	switch {
	case *add != "":
		productID, qty := splitIDQuantity(*add)
		store.AddToCart(ctx, productID, qty)
	case *update != "":
		lineItemID, qty := splitIDQuantity(*update)
		store.UpdateQuantity(ctx, lineItemID, qty)
	case *remove != "":
		store.RemoveFromCart(ctx, *remove)
	case *checkout:
		runCheckout(ctx, store, cfg, checkoutflow.Draft{
			Shipping: types.ShippingDetails{
				Name:    *name,
				Email:   *email,
				Phone:   *phone,
				Address: *address,
				City:    *city,
				Country: *country,
			},
			PaymentMethod: types.PaymentMethod(*method),
		})
	}

	render(store)
}

func runCheckout(ctx context.Context, store *cartstore.Store, cfg *config.Config, draft checkoutflow.Draft) {
	flow, err := checkoutflow.NewFlow(store, printNavigator{}, cfg.Checkout.ShippingFee)
	if err != nil {
		fmt.Fprintf(os.Stderr, "checkout unavailable: %v\n", err)
		return
	}
	if !flow.Guard() {
		return
	}

	fmt.Printf("subtotal %s, shipping %s, total %s\n", flow.Subtotal(), cfg.Checkout.ShippingFee, flow.GrandTotal())

	if err := flow.Submit(ctx, draft); err != nil {
		fmt.Fprintf(os.Stderr, "checkout failed: %s\n", flow.AcknowledgeError())
		return
	}
	if draft.PaymentMethod == types.PaymentMethodRedirect {
		// simulate the provider's confirmation callback
		if err := flow.ConfirmRedirect(); err != nil {
			fmt.Fprintf(os.Stderr, "redirect confirmation failed: %v\n", err)
			return
		}
	}
	fmt.Printf("order %s placed\n", flow.OrderID())
}

func render(store *cartstore.Store) {
	state := store.State()
	if state.Toast != "" {
		fmt.Printf("[%s]\n", state.Toast)
	}
	if len(state.Items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, item := range state.Items {
		fmt.Printf("%-12s %-20s x%-3d %8s\n", item.ID, item.Name, item.Quantity, item.Total)
	}
	fmt.Printf("%d items\n", state.Count)
}

func splitIDQuantity(arg string) (string, int) {
	id, rest, found := strings.Cut(arg, ":")
	qty := 1
	if found {
		if _, err := fmt.Sscanf(rest, "%d", &qty); err != nil {
			qty = 1
		}
	}
	return id, qty
}
