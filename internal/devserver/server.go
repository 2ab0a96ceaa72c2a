// Package devserver is an in-memory reference implementation of the
// storefront cart API, used by the integration tests and the dev binary. It
// mirrors the production API's observable behavior: line-item JSON shape,
// `{"error": ...}` failures, the guest_session cookie, server-side merge of a
// guest cart into the user's cart on first authenticated access, and
// checkout converting the cart into an order.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nerakcos/storefront-go/pkg/logger"
	"github.com/nerakcos/storefront-go/pkg/types"
)

var errLoggerRequired = errors.New("devserver logger is required")

// Product is a catalog entry the cart references.
type Product struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
	Stock int
}

type line struct {
	id        string
	productID string
	quantity  int
}

// Order is a placed order kept for inspection.
type Order struct {
	ID       string
	Identity string
	Shipping types.ShippingDetails
	Method   types.PaymentMethod
	Total    decimal.Decimal
}

type Server struct {
	logg      *logger.Logger
	jwtSecret []byte
	router    chi.Router

	mu       sync.Mutex
	products map[string]*Product
	carts    map[string][]*line
	orders   map[string]*Order
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

func New(logg *logger.Logger, jwtSecret []byte) (*Server, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if len(jwtSecret) == 0 {
		jwtSecret = []byte(uuid.NewString())
	}

	s := &Server{
		logg:      logg,
		jwtSecret: jwtSecret,
		products:  map[string]*Product{},
		carts:     map[string][]*line{},
		orders:    map[string]*Order{},
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.identify)
			r.Get("/cart", s.handleListCart)
			r.Post("/cart", s.handleAddItem)
			r.Put("/cart/{itemID}", s.handleUpdateItem)
			r.Delete("/cart/{itemID}", s.handleRemoveItem)
			r.Post("/checkout", s.handleCheckout)
		})
	})
	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// SeedProduct registers a catalog product.
func (s *Server) SeedProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

// Order returns a placed order by id, for inspection in tests.
func (s *Server) Order(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return *o, true
	}
	return Order{}, false
}

// identity resolution

type identityKey struct{}

type identity struct {
	key   string
	guest bool
}

const guestCookie = "guest_session"

// identify resolves the caller to a user (bearer token) or a guest cookie,
// minting and setting the cookie when absent. An authenticated caller still
// carrying a guest cookie has that guest cart merged into the user cart
// before the handler runs.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := identity{guest: true}

		if email, ok := s.userFromToken(r); ok {
			ident = identity{key: "user:" + email}
			if cookie, err := r.Cookie(guestCookie); err == nil && cookie.Value != "" {
				s.mergeGuestIntoUser("guest:"+cookie.Value, ident.key)
			}
		} else {
			sessionID := ""
			if cookie, err := r.Cookie(guestCookie); err == nil {
				sessionID = cookie.Value
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     guestCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   30 * 24 * 60 * 60,
					HttpOnly: true,
				})
			}
			ident.key = "guest:" + sessionID
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, ident)))
	})
}

func (s *Server) userFromToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) mergeGuestIntoUser(guestKey, userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	guestLines := s.carts[guestKey]
	if len(guestLines) == 0 {
		return
	}
	for _, g := range guestLines {
		merged := false
		for _, u := range s.carts[userKey] {
			if u.productID == g.productID {
				u.quantity += g.quantity
				merged = true
				break
			}
		}
		if !merged {
			s.carts[userKey] = append(s.carts[userKey], &line{
				id:        newLineID(),
				productID: g.productID,
				quantity:  g.quantity,
			})
		}
	}
	delete(s.carts, guestKey)
}

func identityFrom(r *http.Request) identity {
	ident, _ := r.Context().Value(identityKey{}).(identity)
	return ident
}

// handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := jwt.RegisteredClaims{
		Subject:   req.Email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{Token: token})
}

func (s *Server) handleListCart(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	s.mu.Lock()
	items := s.itemsLocked(ident.key)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req types.AddItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[req.ProductID]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if product.Stock < req.Quantity {
		writeError(w, http.StatusBadRequest, "Out of stock")
		return
	}

	found := false
	for _, l := range s.carts[ident.key] {
		if l.productID == req.ProductID {
			l.quantity += req.Quantity
			found = true
			break
		}
	}
	if !found {
		s.carts[ident.key] = append(s.carts[ident.key], &line{
			id:        newLineID(),
			productID: req.ProductID,
			quantity:  req.Quantity,
		})
	}

	count := 0
	for _, l := range s.carts[ident.key] {
		count += l.quantity
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Added to cart", CartCount: count})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	itemID := chi.URLParam(r, "itemID")

	var req types.UpdateItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Valid quantity required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.carts[ident.key] {
		if l.id == itemID {
			l.quantity = req.Quantity
			writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Updated"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Item not in cart")
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	itemID := chi.URLParam(r, "itemID")

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[ident.key]
	for i, l := range lines {
		if l.id == itemID {
			s.carts[ident.key] = append(lines[:i], lines[i+1:]...)
			writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Removed"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not found")
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req types.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.PaymentMethod.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown payment method")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[ident.key]
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	total := decimal.Zero
	for _, l := range lines {
		product, ok := s.products[l.productID]
		if !ok {
			writeError(w, http.StatusConflict, "Product no longer available")
			return
		}
		if product.Stock < l.quantity {
			writeError(w, http.StatusBadRequest, "Out of stock")
			return
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	for _, l := range lines {
		s.products[l.productID].Stock -= l.quantity
	}

	order := &Order{
		ID:       "ord-" + uuid.NewString(),
		Identity: ident.key,
		Shipping: req.Shipping,
		Method:   req.PaymentMethod,
		Total:    total,
	}
	s.orders[order.ID] = order
	delete(s.carts, ident.key)

	if ident.guest {
		http.SetCookie(w, &http.Cookie{Name: guestCookie, Value: "", Path: "/", MaxAge: -1})
	}
	writeJSON(w, http.StatusOK, types.CheckoutResponse{Message: "Order placed successfully", OrderID: order.ID})
}

// itemsLocked materializes the wire shape for a cart; caller holds the lock.
func (s *Server) itemsLocked(key string) []types.CartLineItem {
	items := make([]types.CartLineItem, 0, len(s.carts[key]))
	for _, l := range s.carts[key] {
		product, ok := s.products[l.productID]
		if !ok {
			continue
		}
		items = append(items, types.CartLineItem{
			ID:        l.id,
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     product.Price,
			Quantity:  l.quantity,
			Total:     product.Price.Mul(decimal.NewFromInt(int64(l.quantity))),
		})
	}
	return items
}

func newLineID() string {
	return "li-" + uuid.NewString()
}

func decodeBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dest); err != nil {
		return errors.New("Validation failed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}
