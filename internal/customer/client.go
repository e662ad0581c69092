// Package customer talks to the backend's customer endpoints: registration,
// login, profile, the server-held cart and order history. It is the only
// writer of the persisted auth token.
package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
	"github.com/Astra2544/weingut-storefront/internal/storage"
)

// ErrNotAuthenticated is returned by operations that need a logged-in
// customer.
var ErrNotAuthenticated = fmt.Errorf("not authenticated")

// CartItemRef is the wire shape of one server-held cart line.
type CartItemRef struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type authResponse struct {
	Token    string          `json:"token"`
	Customer domain.Customer `json:"customer"`
}

type Client struct {
	http    *httpx.Client
	apiBase string
	local   storage.Store
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
	me    *domain.Customer
}

func NewClient(hc *httpx.Client, backendURL string, local storage.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    hc,
		apiBase: strings.TrimRight(backendURL, "/") + "/api",
		local:   local,
		logger:  logger,
	}
}

// Restore loads a persisted auth token and validates it against the backend.
// A token the backend rejects is cleared, matching a fresh guest session. A
// transient failure keeps the token: a backend blip at startup must not log
// the customer out permanently, the next start validates again.
func (c *Client) Restore(ctx context.Context) error {
	var token string
	err := storage.GetJSON(ctx, c.local, storage.KeyAuthToken, &token)
	if storage.Absent(err) || token == "" {
		return nil
	}
	if err != nil {
		return err
	}

	var me domain.Customer
	if err := c.http.Get(ctx, c.apiBase+"/customer/me", bearer(token), &me); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) {
			c.logger.WarnContext(ctx, "persisted token rejected, clearing", "error", err)
			c.clearToken(ctx)
			return nil
		}
		c.logger.WarnContext(ctx, "could not validate persisted token, keeping it", "error", err)
		return nil
	}

	c.mu.Lock()
	c.token = token
	c.me = &me
	c.mu.Unlock()
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.Customer, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.http.Post(ctx, c.apiBase+"/customer/login", nil, body, &resp); err != nil {
		return nil, err
	}
	c.setSession(ctx, resp)
	return c.Me(), nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.Customer, error) {
	var resp authResponse
	if err := c.http.Post(ctx, c.apiBase+"/customer/register", nil, req, &resp); err != nil {
		return nil, err
	}
	c.setSession(ctx, resp)
	return c.Me(), nil
}

// Logout drops the session locally. The local cart is left untouched; the
// next login's merge decides reconciliation.
func (c *Client) Logout(ctx context.Context) {
	c.clearToken(ctx)
}

func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Me returns a copy of the authenticated profile, or nil for guests.
func (c *Client) Me() *domain.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.me == nil {
		return nil
	}
	me := *c.me
	return &me
}

// FetchCart retrieves the server-held cart.
func (c *Client) FetchCart(ctx context.Context) ([]CartItemRef, error) {
	header, err := c.authHeader()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Items []CartItemRef `json:"items"`
	}
	if err := c.http.Get(ctx, c.apiBase+"/customer/cart", header, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SaveCart replaces the server-held cart with the full snapshot. Repeated
// pushes of the same snapshot are harmless: the server overwrites, never
// appends.
func (c *Client) SaveCart(ctx context.Context, items []CartItemRef) error {
	header, err := c.authHeader()
	if err != nil {
		return err
	}
	if items == nil {
		items = []CartItemRef{}
	}
	return c.http.Post(ctx, c.apiBase+"/customer/cart", header, items, nil)
}

// Orders returns the customer's paid orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	header, err := c.authHeader()
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	if err := c.http.Get(ctx, c.apiBase+"/customer/orders", header, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Track looks up an order by its public tracking number. No authentication:
// the confirmation view works for guest checkouts too.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	var order domain.Order
	err := c.http.Get(ctx, c.apiBase+"/tracking/"+url.PathEscape(trackingNumber), nil, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) setSession(ctx context.Context, resp authResponse) {
	c.mu.Lock()
	c.token = resp.Token
	me := resp.Customer
	c.me = &me
	c.mu.Unlock()

	if err := storage.PutJSON(ctx, c.local, storage.KeyAuthToken, resp.Token); err != nil {
		c.logger.WarnContext(ctx, "failed to persist auth token", "error", err)
	}
}

func (c *Client) clearToken(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.me = nil
	c.mu.Unlock()

	if err := c.local.Delete(ctx, storage.KeyAuthToken); err != nil {
		c.logger.WarnContext(ctx, "failed to delete auth token", "error", err)
	}
}

func (c *Client) authHeader() (http.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}
	return bearer(c.token), nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}
