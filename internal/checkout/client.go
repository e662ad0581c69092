// Package checkout initiates checkout sessions and resolves session tokens
// into authoritative snapshots. The snapshot's monetary fields come from the
// server and are never recomputed client-side: coupons and shipping rules
// live behind the backend, and a client recalculation would drift.
package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
	"golang.org/x/sync/singleflight"
)

// InitiateRequest is the order payload sent when checkout starts. Items are
// snapshotted from the cart at this moment; later cart mutations do not
// affect the minted session.
type InitiateRequest struct {
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	ShippingAddress string    `json:"shipping_address"`
	ShippingCity    string    `json:"shipping_city"`
	ShippingPostal  string    `json:"shipping_postal"`
	ShippingCountry string    `json:"shipping_country"`
	Items           []ItemRef `json:"items"`
	CustomerID      string    `json:"customer_id,omitempty"`
	CouponCode      string    `json:"coupon_code,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

type ItemRef struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InitiateResponse carries the server-minted session token.
type InitiateResponse struct {
	SessionToken string  `json:"session_token"`
	CheckoutURL  string  `json:"checkout_url"`
	TotalAmount  float64 `json:"total_amount"`
	DemoMode     bool    `json:"demo_mode"`
}

// Resolution is the outcome of resolving a token: the state entered and,
// when Active, the session snapshot.
type Resolution struct {
	State   SessionState
	Session *domain.CheckoutSession
	// Err carries the underlying failure for the Failed state.
	Err error
}

type Client struct {
	http    *httpx.Client
	apiBase string
	tracker *Tracker
	sfg     singleflight.Group // collapses concurrent resolves per token
	now     func() time.Time
}

func NewClient(hc *httpx.Client, backendURL string) *Client {
	return &Client{
		http:    hc,
		apiBase: strings.TrimRight(backendURL, "/") + "/api",
		tracker: NewTracker(),
		now:     time.Now,
	}
}

// Tracker exposes the state machine guard, shared with the payment protocol.
func (c *Client) Tracker() *Tracker {
	return c.tracker
}

// Initiate hands the cart to the backend to mint a checkout session.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest, items []domain.LineItem) (*InitiateResponse, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	req.Items = make([]ItemRef, 0, len(items))
	for _, li := range items {
		req.Items = append(req.Items, ItemRef{ProductID: li.ProductID, Quantity: li.Quantity})
	}

	var resp InitiateResponse
	if err := c.http.Post(ctx, c.apiBase+"/orders/create-checkout", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve reads the session snapshot for token. It is a pure read with no
// side effects beyond state tracking; concurrent resolves of the same token
// collapse into one request. A terminal token short-circuits without a call,
// since retrying a dead token cannot succeed.
func (c *Client) Resolve(ctx context.Context, token string) Resolution {
	if cur := c.tracker.State(token); cur.IsTerminal() {
		return Resolution{State: cur}
	}

	v, err, _ := c.sfg.Do(token, func() (interface{}, error) {
		var session domain.CheckoutSession
		err := c.http.Get(ctx, c.apiBase+"/checkout/session/"+url.PathEscape(token), nil, &session)
		if err != nil {
			return Resolution{State: c.tracker.observe(token, stateForError(err)), Err: err}, nil
		}
		// The server may still answer 200 moments after expiry; the
		// snapshot's own timestamp wins.
		if session.Expired(c.now()) {
			return Resolution{State: c.tracker.observe(token, StateExpired)}, nil
		}
		return Resolution{State: c.tracker.observe(token, StateActive), Session: &session}, nil
	})
	if err != nil {
		// Unreachable: the closure never returns an error, failures ride
		// inside the Resolution.
		return Resolution{State: StateFailed, Err: err}
	}
	return v.(Resolution)
}

// CheckoutStatus reports whether the backend runs in demo (test-card) mode.
func (c *Client) CheckoutStatus(ctx context.Context) (demoMode bool, err error) {
	var resp struct {
		DemoMode bool `json:"demo_mode"`
	}
	if err := c.http.Get(ctx, c.apiBase+"/checkout/status", nil, &resp); err != nil {
		return false, err
	}
	return resp.DemoMode, nil
}

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

func stateForError(err error) SessionState {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound:
			return StateNotFound
		case http.StatusGone:
			return StateExpired
		}
	}
	return StateFailed
}
