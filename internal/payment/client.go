// Package payment drives a checkout session to a terminal outcome: local
// card validation, the demo completion protocol, and the verify/status
// clients for the live gateway path.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Astra2544/weingut-storefront/internal/checkout"
	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
)

// ErrDemoDisabled is returned when a demo completion is attempted while the
// simulated payment path is switched off.
var ErrDemoDisabled = errors.New("demo payments are disabled")

// Error is a payment rejection from the backend. Detail is the backend's
// message verbatim; it is shown to the user unmodified.
type Error struct {
	Code   int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// CartClearer is the slice of the cart store the protocol needs. The cart is
// cleared only after the backend confirms the order.
type CartClearer interface {
	Clear(ctx context.Context)
}

type Options struct {
	// DemoEnabled gates Complete. Off by default; the live gateway path
	// (Verify, Status) is always available.
	DemoEnabled bool

	// ProcessingDelay is a cosmetic pause before the completion call so the
	// processing indicator is visible. Zero skips it.
	ProcessingDelay time.Duration

	Logger *slog.Logger
}

type Client struct {
	http    *httpx.Client
	apiBase string
	tracker *checkout.Tracker
	cart    CartClearer

	demoEnabled bool
	delay       time.Duration
	logger      *slog.Logger
}

func NewClient(hc *httpx.Client, backendURL string, tracker *checkout.Tracker, cart CartClearer, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		http:        hc,
		apiBase:     strings.TrimRight(backendURL, "/") + "/api",
		tracker:     tracker,
		cart:        cart,
		demoEnabled: opts.DemoEnabled,
		delay:       opts.ProcessingDelay,
		logger:      opts.Logger,
	}
}

// Result is a confirmed completion: the order as created by the backend,
// exactly once per session token.
type Result struct {
	Order domain.Order
}

// Complete runs the demo completion protocol for an active session.
//
// Invalid card details fail before any request is made. While a completion
// is in flight the session refuses a second submission; a rejected payment
// returns the session to Active so the user can correct the card and
// resubmit. The cart is cleared only after the backend confirms the order.
func (c *Client) Complete(ctx context.Context, token string, card CardDetails) (*Result, error) {
	if !c.demoEnabled {
		return nil, ErrDemoDisabled
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	if err := c.tracker.BeginCompletion(token); err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		c.tracker.FinishCompletion(token, false)
		return nil, err
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("card_number", normalizeNumber(card.Number))
	endpoint := c.apiBase + "/checkout/demo/complete?" + q.Encode()

	// One attempt, never retried: a retry after a lost response would hit an
	// already-completed session and misreport a paid order as failed.
	var resp struct {
		Success bool         `json:"success"`
		Order   domain.Order `json:"order"`
	}
	if err := c.http.PostOnce(ctx, endpoint, nil, nil, &resp); err != nil {
		return nil, c.completionFailed(ctx, token, err)
	}
	if !resp.Success {
		c.tracker.FinishCompletion(token, false)
		return nil, &Error{Detail: "payment was not completed"}
	}

	c.cart.Clear(ctx)
	c.tracker.FinishCompletion(token, true)
	c.logger.InfoContext(ctx, "payment completed",
		"tracking_number", resp.Order.TrackingNumber, "total", resp.Order.TotalAmount)
	return &Result{Order: resp.Order}, nil
}

// completionFailed maps a completion error onto the session state machine.
// A 404 or 410 means the token is dead; anything else leaves the session
// Active for resubmission.
func (c *Client) completionFailed(ctx context.Context, token string, err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound:
			c.tracker.Invalidate(token, checkout.StateNotFound)
		case http.StatusGone:
			c.tracker.Invalidate(token, checkout.StateExpired)
		default:
			c.tracker.FinishCompletion(token, false)
		}
		return &Error{Code: se.Code, Detail: se.Detail}
	}

	c.tracker.FinishCompletion(token, false)
	c.logger.WarnContext(ctx, "payment completion failed", "error", err)
	return fmt.Errorf("complete payment: %w", err)
}

// wait sleeps for the processing delay, abandoning early on cancellation.
func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VerifyResult is the outcome of a live-gateway payment verification.
type VerifyResult struct {
	Success          bool          `json:"success"`
	Order            *domain.Order `json:"order,omitempty"`
	AlreadyProcessed bool          `json:"already_processed,omitempty"`
	Status           string        `json:"status,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// Verify asks the backend to confirm a live gateway session and create the
// order. The backend deduplicates by session id, so polling is safe.
func (c *Client) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)

	var res VerifyResult
	if err := c.http.Get(ctx, c.apiBase+"/payment/verify?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StatusResult is a lightweight poll of a live gateway session.
type StatusResult struct {
	PaymentStatus string        `json:"payment_status"`
	Order         *domain.Order `json:"order,omitempty"`
}

// Status polls the payment state of a live gateway session.
func (c *Client) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	var res StatusResult
	err := c.http.Get(ctx, c.apiBase+"/payment/status/"+url.PathEscape(sessionID), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
