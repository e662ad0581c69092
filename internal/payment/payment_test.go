package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Astra2544/weingut-storefront/internal/checkout"
	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validCard = CardDetails{
	HolderName: "Anna Meier",
	Number:     "4242 4242 4242 4242",
	Expiry:     "12/39",
	CVC:        "123",
}

type fakeCart struct {
	cleared atomic.Int32
}

func (f *fakeCart) Clear(context.Context) { f.cleared.Add(1) }

type harness struct {
	srv     *httptest.Server
	mux     *http.ServeMux
	co      *checkout.Client
	pay     *Client
	cart    *fakeCart
	demoHit atomic.Int32
}

// newHarness wires a payment client and a checkout client against a stub
// backend whose session endpoint always answers an active session.
func newHarness(t *testing.T, opts Options, complete http.HandlerFunc) *harness {
	t.Helper()
	h := &harness{mux: http.NewServeMux(), cart: &fakeCart{}}

	h.mux.HandleFunc("/api/checkout/session/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.CheckoutSession{
			TotalAmount: 55.70,
			IsDemo:      true,
			ExpiresAt:   time.Now().Add(30 * time.Minute),
		})
	})
	h.mux.HandleFunc("/api/checkout/demo/complete", func(w http.ResponseWriter, r *http.Request) {
		h.demoHit.Add(1)
		complete(w, r)
	})

	h.srv = httptest.NewServer(h.mux)
	t.Cleanup(h.srv.Close)

	hc := httpx.New(httpx.Options{
		BaseDelay: time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.co = checkout.NewClient(hc, h.srv.URL)
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h.pay = NewClient(hc, h.srv.URL, h.co.Tracker(), h.cart, opts)
	return h
}

func (h *harness) activate(t *testing.T, token string) {
	t.Helper()
	res := h.co.Resolve(context.Background(), token)
	require.Equal(t, checkout.StateActive, res.State)
}

func confirmOrder(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"order": domain.Order{
			ID:             "o1",
			TrackingNumber: "WHB-2026-000123",
			TotalAmount:    55.70,
			Status:         "paid",
			PaymentStatus:  "paid",
		},
		"demo_mode": true,
	})
}

func rejectCard(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(`{"detail": "Invalid test card. Use 4242 4242 4242 4242 for testing."}`))
}

func TestComplete_SuccessClearsCartAndReturnsTracking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		assert.Equal(t, "4242424242424242", r.URL.Query().Get("card_number"), "number sent without spaces")
		confirmOrder(w, r)
	})
	h.activate(t, "tok-1")

	res, err := h.pay.Complete(ctx, "tok-1", validCard)
	require.NoError(t, err)

	assert.Equal(t, "WHB-2026-000123", res.Order.TrackingNumber)
	assert.Equal(t, int32(1), h.cart.cleared.Load(), "cart cleared after confirmation")
	assert.Equal(t, checkout.StateCompleted, h.co.Tracker().State("tok-1"))
}

func TestComplete_InvalidCardMakesNoRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{DemoEnabled: true}, confirmOrder)
	h.activate(t, "tok-1")

	bad := validCard
	bad.Number = "1234"
	_, err := h.pay.Complete(ctx, "tok-1", bad)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "number", verr.Field)
	assert.Zero(t, h.demoHit.Load())
	assert.Equal(t, checkout.StateActive, h.co.Tracker().State("tok-1"), "session untouched by local validation")
}

func TestComplete_RejectedCardAllowsResubmission(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			rejectCard(w, r)
			return
		}
		confirmOrder(w, r)
	})
	h.activate(t, "tok-1")

	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Invalid test card. Use 4242 4242 4242 4242 for testing.", perr.Detail,
		"backend message surfaced verbatim")
	assert.Zero(t, h.cart.cleared.Load())
	assert.Equal(t, checkout.StateActive, h.co.Tracker().State("tok-1"))

	fail.Store(false)
	res, err := h.pay.Complete(ctx, "tok-1", validCard)
	require.NoError(t, err)
	assert.Equal(t, "WHB-2026-000123", res.Order.TrackingNumber)
}

func TestComplete_SendsExactlyOnePostPerSubmit(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		confirmOrder(w, r)
	})
	h.activate(t, "tok-1")

	// A transient backend failure must not trigger an automatic second POST:
	// the first one may have completed the session server-side, and a blind
	// retry would find it gone and misreport a paid order as failed.
	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	require.Error(t, err)
	assert.Equal(t, int32(1), h.demoHit.Load(), "one submit, one POST")
	assert.Zero(t, h.cart.cleared.Load())
	assert.Equal(t, checkout.StateActive, h.co.Tracker().State("tok-1"),
		"transient failure leaves the session open for resubmission")

	fail.Store(false)
	res, err := h.pay.Complete(ctx, "tok-1", validCard)
	require.NoError(t, err)
	assert.Equal(t, "WHB-2026-000123", res.Order.TrackingNumber)
	assert.Equal(t, int32(2), h.demoHit.Load(), "the second POST came from the second submit")
}

func TestComplete_SecondSubmissionRefusedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		<-release
		confirmOrder(w, r)
	})
	h.activate(t, "tok-1")

	done := make(chan error, 1)
	go func() {
		_, err := h.pay.Complete(ctx, "tok-1", validCard)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.co.Tracker().State("tok-1") != checkout.StateCompleting {
		if time.Now().After(deadline) {
			t.Fatal("first completion never entered flight")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	assert.ErrorIs(t, err, checkout.ErrCompletionInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), h.demoHit.Load(), "only the first submission reached the backend")
}

func TestComplete_CompletedTokenCannotCompleteAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{DemoEnabled: true}, confirmOrder)
	h.activate(t, "tok-1")

	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	require.NoError(t, err)

	_, err = h.pay.Complete(ctx, "tok-1", validCard)
	assert.ErrorIs(t, err, checkout.ErrIllegalTransition)
	assert.Equal(t, int32(1), h.demoHit.Load())
	assert.Equal(t, int32(1), h.cart.cleared.Load(), "no second order, no second clear")
}

func TestComplete_GoneSessionBecomesExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(`{"detail": "Checkout session expired"}`))
	})
	h.activate(t, "tok-1")

	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, checkout.StateExpired, h.co.Tracker().State("tok-1"))
	assert.Zero(t, h.cart.cleared.Load())
}

func TestComplete_NotFoundSessionIsTerminal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{DemoEnabled: true}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Checkout session not found or already completed"}`))
	})
	h.activate(t, "tok-1")

	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, checkout.StateNotFound, h.co.Tracker().State("tok-1"))
}

func TestComplete_DemoDisabled(t *testing.T) {
	h := newHarness(t, Options{DemoEnabled: false}, confirmOrder)
	h.activate(t, "tok-1")

	_, err := h.pay.Complete(context.Background(), "tok-1", validCard)
	assert.ErrorIs(t, err, ErrDemoDisabled)
	assert.Zero(t, h.demoHit.Load())
}

func TestComplete_CancelDuringProcessingDelay(t *testing.T) {
	h := newHarness(t, Options{DemoEnabled: true, ProcessingDelay: 5 * time.Second}, confirmOrder)
	h.activate(t, "tok-1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := h.pay.Complete(ctx, "tok-1", validCard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation skips the rest of the delay")
	assert.Zero(t, h.demoHit.Load())
	assert.Equal(t, checkout.StateActive, h.co.Tracker().State("tok-1"), "aborted submission frees the session")
}

func TestVerify(t *testing.T) {
	h := newHarness(t, Options{}, confirmOrder)
	h.mux.HandleFunc("/api/payment/verify", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cs_test_1", r.URL.Query().Get("session_id"))
		json.NewEncoder(w).Encode(VerifyResult{
			Success:          true,
			AlreadyProcessed: true,
			Order:            &domain.Order{TrackingNumber: "WHB-2026-000124"},
		})
	})

	res, err := h.pay.Verify(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyProcessed, "polling an already-processed session is safe")
	require.NotNil(t, res.Order)
	assert.Equal(t, "WHB-2026-000124", res.Order.TrackingNumber)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, Options{}, confirmOrder)
	h.mux.HandleFunc("/api/payment/status/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payment/status/cs_test_2", r.URL.Path)
		json.NewEncoder(w).Encode(StatusResult{PaymentStatus: "pending"})
	})

	res, err := h.pay.Status(context.Background(), "cs_test_2")
	require.NoError(t, err)
	assert.Equal(t, "pending", res.PaymentStatus)
}

func TestCardValidate_AcceptedDemoCards(t *testing.T) {
	for _, number := range []string{
		"4242 4242 4242 4242",
		"4000056655665556",
		"5555 5555 5555 4444",
		"2223003122003222",
		"378282246310005",
		"6011111111111117",
	} {
		card := validCard
		card.Number = number
		assert.NoError(t, card.Validate(), number)
	}
}

func TestCardValidate_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*CardDetails)
		field string
	}{
		{"empty holder", func(c *CardDetails) { c.HolderName = "  " }, "holder_name"},
		{"short number", func(c *CardDetails) { c.Number = "4242" }, "number"},
		{"letters in number", func(c *CardDetails) { c.Number = "4242abcd42424242" }, "number"},
		{"checksum failure", func(c *CardDetails) { c.Number = "4242424242424241" }, "number"},
		{"malformed expiry", func(c *CardDetails) { c.Expiry = "1239" }, "expiry"},
		{"month out of range", func(c *CardDetails) { c.Expiry = "13/39" }, "expiry"},
		{"expired card", func(c *CardDetails) { c.Expiry = "01/20" }, "expiry"},
		{"short cvc", func(c *CardDetails) { c.CVC = "12" }, "cvc"},
		{"letters in cvc", func(c *CardDetails) { c.CVC = "12a" }, "cvc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard
			tc.mut(&card)
			err := card.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
