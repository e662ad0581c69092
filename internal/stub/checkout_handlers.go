package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Astra2544/weingut-storefront/internal/domain"
)

// validTestCards are the only numbers the demo completion accepts, matching
// the common payment-gateway test set.
var validTestCards = map[string]bool{
	"4242424242424242": true,
	"4000056655665556": true,
	"5555555555554444": true,
	"2223003122003222": true,
	"378282246310005":  true,
	"6011111111111117": true,
}

type createCheckoutRequest struct {
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone"`
	ShippingAddress string    `json:"shipping_address"`
	ShippingCity    string    `json:"shipping_city"`
	ShippingPostal  string    `json:"shipping_postal"`
	ShippingCountry string    `json:"shipping_country"`
	Items           []itemRef `json:"items"`
	CustomerID      string    `json:"customer_id"`
	CouponCode      string    `json:"coupon_code"`
	Notes           string    `json:"notes"`
}

// createCheckout prices the cart server-side and mints a pending session.
// The order itself is only created on successful completion.
func (s *Server) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondDetail(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := 0.0
	details := make([]domain.SessionItem, 0, len(req.Items))
	for _, item := range req.Items {
		p := s.findProduct(item.ProductID)
		if p == nil {
			respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Product %s not found", item.ProductID))
			return
		}
		if p.Stock < item.Quantity {
			respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Not enough stock for %s", p.NameDE))
			return
		}
		lineSubtotal := p.Price * float64(item.Quantity)
		subtotal += lineSubtotal
		details = append(details, domain.SessionItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			ProductNameDE:   p.NameDE,
			ProductNameEN:   p.NameEN,
			ProductPrice:    p.Price,
			ProductImageURL: p.ImageURL,
			Subtotal:        lineSubtotal,
		})
	}

	shippingCost := s.opts.ShippingCost
	if subtotal >= s.opts.FreeShippingThreshold {
		shippingCost = 0
	}

	discount := 0.0
	if strings.EqualFold(req.CouponCode, "WILLKOMMEN10") {
		discount = subtotal * 0.10
	}

	now := s.opts.Now()
	sess := &session{
		token:     uuid.NewString(),
		status:    "pending",
		createdAt: now,
		snapshot: domain.CheckoutSession{
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			ShippingAddress: req.ShippingAddress,
			ShippingCity:    req.ShippingCity,
			ShippingPostal:  req.ShippingPostal,
			ShippingCountry: req.ShippingCountry,
			Items:           details,
			Subtotal:        subtotal,
			ShippingCost:    shippingCost,
			DiscountAmount:  discount,
			TotalAmount:     subtotal - discount + shippingCost,
			CouponCode:      req.CouponCode,
			IsDemo:          s.opts.DemoMode,
			ExpiresAt:       now.Add(s.opts.SessionTTL),
		},
		items:      req.Items,
		customerID: req.CustomerID,
		phone:      req.CustomerPhone,
		notes:      req.Notes,
	}
	s.sessions[sess.token] = sess

	respondJSON(w, http.StatusOK, map[string]any{
		"session_token": sess.token,
		"checkout_url":  "/checkout/demo?token=" + sess.token,
		"total_amount":  sess.snapshot.TotalAmount,
		"demo_mode":     s.opts.DemoMode,
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chi.URLParam(r, "token")]
	if !ok || sess.status != "pending" {
		respondDetail(w, http.StatusNotFound, "Checkout session not found")
		return
	}
	if s.opts.Now().After(sess.snapshot.ExpiresAt) {
		respondDetail(w, http.StatusGone, "Checkout session has expired")
		return
	}
	respondJSON(w, http.StatusOK, sess.snapshot)
}

func (s *Server) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"demo_mode": s.opts.DemoMode})
}

// completeDemo validates the test card and converts the pending session into
// an order. Completion is terminal: the session leaves the pending set, so a
// repeat call answers 404 and no second order exists.
func (s *Server) completeDemo(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	card := strings.NewReplacer(" ", "", "-", "").Replace(r.URL.Query().Get("card_number"))

	if !validTestCards[card] {
		respondDetail(w, http.StatusBadRequest, "Invalid test card. Use 4242 4242 4242 4242 for testing.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || sess.status != "pending" {
		respondDetail(w, http.StatusNotFound, "Checkout session not found or already completed")
		return
	}
	now := s.opts.Now()
	if now.After(sess.snapshot.ExpiresAt) {
		respondDetail(w, http.StatusGone, "Checkout session expired")
		return
	}

	sess.status = "completed"
	for _, item := range sess.items {
		if p := s.findProduct(item.ProductID); p != nil {
			p.Stock = max(0, p.Stock-item.Quantity)
		}
	}

	s.orderSeq++
	order := domain.Order{
		ID:              uuid.NewString(),
		TrackingNumber:  newTrackingNumber(now),
		InvoiceNumber:   fmt.Sprintf("RE-%d-%05d", now.Year(), s.orderSeq),
		CustomerName:    sess.snapshot.CustomerName,
		CustomerEmail:   sess.snapshot.CustomerEmail,
		ShippingAddress: sess.snapshot.ShippingAddress,
		ShippingCity:    sess.snapshot.ShippingCity,
		ShippingPostal:  sess.snapshot.ShippingPostal,
		ShippingCountry: sess.snapshot.ShippingCountry,
		Items:           sess.snapshot.Items,
		Subtotal:        sess.snapshot.Subtotal,
		ShippingCost:    sess.snapshot.ShippingCost,
		DiscountAmount:  sess.snapshot.DiscountAmount,
		TotalAmount:     sess.snapshot.TotalAmount,
		Status:          "paid",
		PaymentStatus:   "paid",
		CreatedAt:       now,
	}
	s.orders = append(s.orders, order)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"order":     order,
		"demo_mode": true,
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondDetail(w, http.StatusBadRequest, "Missing session_id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Demo sessions are addressed as demo_<token> on the live verify path.
	token := strings.TrimPrefix(sessionID, "demo_")
	if sess, ok := s.sessions[token]; ok && sess.status == "completed" {
		if order := s.orderForSession(sess); order != nil {
			respondJSON(w, http.StatusOK, map[string]any{
				"success":           true,
				"order":             order,
				"already_processed": true,
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"status":  "open",
		"message": "Payment not completed",
	})
}

func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.TrimPrefix(chi.URLParam(r, "session_id"), "demo_")
	if sess, ok := s.sessions[token]; ok && sess.status == "completed" {
		respondJSON(w, http.StatusOK, map[string]any{
			"payment_status": "paid",
			"order":          s.orderForSession(sess),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"payment_status": "pending"})
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nr := chi.URLParam(r, "tracking_number")
	for i := range s.orders {
		if s.orders[i].TrackingNumber == nr {
			respondJSON(w, http.StatusOK, s.orders[i])
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Order not found")
}

// orderForSession matches an order by the session's customer and totals.
func (s *Server) orderForSession(sess *session) *domain.Order {
	for i := range s.orders {
		o := &s.orders[i]
		if o.CustomerEmail == sess.snapshot.CustomerEmail && o.TotalAmount == sess.snapshot.TotalAmount {
			return o
		}
	}
	return nil
}
