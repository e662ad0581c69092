package stub

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Astra2544/weingut-storefront/internal/domain"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		respondDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[email]; exists {
		respondDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	acc := &account{
		customer: domain.Customer{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		},
		password: req.Password,
	}
	s.accounts[email] = acc

	token := uuid.NewString()
	s.tokens[token] = acc.customer.ID
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "customer": acc.customer})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || acc.password != req.Password {
		respondDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token := uuid.NewString()
	s.tokens[token] = acc.customer.ID
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "customer": acc.customer})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.authedCustomer(r)
	if id == "" {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	for _, acc := range s.accounts {
		if acc.customer.ID == id {
			respondJSON(w, http.StatusOK, acc.customer)
			return
		}
	}
	respondDetail(w, http.StatusUnauthorized, "Not authenticated")
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.authedCustomer(r)
	if id == "" {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	items := s.carts[id]
	if items == nil {
		items = []itemRef{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// putCart replaces the whole server-held cart, last write wins.
func (s *Server) putCart(w http.ResponseWriter, r *http.Request) {
	var items []itemRef
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.authedCustomer(r)
	if id == "" {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if items == nil {
		items = []itemRef{}
	}
	s.carts[id] = items
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.authedCustomer(r)
	if id == "" {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	delete(s.carts, id)
	respondJSON(w, http.StatusOK, map[string]any{"items": []itemRef{}})
}

// listOrders returns the customer's orders, newest first.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.authedCustomer(r)
	if id == "" {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	email := ""
	for _, acc := range s.accounts {
		if acc.customer.ID == id {
			email = acc.customer.Email
		}
	}

	out := []domain.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].CustomerEmail == email {
			out = append(out, s.orders[i])
		}
	}
	respondJSON(w, http.StatusOK, out)
}
