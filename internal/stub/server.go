// Package stub is an in-memory implementation of the storefront backend
// contract. It backs local development and end-to-end tests; nothing in it
// survives a restart.
package stub

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Astra2544/weingut-storefront/internal/domain"
)

type Options struct {
	DemoMode              bool
	SessionTTL            time.Duration
	ShippingCost          float64
	FreeShippingThreshold float64

	// Now is overridable so expiry tests can travel in time.
	Now func() time.Time
}

type itemRef struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type account struct {
	customer domain.Customer
	password string
}

type session struct {
	token     string
	status    string // pending or completed
	createdAt time.Time

	snapshot   domain.CheckoutSession
	items      []itemRef
	customerID string
	phone      string
	notes      string
}

type Server struct {
	router chi.Router
	opts   Options

	mu       sync.Mutex
	products []domain.Product
	accounts map[string]*account // keyed by lowercase email
	tokens   map[string]string   // auth token -> customer id
	carts    map[string][]itemRef
	sessions map[string]*session // session token -> session
	orders   []domain.Order
	orderSeq int
}

func New(opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.ShippingCost <= 0 {
		opts.ShippingCost = 9.90
	}
	if opts.FreeShippingThreshold <= 0 {
		opts.FreeShippingThreshold = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts:     opts,
		products: seedProducts(),
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		carts:    make(map[string][]itemRef),
		sessions: make(map[string]*session),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Get("/products/{slug}", s.getProduct)

		r.Post("/customer/register", s.register)
		r.Post("/customer/login", s.login)
		r.Get("/customer/me", s.me)
		r.Get("/customer/cart", s.getCart)
		r.Post("/customer/cart", s.putCart)
		r.Delete("/customer/cart", s.clearCart)
		r.Get("/customer/orders", s.listOrders)

		r.Post("/orders/create-checkout", s.createCheckout)
		r.Get("/checkout/session/{token}", s.getSession)
		r.Get("/checkout/status", s.checkoutStatus)
		r.Post("/checkout/demo/complete", s.completeDemo)

		r.Get("/payment/verify", s.verifyPayment)
		r.Get("/payment/status/{session_id}", s.paymentStatus)

		r.Get("/tracking/{tracking_number}", s.track)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: "prod-likoer-kirsch", Slug: "kirschlikoer", NameDE: "Kirschlikör", NameEN: "Cherry Liqueur",
			Price: 24.90, Category: "likoer", Stock: 18, IsFeatured: true, ImageURL: "/images/kirschlikoer.jpg"},
		{ID: "prod-likoer-walnuss", Slug: "walnusslikoer", NameDE: "Walnusslikör", NameEN: "Walnut Liqueur",
			Price: 26.90, OriginalPrice: 29.90, Category: "likoer", Stock: 9, ImageURL: "/images/walnuss.jpg"},
		{ID: "prod-brand-zwetschge", Slug: "zwetschgenbrand", NameDE: "Zwetschgenbrand", NameEN: "Plum Brandy",
			Price: 39.90, Category: "braende", Stock: 6, ImageURL: "/images/zwetschge.jpg"},
		{ID: "prod-marmelade-quitte", Slug: "quittengelee", NameDE: "Quittengelee", NameEN: "Quince Jelly",
			Price: 8.90, Category: "marmeladen", Stock: 42, ImageURL: "/images/quitte.jpg"},
		{ID: "prod-wein-riesling", Slug: "riesling-trocken", NameDE: "Riesling trocken", NameEN: "Dry Riesling",
			Price: 14.50, Category: "wein", Stock: 0, ImageURL: "/images/riesling.jpg"},
	}
}

func (s *Server) findProduct(idOrSlug string) *domain.Product {
	for i := range s.products {
		if s.products[i].ID == idOrSlug || s.products[i].Slug == idOrSlug {
			return &s.products[i]
		}
	}
	return nil
}

// authedCustomer resolves the bearer token; empty id means unauthenticated.
func (s *Server) authedCustomer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return s.tokens[token]
}

func newTrackingNumber(now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "HB" + now.Format("060102") + random
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
