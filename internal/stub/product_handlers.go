package stub

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Astra2544/weingut-storefront/internal/domain"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category := r.URL.Query().Get("category")
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && category != "all" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findProduct(chi.URLParam(r, "slug"))
	if p == nil {
		respondDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, *p)
}
