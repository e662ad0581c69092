// Package cartsync keeps the guest (local) cart and the authenticated
// (server-held) cart consistent across login and logout. Sync is strictly
// best-effort: a broken backend never blocks shopping.
package cartsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Astra2544/weingut-storefront/internal/cart"
	"github.com/Astra2544/weingut-storefront/internal/customer"
	"github.com/Astra2544/weingut-storefront/internal/domain"
)

// CartAPI is the slice of the customer client the syncer needs.
type CartAPI interface {
	FetchCart(ctx context.Context) ([]customer.CartItemRef, error)
	SaveCart(ctx context.Context, items []customer.CartItemRef) error
}

// ProductResolver enriches server-only cart lines with price and stock
// snapshots. Satisfied by catalog.Client.
type ProductResolver interface {
	Product(ctx context.Context, slugOrID string) (*domain.Product, error)
}

// Syncer pushes full cart snapshots to the server while a customer is
// authenticated, and merges the two carts on login. Pushes coalesce: a burst
// of mutations collapses to one push of the latest snapshot, which is safe
// because the server replaces rather than appends (last write wins).
type Syncer struct {
	api      CartAPI
	products ProductResolver
	cart     *cart.Store
	logger   *slog.Logger

	active  atomic.Bool
	pending chan domain.Cart
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func New(api CartAPI, products ProductResolver, store *cart.Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		api:      api,
		products: products,
		cart:     store,
		logger:   logger,
		pending:  make(chan domain.Cart, 1),
		stop:     make(chan struct{}),
	}
}

// Start hooks the syncer into the cart store and launches the push worker.
func (s *Syncer) Start(ctx context.Context) {
	s.cart.OnChange(s.enqueue)
	s.wg.Add(1)
	go s.worker(ctx)
}

// Close stops the worker. Pending pushes are abandoned; the local cart is
// already durable.
func (s *Syncer) Close() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// OnLogin merges the server-held cart into the local one and starts pushing.
// A failed fetch leaves both carts untouched and pushing disabled: until a
// merge has happened, a push would overwrite server-held lines the client
// has never seen.
func (s *Syncer) OnLogin(ctx context.Context) {
	serverItems, err := s.api.FetchCart(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "could not fetch server cart, keeping local cart and skipping sync", "error", err)
		return
	}

	merged := s.Merge(ctx, s.cart.Items(), serverItems)
	s.active.Store(true)
	// Replace fires the change hook, which enqueues the first push.
	s.cart.Replace(ctx, merged)
}

// OnLogout stops pushing. Nothing is deleted on either side; the next
// login's merge decides reconciliation.
func (s *Syncer) OnLogout() {
	s.active.Store(false)
}

// Merge reconciles a guest cart with a server cart: union by product id,
// taking the larger quantity, guest insertion order first and server-only
// lines appended. An empty server cart therefore never erases a non-empty
// guest cart, and no line from either side is lost.
func (s *Syncer) Merge(ctx context.Context, guest []domain.LineItem, server []customer.CartItemRef) []domain.LineItem {
	merged := append([]domain.LineItem(nil), guest...)
	index := make(map[string]int, len(merged))
	for i, li := range merged {
		index[li.ProductID] = i
	}

	for _, ref := range server {
		if ref.Quantity < 1 {
			continue
		}
		if i, ok := index[ref.ProductID]; ok {
			if ref.Quantity > merged[i].Quantity {
				merged[i].Quantity = min(ref.Quantity, merged[i].Stock)
			}
			continue
		}
		merged = append(merged, s.resolveLine(ctx, ref))
		index[ref.ProductID] = len(merged) - 1
	}
	return merged
}

// resolveLine turns a server cart reference into a full line item. If the
// catalog lookup fails the line is kept anyway with an empty snapshot rather
// than dropped; the checkout session reprices everything server-side.
func (s *Syncer) resolveLine(ctx context.Context, ref customer.CartItemRef) domain.LineItem {
	p, err := s.products.Product(ctx, ref.ProductID)
	if err != nil {
		s.logger.WarnContext(ctx, "could not resolve product for server cart line",
			"product_id", ref.ProductID, "error", err)
		return domain.LineItem{ProductID: ref.ProductID, Quantity: ref.Quantity, Stock: ref.Quantity}
	}
	qty := ref.Quantity
	if qty > p.Stock {
		qty = p.Stock
	}
	return domain.LineItem{
		ProductID: ref.ProductID,
		Quantity:  qty,
		UnitPrice: p.Price,
		Stock:     p.Stock,
	}
}

// enqueue coalesces snapshots into the single pending slot.
func (s *Syncer) enqueue(c domain.Cart) {
	if !s.active.Load() {
		return
	}
	for {
		select {
		case s.pending <- c:
			return
		default:
		}
		select {
		case <-s.pending: // drop the superseded snapshot
		default:
		}
	}
}

func (s *Syncer) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case snapshot := <-s.pending:
			s.push(ctx, snapshot)
		}
	}
}

// push sends the full snapshot. Failures are warnings, never surfaced.
func (s *Syncer) push(ctx context.Context, snapshot domain.Cart) {
	if !s.active.Load() {
		return
	}
	refs := make([]customer.CartItemRef, 0, len(snapshot.Items))
	for _, li := range snapshot.Items {
		refs = append(refs, customer.CartItemRef{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	if err := s.api.SaveCart(ctx, refs); err != nil {
		s.logger.WarnContext(ctx, "cart push failed", "error", err)
	}
}
