// Package cart owns the local shopping cart: quantity rules, write-through
// persistence and rehydration. The persisted copy is the record for guests;
// once a customer is authenticated it acts as a fast-access cache in front
// of the server-held cart (see cartsync).
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/storage"
)

var (
	ErrQuantityTooLow = errors.New("quantity must be at least 1, remove the item instead")
	ErrItemNotFound   = errors.New("item not in cart")
)

// Store is the single writer of the persisted cart key. All mutations are
// mirrored to local storage; persistence failures are logged and swallowed
// so shopping never blocks on a broken disk.
type Store struct {
	mu       sync.RWMutex
	cart     domain.Cart
	local    storage.Store
	logger   *slog.Logger
	onChange func(domain.Cart)
}

func NewStore(local storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{local: local, logger: logger}
}

// OnChange registers a hook receiving a full snapshot after every mutation.
// Used by the sync service; must not block.
func (s *Store) OnChange(fn func(domain.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load rehydrates the cart from local storage. Missing or stale state means
// an empty cart, not an error.
func (s *Store) Load(ctx context.Context) error {
	var cart domain.Cart
	err := storage.GetJSON(ctx, s.local, storage.KeyCart, &cart)
	if err != nil && !storage.Absent(err) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart
	return nil
}

// AddItem merges quantity into an existing line or inserts a new one,
// clamped to [1, stock]. Out-of-stock products never enter the cart: the
// call is a deliberate no-op.
func (s *Store) AddItem(ctx context.Context, p domain.Product, quantity int) {
	if !p.InStock() {
		s.logger.DebugContext(ctx, "ignoring add of out-of-stock product", "product_id", p.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.cart.Find(p.ID); i >= 0 {
		s.cart.Items[i].Quantity = clamp(s.cart.Items[i].Quantity+quantity, 1, p.Stock)
		s.cart.Items[i].Stock = p.Stock
	} else {
		s.cart.Items = append(s.cart.Items, domain.LineItem{
			ProductID: p.ID,
			Quantity:  clamp(quantity, 1, p.Stock),
			UnitPrice: p.Price,
			Stock:     p.Stock,
		})
	}
	s.commitLocked(ctx)
}

// SetQuantity clamps to [1, stock at add time]. Quantities below 1 are
// rejected; RemoveItem is the way to drop a line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrQuantityTooLow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cart.Find(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	s.cart.Items[i].Quantity = clamp(quantity, 1, s.cart.Items[i].Stock)
	s.commitLocked(ctx)
	return nil
}

// RemoveItem drops the line; removing an absent item is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cart.Find(productID)
	if i < 0 {
		return
	}
	s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
	s.commitLocked(ctx)
}

// Replace swaps in a whole new item list. Used by the sync service after a
// login merge.
func (s *Store) Replace(ctx context.Context, items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Items = append([]domain.LineItem(nil), items...)
	s.commitLocked(ctx)
}

// Clear empties the cart. Called exactly once, after a confirmed payment
// completion, never before.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Items = nil
	s.commitLocked(ctx)
}

// Items returns the lines in insertion order as a defensive copy.
func (s *Store) Items() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LineItem(nil), s.cart.Items...)
}

// Snapshot returns a copy of the whole cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Cart{
		Items:     append([]domain.LineItem(nil), s.cart.Items...),
		UpdatedAt: s.cart.UpdatedAt,
	}
}

// Subtotal derives the display subtotal. The authoritative total always
// comes from the checkout session.
func (s *Store) Subtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Subtotal()
}

// commitLocked mirrors the cart to local storage and fires the change hook.
// Caller holds s.mu.
func (s *Store) commitLocked(ctx context.Context) {
	s.cart.UpdatedAt = time.Now().UTC()

	snapshot := domain.Cart{
		Items:     append([]domain.LineItem(nil), s.cart.Items...),
		UpdatedAt: s.cart.UpdatedAt,
	}
	if err := storage.PutJSON(ctx, s.local, storage.KeyCart, snapshot); err != nil {
		s.logger.WarnContext(ctx, "failed to persist cart", "error", err)
	}
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
