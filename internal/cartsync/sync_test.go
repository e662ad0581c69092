package cartsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Astra2544/weingut-storefront/internal/cart"
	"github.com/Astra2544/weingut-storefront/internal/customer"
	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	m    sync.RWMutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

type fakeAPI struct {
	m        sync.Mutex
	server   []customer.CartItemRef
	pushes   [][]customer.CartItemRef
	fetchErr error
	saveErr  error
}

func (f *fakeAPI) FetchCart(context.Context) ([]customer.CartItemRef, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]customer.CartItemRef(nil), f.server...), nil
}

func (f *fakeAPI) SaveCart(_ context.Context, items []customer.CartItemRef) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.pushes = append(f.pushes, items)
	f.server = items
	return nil
}

func (f *fakeAPI) pushCount() int {
	f.m.Lock()
	defer f.m.Unlock()
	return len(f.pushes)
}

func (f *fakeAPI) serverItems() []customer.CartItemRef {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]customer.CartItemRef(nil), f.server...)
}

func (f *fakeAPI) lastPush() []customer.CartItemRef {
	f.m.Lock()
	defer f.m.Unlock()
	if len(f.pushes) == 0 {
		return nil
	}
	return f.pushes[len(f.pushes)-1]
}

type fakeResolver struct {
	products map[string]domain.Product
}

func (f *fakeResolver) Product(_ context.Context, id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s not found", id)
	}
	return &p, nil
}

var (
	likoer = domain.Product{ID: "p1", Price: 24.90, Stock: 5}
	jam    = domain.Product{ID: "p2", Price: 8.90, Stock: 100}
	brand  = domain.Product{ID: "p3", Price: 39.90, Stock: 10}
)

func testResolver() *fakeResolver {
	return &fakeResolver{products: map[string]domain.Product{
		likoer.ID: likoer, jam.ID: jam, brand.ID: brand,
	}}
}

func newCartStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(newMemStore(), nil)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestMerge_GuestAndServerUnion(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	store.AddItem(ctx, likoer, 1)

	api := &fakeAPI{server: []customer.CartItemRef{
		{ProductID: jam.ID, Quantity: 2},
		{ProductID: brand.ID, Quantity: 1},
	}}
	s := New(api, testResolver(), store, nil)

	s.OnLogin(ctx)

	items := store.Items()
	require.Len(t, items, 3, "guest item plus two server items, none lost")
	assert.Equal(t, likoer.ID, items[0].ProductID, "guest insertion order first")
	assert.Equal(t, jam.ID, items[1].ProductID)
	assert.Equal(t, brand.ID, items[2].ProductID)
	assert.InDelta(t, 8.90, items[1].UnitPrice, 1e-9, "server lines enriched from catalog")
}

func TestMerge_TakesLargerQuantity(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	store.AddItem(ctx, likoer, 2)

	api := &fakeAPI{server: []customer.CartItemRef{{ProductID: likoer.ID, Quantity: 4}}}
	New(api, testResolver(), store, nil).OnLogin(ctx)

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
}

func TestMerge_EmptyServerCartNeverErasesGuestCart(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	store.AddItem(ctx, likoer, 2)
	store.AddItem(ctx, jam, 1)

	api := &fakeAPI{}
	New(api, testResolver(), store, nil).OnLogin(ctx)

	assert.Len(t, store.Items(), 2)
}

func TestMerge_UnresolvableServerLineKept(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)

	api := &fakeAPI{server: []customer.CartItemRef{{ProductID: "discontinued", Quantity: 2}}}
	New(api, testResolver(), store, nil).OnLogin(ctx)

	items := store.Items()
	require.Len(t, items, 1, "server line must not be dropped on a catalog miss")
	assert.Equal(t, 2, items[0].Quantity)
}

func TestOnLogin_FetchFailureKeepsLocalCart(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	store.AddItem(ctx, likoer, 2)

	api := &fakeAPI{fetchErr: assert.AnError}
	New(api, testResolver(), store, nil).OnLogin(ctx)

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestOnLogin_FetchFailureNeverOverwritesServerCart(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	store.AddItem(ctx, likoer, 1)

	serverCart := []customer.CartItemRef{
		{ProductID: jam.ID, Quantity: 2},
		{ProductID: brand.ID, Quantity: 1},
	}
	api := &fakeAPI{server: serverCart, fetchErr: assert.AnError}
	s := New(api, testResolver(), store, nil)
	s.Start(ctx)
	defer s.Close()

	s.OnLogin(ctx)
	store.AddItem(ctx, jam, 1)
	time.Sleep(50 * time.Millisecond)

	// No merge happened, so nothing may be pushed: the server-held lines
	// would be silently destroyed by a guest-only snapshot.
	assert.Zero(t, api.pushCount())
	assert.Equal(t, serverCart, api.serverItems(), "server cart untouched until a merge succeeds")
	assert.Len(t, store.Items(), 2, "local shopping continues unaffected")
}

func TestWorker_PushesFullSnapshotOnMutation(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	api := &fakeAPI{}
	s := New(api, testResolver(), store, nil)
	s.Start(ctx)
	defer s.Close()

	s.OnLogin(ctx)
	store.AddItem(ctx, likoer, 1)
	store.AddItem(ctx, jam, 2)

	waitFor(t, func() bool {
		last := api.lastPush()
		return len(last) == 2
	})
	last := api.lastPush()
	assert.Equal(t, []customer.CartItemRef{
		{ProductID: likoer.ID, Quantity: 1},
		{ProductID: jam.ID, Quantity: 2},
	}, last, "pushes carry the full snapshot, never a delta")
}

func TestWorker_NoPushesForGuests(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	api := &fakeAPI{}
	s := New(api, testResolver(), store, nil)
	s.Start(ctx)
	defer s.Close()

	store.AddItem(ctx, likoer, 1)
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, api.pushCount())
}

func TestWorker_StopsAfterLogout(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	api := &fakeAPI{}
	s := New(api, testResolver(), store, nil)
	s.Start(ctx)
	defer s.Close()

	s.OnLogin(ctx)
	store.AddItem(ctx, likoer, 1)
	waitFor(t, func() bool { return api.pushCount() > 0 })
	before := api.pushCount()

	s.OnLogout()
	store.AddItem(ctx, jam, 1)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, before, api.pushCount())
	assert.Len(t, store.Items(), 2, "local cart persists across logout")
}

func TestWorker_PushFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newCartStore(t)
	api := &fakeAPI{saveErr: assert.AnError}
	s := New(api, testResolver(), store, nil)
	s.Start(ctx)
	defer s.Close()

	s.OnLogin(ctx)
	store.AddItem(ctx, likoer, 1)
	time.Sleep(50 * time.Millisecond)

	// Shopping continues; nothing surfaced.
	assert.Len(t, store.Items(), 1)
}
