package catalog

import (
	"context"
	"sync"

	"github.com/Astra2544/weingut-storefront/internal/domain"
)

// Feed drives a product listing view. Each Refresh supersedes the previous
// one: the in-flight request is cancelled and, even if its response still
// arrives, a stale result is never delivered. This is the guard against a
// retried fetch updating a view whose filter has changed mid-backoff.
type Feed struct {
	client   *Client
	onUpdate func([]domain.Product)
	onError  func(error)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed builds a feed delivering results to onUpdate. onError may be nil.
func NewFeed(client *Client, onUpdate func([]domain.Product), onError func(error)) *Feed {
	return &Feed{client: client, onUpdate: onUpdate, onError: onError}
}

// Refresh starts a fetch for category, superseding any fetch still running.
func (f *Feed) Refresh(ctx context.Context, category string) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	if f.cancel != nil {
		f.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer cancel()

		products, err := f.client.Products(fetchCtx, category)

		f.mu.Lock()
		stale := gen != f.gen
		f.mu.Unlock()
		if stale {
			return
		}

		if err != nil {
			if f.onError != nil {
				f.onError(err)
			}
			return
		}
		f.onUpdate(products)
	}()
}

// Close cancels any in-flight fetch and waits for the worker to finish.
func (f *Feed) Close() {
	f.mu.Lock()
	f.gen++ // anything still in flight is now stale
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()
	f.wg.Wait()
}
