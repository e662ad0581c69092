// Package catalog reads the product catalog.
package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/Astra2544/weingut-storefront/internal/domain"
	"github.com/Astra2544/weingut-storefront/internal/httpx"
)

type Client struct {
	http    *httpx.Client
	apiBase string
}

func NewClient(hc *httpx.Client, backendURL string) *Client {
	return &Client{http: hc, apiBase: strings.TrimRight(backendURL, "/") + "/api"}
}

// Products lists the catalog, optionally filtered by category ("" and "all"
// mean everything).
func (c *Client) Products(ctx context.Context, category string) ([]domain.Product, error) {
	u := c.apiBase + "/products"
	if category != "" && category != "all" {
		u += "?" + url.Values{"category": {category}}.Encode()
	}
	var products []domain.Product
	if err := c.http.Get(ctx, u, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Product fetches one product by slug; the backend also accepts a product ID.
func (c *Client) Product(ctx context.Context, slugOrID string) (*domain.Product, error) {
	var p domain.Product
	if err := c.http.Get(ctx, c.apiBase+"/products/"+url.PathEscape(slugOrID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
