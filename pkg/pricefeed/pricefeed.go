// Package pricefeed fetches CELO and cUSD spot prices in USD from a
// CoinGecko-compatible API, with a short in-process cache so the checkout
// page can poll without hammering the upstream.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type Quote struct {
	CeloUSD float64 `json:"celo_usd"`
	CusdUSD float64 `json:"cusd_usd"`
	AsOf    time.Time
}

type Client struct {
	BaseURL  string
	CacheTTL time.Duration
	client   *http.Client

	mu     sync.Mutex
	cached *Quote
}

func NewClient(baseURL string, cacheTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Client{
		BaseURL:  baseURL,
		CacheTTL: cacheTTL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// GetQuote returns current prices, serving from cache inside CacheTTL.
func (c *Client) GetQuote(ctx context.Context) (*Quote, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cached.AsOf) < c.CacheTTL {
		q := *c.cached
		c.mu.Unlock()
		return &q, nil
	}
	c.mu.Unlock()

	url := c.BaseURL + "/simple/price?ids=celo,celo-dollar&vs_currencies=usd"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricefeed: %d %s", resp.StatusCode, string(body))
	}
	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	q := &Quote{
		CeloUSD: raw["celo"].USD,
		CusdUSD: raw["celo-dollar"].USD,
		AsOf:    time.Now(),
	}
	if q.CeloUSD <= 0 {
		return nil, fmt.Errorf("pricefeed: invalid CELO price %.6f", q.CeloUSD)
	}
	if q.CusdUSD <= 0 {
		// cUSD is a dollar stablecoin; a missing quote is not fatal.
		q.CusdUSD = 1.0
	}
	c.mu.Lock()
	c.cached = q
	c.mu.Unlock()
	return q, nil
}
