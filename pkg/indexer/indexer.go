// Package indexer wraps the blockchain event indexer that watches cUSD
// transfers to the Mizu Pay treasury address and reports confirmations.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://indexer.mizupay.xyz"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Payment is a confirmed on-chain transfer as reported by the indexer.
type Payment struct {
	TxHash      string  `json:"tx_hash"`
	SessionID   string  `json:"session_id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	AmountCUSD  float64 `json:"amount_cusd"`
	BlockNumber uint64  `json:"block_number"`
	Status      string  `json:"status"` // confirmed | pending | failed
}

// GetPayment fetches the indexer's view of a transaction. Used to re-verify
// webhook payloads before money-moving decisions.
func (c *Client) GetPayment(ctx context.Context, txHash string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+txHash, nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("indexer: tx %s not found", txHash)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer: %d %s", resp.StatusCode, string(body))
	}
	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment confirms that txHash is a confirmed transfer for sessionID of
// at least minAmountCUSD. Returns the payment on success.
func (c *Client) VerifyPayment(ctx context.Context, txHash, sessionID string, minAmountCUSD float64) (*Payment, error) {
	p, err := c.GetPayment(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if p.Status != "confirmed" {
		return nil, fmt.Errorf("indexer: tx %s is %s, not confirmed", txHash, p.Status)
	}
	if p.SessionID != sessionID {
		return nil, fmt.Errorf("indexer: tx %s belongs to session %s, not %s", txHash, p.SessionID, sessionID)
	}
	if p.AmountCUSD+1e-9 < minAmountCUSD {
		return nil, fmt.Errorf("indexer: tx %s paid %.4f cUSD, need %.4f", txHash, p.AmountCUSD, minAmountCUSD)
	}
	return p, nil
}
