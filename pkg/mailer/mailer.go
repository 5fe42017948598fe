// Package mailer sends transactional email through a Resend-compatible HTTP
// API. No SMTP: delivery is the upstream's problem.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	From    string
	client  *http.Client
}

func NewClient(baseURL, apiKey, from string) *Client {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		From:    from,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an API key is configured. When false, Send logs
// and drops the message instead of failing the caller.
func (c *Client) Enabled() bool { return c.APIKey != "" }

type sendReq struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResp struct {
	ID string `json:"id"`
}

// Send delivers one HTML email and returns the upstream message id.
func (c *Client) Send(ctx context.Context, to, subject, html string) (string, error) {
	if !c.Enabled() {
		log.Printf("[Mailer] disabled, dropping mail to=%s subject=%q", to, subject)
		return "", nil
	}
	body, _ := json.Marshal(sendReq{From: c.From, To: []string{to}, Subject: subject, HTML: html})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("mailer: %d %s", resp.StatusCode, string(respBody))
	}
	var out sendResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GiftCardHTML renders the delivery email body for a redeemed card.
func GiftCardHTML(store, cardName, code string, amount float64, currency string) string {
	return fmt.Sprintf(
		`<h2>Your %s gift card is ready</h2>
<p>Thanks for paying with Mizu Pay. Redeem the card below at %s.</p>
<p><b>%s</b>, %.2f %s</p>
<p>Code: <code>%s</code></p>
<p>The code is also available under "My redemptions" in your account.</p>`,
		store, store, cardName, amount, currency, code)
}
