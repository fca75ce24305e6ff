package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	Timeout       time.Duration
}

// Client talks to the hosted checkout provider. Sessions are created server
// side; the browser is redirected to the returned URL and the provider calls
// back over the webhook.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type sessionRequest struct {
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Reference  string            `json:"reference"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession registers a checkout for the given amount, carrying the
// payment ID as the reference the provider echoes back in webhooks.
func (c *Client) CreateSession(ctx context.Context, paymentID string, amount float64) (sessionID, redirectURL string, err error) {
	payload := sessionRequest{
		Amount:     amount,
		Currency:   c.cfg.Currency,
		Reference:  paymentID,
		SuccessURL: c.cfg.SuccessURL,
		CancelURL:  c.cfg.CancelURL,
		Metadata:   map[string]string{"payment_id": paymentID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", "", fmt.Errorf("gateway response: %w", err)
	}
	return session.SessionID, session.RedirectURL, nil
}

// VerifySignature checks the webhook signature: hex-encoded HMAC-SHA256 of
// the raw request body under the shared secret. Comparison is constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
