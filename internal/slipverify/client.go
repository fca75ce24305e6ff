package slipverify

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Result codes returned by the verification provider.
const (
	CodeDuplicate  = "duplicate_slip"
	CodeUnreadable = "unreadable_slip"
	CodeNotFound   = "transaction_not_found"
)

// Result is the provider's verdict on one slip. Amount is the transfer
// amount read from the slip, reported even on success so callers can check
// it against the expected charge.
type Result struct {
	Success  bool
	Code     string
	Message  string
	Amount   float64
	TransRef string
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &Client{http: client}
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Amount   float64 `json:"amount"`
		TransRef string  `json:"transRef"`
	} `json:"data"`
}

// Verify uploads the slip image together with the amount the payment expects
// and returns the provider's verdict. The provider matches the claimed amount
// against the transfer it finds on the slip. Network failures and timeouts
// surface as errors; a readable slip that fails verification comes back as a
// Result with Success=false.
func (c *Client) Verify(ctx context.Context, fileName string, file io.Reader, amount float64) (*Result, error) {
	var body verifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"amount": strconv.FormatFloat(amount, 'f', 2, 64),
		}).
		SetFileReader("file", fileName, file).
		SetResult(&body).
		SetError(&body).
		Post("/api/v1/verify")
	if err != nil {
		return nil, fmt.Errorf("slip verification request: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("slip verification service returned %d", resp.StatusCode())
	}

	return &Result{
		Success:  body.Success,
		Code:     body.Code,
		Message:  body.Message,
		Amount:   body.Data.Amount,
		TransRef: body.Data.TransRef,
	}, nil
}
