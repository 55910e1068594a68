package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client talks to the external payment gateway. Round-trips are
// bounded and retryable; nothing in the engine ever blocks on the
// gateway outside these calls.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zerolog.Logger
}

type Config struct {
	KeyID      string        `yaml:"key_id"`
	KeySecret  string        `yaml:"key_secret"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Order is the gateway-side order a client checkout references.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func NewClient(cfg Config, logger *zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// KeyID returns the public key identifier a client checkout needs.
func (c *Client) KeyID() string {
	return c.cfg.KeyID
}

// CreateOrder registers an order with the gateway. Amount is in major
// currency units; the gateway wants minor units (paise).
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*Order, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		order, err := c.postOrder(ctx, body)
		if err == nil {
			return order, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("gateway order creation failed")
	}
	return nil, fmt.Errorf("gateway order creation failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) postOrder(ctx context.Context, body []byte) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	return &order, nil
}

// VerifySignature checks the gateway callback signature: an
// HMAC-SHA256 of "orderID|paymentID" under the key secret. Pure, no
// network.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
