package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.helius.xyz/v0"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrUnexpectedStatus is returned when the API answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Webhook is a Helius webhook subscription.
type Webhook struct {
	WebhookID        string   `json:"webhookID,omitempty"`
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	TxnStatus        string   `json:"txnStatus,omitempty"`
	AuthHeader       string   `json:"authHeader"`
}

// Client talks to the Helius webhooks API.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new Helius API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListWebhooks returns every webhook registered for the API key.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var hooks []Webhook
	if err := c.call(ctx, http.MethodGet, "", nil, &hooks); err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

// CreateWebhook registers a new webhook.
func (c *Client) CreateWebhook(ctx context.Context, hook Webhook) (*Webhook, error) {
	var created Webhook
	if err := c.call(ctx, http.MethodPost, "", hook, &created); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return &created, nil
}

// UpdateWebhook replaces the configuration of an existing webhook.
func (c *Client) UpdateWebhook(ctx context.Context, id string, hook Webhook) (*Webhook, error) {
	if id == "" {
		return nil, errors.New("update webhook: empty webhook id")
	}
	hook.WebhookID = ""

	var updated Webhook
	if err := c.call(ctx, http.MethodPut, id, hook, &updated); err != nil {
		return nil, fmt.Errorf("update webhook %s: %w", id, err)
	}
	return &updated, nil
}

func (c *Client) endpoint(id string) string {
	u := c.baseURL + "/webhooks"
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u + "?api-key=" + url.QueryEscape(c.apiKey)
}

// call performs one API request with retries and exponential backoff.
// Network errors, 429 and 5xx are retried; other statuses are not.
func (c *Client) call(ctx context.Context, method, id string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(id), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(respBody))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				continue
			}
			return lastErr
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
