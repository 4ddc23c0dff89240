package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single external trigger call.
const DefaultTimeout = 10 * time.Second

// ErrUnexpectedStatus is returned when the scheduler answers with neither 200 nor 201.
var ErrUnexpectedStatus = errors.New("unexpected status from scheduler")

// Conf is the DAG run configuration passed downstream.
type Conf struct {
	RawID int64 `json:"raw_id"`
}

// Caller performs the external trigger call.
type Caller interface {
	Trigger(ctx context.Context, conf Conf) error
}

// AirflowClient triggers a DAG run through the Airflow REST API.
type AirflowClient struct {
	endpoint string // .../api/v1/dags/<dag_id>/dagRuns
	username string
	password string
	client   *http.Client
	now      func() time.Time
}

// AirflowOption configures AirflowClient.
type AirflowOption func(*AirflowClient)

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) AirflowOption {
	return func(c *AirflowClient) {
		c.username = username
		c.password = password
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) AirflowOption {
	return func(c *AirflowClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) AirflowOption {
	return func(c *AirflowClient) {
		c.client = client
	}
}

// NewAirflowClient creates a client for a dagRuns endpoint.
func NewAirflowClient(endpoint string, opts ...AirflowOption) *AirflowClient {
	c := &AirflowClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dagRunRequest is the body of POST /dags/{dag_id}/dagRuns.
type dagRunRequest struct {
	DagRunID string `json:"dag_run_id"`
	Conf     Conf   `json:"conf"`
}

// Trigger creates one DAG run. Success is 200 or 201.
func (c *AirflowClient) Trigger(ctx context.Context, conf Conf) error {
	body, err := json.Marshal(dagRunRequest{
		DagRunID: c.dagRunID(),
		Conf:     conf,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
	}
	return nil
}

// dagRunID is unique per call: the UTC second plus a random suffix.
func (c *AirflowClient) dagRunID() string {
	return fmt.Sprintf("webhook_trigger_%s_%s",
		c.now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
}

var _ Caller = (*AirflowClient)(nil)
