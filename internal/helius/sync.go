// Package helius keeps the Helius webhook subscription in line with the
// addresses stored in the database.
package helius

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"helius-swap-ingest/internal/observability"
	"helius-swap-ingest/internal/storage"
)

// ErrNoAddresses means the address source returned no usable address.
// The subscription is left untouched.
var ErrNoAddresses = errors.New("no addresses to watch")

// Sync actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"
)

// WebhookAPI is the subset of the Helius API the synchronizer needs.
type WebhookAPI interface {
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	CreateWebhook(ctx context.Context, hook Webhook) (*Webhook, error)
	UpdateWebhook(ctx context.Context, id string, hook Webhook) (*Webhook, error)
}

var _ WebhookAPI = (*Client)(nil)

// SyncResult describes one synchronizer pass.
type SyncResult struct {
	Action    string
	WebhookID string
	Addresses int // addresses sent to the provider
	Rejected  int // malformed addresses dropped
	OffCurve  int // program derived addresses among Addresses
}

// Synchronizer pushes the address list to the webhook subscription.
type Synchronizer struct {
	api              WebhookAPI
	addresses        storage.AddressSource
	webhookURL       string
	webhookID        string
	transactionTypes []string
	webhookType      string
	txnStatus        string
	authHeader       string
	lookback         time.Duration
	limit            int
	now              func() time.Time
	logger           *log.Logger
}

// SyncOptions contains configuration for creating a Synchronizer.
type SyncOptions struct {
	API              WebhookAPI
	Addresses        storage.AddressSource
	WebhookURL       string        // Where the provider delivers notifications
	WebhookID        string        // Optional: update this webhook instead of the first listed
	TransactionTypes []string      // Default: ["SWAP"]
	WebhookType      string        // Default: "enhanced"
	TxnStatus        string        // Default: "all"
	AuthHeader       string        // Sent back by the provider as the Authorization header
	Lookback         time.Duration // Optional: only addresses updated within this window (0 = all)
	Limit            int           // Optional: cap on addresses (0 = no cap)
	Now              func() time.Time
	Logger           *log.Logger
}

// NewSynchronizer creates a new subscription synchronizer.
func NewSynchronizer(opts SyncOptions) *Synchronizer {
	txTypes := opts.TransactionTypes
	if len(txTypes) == 0 {
		txTypes = []string{"SWAP"}
	}

	webhookType := opts.WebhookType
	if webhookType == "" {
		webhookType = "enhanced"
	}

	txnStatus := opts.TxnStatus
	if txnStatus == "" {
		txnStatus = "all"
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Synchronizer{
		api:              opts.API,
		addresses:        opts.Addresses,
		webhookURL:       opts.WebhookURL,
		webhookID:        opts.WebhookID,
		transactionTypes: txTypes,
		webhookType:      webhookType,
		txnStatus:        txnStatus,
		authHeader:       opts.AuthHeader,
		lookback:         opts.Lookback,
		limit:            opts.Limit,
		now:              now,
		logger:           logger,
	}
}

// Sync runs one pass: load addresses, then update the configured (or first
// existing) webhook, or create one when none exists.
func (s *Synchronizer) Sync(ctx context.Context) (SyncResult, error) {
	result, err := s.sync(ctx)
	if err != nil {
		if errors.Is(err, ErrNoAddresses) {
			result.Action = ActionSkipped
		} else {
			result.Action = ActionFailed
		}
	}
	observability.RecordSync(result.Action, result.Addresses, result.Rejected)
	return result, err
}

func (s *Synchronizer) sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	var since time.Time
	if s.lookback > 0 {
		since = s.now().Add(-s.lookback)
	}

	raw, err := s.addresses.ListAddresses(ctx, since, s.limit)
	if err != nil {
		return result, fmt.Errorf("fetch addresses: %w", err)
	}

	addresses := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, addr := range raw {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		key, err := ParseAddress(addr)
		if err != nil {
			s.logger.Printf("Skipping address: %v", err)
			result.Rejected++
			continue
		}
		if !IsOnCurve(key) {
			result.OffCurve++
		}
		addresses = append(addresses, addr)
	}
	result.Addresses = len(addresses)

	if len(addresses) == 0 {
		s.logger.Println("No addresses retrieved from the DB")
		return result, ErrNoAddresses
	}
	if result.OffCurve > 0 {
		s.logger.Printf("%d of %d addresses are program derived", result.OffCurve, len(addresses))
	}

	hook := Webhook{
		WebhookURL:       s.webhookURL,
		TransactionTypes: s.transactionTypes,
		AccountAddresses: addresses,
		WebhookType:      s.webhookType,
		TxnStatus:        s.txnStatus,
		AuthHeader:       s.authHeader,
	}

	id := s.webhookID
	if id == "" {
		existing, err := s.api.ListWebhooks(ctx)
		if err != nil {
			return result, err
		}
		if len(existing) > 0 {
			id = existing[0].WebhookID
			if id == "" {
				s.logger.Println("Existing webhook found but no webhookID; creating a new webhook")
			}
		}
	}

	if id != "" {
		s.logger.Printf("Updating webhook %s with %d addresses", id, len(addresses))
		if _, err := s.api.UpdateWebhook(ctx, id, hook); err != nil {
			return result, err
		}
		result.Action = ActionUpdated
		result.WebhookID = id
		return result, nil
	}

	s.logger.Printf("No existing webhook found; creating one with %d addresses", len(addresses))
	created, err := s.api.CreateWebhook(ctx, hook)
	if err != nil {
		return result, err
	}
	result.Action = ActionCreated
	result.WebhookID = created.WebhookID
	return result, nil
}

// Run syncs once, then every interval until ctx is cancelled. Failed passes
// are logged and retried on the next tick. With interval <= 0 it syncs once
// and returns that pass's error.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := s.Sync(ctx)
		return err
	}

	s.logSync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.logSync(ctx)
		}
	}
}

func (s *Synchronizer) logSync(ctx context.Context) {
	result, err := s.Sync(ctx)
	if err != nil {
		s.logger.Printf("Webhook sync failed: %v", err)
		return
	}
	s.logger.Printf("Webhook %s %s (%d addresses, %d rejected)",
		result.WebhookID, result.Action, result.Addresses, result.Rejected)
}
