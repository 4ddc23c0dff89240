// Package ingestion runs one webhook body through raw storage, normalization,
// upsert and the processed flag, in that order.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/normalize"
	"helius-swap-ingest/internal/observability"
	"helius-swap-ingest/internal/storage"
	"helius-swap-ingest/internal/trigger"
)

var (
	// ErrInvalidPayload means the body was empty or not a usable JSON document.
	// Nothing was stored.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStorageUnavailable means the raw payload could not be stored.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DefaultStorageTimeout bounds every individual storage call.
const DefaultStorageTimeout = 5 * time.Second

// State is the terminal (or last reached) state of one Handle call.
type State string

const (
	StateReceived      State = "received"
	StateRawStored     State = "raw_stored"
	StateNormalized    State = "normalized"
	StateUpserted      State = "upserted"
	StateProcessed     State = "processed"
	StateNotApplicable State = "not_applicable"
	StateUpsertFailed  State = "upsert_failed"
	StateFailed        State = "failed"

	// StateSuperseded is reached only by Reprocess: a newer raw event already
	// wrote this signature, so the replayed one is marked processed untouched.
	StateSuperseded State = "superseded"
)

// TriggerPolicy controls when the downstream batch job is notified.
type TriggerPolicy string

const (
	// TriggerOnRaw notifies after every successful raw insert.
	TriggerOnRaw TriggerPolicy = "raw"
	// TriggerOnNormalized notifies only when a swap record was extracted.
	TriggerOnNormalized TriggerPolicy = "normalized"
	// TriggerOff never notifies.
	TriggerOff TriggerPolicy = "off"
)

// ParseTriggerPolicy parses a policy name. Empty means TriggerOnRaw.
func ParseTriggerPolicy(s string) (TriggerPolicy, error) {
	switch p := TriggerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return TriggerOnRaw, nil
	case TriggerOnRaw, TriggerOnNormalized, TriggerOff:
		return p, nil
	default:
		return "", fmt.Errorf("unknown trigger policy %q", s)
	}
}

// Triggerer notifies the downstream batch job. trigger.Limiter implements it.
type Triggerer interface {
	MaybeTrigger(ctx context.Context, conf trigger.Conf) trigger.Outcome
}

// Publisher receives every successfully upserted record. Publish must not block.
type Publisher interface {
	Publish(r *domain.SwapRecord)
}

// Result describes how far one body got through the pipeline.
type Result struct {
	RawID  int64
	State  State
	Record *domain.SwapRecord // set once normalization succeeded
}

// Pipeline processes webhook bodies.
type Pipeline struct {
	rawStore       storage.RawEventStore
	swapStore      storage.SwapRecordStore
	trigger        Triggerer
	policy         TriggerPolicy
	publisher      Publisher
	storageTimeout time.Duration
	logger         *log.Logger

	wg sync.WaitGroup
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	RawStore       storage.RawEventStore
	SwapStore      storage.SwapRecordStore
	Trigger        Triggerer     // Optional: nil disables triggering
	Policy         TriggerPolicy // Default: TriggerOnRaw
	Publisher      Publisher     // Optional
	StorageTimeout time.Duration // Default: DefaultStorageTimeout
	Logger         *log.Logger
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(opts Options) *Pipeline {
	policy := opts.Policy
	if policy == "" {
		policy = TriggerOnRaw
	}

	storageTimeout := opts.StorageTimeout
	if storageTimeout <= 0 {
		storageTimeout = DefaultStorageTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		rawStore:       opts.RawStore,
		swapStore:      opts.SwapStore,
		trigger:        opts.Trigger,
		policy:         policy,
		publisher:      opts.Publisher,
		storageTimeout: storageTimeout,
		logger:         logger,
	}
}

// Handle stores body, then extracts and upserts the swap record it carries.
//
// Only ErrInvalidPayload and ErrStorageUnavailable are returned. Every other
// outcome, including a failed upsert, is reported through Result.State with
// the raw id set.
func (p *Pipeline) Handle(ctx context.Context, body []byte) (Result, error) {
	start := time.Now()
	observability.RecordWebhookReceived()

	res := Result{State: StateReceived}
	defer func() {
		observability.RecordWebhookCompleted(string(res.State), time.Since(start).Seconds())
	}()

	doc, err := parseBody(body)
	if err != nil {
		p.logger.Printf("Invalid payload: %v", err)
		observability.RecordStageError("parse")
		return res, err
	}

	rawID, err := p.insertRaw(ctx, body)
	if err != nil {
		p.logger.Printf("Error inserting raw payload: %v", err)
		observability.RecordStageError("raw_insert")
		res.State = StateFailed
		return res, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	res.RawID = rawID
	res.State = StateRawStored
	observability.RecordRawStored(time.Now().Unix())
	p.logger.Printf("Inserted raw payload with id: %d", rawID)

	// The raw row is committed; a client hanging up must not abort the rest.
	ctx = context.WithoutCancel(ctx)

	if p.policy == TriggerOnRaw {
		p.fire(ctx, rawID)
	}

	p.process(ctx, doc, &res, false)

	if p.policy == TriggerOnNormalized && res.Record != nil {
		p.fire(ctx, rawID)
	}

	return res, nil
}

// Reprocess replays normalization, upsert and the processed flag for a
// stored event. It never inserts a raw row and never triggers. An event older
// than the row already stored for its signature is not written again.
func (p *Pipeline) Reprocess(ctx context.Context, ev *domain.RawEvent) (Result, error) {
	res := Result{RawID: ev.ID, State: StateRawStored}

	doc, err := parseBody(ev.Payload)
	if err != nil {
		res.State = StateNotApplicable
		return res, nil
	}

	p.process(ctx, doc, &res, true)
	return res, nil
}

// Wait blocks until every in-flight trigger call has returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) process(ctx context.Context, doc any, res *Result, replay bool) {
	record, ok := normalize.Normalize(doc)
	if !ok {
		p.logger.Printf("No swap transaction in raw payload %d", res.RawID)
		res.State = StateNotApplicable
		return
	}
	record.RawID = res.RawID
	res.Record = &record
	res.State = StateNormalized

	if replay {
		newer, err := p.supersededBy(ctx, &record)
		if err != nil {
			p.logger.Printf("Failed to look up signature %s for raw_id %d: %v", record.Signature, res.RawID, err)
			observability.RecordStageError("upsert")
			res.State = StateUpsertFailed
			return
		}
		if newer != 0 {
			p.logger.Printf("Raw payload %d superseded by %d for signature: %s", res.RawID, newer, record.Signature)
			if err := p.markProcessed(ctx, res.RawID); err != nil {
				p.logger.Printf("Failed to mark raw payload %d processed: %v", res.RawID, err)
				observability.RecordStageError("mark_processed")
				return
			}
			res.State = StateSuperseded
			return
		}
	}

	if err := p.upsert(ctx, &record); err != nil {
		p.logger.Printf("Failed to upsert cleaned record for raw_id %d: %v", res.RawID, err)
		observability.RecordStageError("upsert")
		res.State = StateUpsertFailed
		return
	}
	res.State = StateUpserted
	observability.RecordSwapUpserted()
	p.logger.Printf("Upserted cleaned record for signature: %s", record.Signature)

	if p.publisher != nil {
		published := record
		p.publisher.Publish(&published)
	}

	if err := p.markProcessed(ctx, res.RawID); err != nil {
		p.logger.Printf("Failed to mark raw payload %d processed: %v", res.RawID, err)
		observability.RecordStageError("mark_processed")
		return
	}
	res.State = StateProcessed
}

func (p *Pipeline) insertRaw(ctx context.Context, body []byte) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storageTimeout)
	defer cancel()
	return p.rawStore.Insert(ctx, body)
}

func (p *Pipeline) upsert(ctx context.Context, r *domain.SwapRecord) error {
	ctx, cancel := context.WithTimeout(ctx, p.storageTimeout)
	defer cancel()
	return p.swapStore.Upsert(ctx, r)
}

// supersededBy returns the raw_id of a stored row for the same signature
// written by a newer raw event, or 0.
func (p *Pipeline) supersededBy(ctx context.Context, r *domain.SwapRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storageTimeout)
	defer cancel()

	existing, err := p.swapStore.GetBySignature(ctx, r.Signature)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if existing.RawID > r.RawID {
		return existing.RawID, nil
	}
	return 0, nil
}

func (p *Pipeline) markProcessed(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, p.storageTimeout)
	defer cancel()
	return p.rawStore.MarkProcessed(ctx, id)
}

// fire runs the trigger in the background. The request context may end
// before the call does, so only its values are kept.
func (p *Pipeline) fire(ctx context.Context, rawID int64) {
	if p.trigger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.trigger.MaybeTrigger(ctx, trigger.Conf{RawID: rawID})
	}()
}

// parseBody accepts a non-empty JSON array or object.
func parseBody(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}

	doc, err := normalize.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	switch v := doc.(type) {
	case []any:
		if len(v) > 0 {
			return doc, nil
		}
	case map[string]any:
		if len(v) > 0 {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a non-empty array or object", ErrInvalidPayload)
}
