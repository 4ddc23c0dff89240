package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helius-swap-ingest/internal/domain"
	"helius-swap-ingest/internal/storage"
)

func TestSwapRecordStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapRecordStore(pool)

	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	record := &domain.SwapRecord{
		Signature:      "5sig",
		RawID:          10,
		UserAddress:    "UserA",
		SwapFromToken:  "MintX",
		SwapFromAmount: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
		SwapToToken:    "MintY",
		SwapToAmount:   decimal.NewNullDecimal(decimal.RequireFromString("0.000123")),
		Source:         "RAYDIUM",
		Timestamp:      &ts,
	}

	require.NoError(t, store.Upsert(ctx, record))

	got, err := store.GetBySignature(ctx, "5sig")
	require.NoError(t, err)

	assert.Equal(t, record.RawID, got.RawID)
	assert.Equal(t, record.UserAddress, got.UserAddress)
	assert.Equal(t, record.SwapFromToken, got.SwapFromToken)
	assert.True(t, record.SwapFromAmount.Decimal.Equal(got.SwapFromAmount.Decimal))
	assert.Equal(t, record.SwapToToken, got.SwapToToken)
	assert.True(t, record.SwapToAmount.Decimal.Equal(got.SwapToAmount.Decimal))
	assert.Equal(t, record.Source, got.Source)
	require.NotNil(t, got.Timestamp)
	assert.True(t, ts.Equal(*got.Timestamp))
}

func TestSwapRecordStore_UpsertReplacesAllColumns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapRecordStore(pool)

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &domain.SwapRecord{
		Signature:      "dup",
		RawID:          1,
		UserAddress:    "A",
		SwapFromToken:  "X",
		SwapFromAmount: decimal.NewNullDecimal(decimal.NewFromInt(5)),
		SwapToToken:    "Y",
		SwapToAmount:   decimal.NewNullDecimal(decimal.NewFromInt(6)),
		Source:         "ORCA",
		Timestamp:      &ts,
	}))

	second := &domain.SwapRecord{
		Signature:      "dup",
		RawID:          2,
		UserAddress:    "A",
		SwapFromToken:  "X",
		SwapFromAmount: decimal.NewNullDecimal(decimal.NewFromInt(8)),
		SwapToToken:    "Y",
	}
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.GetBySignature(ctx, "dup")
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.RawID)
	assert.True(t, decimal.NewFromInt(8).Equal(got.SwapFromAmount.Decimal))
	assert.False(t, got.SwapToAmount.Valid, "null amount must overwrite the old value")
	assert.Empty(t, got.Source)
	assert.Nil(t, got.Timestamp)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM helius_txns_clean WHERE signature = 'dup'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSwapRecordStore_ConcurrentUpsertsSameSignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapRecordStore(pool)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Upsert(ctx, &domain.SwapRecord{
				Signature:      "race",
				RawID:          int64(i + 1),
				SwapFromAmount: decimal.NewNullDecimal(decimal.NewFromInt(int64(i))),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM helius_txns_clean WHERE signature = 'race'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSwapRecordStore_EmptySignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapRecordStore(pool)

	err := store.Upsert(context.Background(), &domain.SwapRecord{UserAddress: "A"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSwapRecordStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapRecordStore(pool)

	_, err := store.GetBySignature(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
