package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapRecord is the canonical shape of one swap transaction.
// Corresponds to helius_txns_clean table in PostgreSQL.
//
// Empty strings and invalid amounts mean the field was absent in the payload
// and are persisted as NULL.
type SwapRecord struct {
	Signature      string              // transaction signature, primary key
	RawID          int64               // helius_hook.id of the latest writer
	UserAddress    string              // first transfer fromUserAccount
	SwapFromToken  string              // first transfer mint
	SwapFromAmount decimal.NullDecimal // first transfer tokenAmount
	SwapToToken    string              // last transfer mint
	SwapToAmount   decimal.NullDecimal // last transfer tokenAmount
	Source         string              // DEX / program label reported by the provider
	Timestamp      *time.Time          // block time, UTC, second precision
}
