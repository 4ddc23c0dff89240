// Package normalize turns Helius enhanced-transaction webhook payloads into
// canonical swap records. Everything here is pure: no I/O, no clock.
package normalize

import (
	"helius-swap-ingest/internal/domain"
)

// Provider field names.
const (
	fieldTokenTransfers  = "tokenTransfers"
	fieldFromUserAccount = "fromUserAccount"
	fieldMint            = "mint"
	fieldTokenAmount     = "tokenAmount"
	fieldSignature       = "signature"
	fieldSource          = "source"
	fieldTimestamp       = "timestamp"
)

// Normalize extracts a swap record from the first transaction of a payload.
//
// The second return value is false (not applicable) when the payload is not a
// non-empty list, its first element is not an object, or that object has no
// non-empty tokenTransfers list. Any other missing field is left empty/null.
// RawID is never set.
func Normalize(doc any) (domain.SwapRecord, bool) {
	txs, ok := list(doc)
	if !ok || len(txs) == 0 {
		return domain.SwapRecord{}, false
	}

	tx, ok := object(txs[0])
	if !ok {
		return domain.SwapRecord{}, false
	}

	transfers, ok := list(tx[fieldTokenTransfers])
	if !ok || len(transfers) == 0 {
		return domain.SwapRecord{}, false
	}

	// With a single transfer first and last are the same leg.
	first, _ := object(transfers[0])
	last, _ := object(transfers[len(transfers)-1])

	return domain.SwapRecord{
		Signature:      stringAt(tx, fieldSignature),
		UserAddress:    stringAt(first, fieldFromUserAccount),
		SwapFromToken:  stringAt(first, fieldMint),
		SwapFromAmount: amountAt(first, fieldTokenAmount),
		SwapToToken:    stringAt(last, fieldMint),
		SwapToAmount:   amountAt(last, fieldTokenAmount),
		Source:         stringAt(tx, fieldSource),
		Timestamp:      unixSecondsAt(tx, fieldTimestamp),
	}, true
}
