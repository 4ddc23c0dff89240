package domain

import (
	"encoding/json"
	"time"
)

// RawEvent is a webhook payload exactly as it was received.
// Corresponds to helius_hook table in PostgreSQL.
type RawEvent struct {
	ID         int64           // BIGSERIAL primary key, assigned on insert
	Payload    json.RawMessage // verbatim request body
	ReceivedAt time.Time       // insertion time (UTC), assigned by the store
	Processed  bool            // set once the canonical swap record is stored
}
