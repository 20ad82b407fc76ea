package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportReceipt records a committed import keyed by its idempotency key.
// A repeated commit with the same key replays the receipt instead of
// importing again; the server-side receipt is the authoritative dedup
// mechanism, the client ledger only smooths the UX.
type ImportReceipt struct {
	ID             uuid.UUID    `json:"id"`
	IdempotencyKey string       `json:"idempotency_key"`
	UserID         uuid.UUID    `json:"user_id"`
	Target         ImportTarget `json:"target"`
	FileName       string       `json:"file_name"`
	ImportedCount  int          `json:"imported_count"`
	CreatedAt      time.Time    `json:"created_at"`
}
