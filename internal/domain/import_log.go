package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportLogEntry captures row level issues that occur during an import.
type ImportLogEntry struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Target       ImportTarget `json:"target"`
	FileName     string       `json:"file_name"`
	RowNumber    *int         `json:"row_number,omitempty"`
	ErrorMessage string       `json:"error_message"`
	CreatedAt    time.Time    `json:"created_at"`
}
