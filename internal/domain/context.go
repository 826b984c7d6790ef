package domain

import (
	"encoding/json"
	"time"
)

// ContextEntry is a saved campaign context blob keyed by a caller-chosen name.
type ContextEntry struct {
	ID        int64           `json:"id"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}
