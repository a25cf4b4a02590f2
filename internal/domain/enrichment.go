package domain

import (
	"encoding/json"
	"time"
)

// Enrichment actions.
const (
	EnrichInsert      = "insert"
	EnrichUpdate      = "update"
	EnrichUpdateChild = "update_child"
	EnrichDeleteChild = "delete_child"
)

// Enrichment is a third-party correction applied to one metadata field of
// a DataCite record.
type Enrichment struct {
	ID            int64           `db:"id"             json:"-"`
	DOI           string          `db:"doi"            json:"doi"`
	Contributors  json.RawMessage `db:"contributors"   json:"contributors,omitempty"`
	Resources     json.RawMessage `db:"resources"      json:"resources,omitempty"`
	Field         string          `db:"field"          json:"field"`
	Action        string          `db:"action"         json:"action"`
	OriginalValue json.RawMessage `db:"original_value" json:"originalValue,omitempty"`
	EnrichedValue json.RawMessage `db:"enriched_value" json:"enrichedValue,omitempty"`
	CreatedAt     time.Time       `db:"created_at"     json:"created_at"`
}
