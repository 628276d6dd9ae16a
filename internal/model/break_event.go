package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LooseRef records one loose aggregate touched by a break: the variant, the
// quantity promoted, and the loose record's identity. The ids are weak
// references kept for audit lookup only.
type LooseRef struct {
	PacketStockID uuid.UUID `json:"packet_stock_id"`
	Barcode       string    `json:"barcode"`
	Size          string    `json:"size"`
	Color         string    `json:"color"`
	Quantity      int       `json:"quantity"`
}

// LooseRefs is stored as a JSONB column on break_events.
type LooseRefs []LooseRef

func (l LooseRefs) Value() (driver.Value, error) { return json.Marshal(l) }

func (l *LooseRefs) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("loose refs: cannot scan %T", src)
	}
}

// BreakEvent is one append-only audit row recording a packet break. Rows are
// immutable — never updated or deleted. They live in their own table keyed
// by packet id (with a timestamp index) rather than as an embedded array on
// the aggregate, so the aggregate record stays bounded.
type BreakEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PacketStockID uuid.UUID `gorm:"type:uuid;not null;index:idx_break_events_packet_ts"`
	ActorID       uuid.UUID `gorm:"type:uuid;not null"`

	ItemsRemoved   Composition `gorm:"type:jsonb;not null"`
	ItemsRemaining Composition `gorm:"type:jsonb;not null"`
	LooseCreated   LooseRefs   `gorm:"type:jsonb;not null"`

	// ReferenceID correlates the break back to the sale or return that
	// triggered it; nil for manual warehouse breaks.
	ReferenceID *uuid.UUID `gorm:"type:uuid;index"`
	Notes       string

	CreatedAt time.Time `gorm:"index:idx_break_events_packet_ts"`

	PacketStock *PacketStock `gorm:"foreignKey:PacketStockID"`
}

// TableName overrides GORM's pluralization.
func (BreakEvent) TableName() string { return "break_events" }
