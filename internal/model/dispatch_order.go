package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DispatchOrder is one append-only replenishment audit row: a supplier
// dispatch landing quantity on a packet aggregate at given prices. Like
// break events, rows are immutable and live in a child table keyed by
// packet id.
type DispatchOrder struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PacketStockID uuid.UUID `gorm:"type:uuid;not null;index:idx_dispatch_orders_packet_ts"`

	Quantity    int             `gorm:"not null"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LandedPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// SourceRef points at the supplier dispatch/purchase document.
	SourceRef string `gorm:"not null"`

	CreatedAt time.Time `gorm:"index:idx_dispatch_orders_packet_ts"`

	PacketStock *PacketStock `gorm:"foreignKey:PacketStockID"`
}

// TableName overrides GORM's pluralization.
func (DispatchOrder) TableName() string { return "dispatch_orders" }
