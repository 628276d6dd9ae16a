package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompositionEntry is one size/color line inside a packet. Quantity is the
// number of items of that variant packed per sealed packet; for loose
// aggregates it is always 1.
type CompositionEntry struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

// Composition is stored as a JSONB array so sealed packets can be matched by
// variant containment (`composition @> '[{"color":…,"size":…}]'`).
type Composition []CompositionEntry

// Value implements driver.Valuer for GORM/pgx.
func (c Composition) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *Composition) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("composition: cannot scan %T", src)
	}
}

// TotalItems sums the quantities across all entries.
func (c Composition) TotalItems() int {
	total := 0
	for _, e := range c {
		total += e.Quantity
	}
	return total
}

// Find returns the entry for a (size, color) variant, if present.
func (c Composition) Find(size, color string) (CompositionEntry, bool) {
	for _, e := range c {
		if e.Size == size && e.Color == color {
			return e, true
		}
	}
	return CompositionEntry{}, false
}

// SuggestedMarkup is applied on the landed price to derive the suggested
// selling price on every replenishment and loose promotion.
var SuggestedMarkup = decimal.NewFromFloat(1.20)

// PacketStock is the aggregate for one physical stock configuration: either
// a sealed supplier packet (fixed multi-variant composition) or a loose
// single-variant aggregate spawned by breaking a sealed packet.
//
// Counter invariants, enforced by Validate before every composite save:
//   - sum(composition.quantity) == TotalItemsPerPacket
//   - 0 <= ReservedPackets <= AvailablePackets
//
// Version backs whole-aggregate optimistic locking; the one hot-path
// exception is the break decrement, which uses a storage-level
// compare-and-swap instead (see PacketRepository.CASDecrementAvailableTx).
type PacketStock struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Barcode    string    `gorm:"uniqueIndex;not null"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index:idx_packet_product_supplier"`
	SupplierID uuid.UUID `gorm:"type:uuid;not null;index:idx_packet_product_supplier"`

	Composition         Composition `gorm:"type:jsonb;not null"`
	TotalItemsPerPacket int         `gorm:"not null"`

	AvailablePackets int `gorm:"not null;default:0"`
	ReservedPackets  int `gorm:"not null;default:0"`
	SoldPackets      int `gorm:"not null;default:0"`

	CostPricePerPacket    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LandedPricePerPacket  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SuggestedSellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	IsLoose bool `gorm:"not null;default:false"`
	// ParentPacketID is a weak back-reference to the sealed packet a loose
	// aggregate was first promoted from. Lookup only — never traversed for
	// deletion.
	ParentPacketID *uuid.UUID `gorm:"type:uuid"`

	// LabelPath caches the rendered label handle (external sidecar or local
	// fallback). Empty until the label worker has run.
	LabelPath *string

	Version  int  `gorm:"not null;default:0"`
	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Product  *Product  `gorm:"foreignKey:ProductID"`
	Supplier *Supplier `gorm:"foreignKey:SupplierID"`
}

// TableName overrides GORM's pluralization.
func (PacketStock) TableName() string { return "packet_stocks" }

// ActualAvailable is the sellable balance: available minus reserved.
func (p *PacketStock) ActualAvailable() int {
	return p.AvailablePackets - p.ReservedPackets
}

// Validate enforces the aggregate invariants ahead of any composite write.
// A violation is always fatal — counts are never auto-corrected.
func (p *PacketStock) Validate() error {
	if len(p.Composition) == 0 {
		return &CompositionInvariantError{Barcode: p.Barcode, Detail: "composition is empty"}
	}
	for _, e := range p.Composition {
		if e.Quantity < 1 {
			return &CompositionInvariantError{
				Barcode: p.Barcode,
				Detail:  fmt.Sprintf("variant %s/%s has quantity %d", e.Color, e.Size, e.Quantity),
			}
		}
	}
	if got := p.Composition.TotalItems(); got != p.TotalItemsPerPacket {
		return &CompositionInvariantError{
			Barcode: p.Barcode,
			Detail:  fmt.Sprintf("composition sums to %d items, total_items_per_packet is %d", got, p.TotalItemsPerPacket),
		}
	}
	if p.IsLoose && (len(p.Composition) != 1 || p.TotalItemsPerPacket != 1) {
		return &CompositionInvariantError{Barcode: p.Barcode, Detail: "loose aggregate must hold exactly one variant, one item per unit"}
	}
	if p.AvailablePackets < 0 || p.ReservedPackets < 0 || p.SoldPackets < 0 {
		return &CompositionInvariantError{Barcode: p.Barcode, Detail: "negative counter"}
	}
	if p.ReservedPackets > p.AvailablePackets {
		return &CompositionInvariantError{
			Barcode: p.Barcode,
			Detail:  fmt.Sprintf("reserved (%d) exceeds available (%d)", p.ReservedPackets, p.AvailablePackets),
		}
	}
	return nil
}
