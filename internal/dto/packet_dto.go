package dto

import "github.com/shopspring/decimal"

// CompositionEntryDTO mirrors one size/color/quantity line over the wire.
type CompositionEntryDTO struct {
	Size     string `json:"size" validate:"required"`
	Color    string `json:"color" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// ReplenishRequest lands a supplier dispatch on the aggregate identified by
// (supplier, product, composition). Identity is idempotent: repeated
// replenishments of the same configuration accumulate into one record.
type ReplenishRequest struct {
	ProductID   string                `json:"product_id" validate:"required,uuid4"`
	SupplierID  string                `json:"supplier_id" validate:"required,uuid4"`
	Composition []CompositionEntryDTO `json:"composition" validate:"required,min=1,dive"`
	Quantity    int                   `json:"quantity" validate:"required,min=1"`
	CostPrice   decimal.Decimal       `json:"cost_price" validate:"required"`
	LandedPrice decimal.Decimal       `json:"landed_price" validate:"required"`
	SourceRef   string                `json:"source_ref" validate:"required"`
}

// QuantityRequest is shared by reserve / release / sell / return-supplier.
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// RestoreRequest puts packets back into the available balance.
// Reason "sale_return" additionally walks back the sold counter.
type RestoreRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"required,oneof=sale_return adjustment"`
}

// BreakRequest opens exactly one sealed packet and removes the listed items;
// whatever remains is promoted to loose aggregates.
type BreakRequest struct {
	ItemsToRemove []CompositionEntryDTO `json:"items_to_remove" validate:"required,min=1,dive"`
	ReferenceID   *string               `json:"reference_id" validate:"omitempty,uuid4"`
	Notes         string                `json:"notes"`
}

// PacketResponse is the read model of one aggregate.
type PacketResponse struct {
	ID                    string                `json:"id"`
	Barcode               string                `json:"barcode"`
	ProductID             string                `json:"product_id"`
	SupplierID            string                `json:"supplier_id"`
	Composition           []CompositionEntryDTO `json:"composition"`
	TotalItemsPerPacket   int                   `json:"total_items_per_packet"`
	AvailablePackets      int                   `json:"available_packets"`
	ReservedPackets       int                   `json:"reserved_packets"`
	SoldPackets           int                   `json:"sold_packets"`
	ActualAvailable       int                   `json:"actual_available"`
	CostPricePerPacket    decimal.Decimal       `json:"cost_price_per_packet"`
	LandedPricePerPacket  decimal.Decimal       `json:"landed_price_per_packet"`
	SuggestedSellingPrice decimal.Decimal       `json:"suggested_selling_price"`
	IsLoose               bool                  `json:"is_loose"`
	ParentPacketID        *string               `json:"parent_packet_id,omitempty"`
	LabelPath             *string               `json:"label_path,omitempty"`
	IsActive              bool                  `json:"is_active"`
	CreatedAt             string                `json:"created_at"`
}

// PacketListResponse pages aggregates.
type PacketListResponse struct {
	Data  []PacketResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// PacketFilter narrows list queries.
type PacketFilter struct {
	ProductID  string
	SupplierID string
	Loose      string // "true" | "false" | "" (both)
	Active     string // "false" | "all" | default active
	// LowStock "true" restricts to sealed aggregates at or below
	// LowStockThreshold available packets.
	LowStock          string
	LowStockThreshold int
	Page              int
	Limit             int
}

// BreakResponse reports one executed break.
type BreakResponse struct {
	Barcode          string                `json:"barcode"`
	AvailablePackets int                   `json:"available_packets"`
	ItemsRemoved     []CompositionEntryDTO `json:"items_removed"`
	ItemsRemaining   []CompositionEntryDTO `json:"items_remaining"`
	TotalRemoved     int                   `json:"total_removed"`
	LooseCreated     []LooseRefDTO         `json:"loose_created"`
}

// LooseRefDTO names one loose aggregate touched by a break.
type LooseRefDTO struct {
	PacketStockID string `json:"packet_stock_id"`
	Barcode       string `json:"barcode"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Quantity      int    `json:"quantity"`
}

// BreakEventResponse is one audit row of the break history.
type BreakEventResponse struct {
	ID             string                `json:"id"`
	ActorID        string                `json:"actor_id"`
	ItemsRemoved   []CompositionEntryDTO `json:"items_removed"`
	ItemsRemaining []CompositionEntryDTO `json:"items_remaining"`
	LooseCreated   []LooseRefDTO         `json:"loose_created"`
	ReferenceID    *string               `json:"reference_id,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	CreatedAt      string                `json:"created_at"`
}

// DispatchOrderResponse is one replenishment audit row.
type DispatchOrderResponse struct {
	ID          string          `json:"id"`
	Quantity    int             `json:"quantity"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	LandedPrice decimal.Decimal `json:"landed_price"`
	SourceRef   string          `json:"source_ref"`
	CreatedAt   string          `json:"created_at"`
}
