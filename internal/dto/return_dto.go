package dto

// Return request modes. Go has no sum types, so the two-mode shape is
// modelled as an explicit mode tag plus conditionally-required fields
// (`required_if`), which keeps exhaustiveness checkable in one switch.
const (
	ReturnModeBarcode = "packet_barcode"
	ReturnModeVariant = "variant_composition"
)

// ReturnRequest asks the planner to return stock to the supplier, either by
// naming an exact sealed-packet barcode or by listing variants independent
// of which packets they came from.
type ReturnRequest struct {
	Mode       string `json:"mode" validate:"required,oneof=packet_barcode variant_composition"`
	ProductID  string `json:"product_id" validate:"required,uuid4"`
	SupplierID string `json:"supplier_id" validate:"required,uuid4"`

	// Barcode mode.
	PacketBarcode string `json:"packet_barcode" validate:"required_if=Mode packet_barcode"`
	Quantity      int    `json:"quantity" validate:"required_if=Mode packet_barcode,omitempty,min=1"`

	// Variant mode.
	Variants []CompositionEntryDTO `json:"variants" validate:"required_if=Mode variant_composition,omitempty,min=1,dive"`

	// TransactionRef is the return/sale id every resulting audit entry is
	// stamped with.
	TransactionRef string `json:"transaction_ref" validate:"required,uuid4"`
}

// Adjustment kinds emitted by the planner.
const (
	AdjustmentFullPacketReturn = "full_packet_return"
	AdjustmentLooseReturn      = "loose_return"
	AdjustmentPartialBreak     = "partial_break"
)

// AdjustmentDTO is one typed step of a return plan, executed in order inside
// a single transaction.
type AdjustmentDTO struct {
	Kind    string `json:"kind"`
	Barcode string `json:"barcode"`
	// Packets for full_packet_return; items for loose_return.
	Quantity int `json:"quantity,omitempty"`
	// Items taken out of the single packet a partial_break opens.
	ItemsToRemove []CompositionEntryDTO `json:"items_to_remove,omitempty"`
}

// ReturnPlanResponse is the dry-run result: the adjustment list a request
// would execute, with nothing committed.
type ReturnPlanResponse struct {
	Valid       bool            `json:"valid"`
	Adjustments []AdjustmentDTO `json:"adjustments"`
}

// ReturnResultResponse reports an executed plan.
type ReturnResultResponse struct {
	Success        bool            `json:"success"`
	TransactionRef string          `json:"transaction_ref"`
	Adjustments    []AdjustmentDTO `json:"adjustments"`
	ItemsReturned  int             `json:"items_returned"`
	Warnings       []string        `json:"warnings,omitempty"`
	SlipPath       string          `json:"slip_path,omitempty"`
}

// VariantAvailability is one line of the available-to-return summary.
type VariantAvailability struct {
	Size        string `json:"size"`
	Color       string `json:"color"`
	SealedItems int    `json:"sealed_items"`
	LooseItems  int    `json:"loose_items"`
	TotalItems  int    `json:"total_items"`
}

// ReturnSummaryResponse is the read-only availability view callers use
// before submitting a plan.
type ReturnSummaryResponse struct {
	ProductID        string                `json:"product_id"`
	SupplierID       string                `json:"supplier_id"`
	TotalSealedItems int                   `json:"total_sealed_items"`
	TotalLooseItems  int                   `json:"total_loose_items"`
	Variants         []VariantAvailability `json:"variants"`
}
