package dto

import "github.com/shopspring/decimal"

// DiscrepancyResponse is one product whose aggregate-derived item count
// drifted from the settlement ledger beyond tolerance.
type DiscrepancyResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	PacketItems decimal.Decimal `json:"packet_items"`
	LedgerItems decimal.Decimal `json:"ledger_items"`
	Difference  decimal.Decimal `json:"difference"`
	Direction   string          `json:"direction"` // "ledger_ahead" | "stock_ahead"
}

// BalanceUpsertRequest is the settlement service's ledger push.
type BalanceUpsertRequest struct {
	TotalItems decimal.Decimal `json:"total_items" validate:"required"`
}
