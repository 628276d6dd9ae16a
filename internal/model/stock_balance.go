package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBalance is the scalar per-product item ledger maintained by the
// settlement service and pushed into this store for reconciliation. The
// discrepancy auditor compares it against the item counts derived from
// packet aggregates; the engine itself never derives business decisions
// from it.
type StockBalance struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	TotalItems decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	UpdatedAt time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName overrides GORM's pluralization.
func (StockBalance) TableName() string { return "stock_balances" }
