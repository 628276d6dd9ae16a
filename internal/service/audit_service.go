package service

import (
	"context"
	"errors"

	"packline/internal/dto"
	"packline/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// discrepancyTolerance absorbs rounding noise in the settlement ledger's
// decimal balances.
var discrepancyTolerance = decimal.NewFromFloat(1e-6)

// AuditService is the read-only reconciliation between aggregate-derived
// item counts and the settlement service's scalar per-product ledger.
// It never mutates stock — purely diagnostic.
type AuditService interface {
	Discrepancies(ctx context.Context) ([]dto.DiscrepancyResponse, error)
	UpsertBalance(ctx context.Context, productID uuid.UUID, totalItems decimal.Decimal) error
}

type auditService struct {
	packets  repository.PacketRepository
	balances repository.StockBalanceRepository
	products repository.ProductRepository
}

func NewAuditService(
	packets repository.PacketRepository,
	balances repository.StockBalanceRepository,
	products repository.ProductRepository,
) AuditService {
	return &auditService{packets: packets, balances: balances, products: products}
}

// Discrepancies sums, per product, sealed packets × items-per-packet plus
// loose units (one item each), and reports every product whose ledger
// balance drifts beyond tolerance, tagged by direction. A missing ledger
// row counts as zero — unpushed balances are drift, not absence.
func (s *auditService) Discrepancies(ctx context.Context) ([]dto.DiscrepancyResponse, error) {
	productIDs, err := s.packets.ListProductIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.DiscrepancyResponse, 0)
	for _, productID := range productIDs {
		packets, err := s.packets.FindByProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		packetItems := decimal.Zero
		for i := range packets {
			p := &packets[i]
			if p.IsLoose {
				packetItems = packetItems.Add(decimal.NewFromInt(int64(p.AvailablePackets)))
			} else {
				packetItems = packetItems.Add(decimal.NewFromInt(int64(p.AvailablePackets * p.TotalItemsPerPacket)))
			}
		}

		ledgerItems := decimal.Zero
		balance, err := s.balances.FindByProduct(ctx, productID)
		switch {
		case err == nil:
			ledgerItems = balance.TotalItems
		case errors.Is(err, gorm.ErrRecordNotFound):
			// keep zero
		default:
			return nil, err
		}

		diff := packetItems.Sub(ledgerItems)
		if diff.Abs().LessThanOrEqual(discrepancyTolerance) {
			continue
		}

		direction := "stock_ahead"
		if diff.IsNegative() {
			direction = "ledger_ahead"
		}

		resp := dto.DiscrepancyResponse{
			ProductID:   productID.String(),
			PacketItems: packetItems,
			LedgerItems: ledgerItems,
			Difference:  diff,
			Direction:   direction,
		}
		if product, err := s.products.FindByID(ctx, productID); err == nil {
			resp.ProductName = product.Name
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *auditService) UpsertBalance(ctx context.Context, productID uuid.UUID, totalItems decimal.Decimal) error {
	if totalItems.IsNegative() {
		return errors.New("ledger balance cannot be negative")
	}
	return s.balances.Upsert(ctx, productID, totalItems)
}
