package service

import (
	"context"
	"errors"
	"fmt"

	"packline/internal/barcode"
	"packline/internal/dto"
	"packline/internal/model"
	"packline/internal/repository"
	"packline/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PacketService owns the lifecycle of packet stock aggregates: idempotent
// replenishment keyed by the deterministic barcode, and the counter
// mutations (reserve / release / sell / restore / return-to-supplier).
// Every mutation is a read-modify-write inside a transaction, persisted
// through a version-guarded save so racing flows surface as
// ErrConcurrentModification instead of overwriting each other.
type PacketService interface {
	Replenish(ctx context.Context, req dto.ReplenishRequest) (*dto.PacketResponse, error)
	Get(ctx context.Context, barcode string) (*dto.PacketResponse, error)
	List(ctx context.Context, filter dto.PacketFilter) (*dto.PacketListResponse, error)
	Reserve(ctx context.Context, barcode string, quantity int) (*dto.PacketResponse, error)
	Release(ctx context.Context, barcode string, quantity int) (*dto.PacketResponse, error)
	Sell(ctx context.Context, barcode string, quantity int) (*dto.PacketResponse, error)
	Restore(ctx context.Context, barcode string, quantity int, reason string) (*dto.PacketResponse, error)
	ReturnWholeToSupplier(ctx context.Context, barcode string, quantity int) (*dto.PacketResponse, error)
	Deactivate(ctx context.Context, barcode string) error
	Reactivate(ctx context.Context, barcode string) error
	ListBreaks(ctx context.Context, barcode string, page, limit int) ([]dto.BreakEventResponse, int64, error)
	ListDispatches(ctx context.Context, barcode string, page, limit int) ([]dto.DispatchOrderResponse, int64, error)
}

type packetService struct {
	repo       repository.PacketRepository
	breaks     repository.BreakEventRepository
	dispatches repository.DispatchOrderRepository
	dispatcher *worker.Dispatcher
}

func NewPacketService(
	repo repository.PacketRepository,
	breaks repository.BreakEventRepository,
	dispatches repository.DispatchOrderRepository,
	dispatcher *worker.Dispatcher,
) PacketService {
	return &packetService{repo: repo, breaks: breaks, dispatches: dispatches, dispatcher: dispatcher}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Replenish ────────────────────────────────────────────────────────────────
// Idempotent find-or-create keyed by the deterministic barcode: repeated
// dispatches of the same (supplier, product, composition) land on the same
// aggregate. Landed price becomes the quantity-weighted average of the prior
// balance and the incoming batch; cost price tracks the latest dispatch.

func (s *packetService) Replenish(ctx context.Context, req dto.ReplenishRequest) (*dto.PacketResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("product_id: %w", err)
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("supplier_id: %w", err)
	}

	composition := compositionFromDTO(req.Composition)
	variants := make([]barcode.Variant, 0, len(composition))
	for _, e := range composition {
		variants = append(variants, barcode.Variant{Size: e.Size, Color: e.Color, Quantity: e.Quantity})
	}
	code := barcode.Generate(supplierID, productID, variants, false)

	var packet *model.PacketStock
	created := false

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		existing, err := s.repo.FindByBarcodeTx(tx, code)
		switch {
		case err == nil:
			packet = existing
			oldQty := decimal.NewFromInt(int64(packet.AvailablePackets))
			newQty := decimal.NewFromInt(int64(req.Quantity))
			if packet.AvailablePackets > 0 {
				packet.LandedPricePerPacket = packet.LandedPricePerPacket.Mul(oldQty).
					Add(req.LandedPrice.Mul(newQty)).
					DivRound(oldQty.Add(newQty), 2)
			} else {
				packet.LandedPricePerPacket = req.LandedPrice
			}
			packet.CostPricePerPacket = req.CostPrice
			packet.SuggestedSellingPrice = packet.LandedPricePerPacket.Mul(model.SuggestedMarkup).Round(2)
			packet.AvailablePackets += req.Quantity
			if err := s.repo.SaveVersionedTx(tx, packet); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			packet = &model.PacketStock{
				Barcode:               code,
				ProductID:             productID,
				SupplierID:            supplierID,
				Composition:           composition,
				TotalItemsPerPacket:   composition.TotalItems(),
				AvailablePackets:      req.Quantity,
				CostPricePerPacket:    req.CostPrice,
				LandedPricePerPacket:  req.LandedPrice,
				SuggestedSellingPrice: req.LandedPrice.Mul(model.SuggestedMarkup).Round(2),
				IsActive:              true,
			}
			if err := createTx(tx, s.repo, packet); err != nil {
				return err
			}
		default:
			return err
		}

		return s.dispatches.CreateTx(tx, &model.DispatchOrder{
			PacketStockID: packet.ID,
			Quantity:      req.Quantity,
			CostPrice:     req.CostPrice,
			LandedPrice:   req.LandedPrice,
			SourceRef:     req.SourceRef,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	// First sighting of this configuration — queue the label render
	// (best-effort, fire & forget).
	if created && s.dispatcher != nil {
		_ = s.dispatcher.EnqueueLabel(ctx, worker.LabelJobPayload{Barcode: packet.Barcode})
	}

	return packetToResponse(packet), nil
}

// createTx inserts through the repository when no transaction is open (unit
// test mode) and through the transaction otherwise.
func createTx(tx *gorm.DB, repo repository.PacketRepository, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if tx == nil {
		return repo.Create(context.Background(), p)
	}
	return tx.Create(p).Error
}

// ── Counter operations ───────────────────────────────────────────────────────

// mutate loads the aggregate, applies fn, and persists with a version guard.
func (s *packetService) mutate(ctx context.Context, code string, fn func(p *model.PacketStock) error) (*dto.PacketResponse, error) {
	var packet *model.PacketStock
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		p, err := s.repo.FindByBarcodeTx(tx, code)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		packet = p
		return s.repo.SaveVersionedTx(tx, p)
	})
	if txErr != nil {
		return nil, txErr
	}
	return packetToResponse(packet), nil
}

func (s *packetService) Reserve(ctx context.Context, code string, quantity int) (*dto.PacketResponse, error) {
	return s.mutate(ctx, code, func(p *model.PacketStock) error {
		if p.ActualAvailable() < quantity {
			return &model.InsufficientStockError{Barcode: p.Barcode, Requested: quantity, Available: p.ActualAvailable()}
		}
		p.ReservedPackets += quantity
		return nil
	})
}

func (s *packetService) Release(ctx context.Context, code string, quantity int) (*dto.PacketResponse, error) {
	return s.mutate(ctx, code, func(p *model.PacketStock) error {
		// Floored at zero: tolerant of over-release from inconsistent
		// callers. The reserved counter is advisory, not authoritative.
		p.ReservedPackets -= quantity
		if p.ReservedPackets < 0 {
			p.ReservedPackets = 0
		}
		return nil
	})
}

func (s *packetService) Sell(ctx context.Context, code string, quantity int) (*dto.PacketResponse, error) {
	return s.mutate(ctx, code, func(p *model.PacketStock) error {
		if p.AvailablePackets < quantity {
			return &model.InsufficientStockError{Barcode: p.Barcode, Requested: quantity, Available: p.AvailablePackets}
		}
		p.AvailablePackets -= quantity
		p.ReservedPackets -= quantity
		if p.ReservedPackets < 0 {
			p.ReservedPackets = 0
		}
		p.SoldPackets += quantity
		return nil
	})
}

const RestoreReasonSaleReturn = "sale_return"

func (s *packetService) Restore(ctx context.Context, code string, quantity int, reason string) (*dto.PacketResponse, error) {
	return s.mutate(ctx, code, func(p *model.PacketStock) error {
		p.AvailablePackets += quantity
		if reason == RestoreReasonSaleReturn {
			// Floored at zero when fewer were sold than restored. Known
			// relaxation: cumulative prior sales are not verified here.
			p.SoldPackets -= quantity
			if p.SoldPackets < 0 {
				p.SoldPackets = 0
			}
		}
		return nil
	})
}

func (s *packetService) ReturnWholeToSupplier(ctx context.Context, code string, quantity int) (*dto.PacketResponse, error) {
	return s.mutate(ctx, code, func(p *model.PacketStock) error {
		return applySupplierReturn(p, quantity)
	})
}

// applySupplierReturn removes quantity packets from the available balance.
// Shared with the return planner's adjustment execution.
func applySupplierReturn(p *model.PacketStock, quantity int) error {
	if p.AvailablePackets < quantity {
		return &model.InsufficientStockError{Barcode: p.Barcode, Requested: quantity, Available: p.AvailablePackets}
	}
	p.AvailablePackets -= quantity
	// Keep reserved within the shrunken balance rather than fail the save.
	if p.ReservedPackets > p.AvailablePackets {
		p.ReservedPackets = p.AvailablePackets
	}
	return nil
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *packetService) Get(ctx context.Context, code string) (*dto.PacketResponse, error) {
	p, err := s.repo.FindByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	return packetToResponse(p), nil
}

func (s *packetService) List(ctx context.Context, filter dto.PacketFilter) (*dto.PacketListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	packets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PacketResponse, 0, len(packets))
	for i := range packets {
		items = append(items, *packetToResponse(&packets[i]))
	}
	return &dto.PacketListResponse{Data: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *packetService) Deactivate(ctx context.Context, code string) error {
	if _, err := s.repo.FindByBarcode(ctx, code); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, code)
}

func (s *packetService) Reactivate(ctx context.Context, code string) error {
	return s.repo.Reactivate(ctx, code)
}

func (s *packetService) ListBreaks(ctx context.Context, code string, page, limit int) ([]dto.BreakEventResponse, int64, error) {
	p, err := s.repo.FindByBarcode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	events, total, err := s.breaks.ListByPacket(ctx, p.ID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.BreakEventResponse, 0, len(events))
	for i := range events {
		out = append(out, *breakEventToResponse(&events[i]))
	}
	return out, total, nil
}

func (s *packetService) ListDispatches(ctx context.Context, code string, page, limit int) ([]dto.DispatchOrderResponse, int64, error) {
	p, err := s.repo.FindByBarcode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	orders, total, err := s.dispatches.ListByPacket(ctx, p.ID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.DispatchOrderResponse, 0, len(orders))
	for _, d := range orders {
		out = append(out, dto.DispatchOrderResponse{
			ID:          d.ID.String(),
			Quantity:    d.Quantity,
			CostPrice:   d.CostPrice,
			LandedPrice: d.LandedPrice,
			SourceRef:   d.SourceRef,
			CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return out, total, nil
}

// ── Mapping helpers ──────────────────────────────────────────────────────────

func compositionFromDTO(entries []dto.CompositionEntryDTO) model.Composition {
	out := make(model.Composition, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.CompositionEntry{Size: e.Size, Color: e.Color, Quantity: e.Quantity})
	}
	return out
}

func compositionToDTO(c model.Composition) []dto.CompositionEntryDTO {
	out := make([]dto.CompositionEntryDTO, 0, len(c))
	for _, e := range c {
		out = append(out, dto.CompositionEntryDTO{Size: e.Size, Color: e.Color, Quantity: e.Quantity})
	}
	return out
}

func packetToResponse(p *model.PacketStock) *dto.PacketResponse {
	var parentID *string
	if p.ParentPacketID != nil {
		s := p.ParentPacketID.String()
		parentID = &s
	}
	return &dto.PacketResponse{
		ID:                    p.ID.String(),
		Barcode:               p.Barcode,
		ProductID:             p.ProductID.String(),
		SupplierID:            p.SupplierID.String(),
		Composition:           compositionToDTO(p.Composition),
		TotalItemsPerPacket:   p.TotalItemsPerPacket,
		AvailablePackets:      p.AvailablePackets,
		ReservedPackets:       p.ReservedPackets,
		SoldPackets:           p.SoldPackets,
		ActualAvailable:       p.ActualAvailable(),
		CostPricePerPacket:    p.CostPricePerPacket,
		LandedPricePerPacket:  p.LandedPricePerPacket,
		SuggestedSellingPrice: p.SuggestedSellingPrice,
		IsLoose:               p.IsLoose,
		ParentPacketID:        parentID,
		LabelPath:             p.LabelPath,
		IsActive:              p.IsActive,
		CreatedAt:             p.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func breakEventToResponse(ev *model.BreakEvent) *dto.BreakEventResponse {
	var ref *string
	if ev.ReferenceID != nil {
		s := ev.ReferenceID.String()
		ref = &s
	}
	loose := make([]dto.LooseRefDTO, 0, len(ev.LooseCreated))
	for _, l := range ev.LooseCreated {
		loose = append(loose, dto.LooseRefDTO{
			PacketStockID: l.PacketStockID.String(),
			Barcode:       l.Barcode,
			Size:          l.Size,
			Color:         l.Color,
			Quantity:      l.Quantity,
		})
	}
	return &dto.BreakEventResponse{
		ID:             ev.ID.String(),
		ActorID:        ev.ActorID.String(),
		ItemsRemoved:   compositionToDTO(ev.ItemsRemoved),
		ItemsRemaining: compositionToDTO(ev.ItemsRemaining),
		LooseCreated:   loose,
		ReferenceID:    ref,
		Notes:          ev.Notes,
		CreatedAt:      ev.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
