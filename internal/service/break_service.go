package service

import (
	"context"

	"packline/internal/barcode"
	"packline/internal/dto"
	"packline/internal/model"
	"packline/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BreakService opens one sealed packet: the requested items leave packet
// stock (sold or returned) and every remaining variant is promoted to its
// loose aggregate. Total item count is conserved — the decrement of the
// parent and the loose increments commit or roll back as one unit.
type BreakService interface {
	Break(ctx context.Context, actorID uuid.UUID, barcode string, req dto.BreakRequest) (*dto.BreakResponse, error)

	// BreakTx is the transactional core, exposed for the return planner to
	// compose into its own multi-write scope. The parent must have been
	// loaded inside tx; its in-memory counters are kept in sync with the
	// storage-level decrement.
	BreakTx(tx *gorm.DB, actorID uuid.UUID, parent *model.PacketStock, itemsToRemove model.Composition, referenceID *uuid.UUID, notes string) (*BreakOutcome, error)
}

// BreakOutcome is the in-process result of one executed break.
type BreakOutcome struct {
	ItemsRemoved   model.Composition
	ItemsRemaining model.Composition
	LooseTouched   model.LooseRefs
	TotalRemoved   int
}

type breakService struct {
	repo   repository.PacketRepository
	events repository.BreakEventRepository
}

func NewBreakService(repo repository.PacketRepository, events repository.BreakEventRepository) BreakService {
	return &breakService{repo: repo, events: events}
}

func (s *breakService) Break(ctx context.Context, actorID uuid.UUID, code string, req dto.BreakRequest) (*dto.BreakResponse, error) {
	var refID *uuid.UUID
	if req.ReferenceID != nil {
		parsed, err := uuid.Parse(*req.ReferenceID)
		if err != nil {
			return nil, err
		}
		refID = &parsed
	}

	items := mergeComposition(compositionFromDTO(req.ItemsToRemove))

	var parent *model.PacketStock
	var outcome *BreakOutcome

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		p, err := s.repo.FindByBarcodeTx(tx, code)
		if err != nil {
			return err
		}
		parent = p
		outcome, err = s.BreakTx(tx, actorID, p, items, refID, req.Notes)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	loose := make([]dto.LooseRefDTO, 0, len(outcome.LooseTouched))
	for _, l := range outcome.LooseTouched {
		loose = append(loose, dto.LooseRefDTO{
			PacketStockID: l.PacketStockID.String(),
			Barcode:       l.Barcode,
			Size:          l.Size,
			Color:         l.Color,
			Quantity:      l.Quantity,
		})
	}
	return &dto.BreakResponse{
		Barcode:          parent.Barcode,
		AvailablePackets: parent.AvailablePackets,
		ItemsRemoved:     compositionToDTO(outcome.ItemsRemoved),
		ItemsRemaining:   compositionToDTO(outcome.ItemsRemaining),
		TotalRemoved:     outcome.TotalRemoved,
		LooseCreated:     loose,
	}, nil
}

func (s *breakService) BreakTx(tx *gorm.DB, actorID uuid.UUID, parent *model.PacketStock, itemsToRemove model.Composition, referenceID *uuid.UUID, notes string) (*BreakOutcome, error) {
	// 1. Aggregate-kind and stock preconditions.
	if parent.IsLoose {
		return nil, model.ErrAlreadyLoose
	}
	if parent.AvailablePackets < 1 {
		return nil, model.ErrNoStockToBreak
	}

	// 2. Every removal line must name a variant the packet carries, within
	//    the per-packet quantity. Rejected before any mutation.
	totalRemoved := 0
	for _, item := range itemsToRemove {
		entry, ok := parent.Composition.Find(item.Size, item.Color)
		if !ok {
			return nil, &model.VariantNotFoundError{Barcode: parent.Barcode, Size: item.Size, Color: item.Color}
		}
		if item.Quantity > entry.Quantity {
			return nil, &model.OverRequestedQuantityError{
				Barcode:   parent.Barcode,
				Size:      item.Size,
				Color:     item.Color,
				Requested: item.Quantity,
				PerPacket: entry.Quantity,
			}
		}
		totalRemoved += item.Quantity
	}

	// 3. The contention-prone step: take one packet off the shelf with a
	//    storage-level compare-and-swap. A lost race aborts the scope.
	if err := s.repo.CASDecrementAvailableTx(tx, parent.ID); err != nil {
		return nil, err
	}
	parent.AvailablePackets--

	// 4. Whatever the removal left in the packet.
	remaining := make(model.Composition, 0, len(parent.Composition))
	for _, entry := range parent.Composition {
		left := entry.Quantity
		if item, ok := itemsToRemove.Find(entry.Size, entry.Color); ok {
			left -= item.Quantity
		}
		if left > 0 {
			remaining = append(remaining, model.CompositionEntry{Size: entry.Size, Color: entry.Color, Quantity: left})
		}
	}

	// 5. Promote each remaining variant to its loose aggregate. Pricing is
	//    per item: parent landed price spread across the packet, with the
	//    standard markup on top.
	perPacket := decimal.NewFromInt(int64(parent.TotalItemsPerPacket))
	looseLanded := parent.LandedPricePerPacket.DivRound(perPacket, 2)
	looseCost := parent.CostPricePerPacket.DivRound(perPacket, 2)

	touched := make(model.LooseRefs, 0, len(remaining))
	for _, entry := range remaining {
		code := barcode.GenerateLoose(parent.SupplierID, parent.ProductID, entry.Size, entry.Color)
		parentID := parent.ID
		loose := &model.PacketStock{
			Barcode:    code,
			ProductID:  parent.ProductID,
			SupplierID: parent.SupplierID,
			Composition: model.Composition{
				{Size: entry.Size, Color: entry.Color, Quantity: 1},
			},
			TotalItemsPerPacket:   1,
			AvailablePackets:      entry.Quantity,
			CostPricePerPacket:    looseCost,
			LandedPricePerPacket:  looseLanded,
			SuggestedSellingPrice: looseLanded.Mul(model.SuggestedMarkup).Round(2),
			IsLoose:               true,
			ParentPacketID:        &parentID,
			IsActive:              true,
		}
		if err := s.repo.UpsertLooseTx(tx, loose); err != nil {
			return nil, err
		}
		touched = append(touched, model.LooseRef{
			PacketStockID: loose.ID,
			Barcode:       loose.Barcode,
			Size:          entry.Size,
			Color:         entry.Color,
			Quantity:      entry.Quantity,
		})
	}

	// 6. One immutable audit row naming everything the break touched.
	ev := &model.BreakEvent{
		PacketStockID:  parent.ID,
		ActorID:        actorID,
		ItemsRemoved:   itemsToRemove,
		ItemsRemaining: remaining,
		LooseCreated:   touched,
		ReferenceID:    referenceID,
		Notes:          notes,
	}
	if err := s.events.CreateTx(tx, ev); err != nil {
		return nil, err
	}

	return &BreakOutcome{
		ItemsRemoved:   itemsToRemove,
		ItemsRemaining: remaining,
		LooseTouched:   touched,
		TotalRemoved:   totalRemoved,
	}, nil
}

// mergeComposition collapses duplicate (size, color) lines by summing their
// quantities, so validation sees one line per variant.
func mergeComposition(items model.Composition) model.Composition {
	out := make(model.Composition, 0, len(items))
	for _, item := range items {
		merged := false
		for i := range out {
			if out[i].Size == item.Size && out[i].Color == item.Color {
				out[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, item)
		}
	}
	return out
}
