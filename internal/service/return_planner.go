package service

import (
	"context"
	"fmt"

	"packline/internal/dto"
	"packline/internal/model"
	"packline/internal/repository"
	"packline/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReturnPlanner translates a return request into a validated sequence of
// aggregate operations and executes them as one transaction.
//
// Allocation policy for variant-composition requests: loose stock first
// (already broken, returning it touches no sealed packet), then sealed
// packets, oldest-created first within each. FIFO is a policy, not a
// correctness requirement — it picks which physical units go back, never
// whether the totals add up.
//
// Each variant line is allocated on its own; a break planned for one line
// removes only that line's variant, and its surplus reaches other lines as
// promoted loose stock on a later request, not within the same plan.
type ReturnPlanner interface {
	Plan(ctx context.Context, req dto.ReturnRequest) (*dto.ReturnPlanResponse, error)
	Execute(ctx context.Context, actorID uuid.UUID, req dto.ReturnRequest) (*dto.ReturnResultResponse, error)
	Summary(ctx context.Context, productID, supplierID uuid.UUID) (*dto.ReturnSummaryResponse, error)
}

type returnPlanner struct {
	repo       repository.PacketRepository
	breaks     BreakService
	dispatcher *worker.Dispatcher
}

func NewReturnPlanner(repo repository.PacketRepository, breaks BreakService, dispatcher *worker.Dispatcher) ReturnPlanner {
	return &returnPlanner{repo: repo, breaks: breaks, dispatcher: dispatcher}
}

// plannedAdjustment is one typed step. The packet pointer was loaded inside
// the planning transaction and is mutated in place during execution.
type plannedAdjustment struct {
	kind          string
	packet        *model.PacketStock
	quantity      int               // packets (full return) or items (loose return)
	itemsToRemove model.Composition // partial break only
}

func (a plannedAdjustment) toDTO() dto.AdjustmentDTO {
	out := dto.AdjustmentDTO{Kind: a.kind, Barcode: a.packet.Barcode, Quantity: a.quantity}
	if len(a.itemsToRemove) > 0 {
		out.ItemsToRemove = compositionToDTO(a.itemsToRemove)
	}
	return out
}

// ── Plan (dry run) ───────────────────────────────────────────────────────────

func (p *returnPlanner) Plan(ctx context.Context, req dto.ReturnRequest) (*dto.ReturnPlanResponse, error) {
	var adjustments []plannedAdjustment
	txErr := runTx(ctx, p.repo.DB(), func(tx *gorm.DB) error {
		var err error
		adjustments, err = p.buildPlan(tx, req)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}

	out := make([]dto.AdjustmentDTO, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, a.toDTO())
	}
	return &dto.ReturnPlanResponse{Valid: true, Adjustments: out}, nil
}

func (p *returnPlanner) buildPlan(tx *gorm.DB, req dto.ReturnRequest) ([]plannedAdjustment, error) {
	switch req.Mode {
	case dto.ReturnModeBarcode:
		return p.planByBarcode(tx, req)
	case dto.ReturnModeVariant:
		return p.planByVariants(tx, req)
	default:
		return nil, fmt.Errorf("unknown return mode %q", req.Mode)
	}
}

// planByBarcode returns whole units of one named aggregate. Quantity is in
// items; it is rounded up to whole packets for sealed stock.
func (p *returnPlanner) planByBarcode(tx *gorm.DB, req dto.ReturnRequest) ([]plannedAdjustment, error) {
	packet, err := p.repo.FindByBarcodeTx(tx, req.PacketBarcode)
	if err != nil {
		return nil, err
	}

	if packet.IsLoose {
		if packet.AvailablePackets < req.Quantity {
			return nil, &model.InsufficientStockError{Barcode: packet.Barcode, Requested: req.Quantity, Available: packet.AvailablePackets}
		}
		return []plannedAdjustment{{kind: dto.AdjustmentLooseReturn, packet: packet, quantity: req.Quantity}}, nil
	}

	packetsNeeded := (req.Quantity + packet.TotalItemsPerPacket - 1) / packet.TotalItemsPerPacket
	if packet.AvailablePackets < packetsNeeded {
		return nil, &model.InsufficientStockError{Barcode: packet.Barcode, Requested: packetsNeeded, Available: packet.AvailablePackets}
	}
	return []plannedAdjustment{{kind: dto.AdjustmentFullPacketReturn, packet: packet, quantity: packetsNeeded}}, nil
}

// planByVariants allocates each requested variant from loose stock first,
// then sealed packets. Shortfalls are collected across all variants and
// returned as one aggregated error — an invalid plan commits nothing.
func (p *returnPlanner) planByVariants(tx *gorm.DB, req dto.ReturnRequest) ([]plannedAdjustment, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("product_id: %w", err)
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("supplier_id: %w", err)
	}

	requested := mergeComposition(compositionFromDTO(req.Variants))

	var adjustments []plannedAdjustment
	var shortfalls []model.VariantShortfall
	// Units of each sealed packet already claimed by earlier variants of
	// this same plan.
	claimed := make(map[uuid.UUID]int)

	for _, variant := range requested {
		needed := variant.Quantity

		// 1. Loose stock first — already broken, cheapest to return.
		looseList, err := p.repo.FindLooseByVariantTx(tx, productID, supplierID, variant.Size, variant.Color)
		if err != nil {
			return nil, err
		}
		for i := range looseList {
			if needed == 0 {
				break
			}
			loose := &looseList[i]
			take := loose.AvailablePackets
			if take > needed {
				take = needed
			}
			adjustments = append(adjustments, plannedAdjustment{kind: dto.AdjustmentLooseReturn, packet: loose, quantity: take})
			needed -= take
		}

		// 2. Sealed packets, oldest first. Full-yield breaks while a whole
		//    packet's worth is still needed, then one partial break for the
		//    tail — its surplus is promoted to loose by the break itself.
		if needed > 0 {
			sealed, err := p.repo.FindSealedContainingVariantTx(tx, productID, supplierID, variant.Size, variant.Color)
			if err != nil {
				return nil, err
			}
			for i := range sealed {
				if needed == 0 {
					break
				}
				packet := &sealed[i]
				entry, ok := packet.Composition.Find(variant.Size, variant.Color)
				if !ok {
					continue
				}
				yield := entry.Quantity
				units := packet.AvailablePackets - claimed[packet.ID]

				fullBreaks := needed / yield
				if fullBreaks > units {
					fullBreaks = units
				}
				for b := 0; b < fullBreaks; b++ {
					adjustments = append(adjustments, plannedAdjustment{
						kind:          dto.AdjustmentPartialBreak,
						packet:        packet,
						quantity:      yield,
						itemsToRemove: model.Composition{{Size: variant.Size, Color: variant.Color, Quantity: yield}},
					})
				}
				claimed[packet.ID] += fullBreaks
				units -= fullBreaks
				needed -= fullBreaks * yield

				if needed > 0 && needed < yield && units > 0 {
					adjustments = append(adjustments, plannedAdjustment{
						kind:          dto.AdjustmentPartialBreak,
						packet:        packet,
						quantity:      needed,
						itemsToRemove: model.Composition{{Size: variant.Size, Color: variant.Color, Quantity: needed}},
					})
					claimed[packet.ID]++
					needed = 0
				}
			}
		}

		if needed > 0 {
			shortfalls = append(shortfalls, model.VariantShortfall{
				Size:      variant.Size,
				Color:     variant.Color,
				Requested: variant.Quantity,
				Available: variant.Quantity - needed,
				Unmet:     needed,
			})
		}
	}

	if len(shortfalls) > 0 {
		return nil, &model.PlanShortfallError{Shortfalls: shortfalls}
	}
	return adjustments, nil
}

// ── Execute ──────────────────────────────────────────────────────────────────

func (p *returnPlanner) Execute(ctx context.Context, actorID uuid.UUID, req dto.ReturnRequest) (*dto.ReturnResultResponse, error) {
	ref, err := uuid.Parse(req.TransactionRef)
	if err != nil {
		return nil, fmt.Errorf("transaction_ref: %w", err)
	}

	var executed []plannedAdjustment
	itemsReturned := 0

	txErr := runTx(ctx, p.repo.DB(), func(tx *gorm.DB) error {
		// Re-plan inside the transaction: availability may have shifted
		// since any dry run the caller did.
		adjustments, err := p.buildPlan(tx, req)
		if err != nil {
			return err
		}

		// Versioned saves run before any break: a break's loose upsert
		// bumps the version of rows the plan may also return, and every
		// packet pointer here was loaded before the first write.
		for _, a := range adjustments {
			switch a.kind {
			case dto.AdjustmentFullPacketReturn:
				if err := applySupplierReturn(a.packet, a.quantity); err != nil {
					return err
				}
				if err := p.repo.SaveVersionedTx(tx, a.packet); err != nil {
					return err
				}
				itemsReturned += a.quantity * a.packet.TotalItemsPerPacket

			case dto.AdjustmentLooseReturn:
				if err := applySupplierReturn(a.packet, a.quantity); err != nil {
					return err
				}
				if err := p.repo.SaveVersionedTx(tx, a.packet); err != nil {
					return err
				}
				itemsReturned += a.quantity
			}
		}

		for _, a := range adjustments {
			if a.kind != dto.AdjustmentPartialBreak {
				continue
			}
			outcome, err := p.breaks.BreakTx(tx, actorID, a.packet, a.itemsToRemove, &ref, "return adjustment")
			if err != nil {
				return err
			}
			itemsReturned += outcome.TotalRemoved
		}

		executed = adjustments
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	out := make([]dto.AdjustmentDTO, 0, len(executed))
	for _, a := range executed {
		out = append(out, a.toDTO())
	}
	result := &dto.ReturnResultResponse{
		Success:        true,
		TransactionRef: ref.String(),
		Adjustments:    out,
		ItemsReturned:  itemsReturned,
	}

	// Supplier-relations notification with the return slip attached.
	// Best-effort: the return itself has already committed.
	if p.dispatcher != nil {
		if err := p.dispatcher.EnqueueReturnSlip(ctx, worker.ReturnSlipJobPayload{
			TransactionRef: ref.String(),
			ItemsReturned:  itemsReturned,
			Adjustments:    out,
		}); err != nil {
			log.Warn().Err(err).Str("transaction_ref", ref.String()).Msg("return slip job not enqueued")
			result.Warnings = append(result.Warnings, "return slip notification not queued")
		}
	}

	return result, nil
}

// ── Summary ──────────────────────────────────────────────────────────────────

// Summary is the read-only available-to-return view: total sealed items,
// total loose items, and the per-variant breakdown across both.
func (p *returnPlanner) Summary(ctx context.Context, productID, supplierID uuid.UUID) (*dto.ReturnSummaryResponse, error) {
	packets, err := p.repo.FindByPair(ctx, productID, supplierID)
	if err != nil {
		return nil, err
	}

	type key struct{ size, color string }
	perVariant := make(map[key]*dto.VariantAvailability)
	order := make([]key, 0)
	totalSealed, totalLoose := 0, 0

	for i := range packets {
		packet := &packets[i]
		if packet.AvailablePackets == 0 {
			continue
		}
		for _, entry := range packet.Composition {
			k := key{entry.Size, entry.Color}
			v, ok := perVariant[k]
			if !ok {
				v = &dto.VariantAvailability{Size: entry.Size, Color: entry.Color}
				perVariant[k] = v
				order = append(order, k)
			}
			if packet.IsLoose {
				v.LooseItems += packet.AvailablePackets
			} else {
				v.SealedItems += packet.AvailablePackets * entry.Quantity
			}
		}
		if packet.IsLoose {
			totalLoose += packet.AvailablePackets
		} else {
			totalSealed += packet.AvailablePackets * packet.TotalItemsPerPacket
		}
	}

	variants := make([]dto.VariantAvailability, 0, len(order))
	for _, k := range order {
		v := perVariant[k]
		v.TotalItems = v.SealedItems + v.LooseItems
		variants = append(variants, *v)
	}

	return &dto.ReturnSummaryResponse{
		ProductID:        productID.String(),
		SupplierID:       supplierID.String(),
		TotalSealedItems: totalSealed,
		TotalLooseItems:  totalLoose,
		Variants:         variants,
	}, nil
}
