package service

import (
	"context"
	"testing"

	"packline/internal/barcode"
	"packline/internal/dto"
	"packline/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlannerFixture() (*stubPacketRepo, *stubBreakEventRepo, ReturnPlanner) {
	repo := newStubPacketRepo()
	events := &stubBreakEventRepo{}
	planner := NewReturnPlanner(repo, NewBreakService(repo, events), nil)
	return repo, events, planner
}

// seedLoose stores a loose aggregate of the given variant with `items` units.
func seedLoose(repo *stubPacketRepo, size, color string, items int) *model.PacketStock {
	return repo.seed(&model.PacketStock{
		Barcode:               barcode.GenerateLoose(supplierID, productID, size, color),
		ProductID:             productID,
		SupplierID:            supplierID,
		Composition:           model.Composition{{Size: size, Color: color, Quantity: 1}},
		TotalItemsPerPacket:   1,
		AvailablePackets:      items,
		CostPricePerPacket:    decimal.RequireFromString("6.00"),
		LandedPricePerPacket:  decimal.RequireFromString("7.20"),
		SuggestedSellingPrice: decimal.RequireFromString("8.64"),
		IsLoose:               true,
		Version:               1,
		IsActive:              true,
	})
}

func variantReturnReq(ref string, variants ...dto.CompositionEntryDTO) dto.ReturnRequest {
	return dto.ReturnRequest{
		Mode:           dto.ReturnModeVariant,
		ProductID:      productID.String(),
		SupplierID:     supplierID.String(),
		Variants:       variants,
		TransactionRef: ref,
	}
}

func TestPlanByBarcodeRoundsUpToWholePackets(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	sealed := seedSealed(repo, 3) // 5 items per packet

	// 7 items out of 5-item packets needs 2 whole packets.
	plan, err := planner.Plan(context.Background(), dto.ReturnRequest{
		Mode:           dto.ReturnModeBarcode,
		ProductID:      productID.String(),
		SupplierID:     supplierID.String(),
		PacketBarcode:  sealed.Barcode,
		Quantity:       7,
		TransactionRef: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Len(t, plan.Adjustments, 1)
	assert.Equal(t, dto.AdjustmentFullPacketReturn, plan.Adjustments[0].Kind)
	assert.Equal(t, 2, plan.Adjustments[0].Quantity)

	// Planning commits nothing.
	stored, err := repo.FindByBarcode(context.Background(), sealed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AvailablePackets)
}

func TestPlanByBarcodeInsufficient(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	sealed := seedSealed(repo, 1)

	_, err := planner.Plan(context.Background(), dto.ReturnRequest{
		Mode:           dto.ReturnModeBarcode,
		ProductID:      productID.String(),
		SupplierID:     supplierID.String(),
		PacketBarcode:  sealed.Barcode,
		Quantity:       7,
		TransactionRef: uuid.NewString(),
	})
	var insufficient *model.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Requested) // in packets after rounding
	assert.Equal(t, 1, insufficient.Available)
}

func TestPlanVariantsPrefersLooseOverSealed(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	seedLoose(repo, "M", "Red", 2)
	seedSealed(repo, 1)

	plan, err := planner.Plan(context.Background(),
		variantReturnReq(uuid.NewString(), dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 4}))
	require.NoError(t, err)
	require.Len(t, plan.Adjustments, 2)

	assert.Equal(t, dto.AdjustmentLooseReturn, plan.Adjustments[0].Kind)
	assert.Equal(t, 2, plan.Adjustments[0].Quantity)

	assert.Equal(t, dto.AdjustmentPartialBreak, plan.Adjustments[1].Kind)
	require.Len(t, plan.Adjustments[1].ItemsToRemove, 1)
	assert.Equal(t, 2, plan.Adjustments[1].ItemsToRemove[0].Quantity)
}

func TestPlanVariantsSplitsFullAndPartialBreaks(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	seedSealed(repo, 3) // 3 packets × 3 M/Red each

	// 7 M/Red = 2 full-yield breaks (3 each) + a partial break of 1.
	plan, err := planner.Plan(context.Background(),
		variantReturnReq(uuid.NewString(), dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 7}))
	require.NoError(t, err)
	require.Len(t, plan.Adjustments, 3)
	for _, a := range plan.Adjustments {
		assert.Equal(t, dto.AdjustmentPartialBreak, a.Kind)
	}
	assert.Equal(t, 3, plan.Adjustments[0].ItemsToRemove[0].Quantity)
	assert.Equal(t, 3, plan.Adjustments[1].ItemsToRemove[0].Quantity)
	assert.Equal(t, 1, plan.Adjustments[2].ItemsToRemove[0].Quantity)
}

func TestPlanShortfallAggregatesAllVariants(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	seedLoose(repo, "M", "Red", 2)
	seedSealed(repo, 1) // 3 M/Red + 2 L/Blue available sealed

	_, err := planner.Plan(context.Background(), variantReturnReq(uuid.NewString(),
		dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 9},
		dto.CompositionEntryDTO{Size: "XL", Color: "Green", Quantity: 1},
	))
	var shortfall *model.PlanShortfallError
	require.ErrorAs(t, err, &shortfall)
	require.Len(t, shortfall.Shortfalls, 2)
	assert.Equal(t, 4, shortfall.Shortfalls[0].Unmet) // 9 requested, 2 loose + 3 sealed
	assert.Equal(t, 1, shortfall.Shortfalls[1].Unmet)
}

func TestExecuteVariantReturn(t *testing.T) {
	repo, events, planner := newPlannerFixture()
	loose := seedLoose(repo, "M", "Red", 2)
	sealed := seedSealed(repo, 1)
	ref := uuid.NewString()
	ctx := context.Background()

	result, err := planner.Execute(ctx, actorID,
		variantReturnReq(ref, dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 4}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ref, result.TransactionRef)
	assert.Equal(t, 4, result.ItemsReturned)

	// Loose drained first.
	storedLoose, err := repo.FindByBarcode(ctx, loose.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, storedLoose.AvailablePackets) // 2 returned, 1 re-promoted by the break

	// One sealed packet was opened for the remaining 2 items.
	storedSealed, err := repo.FindByBarcode(ctx, sealed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 0, storedSealed.AvailablePackets)

	// The 2 L/Blue surplus of the opened packet went loose.
	blue, err := repo.FindByBarcode(ctx, barcode.GenerateLoose(supplierID, productID, "L", "Blue"))
	require.NoError(t, err)
	assert.Equal(t, 2, blue.AvailablePackets)

	// The break is stamped with the return's transaction ref.
	refID := uuid.MustParse(ref)
	evs, err := events.ListByReference(ctx, refID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, sealed.ID, evs[0].PacketStockID)
}

func TestExecuteMultiVariantWithBreakPromotion(t *testing.T) {
	// A break for one variant promotes surplus into loose aggregates the
	// plan also returns for another variant. The loose saves must land
	// before the break touches those rows, or the execution conflicts
	// with itself.
	repo, events, planner := newPlannerFixture()
	looseRed := seedLoose(repo, "M", "Red", 2)
	looseBlue := seedLoose(repo, "L", "Blue", 2)
	sealed := seedSealed(repo, 1)
	ref := uuid.NewString()
	ctx := context.Background()

	result, err := planner.Execute(ctx, actorID, variantReturnReq(ref,
		dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 4},
		dto.CompositionEntryDTO{Size: "L", Color: "Blue", Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 6, result.ItemsReturned) // 2+2 loose, 2 from the break

	// Both loose rows were drained, then refilled by the break's surplus.
	red, err := repo.FindByBarcode(ctx, looseRed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, red.AvailablePackets)
	blue, err := repo.FindByBarcode(ctx, looseBlue.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 2, blue.AvailablePackets)

	storedSealed, err := repo.FindByBarcode(ctx, sealed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 0, storedSealed.AvailablePackets)

	evs, err := events.ListByReference(ctx, uuid.MustParse(ref))
	require.NoError(t, err)
	require.Len(t, evs, 1)
}

func TestExecuteShortfallCommitsNothing(t *testing.T) {
	repo, events, planner := newPlannerFixture()
	loose := seedLoose(repo, "M", "Red", 2)
	sealed := seedSealed(repo, 1)
	ctx := context.Background()

	_, err := planner.Execute(ctx, actorID,
		variantReturnReq(uuid.NewString(), dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 9}))
	var shortfall *model.PlanShortfallError
	require.ErrorAs(t, err, &shortfall)

	storedLoose, err := repo.FindByBarcode(ctx, loose.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 2, storedLoose.AvailablePackets)
	storedSealed, err := repo.FindByBarcode(ctx, sealed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, storedSealed.AvailablePackets)
	assert.Empty(t, events.events)
}

func TestExecuteFullPacketReturn(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	sealed := seedSealed(repo, 3)
	ctx := context.Background()

	result, err := planner.Execute(ctx, actorID, dto.ReturnRequest{
		Mode:           dto.ReturnModeBarcode,
		ProductID:      productID.String(),
		SupplierID:     supplierID.String(),
		PacketBarcode:  sealed.Barcode,
		Quantity:       10,
		TransactionRef: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.ItemsReturned)

	stored, err := repo.FindByBarcode(ctx, sealed.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailablePackets)
}

func TestExecuteRejectsMalformedTransactionRef(t *testing.T) {
	_, _, planner := newPlannerFixture()
	_, err := planner.Execute(context.Background(), actorID,
		variantReturnReq("not-a-uuid", dto.CompositionEntryDTO{Size: "M", Color: "Red", Quantity: 1}))
	assert.Error(t, err)
}

func TestSummaryBreaksDownSealedAndLoose(t *testing.T) {
	repo, _, planner := newPlannerFixture()
	seedSealed(repo, 2) // 2 × (3 M/Red + 2 L/Blue)
	seedLoose(repo, "M", "Red", 4)

	summary, err := planner.Summary(context.Background(), productID, supplierID)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalSealedItems)
	assert.Equal(t, 4, summary.TotalLooseItems)

	byVariant := make(map[string]dto.VariantAvailability)
	for _, v := range summary.Variants {
		byVariant[v.Size+"/"+v.Color] = v
	}
	red := byVariant["M/Red"]
	assert.Equal(t, 6, red.SealedItems)
	assert.Equal(t, 4, red.LooseItems)
	assert.Equal(t, 10, red.TotalItems)
	blue := byVariant["L/Blue"]
	assert.Equal(t, 4, blue.SealedItems)
	assert.Equal(t, 0, blue.LooseItems)
}
