package service

import (
	"context"
	"testing"

	"packline/internal/model"
	"packline/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubBalanceRepo struct {
	balances map[uuid.UUID]decimal.Decimal
}

func newStubBalanceRepo() *stubBalanceRepo {
	return &stubBalanceRepo{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (r *stubBalanceRepo) FindByProduct(_ context.Context, productID uuid.UUID) (*model.StockBalance, error) {
	total, ok := r.balances[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.StockBalance{ProductID: productID, TotalItems: total}, nil
}

func (r *stubBalanceRepo) FindAll(_ context.Context) ([]model.StockBalance, error) {
	out := make([]model.StockBalance, 0, len(r.balances))
	for id, total := range r.balances {
		out = append(out, model.StockBalance{ProductID: id, TotalItems: total})
	}
	return out, nil
}

func (r *stubBalanceRepo) Upsert(_ context.Context, productID uuid.UUID, totalItems decimal.Decimal) error {
	r.balances[productID] = totalItems
	return nil
}

var _ repository.StockBalanceRepository = (*stubBalanceRepo)(nil)

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductRepo) List(_ context.Context) ([]model.Product, error) {
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

func newAuditFixture() (*stubPacketRepo, *stubBalanceRepo, AuditService) {
	packets := newStubPacketRepo()
	balances := newStubBalanceRepo()
	products := &stubProductRepo{products: map[uuid.UUID]*model.Product{
		productID: {ID: productID, Name: "Crewneck Tee", Style: "CT-100", IsActive: true},
	}}
	return packets, balances, NewAuditService(packets, balances, products)
}

func TestDiscrepanciesCleanWhenLedgerMatches(t *testing.T) {
	packets, balances, svc := newAuditFixture()
	seedSealed(packets, 2)             // 10 items
	seedLoose(packets, "M", "Red", 3)  // 3 items
	require.NoError(t, balances.Upsert(context.Background(), productID, decimal.NewFromInt(13)))

	out, err := svc.Discrepancies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDiscrepanciesStockAhead(t *testing.T) {
	packets, balances, svc := newAuditFixture()
	seedSealed(packets, 2) // 10 items derived from aggregates
	require.NoError(t, balances.Upsert(context.Background(), productID, decimal.NewFromInt(7)))

	out, err := svc.Discrepancies(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "stock_ahead", out[0].Direction)
	assert.True(t, out[0].Difference.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "Crewneck Tee", out[0].ProductName)
}

func TestDiscrepanciesLedgerAhead(t *testing.T) {
	packets, balances, svc := newAuditFixture()
	seedSealed(packets, 1) // 5 items
	require.NoError(t, balances.Upsert(context.Background(), productID, decimal.NewFromInt(9)))

	out, err := svc.Discrepancies(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ledger_ahead", out[0].Direction)
	assert.True(t, out[0].Difference.Equal(decimal.NewFromInt(-4)))
}

func TestDiscrepanciesMissingLedgerRowCountsAsZero(t *testing.T) {
	packets, _, svc := newAuditFixture()
	seedLoose(packets, "M", "Red", 4)

	out, err := svc.Discrepancies(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "stock_ahead", out[0].Direction)
	assert.True(t, out[0].PacketItems.Equal(decimal.NewFromInt(4)))
	assert.True(t, out[0].LedgerItems.IsZero())
}

func TestDiscrepanciesToleratesRoundingNoise(t *testing.T) {
	packets, balances, svc := newAuditFixture()
	seedSealed(packets, 1) // 5 items
	require.NoError(t, balances.Upsert(context.Background(), productID, decimal.RequireFromString("5.0000001")))

	out, err := svc.Discrepancies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUpsertBalanceRejectsNegative(t *testing.T) {
	_, balances, svc := newAuditFixture()

	err := svc.UpsertBalance(context.Background(), productID, decimal.NewFromInt(-1))
	assert.Error(t, err)
	assert.Empty(t, balances.balances)

	require.NoError(t, svc.UpsertBalance(context.Background(), productID, decimal.NewFromInt(42)))
	assert.True(t, balances.balances[productID].Equal(decimal.NewFromInt(42)))
}
