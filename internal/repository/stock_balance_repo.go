package repository

import (
	"context"

	"packline/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockBalanceRepository reads the settlement service's scalar item ledger
// and accepts its pushes. The engine itself only ever reads it (auditor).
type StockBalanceRepository interface {
	FindByProduct(ctx context.Context, productID uuid.UUID) (*model.StockBalance, error)
	FindAll(ctx context.Context) ([]model.StockBalance, error)
	Upsert(ctx context.Context, productID uuid.UUID, totalItems decimal.Decimal) error
}

type stockBalanceRepo struct{ db *gorm.DB }

func NewStockBalanceRepository(db *gorm.DB) StockBalanceRepository {
	return &stockBalanceRepo{db: db}
}

func (r *stockBalanceRepo) FindByProduct(ctx context.Context, productID uuid.UUID) (*model.StockBalance, error) {
	var b model.StockBalance
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *stockBalanceRepo) FindAll(ctx context.Context) ([]model.StockBalance, error) {
	var balances []model.StockBalance
	err := r.db.WithContext(ctx).Find(&balances).Error
	return balances, err
}

func (r *stockBalanceRepo) Upsert(ctx context.Context, productID uuid.UUID, totalItems decimal.Decimal) error {
	b := model.StockBalance{ProductID: productID, TotalItems: totalItems}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_items", "updated_at"}),
	}).Create(&b).Error
}
