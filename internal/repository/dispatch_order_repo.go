package repository

import (
	"context"

	"packline/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DispatchOrderRepository appends and pages the replenishment audit rows.
type DispatchOrderRepository interface {
	CreateTx(tx *gorm.DB, d *model.DispatchOrder) error
	ListByPacket(ctx context.Context, packetID uuid.UUID, page, limit int) ([]model.DispatchOrder, int64, error)
}

type dispatchOrderRepo struct{ db *gorm.DB }

func NewDispatchOrderRepository(db *gorm.DB) DispatchOrderRepository {
	return &dispatchOrderRepo{db: db}
}

func (r *dispatchOrderRepo) CreateTx(tx *gorm.DB, d *model.DispatchOrder) error {
	return tx.Create(d).Error
}

func (r *dispatchOrderRepo) ListByPacket(ctx context.Context, packetID uuid.UUID, page, limit int) ([]model.DispatchOrder, int64, error) {
	var orders []model.DispatchOrder
	var total int64

	q := r.db.WithContext(ctx).Model(&model.DispatchOrder{}).Where("packet_stock_id = ?", packetID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	return orders, total, err
}
