package repository

import (
	"context"

	"packline/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BreakEventRepository appends and pages the immutable break audit rows.
type BreakEventRepository interface {
	CreateTx(tx *gorm.DB, ev *model.BreakEvent) error
	ListByPacket(ctx context.Context, packetID uuid.UUID, page, limit int) ([]model.BreakEvent, int64, error)
	ListByReference(ctx context.Context, referenceID uuid.UUID) ([]model.BreakEvent, error)
}

type breakEventRepo struct{ db *gorm.DB }

func NewBreakEventRepository(db *gorm.DB) BreakEventRepository { return &breakEventRepo{db: db} }

func (r *breakEventRepo) CreateTx(tx *gorm.DB, ev *model.BreakEvent) error {
	return tx.Create(ev).Error
}

func (r *breakEventRepo) ListByPacket(ctx context.Context, packetID uuid.UUID, page, limit int) ([]model.BreakEvent, int64, error) {
	var events []model.BreakEvent
	var total int64

	q := r.db.WithContext(ctx).Model(&model.BreakEvent{}).Where("packet_stock_id = ?", packetID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

func (r *breakEventRepo) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]model.BreakEvent, error) {
	var events []model.BreakEvent
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
