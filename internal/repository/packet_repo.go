package repository

import (
	"context"
	"encoding/json"

	"packline/internal/dto"
	"packline/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PacketRepository is the data access contract for packet stock aggregates.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
//
// Methods with a Tx suffix run against a caller-supplied transaction; the
// planner and the break operation compose several of them into one atomic
// multi-write scope.
type PacketRepository interface {
	Create(ctx context.Context, p *model.PacketStock) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PacketStock, error)
	FindByBarcode(ctx context.Context, barcode string) (*model.PacketStock, error)
	FindByBarcodeTx(tx *gorm.DB, barcode string) (*model.PacketStock, error)
	List(ctx context.Context, filter dto.PacketFilter) ([]model.PacketStock, int64, error)
	SoftDelete(ctx context.Context, barcode string) error
	Reactivate(ctx context.Context, barcode string) error

	// FIFO candidate queries for the return planner. Both restrict to active
	// aggregates of the (product, supplier) pair carrying the exact variant,
	// oldest-created first.
	FindLooseByVariantTx(tx *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error)
	FindSealedContainingVariantTx(tx *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error)

	FindByProduct(ctx context.Context, productID uuid.UUID) ([]model.PacketStock, error)
	FindByPair(ctx context.Context, productID, supplierID uuid.UUID) ([]model.PacketStock, error)
	ListProductIDs(ctx context.Context) ([]uuid.UUID, error)
	FindLowStock(ctx context.Context, threshold int) ([]model.PacketStock, error)

	// CASDecrementAvailableTx decrements available_packets by exactly one,
	// conditional on the balance still being >= 1 at write time. Returns
	// model.ErrConcurrentModification when the row was drained by a racing
	// flow — callers must abort their scope, never retry with stale state.
	CASDecrementAvailableTx(tx *gorm.DB, id uuid.UUID) error

	// SaveVersionedTx persists a composite mutation guarded by the aggregate
	// version; a stale version returns model.ErrConcurrentModification
	// instead of overwriting concurrent changes.
	SaveVersionedTx(tx *gorm.DB, p *model.PacketStock) error

	// UpsertLooseTx is the idempotent find-or-create keyed by the
	// deterministic barcode, with the availability increment folded into the
	// conflict clause so creation never races a concurrent break.
	UpsertLooseTx(tx *gorm.DB, p *model.PacketStock) error

	UpdateLabelPath(ctx context.Context, barcode, labelPath string) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type packetRepo struct{ db *gorm.DB }

func NewPacketRepository(db *gorm.DB) PacketRepository { return &packetRepo{db: db} }

func (r *packetRepo) Create(ctx context.Context, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *packetRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PacketStock, error) {
	var p model.PacketStock
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packetRepo) FindByBarcode(ctx context.Context, barcode string) (*model.PacketStock, error) {
	return r.FindByBarcodeTx(r.db.WithContext(ctx), barcode)
}

func (r *packetRepo) FindByBarcodeTx(tx *gorm.DB, barcode string) (*model.PacketStock, error) {
	var p model.PacketStock
	err := tx.Where("barcode = ?", barcode).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packetRepo) List(ctx context.Context, filter dto.PacketFilter) ([]model.PacketStock, int64, error) {
	var packets []model.PacketStock
	var total int64

	q := r.db.WithContext(ctx).Model(&model.PacketStock{})

	// Active filter: "false" = inactive, "all" = everything, default active
	switch filter.Active {
	case "false":
		q = q.Where("is_active = false")
	case "all":
		// no filter
	default:
		q = q.Where("is_active = true")
	}

	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.SupplierID != "" {
		q = q.Where("supplier_id = ?", filter.SupplierID)
	}
	switch filter.Loose {
	case "true":
		q = q.Where("is_loose = true")
	case "false":
		q = q.Where("is_loose = false")
	}
	if filter.LowStock == "true" {
		q = q.Where("is_loose = false AND available_packets <= ?", filter.LowStockThreshold)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("created_at ASC").Limit(filter.Limit).Offset(offset).Find(&packets).Error
	return packets, total, err
}

func (r *packetRepo) SoftDelete(ctx context.Context, barcode string) error {
	return r.db.WithContext(ctx).Model(&model.PacketStock{}).
		Where("barcode = ?", barcode).Update("is_active", false).Error
}

func (r *packetRepo) Reactivate(ctx context.Context, barcode string) error {
	return r.db.WithContext(ctx).Model(&model.PacketStock{}).
		Where("barcode = ?", barcode).Update("is_active", true).Error
}

// variantKey builds the JSONB containment argument for one (size, color)
// pair. Matching on the subset object leaves quantity out of the predicate.
func variantKey(size, color string) []byte {
	b, _ := json.Marshal([]map[string]string{{"size": size, "color": color}})
	return b
}

func (r *packetRepo) FindLooseByVariantTx(tx *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error) {
	var packets []model.PacketStock
	err := tx.
		Where("product_id = ? AND supplier_id = ? AND is_loose = true AND is_active = true", productID, supplierID).
		Where("available_packets > 0").
		Where("composition @> ?::jsonb", string(variantKey(size, color))).
		Order("created_at ASC").
		Find(&packets).Error
	return packets, err
}

func (r *packetRepo) FindSealedContainingVariantTx(tx *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error) {
	var packets []model.PacketStock
	err := tx.
		Where("product_id = ? AND supplier_id = ? AND is_loose = false AND is_active = true", productID, supplierID).
		Where("available_packets > 0").
		Where("composition @> ?::jsonb", string(variantKey(size, color))).
		Order("created_at ASC").
		Find(&packets).Error
	return packets, err
}

func (r *packetRepo) FindByProduct(ctx context.Context, productID uuid.UUID) ([]model.PacketStock, error) {
	var packets []model.PacketStock
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = true", productID).
		Find(&packets).Error
	return packets, err
}

func (r *packetRepo) FindByPair(ctx context.Context, productID, supplierID uuid.UUID) ([]model.PacketStock, error) {
	var packets []model.PacketStock
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND supplier_id = ? AND is_active = true", productID, supplierID).
		Order("created_at ASC").
		Find(&packets).Error
	return packets, err
}

func (r *packetRepo) ListProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.PacketStock{}).
		Where("is_active = true").
		Distinct("product_id").
		Pluck("product_id", &ids).Error
	return ids, err
}

func (r *packetRepo) FindLowStock(ctx context.Context, threshold int) ([]model.PacketStock, error) {
	var packets []model.PacketStock
	err := r.db.WithContext(ctx).
		Where("is_active = true AND is_loose = false AND available_packets <= ?", threshold).
		Order("available_packets ASC").
		Find(&packets).Error
	return packets, err
}

func (r *packetRepo) CASDecrementAvailableTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Model(&model.PacketStock{}).
		Where("id = ? AND available_packets >= 1", id).
		Updates(map[string]interface{}{
			"available_packets": gorm.Expr("available_packets - 1"),
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}
	return nil
}

func (r *packetRepo) SaveVersionedTx(tx *gorm.DB, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res := tx.Model(&model.PacketStock{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"available_packets":       p.AvailablePackets,
			"reserved_packets":        p.ReservedPackets,
			"sold_packets":            p.SoldPackets,
			"cost_price_per_packet":   p.CostPricePerPacket,
			"landed_price_per_packet": p.LandedPricePerPacket,
			"suggested_selling_price": p.SuggestedSellingPrice,
			"version":                 gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}
	p.Version++
	return nil
}

func (r *packetRepo) UpsertLooseTx(tx *gorm.DB, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	// ON CONFLICT (barcode) DO UPDATE folds the availability increment into
	// the insert, closing the read-then-write race on first promotion.
	// RETURNING refreshes p with the surviving row's id and counters.
	return tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "barcode"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"available_packets": gorm.Expr("packet_stocks.available_packets + excluded.available_packets"),
				"is_active":         true,
				"version":           gorm.Expr("packet_stocks.version + 1"),
			}),
		},
		clause.Returning{},
	).Create(p).Error
}

func (r *packetRepo) UpdateLabelPath(ctx context.Context, barcode, labelPath string) error {
	return r.db.WithContext(ctx).Model(&model.PacketStock{}).
		Where("barcode = ?", barcode).Update("label_path", labelPath).Error
}

func (r *packetRepo) DB() *gorm.DB { return r.db }
