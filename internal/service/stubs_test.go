package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"packline/internal/dto"
	"packline/internal/model"
	"packline/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory PacketRepository stub ──────────────────────────────────────────
// Mirrors the storage semantics the services rely on: reads hand out copies
// (like rows scanned from the DB), the versioned save and the CAS decrement
// are guarded by a mutex so concurrency tests exercise real interleavings.

type stubPacketRepo struct {
	mu      sync.Mutex
	packets map[uuid.UUID]*model.PacketStock
	seq     int
}

func newStubPacketRepo() *stubPacketRepo {
	return &stubPacketRepo{packets: make(map[uuid.UUID]*model.PacketStock)}
}

// seed stores a packet directly, stamping CreatedAt so FIFO ordering is
// deterministic across calls.
func (r *stubPacketRepo) seed(p *model.PacketStock) *model.PacketStock {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		r.seq++
		p.CreatedAt = time.Unix(int64(1700000000+r.seq*60), 0)
	}
	r.packets[p.ID] = p
	return p
}

func copyPacket(p *model.PacketStock) *model.PacketStock {
	cp := *p
	cp.Composition = append(model.Composition(nil), p.Composition...)
	return &cp
}

func (r *stubPacketRepo) Create(_ context.Context, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.seed(p)
	return nil
}

func (r *stubPacketRepo) FindByID(_ context.Context, id uuid.UUID) (*model.PacketStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyPacket(p), nil
}

func (r *stubPacketRepo) FindByBarcode(_ context.Context, barcode string) (*model.PacketStock, error) {
	return r.FindByBarcodeTx(nil, barcode)
}

func (r *stubPacketRepo) FindByBarcodeTx(_ *gorm.DB, barcode string) (*model.PacketStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packets {
		if p.Barcode == barcode {
			return copyPacket(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubPacketRepo) List(_ context.Context, filter dto.PacketFilter) ([]model.PacketStock, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PacketStock
	for _, p := range r.packets {
		if filter.Active != "all" && filter.Active != "false" && !p.IsActive {
			continue
		}
		if filter.Active == "false" && p.IsActive {
			continue
		}
		if filter.LowStock == "true" && (p.IsLoose || p.AvailablePackets > filter.LowStockThreshold) {
			continue
		}
		out = append(out, *copyPacket(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *stubPacketRepo) SoftDelete(_ context.Context, barcode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packets {
		if p.Barcode == barcode {
			p.IsActive = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPacketRepo) Reactivate(_ context.Context, barcode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packets {
		if p.Barcode == barcode {
			p.IsActive = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPacketRepo) findByVariant(productID, supplierID uuid.UUID, size, color string, loose bool) []model.PacketStock {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PacketStock
	for _, p := range r.packets {
		if p.ProductID != productID || p.SupplierID != supplierID {
			continue
		}
		if p.IsLoose != loose || !p.IsActive || p.AvailablePackets <= 0 {
			continue
		}
		if _, ok := p.Composition.Find(size, color); !ok {
			continue
		}
		out = append(out, *copyPacket(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *stubPacketRepo) FindLooseByVariantTx(_ *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error) {
	return r.findByVariant(productID, supplierID, size, color, true), nil
}

func (r *stubPacketRepo) FindSealedContainingVariantTx(_ *gorm.DB, productID, supplierID uuid.UUID, size, color string) ([]model.PacketStock, error) {
	return r.findByVariant(productID, supplierID, size, color, false), nil
}

func (r *stubPacketRepo) FindByProduct(_ context.Context, productID uuid.UUID) ([]model.PacketStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PacketStock
	for _, p := range r.packets {
		if p.ProductID == productID && p.IsActive {
			out = append(out, *copyPacket(p))
		}
	}
	return out, nil
}

func (r *stubPacketRepo) FindByPair(_ context.Context, productID, supplierID uuid.UUID) ([]model.PacketStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PacketStock
	for _, p := range r.packets {
		if p.ProductID == productID && p.SupplierID == supplierID && p.IsActive {
			out = append(out, *copyPacket(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *stubPacketRepo) ListProductIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, p := range r.packets {
		if p.IsActive && !seen[p.ProductID] {
			seen[p.ProductID] = true
			ids = append(ids, p.ProductID)
		}
	}
	return ids, nil
}

func (r *stubPacketRepo) FindLowStock(_ context.Context, threshold int) ([]model.PacketStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PacketStock
	for _, p := range r.packets {
		if p.IsActive && !p.IsLoose && p.AvailablePackets <= threshold {
			out = append(out, *copyPacket(p))
		}
	}
	return out, nil
}

func (r *stubPacketRepo) CASDecrementAvailableTx(_ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packets[id]
	if !ok || p.AvailablePackets < 1 {
		return model.ErrConcurrentModification
	}
	p.AvailablePackets--
	p.Version++
	return nil
}

func (r *stubPacketRepo) SaveVersionedTx(_ *gorm.DB, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.packets[p.ID]
	if !ok || stored.Version != p.Version {
		return model.ErrConcurrentModification
	}
	stored.AvailablePackets = p.AvailablePackets
	stored.ReservedPackets = p.ReservedPackets
	stored.SoldPackets = p.SoldPackets
	stored.CostPricePerPacket = p.CostPricePerPacket
	stored.LandedPricePerPacket = p.LandedPricePerPacket
	stored.SuggestedSellingPrice = p.SuggestedSellingPrice
	stored.Version++
	p.Version++
	return nil
}

func (r *stubPacketRepo) UpsertLooseTx(_ *gorm.DB, p *model.PacketStock) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	for _, existing := range r.packets {
		if existing.Barcode == p.Barcode {
			existing.AvailablePackets += p.AvailablePackets
			existing.IsActive = true
			existing.Version++
			cp := copyPacket(existing)
			r.mu.Unlock()
			*p = *cp
			return nil
		}
	}
	r.mu.Unlock()
	r.seed(p)
	return nil
}

func (r *stubPacketRepo) UpdateLabelPath(_ context.Context, barcode, labelPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.packets {
		if p.Barcode == barcode {
			path := labelPath
			p.LabelPath = &path
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPacketRepo) DB() *gorm.DB { return nil }

var _ repository.PacketRepository = (*stubPacketRepo)(nil)

// ── Child-table stubs ────────────────────────────────────────────────────────

type stubBreakEventRepo struct {
	mu     sync.Mutex
	events []model.BreakEvent
}

func (r *stubBreakEventRepo) CreateTx(_ *gorm.DB, ev *model.BreakEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()
	r.events = append(r.events, *ev)
	return nil
}

func (r *stubBreakEventRepo) ListByPacket(_ context.Context, packetID uuid.UUID, _, _ int) ([]model.BreakEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.BreakEvent
	for _, ev := range r.events {
		if ev.PacketStockID == packetID {
			out = append(out, ev)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubBreakEventRepo) ListByReference(_ context.Context, referenceID uuid.UUID) ([]model.BreakEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.BreakEvent
	for _, ev := range r.events {
		if ev.ReferenceID != nil && *ev.ReferenceID == referenceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

var _ repository.BreakEventRepository = (*stubBreakEventRepo)(nil)

type stubDispatchRepo struct {
	mu     sync.Mutex
	orders []model.DispatchOrder
}

func (r *stubDispatchRepo) CreateTx(_ *gorm.DB, d *model.DispatchOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	r.orders = append(r.orders, *d)
	return nil
}

func (r *stubDispatchRepo) ListByPacket(_ context.Context, packetID uuid.UUID, _, _ int) ([]model.DispatchOrder, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DispatchOrder
	for _, d := range r.orders {
		if d.PacketStockID == packetID {
			out = append(out, d)
		}
	}
	return out, int64(len(out)), nil
}

var _ repository.DispatchOrderRepository = (*stubDispatchRepo)(nil)
