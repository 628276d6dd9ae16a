package infra

import (
	"fmt"

	"packline/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for the engine's tables, then applies the idempotent SQL patches GORM
// cannot express (the JSONB containment index, the low-stock partial index).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates/updates the schema. Shared with the integration
// test harness.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Supplier{},
		&model.PacketStock{},
		&model.BreakEvent{},
		&model.DispatchOrder{},
		&model.StockBalance{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
// Each statement is guarded by an existence check so re-running on an
// already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// GIN index backing the planner's variant containment queries
		// (`composition @> '[{"size":…,"color":…}]'`).
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_packet_stocks_composition_gin') THEN
		    CREATE INDEX idx_packet_stocks_composition_gin
		        ON packet_stocks USING GIN (composition jsonb_path_ops);
		  END IF;
		END $$`,
		// Partial index for the low-stock cron scan.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_packet_stocks_low_stock') THEN
		    CREATE INDEX idx_packet_stocks_low_stock
		        ON packet_stocks (available_packets)
		        WHERE is_active = true AND is_loose = false;
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
