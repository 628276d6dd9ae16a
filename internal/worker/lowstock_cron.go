package worker

// lowstock_cron.go
// Background goroutine that periodically scans sealed packet stock for
// configurations at or below the configured threshold and enqueues alert
// jobs. A per-barcode Redis cooldown key keeps one alert per day per
// configuration, however often the scan ticks.

import (
	"context"
	"time"

	"packline/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	lowStockTickInterval = 15 * time.Minute
	lowStockCooldown     = 24 * time.Hour
	lowStockCooldownKey  = "lowstock:notified:"
)

// LowStockCronConfig holds all dependencies for the scan goroutine.
type LowStockCronConfig struct {
	Packets    repository.PacketRepository
	Products   repository.ProductRepository
	Dispatcher *Dispatcher
	RDB        *redis.Client
	Threshold  int
}

// StartLowStockCron launches a background goroutine that ticks every 15m,
// scans for low sealed stock, and enqueues one alert per configuration per
// cooldown window. It respects the context for graceful shutdown.
func StartLowStockCron(ctx context.Context, cfg LowStockCronConfig) {
	go func() {
		ticker := time.NewTicker(lowStockTickInterval)
		defer ticker.Stop()

		log.Info().Int("threshold", cfg.Threshold).Msg("lowstock_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("lowstock_cron: shutting down")
				return
			case <-ticker.C:
				scanLowStock(ctx, cfg)
			}
		}
	}()
}

func scanLowStock(ctx context.Context, cfg LowStockCronConfig) {
	packets, err := cfg.Packets.FindLowStock(ctx, cfg.Threshold)
	if err != nil {
		log.Error().Err(err).Msg("lowstock_cron: scan query failed")
		return
	}
	if len(packets) == 0 {
		return
	}

	for i := range packets {
		p := &packets[i]

		// SetNX as a distributed cooldown: first instance to notice wins,
		// re-alerts only after the key expires.
		ok, err := cfg.RDB.SetNX(ctx, lowStockCooldownKey+p.Barcode, 1, lowStockCooldown).Result()
		if err != nil {
			log.Error().Err(err).Str("barcode", p.Barcode).Msg("lowstock_cron: cooldown check failed")
			continue
		}
		if !ok {
			continue // already alerted within the window
		}

		productName := ""
		if product, err := cfg.Products.FindByID(ctx, p.ProductID); err == nil {
			productName = product.Name
		}

		payload := LowStockJobPayload{
			Barcode:          p.Barcode,
			ProductName:      productName,
			AvailablePackets: p.AvailablePackets,
			Threshold:        cfg.Threshold,
		}
		if err := cfg.Dispatcher.EnqueueLowStockAlert(ctx, payload); err != nil {
			log.Error().Err(err).Str("barcode", p.Barcode).Msg("lowstock_cron: failed to enqueue alert")
			// Drop the cooldown so the next tick retries.
			cfg.RDB.Del(ctx, lowStockCooldownKey+p.Barcode)
			continue
		}
		log.Info().Str("barcode", p.Barcode).Int("available", p.AvailablePackets).Msg("lowstock_cron: alert enqueued")
	}
}
