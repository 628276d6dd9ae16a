package worker

// alert_worker.go
// Processes notification jobs from QueueAlerts: supplier return slips (PDF
// attached) and low-stock alerts to purchasing.

import (
	"context"
	"encoding/json"
	"fmt"

	"packline/internal/dto"
	"packline/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ReturnSlipJobPayload is enqueued after a return adjustment commits.
type ReturnSlipJobPayload struct {
	TransactionRef string              `json:"transaction_ref"`
	ItemsReturned  int                 `json:"items_returned"`
	Adjustments    []dto.AdjustmentDTO `json:"adjustments"`
}

// LowStockJobPayload is enqueued by the low-stock scan.
type LowStockJobPayload struct {
	Barcode          string `json:"barcode"`
	ProductName      string `json:"product_name"`
	AvailablePackets int    `json:"available_packets"`
	Threshold        int    `json:"threshold"`
}

// AlertWorker renders and emails outbound notifications.
type AlertWorker struct {
	mailer      *infra.Mailer
	rdb         *redis.Client
	storagePath string
	alertEmail  string
}

func NewAlertWorker(mailer *infra.Mailer, rdb *redis.Client, storagePath, alertEmail string) *AlertWorker {
	return &AlertWorker{mailer: mailer, rdb: rdb, storagePath: storagePath, alertEmail: alertEmail}
}

// ProcessReturnSlip renders the return slip PDF and mails it to supplier
// relations. A failed send goes to the DLQ so the slip is never silently lost.
func (w *AlertWorker) ProcessReturnSlip(ctx context.Context, raw json.RawMessage) {
	var payload ReturnSlipJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid return slip payload")
		return
	}

	slipPath, err := infra.GenerateReturnSlipPDF(payload.TransactionRef, payload.ItemsReturned, payload.Adjustments, w.storagePath)
	if err != nil {
		log.Error().Err(err).Str("transaction_ref", payload.TransactionRef).Msg("alert_worker: slip render failed")
		SendToDLQ(ctx, w.rdb, QueueAlerts, JobTypeReturnSlip, raw, err.Error(), 1)
		return
	}

	if w.alertEmail == "" {
		log.Warn().Str("slip", slipPath).Msg("alert_worker: no alert email configured, slip rendered only")
		return
	}

	subject := fmt.Sprintf("Supplier return %s — %d item(s)", payload.TransactionRef, payload.ItemsReturned)
	body := fmt.Sprintf("A supplier return has been executed.\nReference: %s\nItems returned: %d\nThe return slip is attached.",
		payload.TransactionRef, payload.ItemsReturned)

	if err := w.mailer.Send(w.alertEmail, subject, body, slipPath); err != nil {
		log.Error().Err(err).Str("transaction_ref", payload.TransactionRef).Msg("alert_worker: failed to send slip")
		SendToDLQ(ctx, w.rdb, QueueAlerts, JobTypeReturnSlip, raw, err.Error(), 1)
		return
	}
	log.Info().Str("transaction_ref", payload.TransactionRef).Str("slip", slipPath).Msg("alert_worker: return slip sent")
}

// ProcessLowStock emails purchasing about a packet configuration running dry.
func (w *AlertWorker) ProcessLowStock(ctx context.Context, raw json.RawMessage) {
	var payload LowStockJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid low stock payload")
		return
	}
	if w.alertEmail == "" {
		log.Warn().Str("barcode", payload.Barcode).Msg("alert_worker: no alert email configured — skipping")
		return
	}

	subject := fmt.Sprintf("Low stock: %s (%d packet(s) left)", payload.Barcode, payload.AvailablePackets)
	body := fmt.Sprintf("Packet configuration %s (%s) is down to %d available packet(s), below the threshold of %d.\nConsider replenishing from the supplier.",
		payload.Barcode, payload.ProductName, payload.AvailablePackets, payload.Threshold)

	if err := w.mailer.Send(w.alertEmail, subject, body, ""); err != nil {
		log.Error().Err(err).Str("barcode", payload.Barcode).Msg("alert_worker: failed to send low stock alert")
		SendToDLQ(ctx, w.rdb, QueueAlerts, JobTypeLowStock, raw, err.Error(), 1)
		return
	}
	log.Info().Str("barcode", payload.Barcode).Msg("alert_worker: low stock alert sent")
}
