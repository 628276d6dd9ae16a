package worker

// label_worker.go
// Processes label-render jobs from QueueLabels.
// Primary path: POST to the label-render sidecar through the circuit breaker,
// with exponential backoff (max 3 attempts). Fallback: a plain-text label
// rendered in-process with fpdf, so a downed sidecar never leaves a packet
// without a printable label.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"packline/internal/infra"
	"packline/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LabelJobPayload is the job envelope sent to QueueLabels.
type LabelJobPayload struct {
	Barcode string `json:"barcode"`
}

// LabelWorker renders packet labels and records the resulting file path on
// the aggregate.
type LabelWorker struct {
	client      *infra.LabelClient
	cb          *infra.CircuitBreaker
	packets     repository.PacketRepository
	products    repository.ProductRepository
	suppliers   repository.SupplierRepository
	rdb         *redis.Client
	storagePath string
}

func NewLabelWorker(
	client *infra.LabelClient,
	cb *infra.CircuitBreaker,
	packets repository.PacketRepository,
	products repository.ProductRepository,
	suppliers repository.SupplierRepository,
	rdb *redis.Client,
	storagePath string,
) *LabelWorker {
	return &LabelWorker{
		client:      client,
		cb:          cb,
		packets:     packets,
		products:    products,
		suppliers:   suppliers,
		rdb:         rdb,
		storagePath: storagePath,
	}
}

// Process handles a single label job:
//  1. Parse LabelJobPayload from the job envelope
//  2. Fetch the packet plus product/supplier names
//  3. Ask the sidecar to render, through the CB with backoff
//  4. Fall back to the in-process fpdf label if the sidecar stays down
//  5. Store the label path on the packet
func (w *LabelWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload LabelJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("label_worker: invalid payload")
		return
	}
	if payload.Barcode == "" {
		log.Warn().Msg("label_worker: empty barcode — skipping")
		return
	}

	packet, err := w.packets.FindByBarcode(ctx, payload.Barcode)
	if err != nil {
		log.Error().Err(err).Str("barcode", payload.Barcode).Msg("label_worker: packet not found")
		return
	}

	productName, supplierName := payload.Barcode, ""
	if product, err := w.products.FindByID(ctx, packet.ProductID); err == nil {
		productName = product.Name
	}
	if supplier, err := w.suppliers.FindByID(ctx, packet.SupplierID); err == nil {
		supplierName = supplier.Name
	}

	lines := make([]infra.LabelLine, 0, len(packet.Composition))
	for _, entry := range packet.Composition {
		lines = append(lines, infra.LabelLine{Size: entry.Size, Color: entry.Color, Quantity: entry.Quantity})
	}
	sidecarPayload := infra.LabelPayload{
		Barcode:        packet.Barcode,
		ProductName:    productName,
		SupplierName:   supplierName,
		Composition:    lines,
		TotalItems:     packet.TotalItemsPerPacket,
		SuggestedPrice: packet.SuggestedSellingPrice.StringFixed(2),
		Loose:          packet.IsLoose,
	}

	// Sidecar through CB with backoff: attempt 1 = immediate, then 1s, 2s.
	var rendered *infra.LabelResponse
	renderErr := withRetry(ctx, 3, func(attempt int) error {
		return w.cb.Execute(func() error {
			resp, err := w.client.Render(ctx, sidecarPayload)
			if err != nil {
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Str("barcode", payload.Barcode).
					Msg("label_worker: sidecar attempt failed, retrying")
				return err
			}
			rendered = resp
			return nil
		})
	})

	var labelPath string
	if renderErr == nil && rendered != nil {
		labelPath, err = w.writeSidecarLabel(packet.Barcode, rendered.PDFBase64)
		if err != nil {
			log.Warn().Err(err).Str("barcode", payload.Barcode).Msg("label_worker: could not persist sidecar output")
			renderErr = err
		}
	}

	if renderErr != nil {
		// Degraded path — readable label without the barcode font.
		labelPath, err = infra.GenerateLabelPDF(packet, productName, supplierName, w.storagePath)
		if err != nil {
			log.Error().Err(err).Str("barcode", payload.Barcode).Msg("label_worker: fallback render failed")
			SendToDLQ(ctx, w.rdb, QueueLabels, JobTypeLabel, raw,
				fmt.Sprintf("sidecar: %v; fallback: %v", renderErr, err), 3)
			return
		}
		log.Warn().Str("barcode", payload.Barcode).Str("path", labelPath).Msg("label_worker: used fallback label")
	}

	if err := w.packets.UpdateLabelPath(ctx, packet.Barcode, labelPath); err != nil {
		log.Error().Err(err).Str("barcode", payload.Barcode).Msg("label_worker: failed to store label path")
		return
	}
	log.Info().Str("barcode", payload.Barcode).Str("path", labelPath).Msg("label_worker: label ready")
}

func (w *LabelWorker) writeSidecarLabel(barcode, pdfBase64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(pdfBase64)
	if err != nil {
		return "", fmt.Errorf("label_worker: decode sidecar pdf: %w", err)
	}
	if err := os.MkdirAll(w.storagePath, 0755); err != nil {
		return "", fmt.Errorf("label_worker: create storage dir: %w", err)
	}
	path := filepath.Join(w.storagePath, fmt.Sprintf("label_%s.pdf", barcode))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("label_worker: write pdf: %w", err)
	}
	return path, nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			// 1s, 2s … (exponential backoff)
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
