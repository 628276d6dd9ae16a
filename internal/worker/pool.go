package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueLabels = "jobs:labels"
	QueueAlerts = "jobs:alerts"
)

// Job types carried inside the envelope.
const (
	JobTypeLabel      = "label_render"
	JobTypeReturnSlip = "return_slip"
	JobTypeLowStock   = "low_stock_alert"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueLabel pushes a label-render job to Redis.
func (d *Dispatcher) EnqueueLabel(ctx context.Context, payload LabelJobPayload) error {
	return d.enqueue(ctx, QueueLabels, JobTypeLabel, payload)
}

// EnqueueReturnSlip pushes a return-slip notification job to Redis.
func (d *Dispatcher) EnqueueReturnSlip(ctx context.Context, payload ReturnSlipJobPayload) error {
	return d.enqueue(ctx, QueueAlerts, JobTypeReturnSlip, payload)
}

// EnqueueLowStockAlert pushes a low-stock alert job to Redis.
func (d *Dispatcher) EnqueueLowStockAlert(ctx context.Context, payload LowStockJobPayload) error {
	return d.enqueue(ctx, QueueAlerts, JobTypeLowStock, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Handlers routes each job type to its processor.
type Handlers struct {
	Label *LabelWorker
	Alert *AlertWorker
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers Handlers) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers Handlers) {
	queues := []string{QueueLabels, QueueAlerts}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers Handlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	switch job.Type {
	case JobTypeLabel:
		if handlers.Label != nil {
			handlers.Label.Process(ctx, job.Payload)
		}
	case JobTypeReturnSlip:
		if handlers.Alert != nil {
			handlers.Alert.ProcessReturnSlip(ctx, job.Payload)
		}
	case JobTypeLowStock:
		if handlers.Alert != nil {
			handlers.Alert.ProcessLowStock(ctx, job.Payload)
		}
	default:
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "unknown job type", 0)
	}
}
