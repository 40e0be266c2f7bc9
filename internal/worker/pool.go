package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"caixapdv/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueClosingReport = "jobs:closing_report"
	QueueEmail         = "jobs:email"

	// MaxAttempts is how many times a job runs before it is dead-lettered.
	MaxAttempts = 3

	popTimeout    = 5 * time.Second
	minPopBackoff = 500 * time.Millisecond
	maxPopBackoff = 30 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Redrives int             `json:"redrives,omitempty"`
}

// ClosingReportPayload is the job sent to QueueClosingReport after a close.
type ClosingReportPayload struct {
	RegisterID string `json:"register_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) EnqueueClosingReport(ctx context.Context, registerID uuid.UUID) error {
	return d.enqueue(ctx, QueueClosingReport, "closing_report", ClosingReportPayload{RegisterID: registerID.String()})
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Handler processes one job payload. A non-nil error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Pool consumes the registered queues with N goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	metrics  *metrics.LedgerMetrics
	wg       sync.WaitGroup
}

func NewPool(rdb *redis.Client, m *metrics.LedgerMetrics) *Pool {
	return &Pool{rdb: rdb, handlers: make(map[string]Handler), metrics: m}
}

// Handle registers h for queue. Must be called before Start.
func (p *Pool) Handle(queue string, h Handler) {
	p.handlers[queue] = h
}

// Start launches numWorkers goroutines. Each blocks on BRPOP, so idle
// workers cost nothing. They stop when ctx is cancelled; Wait blocks until
// the last in-flight job has finished.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i, queues)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int, queues []string) {
	defer p.wg.Done()
	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to popTimeout then loops to check ctx
			result, err := p.rdb.BRPop(ctx, popTimeout, queues...).Result()
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			if err != nil {
				backoff = nextPopBackoff(backoff)
				log.Error().Err(err).Int("worker", id).Dur("retry_in", backoff).Msg("queue pop failed")
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
				continue
			}
			backoff = 0
			if len(result) < 2 {
				continue
			}
			p.Process(ctx, result[0], result[1])
		}
	}
}

// nextPopBackoff doubles the wait after each consecutive pop failure.
func nextPopBackoff(cur time.Duration) time.Duration {
	if cur < minPopBackoff {
		return minPopBackoff
	}
	if cur*2 > maxPopBackoff {
		return maxPopBackoff
	}
	return cur * 2
}

// Process runs one raw job from queue through its handler, re-queueing or
// dead-lettering it on failure.
func (p *Pool) Process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no handler registered")
		return
	}

	err := h(ctx, job.Payload)
	if err == nil {
		log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job done")
		return
	}

	job.Attempts++
	if job.Attempts >= MaxAttempts {
		SendToDLQ(ctx, p.rdb, queue, job, fmt.Sprintf("max attempts (%d) exceeded: %s", MaxAttempts, err))
		p.metrics.ObserveDeadLetter(queue)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, re-queueing")
	if perr := pushJob(ctx, p.rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to re-queue job")
	}
}
