package worker

// retry_cron.go: periodically moves dead-lettered jobs back onto their
// queues. Skips the tick while the SMTP circuit breaker is open, since most
// dead letters are failed sends.

import (
	"context"
	"time"

	"caixapdv/internal/infra"
	"caixapdv/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 60 * time.Second
	retryBatchSize    = 10
)

type RetryCronConfig struct {
	RDB    *redis.Client
	CB     *infra.CircuitBreaker
	Queues []string
	// Metrics, when set, receives the DLQ depth of each queue after every tick
	Metrics *metrics.LedgerMetrics
}

// StartRetryCron ticks every minute until ctx is cancelled.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRedrives(ctx, cfg)
			}
		}
	}()
}

func processRedrives(ctx context.Context, cfg RetryCronConfig) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return 0
	}

	total := 0
	for _, q := range cfg.Queues {
		n, err := Redrive(ctx, cfg.RDB, q, retryBatchSize)
		if err != nil {
			log.Error().Err(err).Str("queue", q).Msg("retry_cron: redrive failed")
		}
		if n > 0 {
			log.Info().Int("count", n).Str("queue", q).Msg("retry_cron: redrove dead-lettered jobs")
		}
		total += n

		if depth, err := DLQLength(ctx, cfg.RDB, q); err == nil {
			cfg.Metrics.ObserveDeadLetterDepth(q, depth)
		}
	}
	return total
}
