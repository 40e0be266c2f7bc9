package worker

// dlq.go: dead-letter queue. Jobs that exhaust MaxAttempts land in
// dlq:{original_queue}; the retry cron moves them back a bounded number of
// times, after which they are parked in dlq:{original_queue}:parked.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix    = "dlq:"
	parkedSuffix = ":parked"

	// MaxRedrives bounds how often one job is moved back from the DLQ.
	MaxRedrives = 3
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
	Attempts      int             `json:"attempts"`
	Redrives      int             `json:"redrives"`
}

func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      job.Attempts,
		Redrives:      job.Redrives,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Redrive moves up to max entries from the queue's DLQ back onto the queue
// with a fresh attempt budget. Entries already redriven MaxRedrives times
// are parked instead. Returns how many jobs were re-queued.
func Redrive(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	dlqKey := DLQPrefix + queue
	moved := 0
	for i := 0; i < max; i++ {
		raw, err := rdb.RPop(ctx, dlqKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: unreadable entry parked")
			_ = rdb.LPush(ctx, dlqKey+parkedSuffix, raw).Err()
			continue
		}
		if entry.Redrives >= MaxRedrives {
			log.Error().Str("queue", queue).Str("job_type", entry.JobType).Int("redrives", entry.Redrives).
				Msg("dlq: redrive budget exhausted, parking job")
			if err := rdb.LPush(ctx, dlqKey+parkedSuffix, raw).Err(); err != nil {
				return moved, err
			}
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Redrives: entry.Redrives + 1}
		if err := pushJob(ctx, rdb, queue, job); err != nil {
			// Put it back so the entry is not lost
			_ = rdb.RPush(ctx, dlqKey, raw).Err()
			return moved, err
		}
		moved++
	}
	return moved, nil
}
