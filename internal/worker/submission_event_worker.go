package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
)

const (
	EventBatchSize    = 50
	EventBatchTimeout = 2 * time.Second
	EventPollTimeout  = 1 * time.Second

	// EventRetryBackoff is the first pause after a flush had to requeue
	// events. It doubles on every consecutive failure up to EventMaxBackoff.
	EventRetryBackoff = 1 * time.Second
	EventMaxBackoff   = 30 * time.Second
)

// EventSource is the queue the worker drains.
type EventSource interface {
	// Pop waits up to timeout for one raw event. ok is false on timeout.
	Pop(ctx context.Context, timeout time.Duration) (raw string, ok bool, err error)
	Requeue(ctx context.Context, raw []byte) error
}

// EventSink persists decoded events.
type EventSink interface {
	InsertBatch(ctx context.Context, events []model.SubmissionEvent) error
	Insert(ctx context.Context, ev model.SubmissionEvent) error
}

// SubmissionEventWorker moves submission analytics events from Redis to
// PostgreSQL in batches.
type SubmissionEventWorker struct {
	source       EventSource
	sink         EventSink
	log          zerolog.Logger
	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
	retryBackoff time.Duration
	maxBackoff   time.Duration
}

// NewSubmissionEventWorker wires the worker to the Redis queue and the events table.
func NewSubmissionEventWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SubmissionEventWorker {
	return newSubmissionEventWorker(&redisQueue{rdb: rdb}, repository.NewSubmissionEventRepository(pool), log)
}

func newSubmissionEventWorker(source EventSource, sink EventSink, log zerolog.Logger) *SubmissionEventWorker {
	return &SubmissionEventWorker{
		source:       source,
		sink:         sink,
		log:          log.With().Str("component", "submission_event_worker").Logger(),
		batchSize:    EventBatchSize,
		batchTimeout: EventBatchTimeout,
		pollTimeout:  EventPollTimeout,
		retryBackoff: EventRetryBackoff,
		maxBackoff:   EventMaxBackoff,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start drains the queue until ctx is cancelled, then flushes what it holds.
func (w *SubmissionEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SubmissionEventWorker started")

	batch := make([]model.SubmissionEvent, 0, w.batchSize)
	lastFlush := time.Now()
	var backoff time.Duration

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			requeued := w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()

			// Requeued events are popped again at once, so pause before the next poll.
			if requeued > 0 {
				backoff = w.nextBackoff(backoff)
				w.log.Warn().Int("requeued", requeued).Dur("backoff", backoff).Msg("Pausing event consumption")
				sleep(ctx, backoff)
			} else {
				backoff = 0
			}
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			raw, ok, err := w.source.Pop(ctx, w.pollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}
			if !ok {
				continue
			}

			var ev model.SubmissionEvent
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-event fallback
// ----------------------------------------------------------------

// flushSafe persists batch and returns how many events went back to the queue.
func (w *SubmissionEventWorker) flushSafe(ctx context.Context, batch []model.SubmissionEvent) int {
	if len(batch) == 0 {
		return 0
	}

	err := w.sink.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Submission events persisted")
		return 0
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk event insert failed, using fallback")

	requeued := 0
	for _, ev := range batch {
		if err := w.sink.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("exam_code", ev.ExamCode).Msg("Event insert failed, requeueing")
			raw, _ := json.Marshal(ev)
			if err := w.source.Requeue(ctx, raw); err != nil {
				w.log.Error().Err(err).Msg("Requeue failed, event dropped")
				continue
			}
			requeued++
		}
	}
	return requeued
}

func (w *SubmissionEventWorker) nextBackoff(prev time.Duration) time.Duration {
	if prev <= 0 {
		return w.retryBackoff
	}
	return min(2*prev, w.maxBackoff)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// ----------------------------------------------------------------
// Redis list source
// ----------------------------------------------------------------

type redisQueue struct {
	rdb *redis.Client
}

func (q *redisQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	item, err := q.rdb.BLPop(ctx, timeout, config.WorkerKey.SubmissionEventsQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if len(item) < 2 {
		return "", false, nil
	}
	return item[1], true, nil
}

func (q *redisQueue) Requeue(ctx context.Context, raw []byte) error {
	return q.rdb.RPush(ctx, config.WorkerKey.SubmissionEventsQueue, raw).Err()
}
