package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
)

// EventQueue pushes submission analytics events onto the Redis list drained by
// worker.SubmissionEventWorker.
type EventQueue struct {
	rdb *redis.Client
}

// NewEventQueue creates an EventQueue.
func NewEventQueue(rdb *redis.Client) *EventQueue {
	return &EventQueue{rdb: rdb}
}

// Enqueue appends an event to the queue.
func (q *EventQueue) Enqueue(ctx context.Context, ev model.SubmissionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.SubmissionEventsQueue, raw).Err()
}
