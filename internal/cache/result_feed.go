package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
)

// ResultFeed fans newly recorded results out to every server instance over Redis Pub/Sub.
type ResultFeed struct {
	rdb *redis.Client
}

// NewResultFeed creates a ResultFeed.
func NewResultFeed(rdb *redis.Client) *ResultFeed {
	return &ResultFeed{rdb: rdb}
}

// PublishResult broadcasts a recorded result.
func (f *ResultFeed) PublishResult(ctx context.Context, res model.PracticeResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return f.rdb.Publish(ctx, config.CacheKey.ResultsFeedChannel(), raw).Err()
}

// SubscribeResults subscribes to the results channel and waits for Redis to
// confirm it. On success the returned close function must be called to
// release the subscription.
func (f *ResultFeed) SubscribeResults(ctx context.Context) (<-chan *redis.Message, func() error, error) {
	ps := f.rdb.Subscribe(ctx, config.CacheKey.ResultsFeedChannel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe results feed: %w", err)
	}
	return ps.Channel(), ps.Close, nil
}
