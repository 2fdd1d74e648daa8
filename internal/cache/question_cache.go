package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
)

var errStaleFill = errors.New("question set changed during load")

// QuestionCache keeps authoritative question sets (answers included) in Redis
// so the access and submit paths skip PostgreSQL on a hit.
type QuestionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuestionCache creates a QuestionCache. A zero ttl keeps entries until invalidated.
func NewQuestionCache(rdb *redis.Client, ttl time.Duration) *QuestionCache {
	return &QuestionCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached question set. found is false on a cache miss.
func (c *QuestionCache) Get(ctx context.Context, examCode string) ([]model.PracticeQuestion, bool, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamQuestionsKey(examCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get questions: %w", err)
	}

	var questions []model.PracticeQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false, fmt.Errorf("unmarshal questions: %w", err)
	}
	return questions, true, nil
}

// Version returns the invalidation counter of an exam code, zero if it was never invalidated.
func (c *QuestionCache) Version(ctx context.Context, examCode string) (int64, error) {
	v, err := c.rdb.Get(ctx, config.CacheKey.ExamVersionKey(examCode)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get question version: %w", err)
	}
	return v, nil
}

// Set stores the question set of an exam code if its counter still equals
// version. A stale set is dropped silently.
func (c *QuestionCache) Set(ctx context.Context, examCode string, version int64, questions []model.PracticeQuestion) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	versionKey := config.CacheKey.ExamVersionKey(examCode)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, config.CacheKey.ExamQuestionsKey(examCode), data, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("cache questions: %w", err)
	}
}

// Invalidate drops the cached sets of the given exam codes and bumps their
// counters so fills that started earlier are discarded.
func (c *QuestionCache) Invalidate(ctx context.Context, examCodes ...string) error {
	if len(examCodes) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, code := range examCodes {
			pipe.Incr(ctx, config.CacheKey.ExamVersionKey(code))
			pipe.Del(ctx, config.CacheKey.ExamQuestionsKey(code))
		}
		return nil
	})
	return err
}
