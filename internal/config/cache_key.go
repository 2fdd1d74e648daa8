package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionsKey returns the cache key for an exam code's authoritative question set.
func (r *CacheKeyStruct) ExamQuestionsKey(examCode string) string {
	return fmt.Sprintf("practice:exam:%s:questions", examCode)
}

// ExamVersionKey returns the key of an exam code's invalidation counter. A
// question set loaded before the counter moved must not be cached.
func (r *CacheKeyStruct) ExamVersionKey(examCode string) string {
	return fmt.Sprintf("practice:exam:%s:version", examCode)
}

// RevokedTokenKey returns the cache key marking a JWT ID as logged out.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// ResultsFeedChannel returns the Redis PubSub channel carrying newly recorded results.
func (r *CacheKeyStruct) ResultsFeedChannel() string {
	return "practice:results:feed"
}

var CacheKey = NewCacheKeyStruct()
