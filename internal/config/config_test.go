package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty means allow all", raw: "", want: nil},
		{name: "single", raw: "http://localhost:5173", want: []string{"http://localhost:5173"}},
		{name: "trims and skips blanks", raw: " https://a.test , ,https://b.test ", want: []string{"https://a.test", "https://b.test"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseOrigins(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseOrigins(%q) = %#v, want %#v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("QUICK_PRACTICE_CODE", "warmup")
	t.Setenv("QUESTION_CACHE_TTL_MINUTES", "5")
	t.Setenv("JWT_EXPIRY_HOURS", "not-a-number")

	cfg := Load()

	if cfg.QuickPracticeCode != "warmup" {
		t.Errorf("QuickPracticeCode = %q, want warmup", cfg.QuickPracticeCode)
	}
	if cfg.QuestionCacheTTL != 5*time.Minute {
		t.Errorf("QuestionCacheTTL = %v, want 5m", cfg.QuestionCacheTTL)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want fallback 24h", cfg.JWTExpiry)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamQuestionsKey("MATH-01"); got != "practice:exam:MATH-01:questions" {
		t.Errorf("ExamQuestionsKey = %q", got)
	}
	if got := CacheKey.ExamVersionKey("MATH-01"); got != "practice:exam:MATH-01:version" {
		t.Errorf("ExamVersionKey = %q", got)
	}
	if got := CacheKey.RevokedTokenKey("abc"); got != "auth:revoked:abc" {
		t.Errorf("RevokedTokenKey = %q", got)
	}
}
