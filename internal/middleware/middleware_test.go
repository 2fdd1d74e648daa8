package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour}, nil, nil)
}

func protected(auth *service.AuthService, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireJWT(auth)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/p", handlers...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	auth := newAuth()
	userTok, _ := auth.GenerateToken(3, model.RoleUser)
	expiredTok, _ := service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: -time.Minute}, nil, nil).GenerateToken(3, model.RoleUser)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{"valid", "Bearer " + userTok, http.StatusOK, "3"},
		{"lowercase scheme", "bearer " + userTok, http.StatusOK, "3"},
		{"missing", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"wrong scheme", "Basic " + userTok, http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"expired", "Bearer " + expiredTok, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	}

	r := protected(auth)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := do(r, req)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

// denylist answers every lookup with a fixed result.
type denylist struct {
	revoked bool
	err     error
}

func (d denylist) Revoke(context.Context, string, time.Duration) error { return nil }
func (d denylist) IsRevoked(context.Context, string) (bool, error)     { return d.revoked, d.err }

func TestRequireJWTDenylist(t *testing.T) {
	cfg := &config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour}

	tests := []struct {
		name     string
		list     denylist
		wantCode int
		wantBody string
	}{
		{"not revoked", denylist{}, http.StatusOK, "3"},
		{"revoked", denylist{revoked: true}, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"redis down", denylist{err: errors.New("dial tcp: connection refused")}, http.StatusServiceUnavailable, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := service.NewAuthService(cfg, nil, tt.list)
			tok, _ := auth.GenerateToken(3, model.RoleUser)

			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w := do(protected(auth), req)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	auth := newAuth()
	userTok, _ := auth.GenerateToken(3, model.RoleUser)
	adminTok, _ := auth.GenerateToken(1, model.RoleAdmin)
	r := protected(auth, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+userTok)
	if w := do(r, req); w.Code != http.StatusForbidden || !strings.Contains(w.Body.String(), "ADMIN_ACCESS_ONLY") {
		t.Errorf("user: status = %d body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	if w := do(r, req); w.Code != http.StatusOK {
		t.Errorf("admin: status = %d", w.Code)
	}
}

func TestRequireWSAuthReadsQuery(t *testing.T) {
	auth := newAuth()
	tok, _ := auth.GenerateToken(9, model.RoleAdmin)

	r := gin.New()
	r.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	if w := do(r, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)); w.Code != http.StatusOK || w.Body.String() != "9" {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
	if w := do(r, httptest.NewRequest(http.MethodGet, "/ws", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		return do(r, req)
	}

	for i := 0; i < 2; i++ {
		if w := hit(); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
	w := hit()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}

	now = now.Add(time.Minute)
	if w := hit(); w.Code != http.StatusNoContent {
		t.Errorf("after refill: status = %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat(`{"question":"What is the capital of France?"}`, 100)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := do(r, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q, want br", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(body) != large {
		t.Errorf("round trip mismatch: got %d bytes", len(body))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = do(r, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body: encoding = %q body = %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/large", nil)
	w = do(r, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != large {
		t.Errorf("no accept-encoding should pass through")
	}
}
