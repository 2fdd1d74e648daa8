package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/handler"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Practice *handler.PracticeHandler
	Question *handler.QuestionHandler
	Result   *handler.ResultHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as the rate limiter sweep.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Brotli())

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimitPerMinute, time.Minute)
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)

		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Taker Group (JWT, any role) ───────────────────────────
	takerAPI := router.Group("/api")
	takerAPI.Use(middleware.RequireJWT(authService))
	{
		takerAPI.GET("/practice-questions/access", handlers.Practice.Access)
		takerAPI.POST("/practice-questions/submit", handlers.Practice.Submit)
		takerAPI.POST("/practice-questions/cancel", handlers.Practice.Cancel)

		takerAPI.GET("/practice-results", handlers.Result.ListResults)
	}

	// ─── 3. Admin Group (JWT + admin role) ─────────────────────────────
	adminAPI := router.Group("/api")
	adminAPI.Use(middleware.RequireJWT(authService), middleware.RequireAdmin())
	{
		adminAPI.GET("/practice-results/summary", handlers.Result.Summary)

		adminAPI.GET("/practice-questions", handlers.Question.ListQuestions)
		adminAPI.POST("/practice-questions", handlers.Question.AddQuestion)
		adminAPI.DELETE("/practice-questions", handlers.Question.DeleteQuestions)
		adminAPI.POST("/practice-questions/bulk", handlers.Question.BulkAddQuestions)
		adminAPI.GET("/practice-questions/exam-codes", handlers.Question.ListExamCodes)
		adminAPI.GET("/practice-questions/:id", handlers.Question.GetQuestion)
		adminAPI.PUT("/practice-questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/practice-questions/:id", handlers.Question.DeleteQuestion)
	}

	// ─── 4. WebSocket Group (query token, admin role) ──────────────────
	ws := router.Group("/ws")
	ws.Use(middleware.RequireWSAuth(authService), middleware.RequireAdmin())
	{
		ws.GET("/practice-results/stream", handlers.WS.ResultsStream)
	}

	return router
}
