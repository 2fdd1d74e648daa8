package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-practice/internal/response"
)

// HealthChecker reports dependency status.
type HealthChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	deps, ok := h.checker.Check(c.Request.Context())
	if !ok {
		response.Success(c, http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": deps})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
}
