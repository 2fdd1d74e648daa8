package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/validator"
)

// ResultHandler serves result history and statistics.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/practice-results?examCode=&userId=&page=&perPage=
// Users see their own results; admins see everyone's.
func (h *ResultHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.ResultQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQueryParams, fields)
		return
	}

	results, pagination, err := h.resultService.List(c.Request.Context(), claims.UserID, claims.Role, q.Filter(), q.Page, q.PerPage)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, results, pagination)
}

// Summary godoc
// GET /api/practice-results/summary
func (h *ResultHandler) Summary(c *gin.Context) {
	summaries, err := h.resultService.Summary(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Result summary failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summaries)
}
