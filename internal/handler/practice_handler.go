package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/validator"
)

// PracticeHandler serves the exam-taking endpoints.
type PracticeHandler struct {
	practiceService *service.PracticeService
	log             zerolog.Logger
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(practiceService *service.PracticeService, log zerolog.Logger) *PracticeHandler {
	return &PracticeHandler{
		practiceService: practiceService,
		log:             log.With().Str("component", "practice_handler").Logger(),
	}
}

// Access godoc
// GET /api/practice-questions/access?examCode=
// Returns the answer-stripped question set, or status ALREADY_SUBMITTED with
// no content if the user has a result for the exam code.
func (h *PracticeHandler) Access(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.AccessQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	paper, err := h.practiceService.Access(c.Request.Context(), claims.UserID, q.ExamCode)
	if err != nil {
		h.fail(c, err, claims.UserID, q.ExamCode)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// Submit godoc
// POST /api/practice-questions/submit
// Scores a submission and records the result.
func (h *PracticeHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	outcome, err := h.practiceService.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		h.fail(c, err, claims.UserID, req.ExamCode)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// Cancel godoc
// POST /api/practice-questions/cancel
// Best-effort notice that the user left an exam without submitting.
func (h *PracticeHandler) Cancel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CancelRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	if err := h.practiceService.Cancel(c.Request.Context(), claims.UserID, req); err != nil {
		h.fail(c, err, claims.UserID, req.ExamCode)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

func (h *PracticeHandler) fail(c *gin.Context, err error, userID int, examCode string) {
	switch {
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrInvalidExamCode):
		response.Fail(c, http.StatusBadRequest, response.ErrExamCodeRequired)
	default:
		h.log.Error().Err(err).Int("user_id", userID).Str("exam_code", examCode).Msg("Practice request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
