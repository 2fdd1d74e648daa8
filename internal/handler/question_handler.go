package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/validator"
)

// QuestionHandler handles question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// ListQuestions godoc
// GET /api/practice-questions?topic=&examCode=&page=&perPage=
// Lists questions including their correct answers.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var q model.QuestionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQueryParams, fields)
		return
	}

	questions, pagination, err := h.questionService.List(c.Request.Context(), q.Filter(), q.Page, q.PerPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List questions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, questions, pagination)
}

// GetQuestion godoc
// GET /api/practice-questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, question)
}

// ListExamCodes godoc
// GET /api/practice-questions/exam-codes
// Summarizes every exam code with its topics, question count and duration.
func (h *QuestionHandler) ListExamCodes(c *gin.Context) {
	stats, err := h.questionService.ListExamCodes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// AddQuestion godoc
// POST /api/practice-questions
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	question := req.ToQuestion()
	if err := h.questionService.Create(c.Request.Context(), &question); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, question)
}

// BulkAddQuestions godoc
// POST /api/practice-questions/bulk
// Inserts all questions in one transaction, or none.
func (h *QuestionHandler) BulkAddQuestions(c *gin.Context) {
	var req model.BulkQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	questions := make([]model.PracticeQuestion, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = q.ToQuestion()
	}

	if err := h.questionService.CreateBatch(c.Request.Context(), questions); err != nil {
		var ve *service.QuestionValidationError
		if errors.As(err, &ve) {
			response.FailWithFields(c, http.StatusBadRequest, validationCode(ve.Err), map[string]string{
				"questions[" + strconv.Itoa(ve.Index) + "]": ve.Err.Error(),
			})
			return
		}
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"inserted": len(questions), "questions": questions})
}

// UpdateQuestion godoc
// PUT /api/practice-questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailValidation(c, fields)
		return
	}

	question := req.ToQuestion()
	question.ID = id
	if err := h.questionService.Update(c.Request.Context(), &question); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, question)
}

// DeleteQuestion godoc
// DELETE /api/practice-questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": 1})
}

// DeleteQuestions godoc
// DELETE /api/practice-questions?topic=&examCode=
// Deletes every question matching the topic and/or exam code.
func (h *QuestionHandler) DeleteQuestions(c *gin.Context) {
	var q model.QuestionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQueryParams, fields)
		return
	}

	deleted, err := h.questionService.DeleteByFilter(c.Request.Context(), q.Filter())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *QuestionHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidOptions), errors.Is(err, service.ErrInvalidCorrectAnswer):
		response.Fail(c, http.StatusBadRequest, validationCode(err))
	case errors.Is(err, service.ErrEmptyFilter):
		response.Fail(c, http.StatusBadRequest, response.ErrFilterRequired)
	case errors.Is(err, service.ErrExamFull):
		response.Fail(c, http.StatusConflict, response.ErrExamFull)
	default:
		h.log.Error().Err(err).Msg("Question request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func validationCode(err error) response.ErrCode {
	if errors.Is(err, service.ErrInvalidOptions) {
		return response.ErrInvalidOptions
	}
	return response.ErrInvalidAnswer
}
