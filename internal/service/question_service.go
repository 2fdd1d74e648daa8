package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
)

// Question validation errors.
var (
	ErrInvalidOptions       = fmt.Errorf("a question must have exactly %d options", model.OptionsPerQuestion)
	ErrInvalidCorrectAnswer = errors.New("correct answer must equal one of the options")
	ErrEmptyFilter          = errors.New("topic or exam code is required")
	ErrExamFull             = fmt.Errorf("an exam code holds at most %d questions", model.MaxQuestionsPerExam)
)

// QuestionValidationError wraps a validation error with the index of the offending question in a bulk request.
type QuestionValidationError struct {
	Index int
	Err   error
}

func (e *QuestionValidationError) Error() string {
	return fmt.Sprintf("question %d: %v", e.Index, e.Err)
}

func (e *QuestionValidationError) Unwrap() error { return e.Err }

// QuestionService handles question administration and keeps the question cache coherent.
type QuestionService struct {
	store QuestionStore
	cache QuestionCache
	log   zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(store QuestionStore, cache QuestionCache, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// ValidateQuestion checks the invariants the database also enforces, so callers get a 400 instead of a 500.
func ValidateQuestion(q model.PracticeQuestion) error {
	if len(q.Options) != model.OptionsPerQuestion {
		return ErrInvalidOptions
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return nil
		}
	}
	return ErrInvalidCorrectAnswer
}

// List retrieves questions with pagination.
func (s *QuestionService) List(ctx context.Context, f model.QuestionFilter, page, perPage int) ([]model.PracticeQuestion, *response.Pagination, error) {
	page, perPage, limit, offset := normalizePage(page, perPage)

	questions, total, err := s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.PracticeQuestion{}
	}
	return questions, buildPagination(page, perPage, total), nil
}

// GetByID retrieves a question.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.PracticeQuestion, error) {
	return s.store.GetByID(ctx, id)
}

// ListExamCodes summarizes every exam code.
func (s *QuestionService) ListExamCodes(ctx context.Context) ([]model.ExamCodeStat, error) {
	stats, err := s.store.ListExamCodes(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []model.ExamCodeStat{}
	}
	return stats, nil
}

// Create adds a single question.
func (s *QuestionService) Create(ctx context.Context, q *model.PracticeQuestion) error {
	normalizeQuestion(q)
	if err := ValidateQuestion(*q); err != nil {
		return err
	}
	if err := s.checkCapacity(ctx, map[string]int{q.ExamCode: 1}); err != nil {
		return err
	}
	if err := s.store.Create(ctx, q); err != nil {
		return err
	}
	s.invalidate(ctx, q.ExamCode)
	return nil
}

// CreateBatch validates every question first and then inserts all of them atomically.
func (s *QuestionService) CreateBatch(ctx context.Context, questions []model.PracticeQuestion) error {
	for i := range questions {
		normalizeQuestion(&questions[i])
		if err := ValidateQuestion(questions[i]); err != nil {
			return &QuestionValidationError{Index: i, Err: err}
		}
	}
	adding := make(map[string]int)
	for _, q := range questions {
		adding[q.ExamCode]++
	}
	if err := s.checkCapacity(ctx, adding); err != nil {
		return err
	}
	if err := s.store.CreateBatch(ctx, questions); err != nil {
		return err
	}

	s.invalidate(ctx, distinctExamCodes(questions)...)
	s.log.Info().Int("count", len(questions)).Msg("Questions bulk inserted")
	return nil
}

// Update edits a question. Both the old and the new exam code are invalidated
// since an edit may move a question between exams.
func (s *QuestionService) Update(ctx context.Context, q *model.PracticeQuestion) error {
	normalizeQuestion(q)
	if err := ValidateQuestion(*q); err != nil {
		return err
	}

	existing, err := s.store.GetByID(ctx, q.ID)
	if err != nil {
		return err
	}
	if existing.ExamCode != q.ExamCode {
		if err := s.checkCapacity(ctx, map[string]int{q.ExamCode: 1}); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, q); err != nil {
		return err
	}
	s.invalidate(ctx, existing.ExamCode, q.ExamCode)
	return nil
}

// Delete removes one question.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	examCode, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, examCode)
	return nil
}

// DeleteByFilter removes every question of a topic and/or exam code.
func (s *QuestionService) DeleteByFilter(ctx context.Context, f model.QuestionFilter) (int, error) {
	f.Topic = strings.TrimSpace(f.Topic)
	f.ExamCode = strings.TrimSpace(f.ExamCode)
	if f.IsEmpty() {
		return 0, ErrEmptyFilter
	}

	deleted, codes, err := s.store.DeleteByFilter(ctx, f)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, codes...)

	s.log.Info().
		Str("topic", f.Topic).
		Str("exam_code", f.ExamCode).
		Int("deleted", deleted).
		Msg("Questions deleted by filter")
	return deleted, nil
}

// checkCapacity rejects writes that would push an exam code past
// MaxQuestionsPerExam. adding maps exam code to the number of new questions.
func (s *QuestionService) checkCapacity(ctx context.Context, adding map[string]int) error {
	codes := make([]string, 0, len(adding))
	for code := range adding {
		codes = append(codes, code)
	}
	counts, err := s.store.CountByExamCode(ctx, codes)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	for code, n := range adding {
		if counts[code]+n > model.MaxQuestionsPerExam {
			return fmt.Errorf("%w: %s has %d, adding %d", ErrExamFull, code, counts[code], n)
		}
	}
	return nil
}

func (s *QuestionService) invalidate(ctx context.Context, examCodes ...string) {
	if s.cache == nil || len(examCodes) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, examCodes...); err != nil {
		s.log.Warn().Err(err).Strs("exam_codes", examCodes).Msg("Question cache invalidation failed")
	}
}

// normalizeQuestion trims identifiers. Question text, options and the correct
// answer are stored verbatim because scoring compares them exactly.
func normalizeQuestion(q *model.PracticeQuestion) {
	q.Topic = strings.TrimSpace(q.Topic)
	q.ExamCode = strings.TrimSpace(q.ExamCode)
}

func distinctExamCodes(questions []model.PracticeQuestion) []string {
	seen := make(map[string]struct{}, len(questions))
	var codes []string
	for _, q := range questions {
		if _, ok := seen[q.ExamCode]; ok {
			continue
		}
		seen[q.ExamCode] = struct{}{}
		codes = append(codes, q.ExamCode)
	}
	return codes
}
