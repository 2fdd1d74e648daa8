package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
)

// Exam flow errors.
var (
	ErrExamNotFound     = errors.New("no questions found for exam code")
	ErrAlreadySubmitted = errors.New("exam already submitted by this user")
	ErrInvalidExamCode  = errors.New("exam code is required")
)

// PracticeService runs the server side of the timed exam flow: the access
// gate, submission scoring and result recording.
type PracticeService struct {
	questions QuestionReader
	results   ResultStore
	cache     QuestionCache
	events    EventQueue
	feed      ResultPublisher
	quickCode string
	log       zerolog.Logger
	now       func() time.Time
}

// NewPracticeService creates a new PracticeService. quickCode names the exam
// code that is never gated and never recorded.
func NewPracticeService(
	questions QuestionReader,
	results ResultStore,
	cache QuestionCache,
	events EventQueue,
	feed ResultPublisher,
	quickCode string,
	log zerolog.Logger,
) *PracticeService {
	return &PracticeService{
		questions: questions,
		results:   results,
		cache:     cache,
		events:    events,
		feed:      feed,
		quickCode: quickCode,
		log:       log.With().Str("component", "practice_service").Logger(),
		now:       time.Now,
	}
}

// IsQuickPractice reports whether examCode is the ungated practice code.
func (s *PracticeService) IsQuickPractice(examCode string) bool {
	return s.quickCode != "" && examCode == s.quickCode
}

// Access is the access gate. If the user already has a result for the exam
// code it returns a paper with status ALREADY_SUBMITTED and no question
// content; that is a normal outcome, not an error. Otherwise it returns the
// question set with correct answers stripped.
func (s *PracticeService) Access(ctx context.Context, userID int, examCode string) (*model.ExamPaper, error) {
	examCode = strings.TrimSpace(examCode)
	if examCode == "" {
		return nil, ErrInvalidExamCode
	}

	if !s.IsQuickPractice(examCode) {
		done, err := s.results.Exists(ctx, userID, examCode)
		if err != nil {
			return nil, fmt.Errorf("check existing result: %w", err)
		}
		if done {
			s.log.Debug().Int("user_id", userID).Str("exam_code", examCode).Msg("Access gate rejected re-entry")
			return &model.ExamPaper{Status: model.AccessStatusAlreadySubmitted, ExamCode: examCode}, nil
		}
	}

	questions, err := s.loadQuestions(ctx, examCode)
	if err != nil {
		return nil, err
	}

	paper := &model.ExamPaper{
		Status:    model.AccessStatusReady,
		ExamCode:  examCode,
		Total:     len(questions),
		Questions: make([]model.QuestionForTaker, len(questions)),
	}
	for i, q := range questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		paper.Questions[i] = model.QuestionForTaker{
			ID:           q.ID,
			Topic:        q.Topic,
			QuestionText: q.QuestionText,
			Options:      opts,
		}
		if q.DurationMinutes > paper.DurationMinutes {
			paper.DurationMinutes = q.DurationMinutes
		}
	}
	return paper, nil
}

// Submit scores a submission against the server-side question set and records
// the result. The unique (user, exam code) constraint of the result store is
// the authoritative duplicate check; the Exists pre-check only short-circuits
// the common case. Both map to ErrAlreadySubmitted.
func (s *PracticeService) Submit(ctx context.Context, userID int, req model.SubmitRequest) (*model.SubmitOutcome, error) {
	examCode := strings.TrimSpace(req.ExamCode)
	if examCode == "" {
		return nil, ErrInvalidExamCode
	}
	quick := s.IsQuickPractice(examCode)

	if !quick {
		done, err := s.results.Exists(ctx, userID, examCode)
		if err != nil {
			return nil, fmt.Errorf("check existing result: %w", err)
		}
		if done {
			s.emit(ctx, model.SubmissionEvent{UserID: userID, ExamCode: examCode, Kind: model.SubmissionEventDuplicate, AutoSubmitted: req.Auto})
			return nil, ErrAlreadySubmitted
		}
	}

	questions, err := s.loadQuestions(ctx, examCode)
	if err != nil {
		return nil, err
	}

	scored, err := Score(questions, req.Answers)
	if err != nil {
		return nil, err
	}

	outcome := &model.SubmitOutcome{
		ExamCode:       examCode,
		Correct:        scored.Correct,
		Total:          scored.Total,
		Score:          scored.Score,
		CorrectAnswers: scored.Key,
		AutoSubmitted:  req.Auto,
		SubmittedAt:    s.now().UTC(),
	}

	if !quick {
		res := &model.PracticeResult{
			UserID:        userID,
			ExamCode:      examCode,
			Correct:       scored.Correct,
			Total:         scored.Total,
			Score:         scored.Score,
			AutoSubmitted: req.Auto,
			SubmittedAt:   outcome.SubmittedAt,
		}
		if err := s.results.Create(ctx, res); err != nil {
			if errors.Is(err, repository.ErrDuplicateResult) {
				s.emit(ctx, model.SubmissionEvent{UserID: userID, ExamCode: examCode, Kind: model.SubmissionEventDuplicate, AutoSubmitted: req.Auto})
				return nil, ErrAlreadySubmitted
			}
			return nil, fmt.Errorf("record result: %w", err)
		}
		outcome.Recorded = true

		if s.feed != nil {
			if err := s.feed.PublishResult(ctx, *res); err != nil {
				s.log.Warn().Err(err).Str("exam_code", examCode).Msg("Failed to publish result")
			}
		}
	}

	score := scored.Score
	s.emit(ctx, model.SubmissionEvent{UserID: userID, ExamCode: examCode, Kind: model.SubmissionEventScored, AutoSubmitted: req.Auto, Score: &score})

	s.log.Info().
		Int("user_id", userID).
		Str("exam_code", examCode).
		Int("correct", scored.Correct).
		Int("total", scored.Total).
		Float64("score", scored.Score).
		Bool("auto", req.Auto).
		Bool("recorded", outcome.Recorded).
		Msg("Exam submitted and graded")

	return outcome, nil
}

// Cancel records that a user abandoned an exam. It has no effect on the
// result store or the access gate.
func (s *PracticeService) Cancel(ctx context.Context, userID int, req model.CancelRequest) error {
	examCode := strings.TrimSpace(req.ExamCode)
	if examCode == "" {
		return ErrInvalidExamCode
	}
	s.log.Info().Int("user_id", userID).Str("exam_code", examCode).Str("reason", req.Reason).Msg("Exam cancelled")
	s.emit(ctx, model.SubmissionEvent{UserID: userID, ExamCode: examCode, Kind: model.SubmissionEventCancelled})
	return nil
}

// loadQuestions reads the question set from Redis, falling back to PostgreSQL
// and re-populating the cache on a miss. Cache failures never fail the request.
func (s *PracticeService) loadQuestions(ctx context.Context, examCode string) ([]model.PracticeQuestion, error) {
	fill := false
	var version int64
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, examCode)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_code", examCode).Msg("Question cache read failed")
		} else if found && len(cached) > 0 {
			return cached, nil
		}
		if version, err = s.cache.Version(ctx, examCode); err == nil {
			fill = true
		}
	}

	questions, err := s.questions.ListByExamCode(ctx, examCode)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrExamNotFound
	}

	if fill {
		if err := s.cache.Set(ctx, examCode, version, questions); err != nil {
			s.log.Warn().Err(err).Str("exam_code", examCode).Msg("Question cache write failed")
		}
	}
	return questions, nil
}

// emit queues an analytics event. Failures are logged and swallowed.
func (s *PracticeService) emit(ctx context.Context, ev model.SubmissionEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Enqueue(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to queue submission event")
	}
}
