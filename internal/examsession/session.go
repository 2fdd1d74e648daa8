// Package examsession is the exam taker's side of a timed practice exam: it
// holds the question set and answers, runs the countdown and guarantees that
// a session submits at most once.
package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/model"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
)

var (
	// ErrAlreadySubmitted means the server already holds a result for this
	// user and exam code. The outcome is only available from result history.
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrSubmitInFlight   = errors.New("a submission is already in progress")
	ErrNotInProgress    = errors.New("exam is not in progress")
	ErrAlreadyStarted   = errors.New("exam already started")
	ErrEmptyExam        = errors.New("exam has no questions")
	ErrUnknownQuestion  = errors.New("question is not part of this exam")
	ErrInvalidOption    = errors.New("answer is not one of the question's options")
	ErrClosed           = errors.New("session closed")
	ErrTimeUp           = errors.New("time is up, answers can no longer change")
)

// Fetcher loads the answer-stripped question set through the access gate.
type Fetcher interface {
	FetchExam(ctx context.Context, examCode string) (*model.ExamPaper, error)
}

// Submitter sends answers for scoring. Implementations must return an error
// matching ErrAlreadySubmitted when the server rejects a duplicate.
type Submitter interface {
	SubmitExam(ctx context.Context, req model.SubmitRequest) (*model.SubmitOutcome, error)
}

// Canceller tells the server an exam was abandoned. Optional.
type Canceller interface {
	CancelExam(ctx context.Context, req model.CancelRequest) error
}

// Session is one attempt at one exam code.
type Session struct {
	fetcher   Fetcher
	submitter Submitter

	mu               sync.Mutex
	examCode         string
	status           Status
	starting         bool
	submitting       bool
	closed           bool
	timedOut         bool
	questions        []model.QuestionForTaker
	index            map[uuid.UUID]int
	answers          map[uuid.UUID]string
	secondsRemaining int
	outcome          *model.SubmitOutcome

	timer         *countdown
	newTicker     TickerFunc
	submitTimeout time.Duration
	onTick        func(remaining int)
	onAutoSubmit  func(*model.SubmitOutcome, error)
}

// Option configures a Session.
type Option func(*Session)

// WithTicker replaces the one-second wall clock ticker.
func WithTicker(f TickerFunc) Option {
	return func(s *Session) { s.newTicker = f }
}

// WithTickHandler is called after every countdown tick with the seconds left.
func WithTickHandler(f func(remaining int)) Option {
	return func(s *Session) { s.onTick = f }
}

// WithAutoSubmitHandler receives the result of the countdown's submission.
func WithAutoSubmitHandler(f func(*model.SubmitOutcome, error)) Option {
	return func(s *Session) { s.onAutoSubmit = f }
}

// WithSubmitTimeout bounds the automatic submission request.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) { s.submitTimeout = d }
}

// New creates a session for examCode. Nothing is fetched until Start.
func New(examCode string, fetcher Fetcher, submitter Submitter, opts ...Option) *Session {
	s := &Session{
		fetcher:       fetcher,
		submitter:     submitter,
		examCode:      examCode,
		status:        StatusNotStarted,
		newTicker:     NewWallTicker,
		submitTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches the question set and arms the countdown. A failed fetch
// leaves the session NotStarted so Start can be retried. If the access gate
// reports a prior submission, Start returns ErrAlreadySubmitted and the
// session holds no questions.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.status != StatusNotStarted || s.starting:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.starting = true
	s.mu.Unlock()

	paper, err := s.fetcher.FetchExam(ctx, s.examCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false

	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("fetch exam: %w", err)
	}
	if paper == nil {
		return ErrEmptyExam
	}
	if paper.Status == model.AccessStatusAlreadySubmitted {
		return ErrAlreadySubmitted
	}
	if len(paper.Questions) == 0 {
		return ErrEmptyExam
	}
	if s.closed {
		return ErrClosed
	}

	s.questions = paper.Questions
	s.index = make(map[uuid.UUID]int, len(paper.Questions))
	for i, q := range paper.Questions {
		s.index[q.ID] = i
	}
	s.answers = make(map[uuid.UUID]string, len(paper.Questions))
	s.secondsRemaining = paper.DurationMinutes * 60
	s.status = StatusInProgress

	s.timer = startCountdown(s.newTicker(time.Second), s.tick, s.autoSubmit)
	return nil
}

// Answer records option for questionID, replacing any earlier choice. An
// empty option clears the answer.
func (s *Session) Answer(questionID uuid.UUID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	if s.submitting {
		return ErrSubmitInFlight
	}
	if s.timedOut {
		return ErrTimeUp
	}
	i, ok := s.index[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	if option == "" {
		delete(s.answers, questionID)
		return nil
	}
	for _, opt := range s.questions[i].Options {
		if opt == option {
			s.answers[questionID] = option
			return nil
		}
	}
	return ErrInvalidOption
}

// Submit sends the answers for scoring. On a network failure the session
// stays InProgress and Submit may be called again. A retry after the
// countdown's own submission failed is still flagged as automatic.
func (s *Session) Submit(ctx context.Context) (*model.SubmitOutcome, error) {
	return s.submit(ctx, false)
}

// Close stops the countdown. No automatic submission happens afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.stop()
	}
}

// Abandon closes the session and, if it was in progress, notifies the
// server on a best-effort basis.
func (s *Session) Abandon(ctx context.Context, c Canceller, reason string) error {
	s.mu.Lock()
	inProgress := s.status == StatusInProgress
	s.mu.Unlock()

	s.Close()
	if !inProgress || c == nil {
		return nil
	}
	return c.CancelExam(ctx, model.CancelRequest{ExamCode: s.examCode, Reason: reason})
}

func (s *Session) submit(ctx context.Context, auto bool) (*model.SubmitOutcome, error) {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	s.submitting = true
	if auto {
		s.timedOut = true
	}
	req := s.buildRequest(s.timedOut)
	s.mu.Unlock()

	out, err := s.submitter.SubmitExam(ctx, req)

	s.mu.Lock()
	s.submitting = false
	if err != nil && !errors.Is(err, ErrAlreadySubmitted) {
		s.mu.Unlock()
		return nil, fmt.Errorf("submit exam: %w", err)
	}
	s.status = StatusSubmitted
	s.outcome = out
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.stop()
	}
	if err != nil {
		return nil, ErrAlreadySubmitted
	}
	return out, nil
}

// buildRequest lists every question in order; unanswered ones carry "".
func (s *Session) buildRequest(auto bool) model.SubmitRequest {
	answers := make([]model.SubmittedAnswer, len(s.questions))
	for i, q := range s.questions {
		answers[i] = model.SubmittedAnswer{QuestionID: q.ID, Answer: s.answers[q.ID]}
	}
	return model.SubmitRequest{ExamCode: s.examCode, Answers: answers, Auto: auto}
}

// ─── Accessors ─────────────────────────────────────────────────────────────

// ExamCode is the code the session was created for.
func (s *Session) ExamCode() string { return s.examCode }

// Status is the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SecondsRemaining is the countdown's current value. It is zero before Start.
func (s *Session) SecondsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondsRemaining
}

// Questions returns a copy of the question set.
func (s *Session) Questions() []model.QuestionForTaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.QuestionForTaker, len(s.questions))
	copy(out, s.questions)
	return out
}

// Answers returns a copy of the current answers.
func (s *Session) Answers() map[uuid.UUID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Outcome is the server's grading, or nil if the session ended with
// ErrAlreadySubmitted or has not been submitted.
func (s *Session) Outcome() *model.SubmitOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}
