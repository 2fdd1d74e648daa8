package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessStatus tells the taker whether the exam can be started.
type AccessStatus string

const (
	AccessStatusReady            AccessStatus = "READY"
	AccessStatusAlreadySubmitted AccessStatus = "ALREADY_SUBMITTED"
)

// ExamPaper is the answer-stripped question set returned by the access gate.
// Only Status is set when the gate rejects the request.
type ExamPaper struct {
	Status          AccessStatus       `json:"status"`
	ExamCode        string             `json:"examCode"`
	DurationMinutes int                `json:"durationMinutes,omitempty"`
	Total           int                `json:"total,omitempty"`
	Questions       []QuestionForTaker `json:"questions,omitempty"`
}

// SubmittedAnswer is one (questionId, answer) pair from a submission.
// An empty Answer means the question was left unanswered.
type SubmittedAnswer struct {
	QuestionID uuid.UUID `json:"questionId" binding:"required"`
	Answer     string    `json:"answer" binding:"max=500"`
}

// SubmitRequest is the payload posted when an exam is finished, manually or by the timer.
// The answers limit must stay equal to MaxQuestionsPerExam.
type SubmitRequest struct {
	ExamCode string            `json:"examCode" binding:"required,notblank,max=50"`
	Answers  []SubmittedAnswer `json:"answers" binding:"required,max=500,dive"`
	Auto     bool              `json:"auto"`
}

// CancelRequest is the payload for abandoning an exam.
type CancelRequest struct {
	ExamCode string `json:"examCode" binding:"required,notblank,max=50"`
	Reason   string `json:"reason" binding:"max=200"`
}

// AnswerKeyEntry reveals the correct answer of one question after submission.
type AnswerKeyEntry struct {
	QuestionID    uuid.UUID `json:"questionId"`
	CorrectAnswer string    `json:"correctAnswer"`
}

// SubmitOutcome is returned to the taker after scoring.
type SubmitOutcome struct {
	ExamCode       string           `json:"examCode"`
	Correct        int              `json:"correct"`
	Total          int              `json:"total"`
	Score          float64          `json:"score"`
	CorrectAnswers []AnswerKeyEntry `json:"correctAnswers"`
	AutoSubmitted  bool             `json:"autoSubmitted"`
	Recorded       bool             `json:"recorded"`
	SubmittedAt    time.Time        `json:"submittedAt"`
}

// SubmissionEventKind classifies analytics events emitted by the exam flow.
type SubmissionEventKind string

const (
	SubmissionEventScored    SubmissionEventKind = "scored"
	SubmissionEventDuplicate SubmissionEventKind = "duplicate"
	SubmissionEventCancelled SubmissionEventKind = "cancelled"
)

// SubmissionEvent is queued in Redis and persisted in batches by a worker.
type SubmissionEvent struct {
	UserID        int                 `json:"user_id"`
	ExamCode      string              `json:"exam_code"`
	Kind          SubmissionEventKind `json:"kind"`
	AutoSubmitted bool                `json:"auto_submitted"`
	Score         *float64            `json:"score,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}
