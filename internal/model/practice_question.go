package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of choices every question carries.
const OptionsPerQuestion = 4

// MaxQuestionsPerExam caps the question set of one exam code. It matches the
// answer limit on SubmitRequest so every full exam can be submitted.
const MaxQuestionsPerExam = 500

// PracticeQuestion is a single multiple-choice question belonging to an exam code.
type PracticeQuestion struct {
	ID              uuid.UUID `json:"id"`
	Topic           string    `json:"topic"`
	ExamCode        string    `json:"examCode"`
	QuestionText    string    `json:"questionText"`
	Options         []string  `json:"options"`
	CorrectAnswer   string    `json:"correctAnswer"`
	DurationMinutes int       `json:"durationMinutes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// QuestionForTaker is a question without its correct answer, served to exam takers.
type QuestionForTaker struct {
	ID           uuid.UUID `json:"id"`
	Topic        string    `json:"topic"`
	QuestionText string    `json:"questionText"`
	Options      []string  `json:"options"`
}

// QuestionRequest is the payload for adding or editing a single question.
type QuestionRequest struct {
	Topic           string   `json:"topic" binding:"required,notblank,max=100"`
	ExamCode        string   `json:"examCode" binding:"required,notblank,max=50"`
	QuestionText    string   `json:"questionText" binding:"required,notblank,max=2000"`
	Options         []string `json:"options" binding:"required,len=4,dive,required,max=500"`
	CorrectAnswer   string   `json:"correctAnswer" binding:"required,max=500"`
	DurationMinutes int      `json:"durationMinutes" binding:"required,min=1,max=480"`
}

// ToQuestion converts the request into a question entity.
func (r QuestionRequest) ToQuestion() PracticeQuestion {
	opts := make([]string, len(r.Options))
	copy(opts, r.Options)
	return PracticeQuestion{
		Topic:           r.Topic,
		ExamCode:        r.ExamCode,
		QuestionText:    r.QuestionText,
		Options:         opts,
		CorrectAnswer:   r.CorrectAnswer,
		DurationMinutes: r.DurationMinutes,
	}
}

// BulkQuestionsRequest is the payload for inserting many questions at once.
type BulkQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}

// QuestionFilter narrows admin question listings and cascade deletes.
type QuestionFilter struct {
	Topic    string
	ExamCode string
}

// IsEmpty reports whether no filter field is set.
func (f QuestionFilter) IsEmpty() bool {
	return f.Topic == "" && f.ExamCode == ""
}

// ExamCodeStat summarizes the question set behind one exam code.
type ExamCodeStat struct {
	ExamCode        string   `json:"examCode"`
	Topics          []string `json:"topics"`
	QuestionCount   int      `json:"questionCount"`
	DurationMinutes int      `json:"durationMinutes"`
}
