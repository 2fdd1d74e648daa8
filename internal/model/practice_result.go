package model

import (
	"time"

	"github.com/google/uuid"
)

// PracticeResult is the immutable record of one user's attempt at one exam code.
type PracticeResult struct {
	ID            uuid.UUID `json:"id"`
	UserID        int       `json:"userId"`
	UserName      string    `json:"userName,omitempty"`
	ExamCode      string    `json:"examCode"`
	Correct       int       `json:"correct"`
	Total         int       `json:"total"`
	Score         float64   `json:"score"`
	AutoSubmitted bool      `json:"autoSubmitted"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// ResultFilter narrows result listings. UserID nil means all users.
type ResultFilter struct {
	UserID   *int
	ExamCode string
}

// ResultSummary aggregates scores for one exam code.
type ResultSummary struct {
	ExamCode     string    `json:"examCode"`
	Attempts     int       `json:"attempts"`
	AverageScore float64   `json:"averageScore"`
	MinScore     float64   `json:"minScore"`
	MaxScore     float64   `json:"maxScore"`
	LastAttempt  time.Time `json:"lastAttempt"`
}
