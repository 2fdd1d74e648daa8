package service

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/model"
)

// MaxScore is the score of a fully correct submission.
const MaxScore = 10

// ScoreResult is the outcome of grading one submission.
type ScoreResult struct {
	Correct int
	Total   int
	Score   float64
	Key     []model.AnswerKeyEntry
}

// Score grades answers against the authoritative question set.
//
// Total is always len(questions), so answers that are missing, blank or refer
// to unknown questions count as wrong and never shrink the denominator.
// Comparison is exact and case-sensitive. If a question ID is submitted more
// than once, the first occurrence counts.
func Score(questions []model.PracticeQuestion, answers []model.SubmittedAnswer) (ScoreResult, error) {
	if len(questions) == 0 {
		return ScoreResult{}, ErrExamNotFound
	}

	submitted := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		if _, dup := submitted[a.QuestionID]; !dup {
			submitted[a.QuestionID] = a.Answer
		}
	}

	res := ScoreResult{
		Total: len(questions),
		Key:   make([]model.AnswerKeyEntry, len(questions)),
	}
	for i, q := range questions {
		if ans, ok := submitted[q.ID]; ok && ans != "" && ans == q.CorrectAnswer {
			res.Correct++
		}
		res.Key[i] = model.AnswerKeyEntry{QuestionID: q.ID, CorrectAnswer: q.CorrectAnswer}
	}
	res.Score = RoundedScore(res.Correct, res.Total)
	return res, nil
}

// RoundedScore returns correct/total scaled to MaxScore and rounded half-up to
// two decimals. Integer arithmetic keeps values like 4.375 from drifting.
func RoundedScore(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	hundredths := (2*correct*MaxScore*100 + total) / (2 * total)
	return float64(hundredths) / 100
}
