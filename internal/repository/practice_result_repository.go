package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

// ErrDuplicateResult is returned when a result for the same (user, exam code) already exists.
var ErrDuplicateResult = errors.New("result for this user and exam code already exists")

// PracticeResultRepository handles result store access.
type PracticeResultRepository struct {
	pool *pgxpool.Pool
}

// NewPracticeResultRepository creates a new PracticeResultRepository.
func NewPracticeResultRepository(pool *pgxpool.Pool) *PracticeResultRepository {
	return &PracticeResultRepository{pool: pool}
}

// Exists reports whether the user already has a result for the exam code.
func (r *PracticeResultRepository) Exists(ctx context.Context, userID int, examCode string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM practice_results WHERE user_id = $1 AND exam_code = $2)`,
		userID, examCode,
	).Scan(&exists)
	return exists, err
}

// Create inserts a result. The (user_id, exam_code) unique constraint makes this
// the authoritative duplicate check; a violation maps to ErrDuplicateResult.
func (r *PracticeResultRepository) Create(ctx context.Context, res *model.PracticeResult) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO practice_results (user_id, exam_code, correct, total, score, auto_submitted, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		res.UserID, res.ExamCode, res.Correct, res.Total, res.Score, res.AutoSubmitted, res.SubmittedAt,
	).Scan(&res.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateResult
		}
		return err
	}
	return nil
}

// List retrieves results, newest first, with optional user and exam code filters.
func (r *PracticeResultRepository) List(ctx context.Context, f model.ResultFilter, limit, offset int) ([]model.PracticeResult, int, error) {
	baseQuery := `
		FROM practice_results pr
		JOIN users u ON u.id = pr.user_id
		WHERE TRUE
	`
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		baseQuery += fmt.Sprintf(" AND pr.user_id = $%d", len(args))
	}
	if f.ExamCode != "" {
		args = append(args, f.ExamCode)
		baseQuery += fmt.Sprintf(" AND pr.exam_code = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT pr.id, pr.user_id, u.name, pr.exam_code, pr.correct, pr.total,
		       pr.score::float8, pr.auto_submitted, pr.submitted_at
		` + baseQuery + fmt.Sprintf(`
		ORDER BY pr.submitted_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.PracticeResult
	for rows.Next() {
		var res model.PracticeResult
		if err := rows.Scan(&res.ID, &res.UserID, &res.UserName, &res.ExamCode, &res.Correct,
			&res.Total, &res.Score, &res.AutoSubmitted, &res.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

// SummaryByExam aggregates attempts and scores per exam code.
func (r *PracticeResultRepository) SummaryByExam(ctx context.Context) ([]model.ResultSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_code, COUNT(*),
		        ROUND(AVG(score), 2)::float8, MIN(score)::float8, MAX(score)::float8,
		        MAX(submitted_at)
		 FROM practice_results
		 GROUP BY exam_code
		 ORDER BY exam_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.ResultSummary
	for rows.Next() {
		var s model.ResultSummary
		if err := rows.Scan(&s.ExamCode, &s.Attempts, &s.AverageScore, &s.MinScore, &s.MaxScore, &s.LastAttempt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
