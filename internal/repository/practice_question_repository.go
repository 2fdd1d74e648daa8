package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

const questionColumns = `id, topic, exam_code, question_text, options, correct_answer, duration_minutes, created_at, updated_at`

// PracticeQuestionRepository handles question store access.
type PracticeQuestionRepository struct {
	pool *pgxpool.Pool
}

// NewPracticeQuestionRepository creates a new PracticeQuestionRepository.
func NewPracticeQuestionRepository(pool *pgxpool.Pool) *PracticeQuestionRepository {
	return &PracticeQuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row) (model.PracticeQuestion, error) {
	var q model.PracticeQuestion
	err := row.Scan(&q.ID, &q.Topic, &q.ExamCode, &q.QuestionText, &q.Options,
		&q.CorrectAnswer, &q.DurationMinutes, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func collectQuestions(rows pgx.Rows) ([]model.PracticeQuestion, error) {
	defer rows.Close()

	var questions []model.PracticeQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListByExamCode retrieves the authoritative question set of an exam code in insertion order.
func (r *PracticeQuestionRepository) ListByExamCode(ctx context.Context, examCode string) ([]model.PracticeQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM practice_questions WHERE exam_code = $1
		 ORDER BY created_at, id`, examCode,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// GetByID retrieves a single question.
func (r *PracticeQuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PracticeQuestion, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM practice_questions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// whereFilter builds the WHERE clause for a QuestionFilter starting at placeholder $1.
func whereFilter(f model.QuestionFilter) (string, []any) {
	clause := ""
	var args []any
	if f.Topic != "" {
		args = append(args, f.Topic)
		clause += " AND topic = $" + strconv.Itoa(len(args))
	}
	if f.ExamCode != "" {
		args = append(args, f.ExamCode)
		clause += " AND exam_code = $" + strconv.Itoa(len(args))
	}
	if clause == "" {
		return "", nil
	}
	return " WHERE" + clause[len(" AND"):], args
}

// List retrieves questions with pagination and optional topic/exam code filters.
func (r *PracticeQuestionRepository) List(ctx context.Context, f model.QuestionFilter, limit, offset int) ([]model.PracticeQuestion, int, error) {
	where, args := whereFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM practice_questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM practice_questions%s
		 ORDER BY exam_code, created_at, id
		 LIMIT $%d OFFSET $%d`, questionColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	questions, err := collectQuestions(rows)
	return questions, total, err
}

// Create inserts a new question.
func (r *PracticeQuestionRepository) Create(ctx context.Context, q *model.PracticeQuestion) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO practice_questions (topic, exam_code, question_text, options, correct_answer, duration_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		q.Topic, q.ExamCode, q.QuestionText, q.Options, q.CorrectAnswer, q.DurationMinutes,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// CreateBatch inserts all questions in a single transaction; either all or none are stored.
func (r *PracticeQuestionRepository) CreateBatch(ctx context.Context, questions []model.PracticeQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO practice_questions (topic, exam_code, question_text, options, correct_answer, duration_minutes)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at, updated_at`,
			q.Topic, q.ExamCode, q.QuestionText, q.Options, q.CorrectAnswer, q.DurationMinutes,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return tx.Commit(ctx)
}

// Update modifies an existing question. Returns pgx.ErrNoRows if it does not exist.
func (r *PracticeQuestionRepository) Update(ctx context.Context, q *model.PracticeQuestion) error {
	return r.pool.QueryRow(ctx,
		`UPDATE practice_questions
		 SET topic = $1, exam_code = $2, question_text = $3, options = $4,
		     correct_answer = $5, duration_minutes = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $7
		 RETURNING created_at, updated_at`,
		q.Topic, q.ExamCode, q.QuestionText, q.Options, q.CorrectAnswer, q.DurationMinutes, q.ID,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// Delete removes a question and returns the exam code it belonged to.
func (r *PracticeQuestionRepository) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	var examCode string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM practice_questions WHERE id = $1 RETURNING exam_code`, id,
	).Scan(&examCode)
	return examCode, err
}

// DeleteByFilter removes every question matching the filter and returns the
// number removed plus the distinct exam codes affected. An empty filter is refused.
func (r *PracticeQuestionRepository) DeleteByFilter(ctx context.Context, f model.QuestionFilter) (int, []string, error) {
	if f.IsEmpty() {
		return 0, nil, fmt.Errorf("refusing to delete without a filter")
	}
	where, args := whereFilter(f)

	rows, err := r.pool.Query(ctx, `DELETE FROM practice_questions`+where+` RETURNING exam_code`, args...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	deleted := 0
	seen := make(map[string]struct{})
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return 0, nil, err
		}
		deleted++
		if _, ok := seen[code]; !ok {
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return deleted, codes, rows.Err()
}

// ListExamCodes summarizes every exam code in the store.
func (r *PracticeQuestionRepository) ListExamCodes(ctx context.Context) ([]model.ExamCodeStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_code, ARRAY_AGG(DISTINCT topic ORDER BY topic), COUNT(*), MAX(duration_minutes)
		 FROM practice_questions
		 GROUP BY exam_code
		 ORDER BY exam_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.ExamCodeStat
	for rows.Next() {
		var s model.ExamCodeStat
		if err := rows.Scan(&s.ExamCode, &s.Topics, &s.QuestionCount, &s.DurationMinutes); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CountByExamCode counts the questions of each listed exam code.
func (r *PracticeQuestionRepository) CountByExamCode(ctx context.Context, examCodes []string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_code, COUNT(*) FROM practice_questions
		 WHERE exam_code = ANY($1)
		 GROUP BY exam_code`, examCodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(examCodes))
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, rows.Err()
}
