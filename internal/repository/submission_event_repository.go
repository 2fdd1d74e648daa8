package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-practice/internal/model"
)

// SubmissionEventRepository persists submission analytics events.
type SubmissionEventRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionEventRepository creates a new SubmissionEventRepository.
func NewSubmissionEventRepository(pool *pgxpool.Pool) *SubmissionEventRepository {
	return &SubmissionEventRepository{pool: pool}
}

// InsertBatch writes all events in one statement using UNNEST.
func (r *SubmissionEventRepository) InsertBatch(ctx context.Context, events []model.SubmissionEvent) error {
	n := len(events)
	if n == 0 {
		return nil
	}

	userIDs := make([]int, n)
	examCodes := make([]string, n)
	kinds := make([]string, n)
	autos := make([]bool, n)
	scores := make([]*float64, n)
	occurredAts := make([]time.Time, n)
	for i, ev := range events {
		userIDs[i] = ev.UserID
		examCodes[i] = ev.ExamCode
		kinds[i] = string(ev.Kind)
		autos[i] = ev.AutoSubmitted
		scores[i] = ev.Score
		occurredAts[i] = ev.OccurredAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO practice_submission_events (user_id, exam_code, kind, auto_submitted, score, occurred_at)
		SELECT * FROM UNNEST(
			$1::int[],
			$2::varchar[],
			$3::varchar[],
			$4::bool[],
			$5::numeric[],
			$6::timestamptz[]
		)`,
		userIDs, examCodes, kinds, autos, scores, occurredAts,
	)
	return err
}

// Insert writes a single event.
func (r *SubmissionEventRepository) Insert(ctx context.Context, ev model.SubmissionEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO practice_submission_events (user_id, exam_code, kind, auto_submitted, score, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.UserID, ev.ExamCode, string(ev.Kind), ev.AutoSubmitted, ev.Score, ev.OccurredAt,
	)
	return err
}
