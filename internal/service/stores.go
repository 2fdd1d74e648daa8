package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/model"
)

// QuestionReader loads the authoritative question set of an exam code.
type QuestionReader interface {
	ListByExamCode(ctx context.Context, examCode string) ([]model.PracticeQuestion, error)
}

// QuestionStore is the full admin-facing question store.
type QuestionStore interface {
	QuestionReader
	GetByID(ctx context.Context, id uuid.UUID) (*model.PracticeQuestion, error)
	List(ctx context.Context, f model.QuestionFilter, limit, offset int) ([]model.PracticeQuestion, int, error)
	Create(ctx context.Context, q *model.PracticeQuestion) error
	CreateBatch(ctx context.Context, questions []model.PracticeQuestion) error
	Update(ctx context.Context, q *model.PracticeQuestion) error
	Delete(ctx context.Context, id uuid.UUID) (string, error)
	DeleteByFilter(ctx context.Context, f model.QuestionFilter) (int, []string, error)
	ListExamCodes(ctx context.Context) ([]model.ExamCodeStat, error)
	// CountByExamCode returns the question count of each listed code.
	// Codes without questions may be absent from the map.
	CountByExamCode(ctx context.Context, examCodes []string) (map[string]int, error)
}

// ResultStore is the append-only result store. Create must return
// repository.ErrDuplicateResult when (user, exam code) already has a result.
type ResultStore interface {
	Exists(ctx context.Context, userID int, examCode string) (bool, error)
	Create(ctx context.Context, res *model.PracticeResult) error
	List(ctx context.Context, f model.ResultFilter, limit, offset int) ([]model.PracticeResult, int, error)
	SummaryByExam(ctx context.Context) ([]model.ResultSummary, error)
}

// QuestionCache caches question sets per exam code. Version must be read
// before the database load whose result is passed to Set, so a set that was
// invalidated in between is never cached.
type QuestionCache interface {
	Get(ctx context.Context, examCode string) ([]model.PracticeQuestion, bool, error)
	Version(ctx context.Context, examCode string) (int64, error)
	Set(ctx context.Context, examCode string, version int64, questions []model.PracticeQuestion) error
	Invalidate(ctx context.Context, examCodes ...string) error
}

// EventQueue accepts submission analytics events for asynchronous persistence.
type EventQueue interface {
	Enqueue(ctx context.Context, ev model.SubmissionEvent) error
}

// ResultPublisher broadcasts newly recorded results to live subscribers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res model.PracticeResult) error
}

// UserStore handles account persistence.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// TokenDenylist tracks revoked JWT IDs.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
