package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
)

// ─── Questions ─────────────────────────────────────────────────────────────

type memQuestions struct {
	mu        sync.Mutex
	questions []model.PracticeQuestion
	listCalls int
}

func (m *memQuestions) ListByExamCode(_ context.Context, examCode string) ([]model.PracticeQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []model.PracticeQuestion
	for _, q := range m.questions {
		if q.ExamCode == examCode {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.PracticeQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.questions {
		if q.ID == id {
			q := q
			return &q, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memQuestions) List(_ context.Context, f model.QuestionFilter, limit, offset int) ([]model.PracticeQuestion, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.PracticeQuestion
	for _, q := range m.questions {
		if matchesFilter(q, f) {
			all = append(all, q)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memQuestions) Create(_ context.Context, q *model.PracticeQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	m.questions = append(m.questions, *q)
	return nil
}

func (m *memQuestions) CreateBatch(ctx context.Context, questions []model.PracticeQuestion) error {
	for i := range questions {
		if err := m.Create(ctx, &questions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memQuestions) Update(_ context.Context, q *model.PracticeQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.questions {
		if m.questions[i].ID == q.ID {
			m.questions[i] = *q
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memQuestions) Delete(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.questions {
		if q.ID == id {
			m.questions = append(m.questions[:i], m.questions[i+1:]...)
			return q.ExamCode, nil
		}
	}
	return "", pgx.ErrNoRows
}

func (m *memQuestions) DeleteByFilter(_ context.Context, f model.QuestionFilter) (int, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.PracticeQuestion
	codes := map[string]struct{}{}
	for _, q := range m.questions {
		if matchesFilter(q, f) {
			codes[q.ExamCode] = struct{}{}
			continue
		}
		kept = append(kept, q)
	}
	deleted := len(m.questions) - len(kept)
	m.questions = kept

	out := make([]string, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return deleted, out, nil
}

func (m *memQuestions) CountByExamCode(_ context.Context, examCodes []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, q := range m.questions {
		for _, code := range examCodes {
			if q.ExamCode == code {
				counts[code]++
			}
		}
	}
	return counts, nil
}

func (m *memQuestions) ListExamCodes(_ context.Context) ([]model.ExamCodeStat, error) {
	return nil, nil
}

func matchesFilter(q model.PracticeQuestion, f model.QuestionFilter) bool {
	if f.Topic != "" && q.Topic != f.Topic {
		return false
	}
	if f.ExamCode != "" && q.ExamCode != f.ExamCode {
		return false
	}
	return true
}

// ─── Results ───────────────────────────────────────────────────────────────

// memResults enforces (user, exam code) uniqueness the way the database
// constraint does. skipExists makes every pre-check miss so concurrent
// submissions race on Create.
type memResults struct {
	mu         sync.Mutex
	results    []model.PracticeResult
	skipExists bool
}

func (m *memResults) Exists(_ context.Context, userID int, examCode string) (bool, error) {
	if m.skipExists {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.UserID == userID && r.ExamCode == examCode {
			return true, nil
		}
	}
	return false, nil
}

func (m *memResults) Create(_ context.Context, res *model.PracticeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.UserID == res.UserID && r.ExamCode == res.ExamCode {
			return repository.ErrDuplicateResult
		}
	}
	res.ID = uuid.New()
	m.results = append(m.results, *res)
	return nil
}

func (m *memResults) List(_ context.Context, f model.ResultFilter, limit, offset int) ([]model.PracticeResult, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PracticeResult
	for _, r := range m.results {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.ExamCode != "" && r.ExamCode != f.ExamCode {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memResults) SummaryByExam(_ context.Context) ([]model.ResultSummary, error) {
	return nil, nil
}

func (m *memResults) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// ─── Cache, events, feed ───────────────────────────────────────────────────

type memCache struct {
	mu          sync.Mutex
	sets        map[string][]model.PracticeQuestion
	versions    map[string]int64
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{sets: map[string][]model.PracticeQuestion{}, versions: map[string]int64{}}
}

func (m *memCache) Get(_ context.Context, examCode string) ([]model.PracticeQuestion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs, ok := m.sets[examCode]
	return qs, ok, nil
}

func (m *memCache) Version(_ context.Context, examCode string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[examCode], nil
}

func (m *memCache) Set(_ context.Context, examCode string, version int64, questions []model.PracticeQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[examCode] != version {
		return nil
	}
	m.sets[examCode] = questions
	return nil
}

// prime caches a set whatever the current version.
func (m *memCache) prime(examCode string, questions []model.PracticeQuestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[examCode] = questions
}

func (m *memCache) Invalidate(_ context.Context, examCodes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range examCodes {
		delete(m.sets, c)
		m.versions[c]++
		m.invalidated = append(m.invalidated, c)
	}
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []model.SubmissionEvent
}

func (m *memEvents) Enqueue(_ context.Context, ev model.SubmissionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) kinds() []model.SubmissionEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SubmissionEventKind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

type memFeed struct {
	mu        sync.Mutex
	published []model.PracticeResult
}

func (m *memFeed) PublishResult(_ context.Context, res model.PracticeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, res)
	return nil
}

// ─── Users, denylist ───────────────────────────────────────────────────────

type memUsers struct {
	mu     sync.Mutex
	users  []model.User
	nextID int
}

func (m *memUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.users = append(m.users, *u)
	return nil
}

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	fail    error
}

func (m *memDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[jti] = ttl
	return nil
}

func (m *memDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	_, ok := m.revoked[jti]
	return ok, nil
}

// ─── Fixtures ──────────────────────────────────────────────────────────────

func question(examCode, text, correct string, duration int, options ...string) model.PracticeQuestion {
	return model.PracticeQuestion{
		ID:              uuid.New(),
		Topic:           "general",
		ExamCode:        examCode,
		QuestionText:    text,
		Options:         options,
		CorrectAnswer:   correct,
		DurationMinutes: duration,
	}
}
