package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
	"github.com/stemsi/exstem-practice/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// ─── Stores ────────────────────────────────────────────────────────────────

type stubQuestions struct {
	mu sync.Mutex
	qs []model.PracticeQuestion
}

func (s *stubQuestions) ListByExamCode(_ context.Context, code string) ([]model.PracticeQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PracticeQuestion
	for _, q := range s.qs {
		if q.ExamCode == code {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *stubQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.PracticeQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.qs {
		if q.ID == id {
			q := q
			return &q, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubQuestions) List(_ context.Context, f model.QuestionFilter, limit, offset int) ([]model.PracticeQuestion, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PracticeQuestion
	for _, q := range s.qs {
		if (f.Topic == "" || q.Topic == f.Topic) && (f.ExamCode == "" || q.ExamCode == f.ExamCode) {
			out = append(out, q)
		}
	}
	return out, len(out), nil
}

func (s *stubQuestions) Create(_ context.Context, q *model.PracticeQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = uuid.New()
	s.qs = append(s.qs, *q)
	return nil
}

func (s *stubQuestions) CreateBatch(ctx context.Context, qs []model.PracticeQuestion) error {
	for i := range qs {
		_ = s.Create(ctx, &qs[i])
	}
	return nil
}

func (s *stubQuestions) Update(_ context.Context, q *model.PracticeQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.qs {
		if s.qs[i].ID == q.ID {
			s.qs[i] = *q
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *stubQuestions) Delete(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.qs {
		if q.ID == id {
			s.qs = append(s.qs[:i], s.qs[i+1:]...)
			return q.ExamCode, nil
		}
	}
	return "", pgx.ErrNoRows
}

func (s *stubQuestions) DeleteByFilter(_ context.Context, f model.QuestionFilter) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []model.PracticeQuestion
	var codes []string
	for _, q := range s.qs {
		if (f.Topic == "" || q.Topic == f.Topic) && (f.ExamCode == "" || q.ExamCode == f.ExamCode) {
			codes = append(codes, q.ExamCode)
			continue
		}
		kept = append(kept, q)
	}
	n := len(s.qs) - len(kept)
	s.qs = kept
	return n, codes, nil
}

func (s *stubQuestions) CountByExamCode(_ context.Context, codes []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, q := range s.qs {
		for _, code := range codes {
			if q.ExamCode == code {
				counts[code]++
			}
		}
	}
	return counts, nil
}

func (s *stubQuestions) ListExamCodes(_ context.Context) ([]model.ExamCodeStat, error) {
	return []model.ExamCodeStat{{ExamCode: "GEO", Topics: []string{"geo"}, QuestionCount: 2, DurationMinutes: 5}}, nil
}

type stubResults struct {
	mu      sync.Mutex
	results []model.PracticeResult
}

func (s *stubResults) Exists(_ context.Context, userID int, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.UserID == userID && r.ExamCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubResults) Create(_ context.Context, res *model.PracticeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.UserID == res.UserID && r.ExamCode == res.ExamCode {
			return repository.ErrDuplicateResult
		}
	}
	res.ID = uuid.New()
	s.results = append(s.results, *res)
	return nil
}

func (s *stubResults) List(_ context.Context, f model.ResultFilter, limit, offset int) ([]model.PracticeResult, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PracticeResult
	for _, r := range s.results {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (s *stubResults) SummaryByExam(_ context.Context) ([]model.ResultSummary, error) {
	return []model.ResultSummary{{ExamCode: "GEO", Attempts: 1, AverageScore: 5, MinScore: 5, MaxScore: 5}}, nil
}

type stubUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (s *stubUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = len(s.users) + 1
	s.users = append(s.users, *u)
	return nil
}

type stubDenylist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (s *stubDenylist) Revoke(_ context.Context, jti string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked == nil {
		s.revoked = map[string]bool{}
	}
	s.revoked[jti] = true
	return nil
}

func (s *stubDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

// ─── Test server ───────────────────────────────────────────────────────────

type testApp struct {
	router    *gin.Engine
	auth      *service.AuthService
	questions *stubQuestions
	results   *stubResults
	users     *stubUsers
}

func newTestApp(t *testing.T, qs ...model.PracticeQuestion) *testApp {
	t.Helper()
	log := zerolog.Nop()
	cfg := &config.Config{JWTSecret: "handler-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}

	app := &testApp{
		questions: &stubQuestions{qs: qs},
		results:   &stubResults{},
		users:     &stubUsers{},
	}
	app.auth = service.NewAuthService(cfg, app.users, &stubDenylist{})

	practice := NewPracticeHandler(service.NewPracticeService(app.questions, app.results, nil, nil, nil, "quick-practice", log), log)
	questions := NewQuestionHandler(service.NewQuestionService(app.questions, nil, log), log)
	results := NewResultHandler(service.NewResultService(app.results), log)
	auth := NewAuthHandler(app.auth, log)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())

	a := r.Group("/api/auth")
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.POST("/logout", middleware.RequireJWT(app.auth), auth.Logout)
	a.GET("/me", middleware.RequireJWT(app.auth), auth.Me)

	user := r.Group("/api", middleware.RequireJWT(app.auth))
	user.GET("/practice-questions/access", practice.Access)
	user.POST("/practice-questions/submit", practice.Submit)
	user.POST("/practice-questions/cancel", practice.Cancel)
	user.GET("/practice-results", results.ListResults)

	admin := r.Group("/api", middleware.RequireJWT(app.auth), middleware.RequireAdmin())
	admin.GET("/practice-results/summary", results.Summary)
	admin.GET("/practice-questions", questions.ListQuestions)
	admin.POST("/practice-questions", questions.AddQuestion)
	admin.POST("/practice-questions/bulk", questions.BulkAddQuestions)
	admin.GET("/practice-questions/exam-codes", questions.ListExamCodes)
	admin.DELETE("/practice-questions", questions.DeleteQuestions)
	admin.GET("/practice-questions/:id", questions.GetQuestion)
	admin.PUT("/practice-questions/:id", questions.UpdateQuestion)
	admin.DELETE("/practice-questions/:id", questions.DeleteQuestion)

	app.router = r
	return app
}

func (a *testApp) token(t *testing.T, userID int, role model.Role) string {
	t.Helper()
	tok, err := a.auth.GenerateToken(userID, role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (a *testApp) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// envelope decodes the response envelope with data left raw.
type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func geoQuestions() []model.PracticeQuestion {
	opts := []string{"Paris", "Rome", "Berlin", "Madrid"}
	return []model.PracticeQuestion{
		{ID: uuid.New(), Topic: "geo", ExamCode: "GEO", QuestionText: "France?", Options: opts, CorrectAnswer: "Paris", DurationMinutes: 5},
		{ID: uuid.New(), Topic: "geo", ExamCode: "GEO", QuestionText: "Italy?", Options: opts, CorrectAnswer: "Rome", DurationMinutes: 5},
	}
}
