// Package client is a typed HTTP client for the practice exam API. It
// satisfies the examsession Fetcher, Submitter and Canceller interfaces.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/examsession"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
)

// ErrUnauthorized matches any 401 from the server.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx reply decoded from the error envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers test API errors against the session and client sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case examsession.ErrAlreadySubmitted:
		return e.Code == response.ErrAlreadySubmitted
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

// Client talks to one API server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token up front.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ─── Auth ──────────────────────────────────────────────────────────────────

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var res model.LoginResponse
	body := model.LoginRequest{Email: email, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var res struct {
		User model.User `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// ─── Exam ──────────────────────────────────────────────────────────────────

// FetchExam goes through the access gate. A gate hit is not an error: the
// returned paper has status ALREADY_SUBMITTED and no questions.
func (c *Client) FetchExam(ctx context.Context, examCode string) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	path := "/api/practice-questions/access?examCode=" + url.QueryEscape(examCode)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// SubmitExam posts answers. A duplicate submission yields an *APIError
// matching examsession.ErrAlreadySubmitted.
func (c *Client) SubmitExam(ctx context.Context, req model.SubmitRequest) (*model.SubmitOutcome, error) {
	var out model.SubmitOutcome
	if _, err := c.do(ctx, http.MethodPost, "/api/practice-questions/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelExam reports an abandoned exam.
func (c *Client) CancelExam(ctx context.Context, req model.CancelRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/api/practice-questions/cancel", req, nil)
	return err
}

// ResultsQuery narrows Results. Zero values are omitted.
type ResultsQuery struct {
	ExamCode string
	UserID   int
	Page     int
	PerPage  int
}

func (q ResultsQuery) encode() string {
	v := url.Values{}
	if q.ExamCode != "" {
		v.Set("examCode", q.ExamCode)
	}
	if q.UserID > 0 {
		v.Set("userId", strconv.Itoa(q.UserID))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Results lists result history: the caller's own, or everyone's for admins.
func (c *Client) Results(ctx context.Context, q ResultsQuery) ([]model.PracticeResult, *response.Pagination, error) {
	var results []model.PracticeResult
	env, err := c.do(ctx, http.MethodGet, "/api/practice-results"+q.encode(), nil, &results)
	if err != nil {
		return nil, nil, err
	}
	return results, env.Pagination, nil
}

// ─── Transport ─────────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, body, out any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(response.HeaderRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return nil, &APIError{Status: resp.StatusCode, Code: response.ErrInternal}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: response.ErrInternal}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return nil, apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}
