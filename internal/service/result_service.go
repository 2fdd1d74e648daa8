package service

import (
	"context"

	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/response"
)

// ResultService exposes recorded results.
type ResultService struct {
	store ResultStore
}

// NewResultService creates a new ResultService.
func NewResultService(store ResultStore) *ResultService {
	return &ResultService{store: store}
}

// List returns results visible to the caller: their own, or everyone's for an
// admin. Admins may narrow by user via f.UserID; for everyone else it is forced
// to their own ID.
func (s *ResultService) List(ctx context.Context, userID int, role model.Role, f model.ResultFilter, page, perPage int) ([]model.PracticeResult, *response.Pagination, error) {
	if role != model.RoleAdmin {
		f.UserID = &userID
	}

	page, perPage, limit, offset := normalizePage(page, perPage)
	results, total, err := s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.PracticeResult{}
	}
	return results, buildPagination(page, perPage, total), nil
}

// Summary aggregates scores per exam code.
func (s *ResultService) Summary(ctx context.Context) ([]model.ResultSummary, error) {
	summaries, err := s.store.SummaryByExam(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []model.ResultSummary{}
	}
	return summaries, nil
}
