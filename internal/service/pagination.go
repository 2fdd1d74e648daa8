package service

import "github.com/stemsi/exstem-practice/internal/response"

// normalizePage clamps page/perPage and returns limit and offset for the query.
func normalizePage(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}

func buildPagination(page, perPage, total int) *response.Pagination {
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
