package postgres

import (
	"strconv"

	domain "github.com/quadro-commerce/api/internal/domain"
)

// argn renders a positional placeholder index for dynamically built queries.
func argn(n int) string {
	return strconv.Itoa(n)
}

// offset converts page/limit into a row offset, treating out-of-range values
// as the first page.
func offset(pager domain.Pagination) int {
	page := pager.Page
	if page <= 0 {
		page = 1
	}
	limit := pager.Limit
	if limit <= 0 {
		limit = 1
	}
	return (page - 1) * limit
}
