package pagination

import (
	"net/http"
	"strconv"
	"strings"

	domain "github.com/quadro-commerce/api/internal/domain"
)

const (
	// DefaultLimit applies when the client omits or mangles the limit parameter.
	DefaultLimit = 10
	// MaxLimit caps the page size regardless of what the client requests.
	MaxLimit = 100
)

// FromRequest extracts page/limit query parameters with clamping.
func FromRequest(r *http.Request) domain.Pagination {
	if r == nil {
		return domain.Pagination{Page: 1, Limit: DefaultLimit}
	}
	query := r.URL.Query()
	return Normalize(parseInt(query.Get("page"), 1), parseInt(query.Get("limit"), DefaultLimit))
}

// Normalize clamps arbitrary page/limit values into the supported range.
func Normalize(page, limit int) domain.Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return domain.Pagination{Page: page, Limit: limit}
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
