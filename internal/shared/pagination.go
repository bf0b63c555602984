package shared

import (
	"net/url"
	"strconv"
)

const (
	// DefaultLimit applies when a listing request names no limit.
	DefaultLimit = 50
	// MaxLimit caps the page size of any listing.
	MaxLimit = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata for a limit/offset window.
func NewPagination(limit, offset, total int) Pagination {
	limit, offset = ClampPage(limit, offset)
	totalPages := (total + limit - 1) / limit
	return Pagination{
		Limit:      limit,
		Offset:     offset,
		Total:      total,
		Page:       offset/limit + 1,
		TotalPages: totalPages,
	}
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ParsePage reads limit and offset query parameters. Malformed values are
// reported so callers can answer 400 rather than silently paging.
func ParsePage(q url.Values) (int, int, error) {
	limit, offset := 0, 0
	var err error
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, 0, strconv.ErrSyntax
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, strconv.ErrSyntax
		}
	}
	limit, offset = ClampPage(limit, offset)
	return limit, offset, nil
}
