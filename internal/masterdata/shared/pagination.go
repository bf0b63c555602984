package shared

import (
	"net/url"
	"strings"

	base "github.com/odyssey-erp/stockledger/internal/shared"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// MaxSearchResults is the page size used for exact-match lookups by code.
const MaxSearchResults = base.MaxLimit

// ListFilters represents standard list page filters.
type ListFilters struct {
	Limit   int
	Offset  int
	Search  string
	SortBy  string
	SortDir string
}

// ParseListFilters reads limit, offset, search, sort and dir query values.
func ParseListFilters(q url.Values) (ListFilters, error) {
	limit, offset, err := base.ParsePage(q)
	if err != nil {
		return ListFilters{}, &FieldError{Field: "limit", Message: "limit and offset must be non-negative integers"}
	}
	dir := strings.ToLower(q.Get("dir"))
	if dir != SortDesc {
		dir = SortAsc
	}
	return ListFilters{
		Limit:   limit,
		Offset:  offset,
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sort"),
		SortDir: dir,
	}, nil
}

// SortOrder renders an ORDER BY clause from a whitelist of columns. Unknown
// columns fall back to fallback.
func SortOrder(sortBy, sortDir string, allowed []string, fallback string) string {
	dir := "ASC"
	if sortDir == SortDesc {
		dir = "DESC"
	}
	column := fallback
	for _, c := range allowed {
		if c == sortBy {
			column = c
			break
		}
	}
	return column + " " + dir + ", id ASC"
}
