package api

import (
	"net/http"
	"strconv"

	v1 "github.com/jdholdren/popcorn/api/v1"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

// parsePaginationParams parses pagination parameters from an HTTP request.
// Supports offset-based pagination (?offset=20&limit=10).
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// page cuts the window described by limit and offset out of items.
func page[T any](items []T, limit, offset int) ([]T, v1.Pagination) {
	meta := v1.Pagination{Limit: limit, Offset: offset, Total: len(items)}
	if offset >= len(items) {
		return []T{}, meta
	}

	return items[offset:min(offset+limit, len(items))], meta
}
