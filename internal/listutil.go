package internal

import (
	"net/http"
	"strconv"
	"strings"

	"scheduling-api/internal/store"
)

// parseListParams parses limit, offset, q and sort for the project list.
// Defaults: limit=50 (max 200), offset=0. Sort keys are whitelisted by the store.
func parseListParams(r *http.Request) store.ProjectFilter {
	values := r.URL.Query()

	limit := 50
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > 200 {
				v = 200
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	return store.ProjectFilter{
		Query:  strings.TrimSpace(values.Get("q")),
		Sort:   strings.TrimSpace(values.Get("sort")),
		Limit:  limit,
		Offset: offset,
	}
}
