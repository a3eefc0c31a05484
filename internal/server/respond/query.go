package respond

import (
	"net/http"
	"strconv"

	"soc-portal/internal/apperr"
)

// Page parses limit and offset query parameters. limit defaults to def and is capped at limitMax.
func Page(r *http.Request, def, limitMax int) (limit, offset int, err error) {
	limit, offset = def, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n <= 0 {
			return 0, 0, apperr.Validation("limit must be a positive integer")
		}
		limit = min(n, limitMax)
	}
	if v := q.Get("offset"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return 0, 0, apperr.Validation("offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}
