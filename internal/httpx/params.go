package httpx

import (
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
)

const maxLimit = 200

// queryLimit parses ?limit, falling back to def. Values outside 1..200 are rejected.
func queryLimit(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxLimit {
		return 0, apperr.Validation("limit must be between 1 and %d", maxLimit)
	}
	return n, nil
}
