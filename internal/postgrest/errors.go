package postgrest

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusError is returned when the backend answers with a status the
// operation does not accept.
type StatusError struct {
	Method string
	Table  string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.Table, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Table, e.Code, body)
}

// parseContentRange extracts the total from "0-9/42" or "*/0".
func parseContentRange(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("invalid content-range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range %q carries no total", header)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content-range %q: %w", header, err)
	}
	return n, nil
}
