package engage

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen keeps caller-chosen ids out of logs when they are unreasonably long.
const maxRequestIDLen = 128

// RequestIDFromRequest returns the caller's X-Request-ID, or a fresh UUID.
func RequestIDFromRequest(r *http.Request) string {
	var id string
	if r != nil {
		id = strings.TrimSpace(r.Header.Get(RequestIDHeader))
	}
	if id == "" || len(id) > maxRequestIDLen {
		id = uuid.NewString()
	}
	return id
}
