package poster

import (
	"fmt"
	"net/http"
)

// APIError is a failed platform API call. Rate limits and server-side
// errors are retriable; auth failures and duplicate-content rejections
// are not.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api status %d: %s", e.StatusCode, e.Detail)
}

// Retriable reports whether retrying the call can help.
func (e *APIError) Retriable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500
}
