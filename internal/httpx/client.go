// Package httpx builds the HTTP client used for calls to outside services.
package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 90 * time.Second

// ExternalTimeout converts a configured number of seconds into a timeout,
// falling back to the default for non-positive values.
func ExternalTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultExternalHTTPTimeout
	}
	return time.Duration(seconds) * time.Second
}

// NewExternalClient returns a client for LLM and Slack calls. The timeout is an
// upper bound; request contexts still cancel earlier.
func NewExternalClient(timeoutSeconds int) *http.Client {
	return &http.Client{Timeout: ExternalTimeout(timeoutSeconds)}
}
