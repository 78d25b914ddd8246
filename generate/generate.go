// Package generate asks a completion endpoint for command suggestions and
// cleans the free-text reply into a list of candidates.
package generate

import (
	"fmt"
	"time"
)

// Options configures a completion backend.
type Options struct {
	// Endpoint is the full request URL, e.g.
	// https://api.openai.com/v1/chat/completions.
	Endpoint    string
	APIKey      string
	Model       string
	APIType     string // "chat_completions", "responses" or "openai_sdk"
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// APIError is returned when the endpoint answers with a non-success status.
// Body holds the raw error payload.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
