package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// classifyStatus turns an SDK error with an HTTP status into a backend
// error. 429 is a rate limit, other 4xx answers reject the request and
// everything else counts as an outage. header may be nil.
func classifyStatus(status int, header http.Header, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: retryAfter(header), Err: err}
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		return &ErrRequestRejected{Status: status, Err: err}
	default:
		return &ErrProviderUnavailable{Status: status, Err: err}
	}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// ErrRateLimit is a 429 from the backend. RetryAfter is zero when the
// backend gave no hint.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("LLM backend rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("LLM backend rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrRequestRejected is a 4xx other than 429: bad key, unknown model or an
// invalid request. Retrying cannot help.
type ErrRequestRejected struct {
	Status int
	Err    error
}

func (e *ErrRequestRejected) Error() string {
	return fmt.Sprintf("LLM backend rejected request (HTTP %d): %v", e.Status, e.Err)
}

func (e *ErrRequestRejected) Unwrap() error { return e.Err }

// ErrProviderUnavailable is a transport failure or 5xx. Status is zero
// when no HTTP answer arrived.
type ErrProviderUnavailable struct {
	Status int
	Err    error
}

func (e *ErrProviderUnavailable) Error() string {
	switch {
	case e.Err == nil:
		return "LLM backend unavailable"
	case e.Status > 0:
		return fmt.Sprintf("LLM backend unavailable (HTTP %d): %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("LLM backend unavailable: %v", e.Err)
	}
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrInvalidResponse carries model output that is not JSON or does not
// satisfy the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("LLM output failed validation: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means generation stopped at the token cap before
// the structured output was complete.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM output cut off at the max token limit"
}
