package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExceeded is returned (wrapped in *ExceededError) when a key
// has been hit more often than allowed within its window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ExceededError reports which key tripped the limit and how long until its
// window resets.
type ExceededError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: key %q, retry after %s", ErrRateLimitExceeded, e.Key, e.RetryAfter)
}

func (e *ExceededError) Unwrap() error { return ErrRateLimitExceeded }

// Limiter is a fixed-window hit counter. Each key's window starts at its
// first hit and lasts window; later hits in the same window do not extend
// it. Hit increments the counter and fails once the count exceeds max.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration, max int) error
}

// Policy is a window/max pair.
type Policy struct {
	Window time.Duration
	Max    int
}

var (
	// DefaultPolicy applies when a caller has no specific policy, such as
	// profile saves.
	DefaultPolicy = Policy{Window: 60 * time.Second, Max: 5}

	// QuizStartPolicy guards quiz starts, which may trigger generation.
	QuizStartPolicy = Policy{Window: 60 * time.Second, Max: 3}
)

// Apply hits l with the policy's window and max.
func (p Policy) Apply(ctx context.Context, l Limiter, key string) error {
	return l.Hit(ctx, key, p.Window, p.Max)
}

// QuizStartKey builds the limiter key for a quiz start by ip and user.
func QuizStartKey(ip, userID string) string {
	return ip + ":" + userID + ":start"
}

// ProfileKey builds the limiter key for profile saves by ip.
func ProfileKey(ip string) string {
	return ip + ":profile"
}
