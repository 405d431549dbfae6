package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rule caps how many times an action may happen per key within a window
type Rule struct {
	Action string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether key may perform rule.Action now
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// UserKey builds the limiter key for an authenticated user
func UserKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func bucketKey(key string, rule Rule) string {
	return rule.Action + "|" + key
}

// ExceededError reports a denied Allow call and how long to wait
type ExceededError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter)
}
