// Package models holds the rate limit policies and check results.
package models

import (
	"time"
)

// Policy is a fixed allowance of requests per sliding window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// LoginPolicy guards the login endpoint.
	LoginPolicy = Policy{Name: "login", Limit: 5, Window: 15 * time.Minute}
	// APIPolicy guards every other /api route.
	APIPolicy = Policy{Name: "api", Limit: 100, Window: 15 * time.Minute}
)

// Key builds the bucket key for a client under this policy.
func (p Policy) Key(clientIP string) string {
	return "rl:" + p.Name + ":" + SanitizeKeySegment(clientIP)
}

// Result is the outcome of a single check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the body of a 429.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
