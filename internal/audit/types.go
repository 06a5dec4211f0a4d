// Package audit defines core types shared across the site-audit subsystems.
package audit

import (
	"encoding/json"
	"time"
)

// Status represents the externally visible lifecycle state of an audit job.
type Status string

// Status values reported to callers and persisted in the result cache.
const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Request captures a single audit submission.
type Request struct {
	Target string `json:"domain"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// CachedResult is the terminal record stored per job key. Freshness is
// decided by comparing ExpiresAt against the caller's clock; the store-level
// TTL is only a backstop.
type CachedResult struct {
	Key        string          `json:"job_key"`
	Status     Status          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ResultURL  string          `json:"result_url,omitempty"`
	ComputedAt time.Time       `json:"computed_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Fresh reports whether the result is still inside its expiry window at now.
func (r CachedResult) Fresh(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Ack is the immediate response to an audit submission.
type Ack struct {
	Status    Status     `json:"status"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ResultURL string     `json:"result_url,omitempty"`
}

// Notification is handed to the notifier collaborator; transport and
// formatting are the collaborator's concern.
type Notification struct {
	Key       string `json:"job_key"`
	Recipient string `json:"recipient"`
	Name      string `json:"name,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
