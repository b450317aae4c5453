package api

import (
	"github.com/mattjoyce/feedbackd/internal/dispatch"
	"github.com/mattjoyce/feedbackd/internal/journal"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Feedback      string `json:"feedback"`
	Playing       bool   `json:"playing"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	dispatch.Status
	Feedbacks         []string `json:"feedbacks"`
	ConfigFingerprint string   `json:"config_fingerprint,omitempty"`
	UptimeSeconds     int64    `json:"uptime_seconds"`
}

// FeedbackInfo describes one loadable feedback.
type FeedbackInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	Version     string `json:"version,omitempty"`
}

// JournalResponse is returned by GET /journal.
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}
