package call

import "time"

// SessionInfo is a read-only snapshot of one in-flight call, used by the
// status API and the live monitor feed.
type SessionInfo struct {
	CallControlID     string    `json:"callControlId"`
	CallSessionID     string    `json:"callSessionId"`
	CallerNumber      string    `json:"callerNumber"`
	CallerName        string    `json:"callerName,omitempty"`
	StartedAt         time.Time `json:"startedAt"`
	LastActivity      time.Time `json:"lastActivity"`
	LeadQualified     bool      `json:"leadQualified"`
	SpamDetected      bool      `json:"spamDetected"`
	TransferRequested bool      `json:"transferRequested"`
}
