package call

import (
	"strings"
	"sync"
	"time"

	callmodel "github.com/quietline/frontdesk/internal/model/call"
)

// session is one in-flight call. The mutex serializes every event for this
// call id, and is held across telephony and persistence I/O so a late event
// queues behind an in-progress turn instead of racing it. Events for other
// calls never contend on it.
type session struct {
	mu sync.Mutex

	callControlID string
	callSessionID string
	callerNumber  string

	startedAt    time.Time
	lastActivity time.Time

	buffer strings.Builder
	active bool

	conv *callmodel.Conversation
}

func newSession(callControlID, callSessionID, callerNumber string, now time.Time) *session {
	return &session{
		callControlID: callControlID,
		callSessionID: callSessionID,
		callerNumber:  callerNumber,
		startedAt:     now,
		lastActivity:  now,
		active:        true,
		conv:          callmodel.NewConversation(callControlID, callerNumber),
	}
}

// info snapshots the session. Callers must hold the session mutex.
func (s *session) info() callmodel.SessionInfo {
	return callmodel.SessionInfo{
		CallControlID:     s.callControlID,
		CallSessionID:     s.callSessionID,
		CallerNumber:      s.callerNumber,
		CallerName:        s.conv.CallerName,
		StartedAt:         s.startedAt,
		LastActivity:      s.lastActivity,
		LeadQualified:     s.conv.LeadQualified,
		SpamDetected:      s.conv.SpamDetected,
		TransferRequested: s.conv.TransferRequested,
	}
}

// outcome describes the finished call for the call-ended notification.
func (s *session) outcome() string {
	switch {
	case s.conv.SpamDetected:
		return "spam blocked"
	case s.conv.TransferRequested:
		return "transferred"
	case s.conv.LeadQualified:
		return "lead qualified"
	default:
		return "completed"
	}
}

// status resolves the persisted call-log status. Spam wins over transferred,
// which wins over answered.
func (s *session) status() string {
	switch {
	case s.conv.SpamDetected:
		return "spam"
	case s.conv.TransferRequested:
		return "transferred"
	default:
		return "answered"
	}
}
