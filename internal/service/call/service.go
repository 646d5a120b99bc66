package call

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/quietline/frontdesk/internal/metrics"
	callmodel "github.com/quietline/frontdesk/internal/model/call"
	"github.com/quietline/frontdesk/internal/service/agent"
	"github.com/quietline/frontdesk/internal/store"
)

// transferDestinationKey is the setting holding the phone number or SIP URI
// calls are transferred to.
const transferDestinationKey = "transfer_sip_endpoint"

const (
	processingApology     = "I apologize, but I'm having trouble processing your request. Let me connect you with one of our team members."
	noTransferApology     = "I apologize, but I'm unable to transfer your call at this time. Please call back later or leave a voicemail."
	transferFailedApology = "I'm sorry, but I'm unable to complete the transfer. Let me take a message for you."
	transferHoldLine      = "Please hold while I transfer your call."
)

// Telephony is the call-control plane the orchestrator drives.
type Telephony interface {
	Answer(ctx context.Context, callControlID string) error
	Hangup(ctx context.Context, callControlID string) error
	StartTranscription(ctx context.Context, callControlID string) error
	StopTranscription(ctx context.Context, callControlID string) error
	Speak(ctx context.Context, callControlID, text string) error
	Transfer(ctx context.Context, callControlID, to string) error
	SendToVoicemail(ctx context.Context, callControlID string) error
}

// ConversationEngine decides each turn and owns the scripted lines.
type ConversationEngine interface {
	ProcessMessage(conv *callmodel.Conversation, utterance string) agent.Result
	BusinessOpen() bool
	AfterHoursMessage() string
	Greeting() string
	Summary(conv *callmodel.Conversation) string
}

// Recorder is the persistence collaborator for terminal call records.
type Recorder interface {
	ContactByPhone(ctx context.Context, phone string) (*store.Contact, error)
	CreateContact(ctx context.Context, c store.Contact) (*store.Contact, error)
	CreateCallLog(ctx context.Context, l store.CallLog) (int64, error)
}

// SettingsSource resolves operator settings; missing keys yield "".
type SettingsSource interface {
	Setting(key string) string
}

// Notifier receives fire-and-forget call lifecycle events.
type Notifier interface {
	NotifyCallEnded(phoneNumber string, duration time.Duration, outcome string)
}

// Service owns every in-flight call. The registry map is guarded by its own
// lock, which is never held across I/O; per-call ordering comes from each
// session's mutex, so events for different calls proceed fully in parallel.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	telephony Telephony
	engine    ConversationEngine
	recorder  Recorder
	settings  SettingsSource
	notifier  Notifier
	metrics   *metrics.Metrics

	idleTimeout time.Duration
	now         func() time.Time
}

// NewService builds the call orchestrator.
func NewService(telephony Telephony, engine ConversationEngine, recorder Recorder, settings SettingsSource, notifier Notifier, m *metrics.Metrics, idleTimeout time.Duration) *Service {
	return &Service{
		sessions:    make(map[string]*session),
		telephony:   telephony,
		engine:      engine,
		recorder:    recorder,
		settings:    settings,
		notifier:    notifier,
		metrics:     m,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// HandleCallStart answers an incoming call and registers its session.
// Duplicate call.initiated deliveries for a known id are silent no-ops, so
// exactly one session and one answer command exist per call.
func (s *Service) HandleCallStart(ctx context.Context, callControlID, callSessionID, callerNumber string) error {
	s.mu.Lock()
	if _, exists := s.sessions[callControlID]; exists {
		s.mu.Unlock()
		return nil
	}
	sess := newSession(callControlID, callSessionID, callerNumber, s.now())
	s.sessions[callControlID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.telephony.Answer(ctx, callControlID); err != nil {
		log.Printf("[call] failed to answer %s: %v", callControlID, err)
		if hangupErr := s.telephony.Hangup(ctx, callControlID); hangupErr != nil {
			log.Printf("[call] best-effort hangup of %s failed: %v", callControlID, hangupErr)
		}
		// An event that already fetched the session pointer and is queued on
		// its mutex must find it dead, not run a turn on an unanswered call.
		sess.active = false
		s.remove(callControlID)
		return fmt.Errorf("answer call %s: %w", callControlID, err)
	}

	s.metrics.ActiveCalls.Inc()
	log.Printf("[call] answered %s from %s", callControlID, callerNumber)

	if err := s.telephony.StartTranscription(ctx, callControlID); err != nil {
		log.Printf("[call] failed to start transcription for %s: %v", callControlID, err)
	}

	if !s.engine.BusinessOpen() {
		if err := s.telephony.Speak(ctx, callControlID, s.engine.AfterHoursMessage()); err != nil {
			log.Printf("[call] after-hours message failed for %s: %v", callControlID, err)
		}
		if err := s.telephony.SendToVoicemail(ctx, callControlID); err != nil {
			log.Printf("[call] voicemail routing failed for %s: %v", callControlID, err)
		}
		// The session stays registered; the provider's hangup after the
		// voicemail recording (or the reaper) finalizes and persists it.
		return nil
	}

	if err := s.telephony.Speak(ctx, callControlID, s.engine.Greeting()); err != nil {
		log.Printf("[call] greeting failed for %s: %v", callControlID, err)
		if hangupErr := s.telephony.Hangup(ctx, callControlID); hangupErr != nil {
			log.Printf("[call] best-effort hangup of %s failed: %v", callControlID, hangupErr)
		}
		s.finalizeLocked(ctx, sess, "greeting failed")
	}
	return nil
}

// ProcessTranscription buffers a transcript fragment and, when the provider
// marks it final, runs exactly one engine turn over the accumulated buffer.
// Events for unknown or torn-down calls are silent no-ops.
func (s *Service) ProcessTranscription(ctx context.Context, callControlID, fragment string, isFinal bool) error {
	sess := s.lookup(callControlID)
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.active {
		return nil
	}

	sess.buffer.WriteString(fragment)
	sess.buffer.WriteString(" ")
	sess.lastActivity = s.now()

	if !isFinal {
		return nil
	}

	utterance := strings.TrimSpace(sess.buffer.String())
	sess.buffer.Reset()
	if utterance == "" {
		return nil
	}

	result := s.engine.ProcessMessage(sess.conv, utterance)

	if result.Reply != "" {
		if err := s.telephony.Speak(ctx, callControlID, result.Reply); err != nil {
			log.Printf("[call] speak failed for %s: %v", callControlID, err)
			s.recoverLocked(ctx, sess)
			return nil
		}
	}

	if !result.CallComplete {
		return nil
	}

	switch {
	case result.SpamDetected:
		if err := s.telephony.Hangup(ctx, callControlID); err != nil {
			log.Printf("[call] hangup failed for %s: %v", callControlID, err)
		}
	case result.ShouldTransfer:
		s.transferToHuman(ctx, callControlID)
	default:
		if err := s.telephony.Hangup(ctx, callControlID); err != nil {
			log.Printf("[call] hangup failed for %s: %v", callControlID, err)
		}
	}

	s.finalizeLocked(ctx, sess, "completed")
	return nil
}

// HandleCallEnd finalizes a call on the provider's hangup event. Duplicate
// or late hangups are no-ops.
func (s *Service) HandleCallEnd(ctx context.Context, callControlID string) {
	sess := s.lookup(callControlID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.finalizeLocked(ctx, sess, "hangup")
}

// CleanupInactiveSessions force-terminates sessions idle past the threshold.
// It runs on a timer and uses the same per-session serialization as normal
// termination, so it cannot race a late event for the same call.
func (s *Service) CleanupInactiveSessions() {
	ctx := context.Background()
	cutoff := s.now().Add(-s.idleTimeout)

	for _, sess := range s.snapshot() {
		sess.mu.Lock()
		if sess.active && sess.lastActivity.Before(cutoff) {
			log.Printf("[call] reaping inactive session %s (idle since %s)", sess.callControlID, sess.lastActivity.Format(time.RFC3339))
			if err := s.telephony.Hangup(ctx, sess.callControlID); err != nil {
				log.Printf("[call] hangup failed for %s: %v", sess.callControlID, err)
			}
			s.finalizeLocked(ctx, sess, "idle timeout")
		}
		sess.mu.Unlock()
	}
}

// ActiveSessions returns a snapshot of every in-flight call.
func (s *Service) ActiveSessions() []callmodel.SessionInfo {
	sessions := s.snapshot()
	infos := make([]callmodel.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.active {
			infos = append(infos, sess.info())
		}
		sess.mu.Unlock()
	}
	return infos
}

// recoverLocked is the fallback when an engine turn or telephony command
// fails mid-call: apologize, try to hand the caller to a human, then
// finalize. A call must never be left connected with no further action.
func (s *Service) recoverLocked(ctx context.Context, sess *session) {
	if err := s.telephony.Speak(ctx, sess.callControlID, processingApology); err != nil {
		log.Printf("[call] apology failed for %s: %v", sess.callControlID, err)
	}
	s.transferToHuman(ctx, sess.callControlID)
	s.finalizeLocked(ctx, sess, "error recovery")
}

// transferToHuman attempts the configured transfer and degrades to voicemail
// when no destination is configured or the transfer command fails. The
// caller is never left in silence.
func (s *Service) transferToHuman(ctx context.Context, callControlID string) {
	destination := s.settings.Setting(transferDestinationKey)
	if destination == "" {
		log.Printf("[call] no transfer destination configured, routing %s to voicemail", callControlID)
		if err := s.telephony.Speak(ctx, callControlID, noTransferApology); err != nil {
			log.Printf("[call] apology failed for %s: %v", callControlID, err)
		}
		if err := s.telephony.SendToVoicemail(ctx, callControlID); err != nil {
			log.Printf("[call] voicemail routing failed for %s: %v", callControlID, err)
		}
		return
	}

	if err := s.telephony.Speak(ctx, callControlID, transferHoldLine); err != nil {
		log.Printf("[call] hold message failed for %s: %v", callControlID, err)
	}

	if err := s.telephony.Transfer(ctx, callControlID, destination); err != nil {
		log.Printf("[call] transfer of %s to %s failed: %v", callControlID, destination, err)
		if err := s.telephony.Speak(ctx, callControlID, transferFailedApology); err != nil {
			log.Printf("[call] apology failed for %s: %v", callControlID, err)
		}
		if err := s.telephony.SendToVoicemail(ctx, callControlID); err != nil {
			log.Printf("[call] voicemail routing failed for %s: %v", callControlID, err)
		}
	}
}

// finalizeLocked persists the call record and removes the session. It is the
// single terminal path shared by completion, hangup, reaping and error
// recovery, and is idempotent: the active flag guards re-entry. Persistence
// failures are logged, never propagated; teardown must always finish.
// The session mutex must be held.
func (s *Service) finalizeLocked(ctx context.Context, sess *session, reason string) {
	if !sess.active {
		return
	}
	sess.active = false

	if err := s.telephony.StopTranscription(ctx, sess.callControlID); err != nil {
		log.Printf("[call] failed to stop transcription for %s: %v", sess.callControlID, err)
	}

	endedAt := s.now()
	duration := endedAt.Sub(sess.startedAt)
	conv := sess.conv

	var contactID *int64
	contact, err := s.recorder.ContactByPhone(ctx, sess.callerNumber)
	if err != nil {
		log.Printf("[call] contact lookup failed for %s: %v", sess.callerNumber, err)
	}
	if contact == nil && err == nil && conv.CallerName != "" {
		contact, err = s.recorder.CreateContact(ctx, store.Contact{
			Name:        conv.CallerName,
			Company:     conv.CallerCompany,
			PhoneNumber: sess.callerNumber,
			IsSpam:      conv.SpamDetected,
		})
		if err != nil {
			log.Printf("[call] contact creation failed for %s: %v", sess.callerNumber, err)
		}
	}
	if contact != nil {
		contactID = &contact.ID
	}

	status := sess.status()
	if _, err := s.recorder.CreateCallLog(ctx, store.CallLog{
		ContactID:          contactID,
		CallID:             sess.callSessionID,
		PhoneNumber:        sess.callerNumber,
		Direction:          "inbound",
		Status:             status,
		Duration:           int(duration.Seconds()),
		Transcript:         conv.Transcript(),
		Summary:            s.engine.Summary(conv),
		LeadQualified:      conv.LeadQualified,
		CallerName:         conv.CallerName,
		CallerCompany:      conv.CallerCompany,
		ReasonForCall:      conv.ReasonForCall,
		TransferredToHuman: conv.TransferRequested,
		StartedAt:          sess.startedAt,
		EndedAt:            &endedAt,
	}); err != nil {
		log.Printf("[call] failed to persist call log for %s: %v", sess.callControlID, err)
	}

	s.notifier.NotifyCallEnded(sess.callerNumber, duration, sess.outcome())
	s.metrics.CallsTotal.WithLabelValues(status).Inc()
	s.metrics.ActiveCalls.Dec()

	s.remove(sess.callControlID)
	log.Printf("[call] session %s ended: %s (%s, %ds)", sess.callControlID, reason, status, int(duration.Seconds()))
}

func (s *Service) lookup(callControlID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[callControlID]
}

func (s *Service) remove(callControlID string) {
	s.mu.Lock()
	delete(s.sessions, callControlID)
	s.mu.Unlock()
}

func (s *Service) snapshot() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
