package telnyx

// Webhook event types delivered by the provider. Only initiated, hangup and
// transcription drive the call orchestrator; the rest are acknowledged and
// otherwise ignored.
const (
	EventCallInitiated  = "call.initiated"
	EventCallAnswered   = "call.answered"
	EventCallHangup     = "call.hangup"
	EventTranscription  = "call.transcription"
	EventSpeakEnded     = "call.speak.ended"
	EventPlaybackEnded  = "call.playback.ended"
	EventRecordingSaved = "call.recording.saved"
	EventDTMFReceived   = "call.dtmf.received"
)

// DirectionIncoming marks an inbound call leg on call.initiated events.
const DirectionIncoming = "incoming"

// Event is the webhook payload shape shared by all call events. Fields not
// relevant to a given event type are simply zero.
type Event struct {
	EventType     string  `json:"event_type"`
	CallControlID string  `json:"call_control_id"`
	CallLegID     string  `json:"call_leg_id,omitempty"`
	CallSessionID string  `json:"call_session_id,omitempty"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	Direction     string  `json:"direction,omitempty"`
	State         string  `json:"state,omitempty"`
	Transcript    string  `json:"transcript,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	IsFinal       bool    `json:"is_final,omitempty"`
	RecordingURL  string  `json:"recording_url,omitempty"`
	Digit         string  `json:"digit,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}
