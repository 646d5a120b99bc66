package call

import (
	"strings"
	"time"
)

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Turn is a single utterance in the conversation history.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-call state the conversational engine reads and
// mutates. It is owned by exactly one call session; the session's lock
// serializes all access.
//
// CallerName, CallerCompany, CallerPhone and ReasonForCall are set at most
// once: the first successful extraction wins. LeadQualified, SpamDetected and
// TransferRequested are monotonic within a call and never flip back to false.
type Conversation struct {
	CallID       string
	CallerNumber string

	CallerName    string
	CallerCompany string
	CallerPhone   string
	ReasonForCall string

	LeadQualified     bool
	SpamDetected      bool
	TransferRequested bool

	History []Turn
}

// NewConversation creates the empty conversation state for a call.
func NewConversation(callID, callerNumber string) *Conversation {
	return &Conversation{
		CallID:       callID,
		CallerNumber: callerNumber,
		History:      make([]Turn, 0, 16),
	}
}

// Append records a turn at the end of the history.
func (c *Conversation) Append(speaker Speaker, text string) {
	c.History = append(c.History, Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Transcript renders the full conversation for the call log.
func (c *Conversation) Transcript() string {
	lines := make([]string, 0, len(c.History))
	for _, turn := range c.History {
		lines = append(lines, strings.ToUpper(string(turn.Speaker))+": "+turn.Text)
	}
	return strings.Join(lines, "\n\n")
}
