package agent

import (
	"fmt"
	"log"
	"strings"
	"time"

	callmodel "github.com/quietline/frontdesk/internal/model/call"
	"github.com/quietline/frontdesk/internal/store"
)

// Canned lines for the fixed parts of the conversation.
const (
	spamClosingLine  = "Thank you for calling. I'll direct you to our voicemail system. Have a great day!"
	transferHoldLine = "I'd be happy to connect you with one of our specialists. Please hold while I transfer your call."
	fallbackReply    = "I apologize, but I'm having trouble processing your request right now. Let me connect you with one of our team members who can assist you better."
	defaultGreeting  = "Hello! Thank you for calling. How can I help you today?"
)

// KnowledgeSource provides the active Q&A snippets.
type KnowledgeSource interface {
	ActiveKnowledge() []store.KnowledgeEntry
}

// SettingsSource resolves operator settings; missing keys yield "".
type SettingsSource interface {
	Setting(key string) string
}

// Notifier receives the engine's dashboard events. Implementations must not
// block.
type Notifier interface {
	NotifySpamDetected(phoneNumber, reason string)
	NotifyLeadQualified(phoneNumber string, leadScore int)
}

// Result is the engine's decision for one finalized utterance.
type Result struct {
	Reply          string
	ShouldTransfer bool
	CallComplete   bool
	LeadQualified  bool
	SpamDetected   bool
}

// Engine decides, per utterance, whether to end the call, transfer it, or
// keep talking. It owns no session state; all per-call state lives in the
// Conversation the orchestrator passes in.
type Engine struct {
	knowledge KnowledgeSource
	settings  SettingsSource
	notifier  Notifier
	now       func() time.Time
}

// New builds the conversational engine.
func New(knowledge KnowledgeSource, settings SettingsSource, notifier Notifier) *Engine {
	return &Engine{
		knowledge: knowledge,
		settings:  settings,
		notifier:  notifier,
		now:       time.Now,
	}
}

// ProcessMessage runs one caller utterance through the decision chain:
// spam check, information extraction, transfer intent, response generation,
// lead re-qualification. The conversation is mutated as a side effect
// (history appended, extracted fields and monotonic flags updated).
func (e *Engine) ProcessMessage(conv *callmodel.Conversation, utterance string) Result {
	conv.Append(callmodel.SpeakerCaller, utterance)

	if category, ok := matchSpam(utterance); ok {
		conv.SpamDetected = true
		conv.Append(callmodel.SpeakerAgent, spamClosingLine)
		e.notifier.NotifySpamDetected(conv.CallerNumber, "matched "+category+" pattern")
		return Result{
			Reply:        spamClosingLine,
			CallComplete: true,
			SpamDetected: true,
		}
	}

	// Extraction runs before the transfer decision is acted on, so details
	// from a transfer-triggering utterance still land in the call record.
	extract(conv, utterance)

	if _, ok := matchTransfer(utterance); ok || conv.TransferRequested {
		conv.TransferRequested = true
		conv.Append(callmodel.SpeakerAgent, transferHoldLine)
		return Result{
			Reply:          transferHoldLine,
			ShouldTransfer: true,
			CallComplete:   true,
			LeadQualified:  conv.LeadQualified,
		}
	}

	reply := e.respond(conv, utterance)
	conv.Append(callmodel.SpeakerAgent, reply)

	wasQualified := conv.LeadQualified
	e.updateQualification(conv)
	if !wasQualified && conv.LeadQualified {
		e.notifier.NotifyLeadQualified(conv.CallerNumber, LeadScore(conv))
	}

	return Result{
		Reply:         reply,
		LeadQualified: conv.LeadQualified,
	}
}

// respond never fails: any panic in response generation degrades to the
// fallback line offering a human instead of aborting the call.
func (e *Engine) respond(conv *callmodel.Conversation, utterance string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[agent] response generation failed for call %s: %v", conv.CallID, r)
			reply = fallbackReply
		}
	}()

	if answer, ok := e.searchKnowledge(utterance); ok {
		return personalize(conv, answer)
	}
	return e.contextualReply(conv, utterance)
}

// contextualReply is the fixed conversational ladder used when the knowledge
// base has nothing relevant.
func (e *Engine) contextualReply(conv *callmodel.Conversation, utterance string) string {
	if conv.CallerName == "" {
		return "Thank you for calling! I'd be happy to help you today. May I start by getting your name?"
	}

	if conv.ReasonForCall == "" {
		return fmt.Sprintf("Thank you, %s. What can I help you with today?", conv.CallerName)
	}

	if conv.CallerCompany == "" && isBusinessInquiry(utterance) {
		return "And what company are you with?"
	}

	if conv.LeadQualified {
		return fmt.Sprintf("Thank you for that information, %s. I have all the details I need. Let me connect you with one of our specialists who can help you with %s. Please hold for just a moment.",
			conv.CallerName, conv.ReasonForCall)
	}

	return "I understand. Let me see how I can best assist you with that. Can you tell me a bit more about what you're looking for?"
}

func personalize(conv *callmodel.Conversation, answer string) string {
	if conv.CallerName != "" && !strings.Contains(answer, conv.CallerName) {
		return fmt.Sprintf("%s Is there anything else I can help you with today, %s?", answer, conv.CallerName)
	}
	return answer
}

// updateQualification re-evaluates the lead after a non-terminal turn.
// Qualified means name, reason and a phone number are all known; the call's
// own caller id counts as the phone signal. The flag is monotonic.
func (e *Engine) updateQualification(conv *callmodel.Conversation) {
	hasName := conv.CallerName != ""
	hasReason := conv.ReasonForCall != ""
	hasPhone := conv.CallerPhone != "" || conv.CallerNumber != ""

	if hasName && hasReason && hasPhone {
		conv.LeadQualified = true
	}
}

// LeadScore weights the captured fields: name 25, company 25, phone 20,
// reason 30, capped at 100.
func LeadScore(conv *callmodel.Conversation) int {
	score := 0
	if conv.CallerName != "" {
		score += 25
	}
	if conv.CallerCompany != "" {
		score += 25
	}
	if conv.CallerPhone != "" || conv.CallerNumber != "" {
		score += 20
	}
	if conv.ReasonForCall != "" {
		score += 30
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Summary renders the one-line call summary stored in the log.
func (e *Engine) Summary(conv *callmodel.Conversation) string {
	parts := make([]string, 0, 4)
	if conv.CallerName != "" {
		parts = append(parts, "Caller: "+conv.CallerName)
	}
	if conv.CallerCompany != "" {
		parts = append(parts, "Company: "+conv.CallerCompany)
	}
	if conv.ReasonForCall != "" {
		parts = append(parts, "Reason: "+conv.ReasonForCall)
	}

	switch {
	case conv.LeadQualified:
		parts = append(parts, "Status: Qualified lead")
	case conv.SpamDetected:
		parts = append(parts, "Status: Spam call blocked")
	case conv.TransferRequested:
		parts = append(parts, "Status: Transferred to human")
	}

	return strings.Join(parts, " | ")
}

// Greeting returns the opening line for answered calls.
func (e *Engine) Greeting() string {
	if greeting := e.settings.Setting("greeting_message"); greeting != "" {
		return greeting
	}
	return defaultGreeting
}
