package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	callmodel "github.com/quietline/frontdesk/internal/model/call"
	"github.com/quietline/frontdesk/internal/store"
)

type fakeSettings map[string]string

func (f fakeSettings) Setting(key string) string { return f[key] }

type fakeKnowledge []store.KnowledgeEntry

func (f fakeKnowledge) ActiveKnowledge() []store.KnowledgeEntry { return f }

type fakeNotifier struct {
	spamReasons []string
	leadScores  []int
}

func (f *fakeNotifier) NotifySpamDetected(phoneNumber, reason string) {
	f.spamReasons = append(f.spamReasons, reason)
}

func (f *fakeNotifier) NotifyLeadQualified(phoneNumber string, leadScore int) {
	f.leadScores = append(f.leadScores, leadScore)
}

func newTestEngine(knowledge fakeKnowledge, settings fakeSettings, notifier *fakeNotifier) *Engine {
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	return New(knowledge, settings, notifier)
}

func TestSpamDetectionEndsCall(t *testing.T) {
	notifier := &fakeNotifier{}
	engine := newTestEngine(nil, fakeSettings{}, notifier)
	conv := callmodel.NewConversation("cc-1", "+15551230001")

	result := engine.ProcessMessage(conv, "Hi, we're conducting a brief survey about your energy bill")

	assert.True(t, result.SpamDetected)
	assert.True(t, result.CallComplete)
	assert.False(t, result.ShouldTransfer)
	assert.Equal(t, spamClosingLine, result.Reply)
	assert.True(t, conv.SpamDetected)
	require.Len(t, notifier.spamReasons, 1)
	assert.Contains(t, notifier.spamReasons[0], "survey")
}

func TestTransferIntentCompletesCall(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-2", "+15551230002")

	result := engine.ProcessMessage(conv, "I'd like to speak to a representative please")

	assert.True(t, result.ShouldTransfer)
	assert.True(t, result.CallComplete)
	assert.Equal(t, transferHoldLine, result.Reply)
	assert.True(t, conv.TransferRequested)
}

func TestExtractionRunsBeforeTransferDecision(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-3", "+15551230003")

	result := engine.ProcessMessage(conv, "This is Sarah and I have a problem with my invoice")

	assert.True(t, result.ShouldTransfer)
	assert.Equal(t, "Sarah", conv.CallerName)
}

func TestNameExtractionStopsAtCompany(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-4", "+15551230004")

	engine.ProcessMessage(conv, "Hello, this is John Smith from Acme Corp, how are you?")

	assert.Equal(t, "John Smith", conv.CallerName)
	assert.Equal(t, "Acme Corp", conv.CallerCompany)
}

func TestExtractionFirstMatchSticks(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-5", "+15551230005")

	engine.ProcessMessage(conv, "Hi, my name is Alice Johnson")
	engine.ProcessMessage(conv, "Actually my name is Bob")

	assert.Equal(t, "Alice Johnson", conv.CallerName)
}

func TestQualificationUsesCallerID(t *testing.T) {
	notifier := &fakeNotifier{}
	engine := newTestEngine(nil, fakeSettings{}, notifier)
	conv := callmodel.NewConversation("cc-6", "+15551230006")

	result := engine.ProcessMessage(conv, "My name is John Smith and I'm calling about your landscaping services")

	assert.True(t, result.LeadQualified)
	assert.True(t, conv.LeadQualified)
	assert.Equal(t, "John Smith", conv.CallerName)
	assert.Equal(t, "your landscaping services", conv.ReasonForCall)
	require.Len(t, notifier.leadScores, 1)
}

func TestQualificationNotifiesOnce(t *testing.T) {
	notifier := &fakeNotifier{}
	engine := newTestEngine(nil, fakeSettings{}, notifier)
	conv := callmodel.NewConversation("cc-7", "+15551230007")

	engine.ProcessMessage(conv, "My name is Jane Doe and I'm interested in lawn care")
	engine.ProcessMessage(conv, "Yes, the big lawn behind my house")

	assert.True(t, conv.LeadQualified)
	assert.Len(t, notifier.leadScores, 1)
}

func TestLeadScoreWeights(t *testing.T) {
	conv := callmodel.NewConversation("cc-8", "")
	assert.Equal(t, 0, LeadScore(conv))

	conv.CallerName = "Jane"
	assert.Equal(t, 25, LeadScore(conv))

	conv.CallerCompany = "Acme Corp"
	assert.Equal(t, 50, LeadScore(conv))

	conv.CallerPhone = "555-123-4567"
	assert.Equal(t, 70, LeadScore(conv))

	conv.ReasonForCall = "new roof"
	assert.Equal(t, 100, LeadScore(conv))
}

func TestKnowledgeAnswerAboveThreshold(t *testing.T) {
	knowledge := fakeKnowledge{
		{Question: "What are your business hours", Answer: "We're open 9 to 6, Monday through Friday.", IsActive: true},
	}
	engine := newTestEngine(knowledge, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-9", "+15551230009")

	result := engine.ProcessMessage(conv, "what are your hours")

	assert.Equal(t, "We're open 9 to 6, Monday through Friday.", result.Reply)
}

func TestKnowledgeAnswerPersonalized(t *testing.T) {
	knowledge := fakeKnowledge{
		{Question: "What are your business hours", Answer: "We're open 9 to 6.", IsActive: true},
	}
	engine := newTestEngine(knowledge, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-10", "+15551230010")
	conv.CallerName = "Jane"

	result := engine.ProcessMessage(conv, "what are your hours")

	assert.Contains(t, result.Reply, "We're open 9 to 6.")
	assert.Contains(t, result.Reply, "Jane")
}

func TestKnowledgeAnswerNamingCallerNotPersonalized(t *testing.T) {
	knowledge := fakeKnowledge{
		{Question: "What are your business hours", Answer: "Ask for Jane at the front desk about our hours.", IsActive: true},
	}
	engine := newTestEngine(knowledge, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-16", "+15551230016")
	conv.CallerName = "Jane"

	result := engine.ProcessMessage(conv, "what are your hours")

	// The answer already names the caller; no personal tail is appended.
	assert.Equal(t, "Ask for Jane at the front desk about our hours.", result.Reply)
}

func TestConversationalLadder(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	conv := callmodel.NewConversation("cc-11", "")

	result := engine.ProcessMessage(conv, "Hello there")
	assert.Contains(t, result.Reply, "getting your name")

	result = engine.ProcessMessage(conv, "My name is Alice")
	assert.Contains(t, result.Reply, "Alice")
	assert.Contains(t, result.Reply, "What can I help you with")
}

func TestSimilarityScoring(t *testing.T) {
	assert.InDelta(t, 0.8, similarity("what are your hours", "what are your business hours"), 0.001)
	assert.Zero(t, similarity("", "anything"))
	assert.Zero(t, similarity("xyz abc", "completely different words"))
}

func TestBusinessOpenDefaults(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)

	// Monday 10:00 local time.
	engine.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local) }
	assert.True(t, engine.BusinessOpen())

	// Monday 19:00 is past closing.
	engine.now = func() time.Time { return time.Date(2025, 3, 10, 19, 0, 0, 0, time.Local) }
	assert.False(t, engine.BusinessOpen())

	// Sunday is not a business day.
	engine.now = func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, time.Local) }
	assert.False(t, engine.BusinessOpen())
}

func TestBusinessOpenConfigured(t *testing.T) {
	settings := fakeSettings{
		"business_hours_start": "8",
		"business_hours_end":   "20",
		"business_days":        "monday,saturday",
	}
	engine := newTestEngine(nil, settings, nil)

	// Saturday 19:00 is inside the configured window.
	engine.now = func() time.Time { return time.Date(2025, 3, 8, 19, 0, 0, 0, time.Local) }
	assert.True(t, engine.BusinessOpen())

	// Tuesday is not configured.
	engine.now = func() time.Time { return time.Date(2025, 3, 11, 10, 0, 0, 0, time.Local) }
	assert.False(t, engine.BusinessOpen())
}

func TestAfterHoursMessage(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{
		"business_hours_start": "8:00 AM",
		"business_hours_end":   "5:00 PM",
	}, nil)

	msg := engine.AfterHoursMessage()
	assert.Contains(t, msg, "8:00 AM")
	assert.Contains(t, msg, "5:00 PM")
}

func TestGreeting(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)
	assert.Equal(t, defaultGreeting, engine.Greeting())

	engine = newTestEngine(nil, fakeSettings{"greeting_message": "Welcome to Quietline!"}, nil)
	assert.Equal(t, "Welcome to Quietline!", engine.Greeting())
}

func TestSummary(t *testing.T) {
	engine := newTestEngine(nil, fakeSettings{}, nil)

	conv := callmodel.NewConversation("cc-12", "+15551230012")
	conv.CallerName = "John Smith"
	conv.CallerCompany = "Acme Corp"
	conv.ReasonForCall = "landscaping"
	conv.LeadQualified = true

	assert.Equal(t, "Caller: John Smith | Company: Acme Corp | Reason: landscaping | Status: Qualified lead", engine.Summary(conv))

	spam := callmodel.NewConversation("cc-13", "+15551230013")
	spam.SpamDetected = true
	assert.Equal(t, "Status: Spam call blocked", engine.Summary(spam))
}

func TestPhoneExtraction(t *testing.T) {
	conv := callmodel.NewConversation("cc-14", "")
	extract(conv, "You can reach me at 555-123-4567")
	assert.Equal(t, "555-123-4567", conv.CallerPhone)

	conv = callmodel.NewConversation("cc-15", "")
	extract(conv, "Call me back at (555) 123-4567 please")
	assert.Equal(t, "(555) 123-4567", conv.CallerPhone)
}
