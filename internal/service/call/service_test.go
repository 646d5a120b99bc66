package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietline/frontdesk/internal/metrics"
	callmodel "github.com/quietline/frontdesk/internal/model/call"
	"github.com/quietline/frontdesk/internal/service/agent"
	"github.com/quietline/frontdesk/internal/store"
)

type fakeTelephony struct {
	mu sync.Mutex

	answers      int
	hangups      int
	startedTrans int
	stoppedTrans int
	voicemails   int
	speaks       []string
	transfers    []string

	answerErr   error
	speakErr    error
	transferErr error

	// When set, Answer signals answerStarted and then blocks on answerGate,
	// letting tests interleave other events with an in-flight answer.
	answerStarted chan struct{}
	answerGate    chan struct{}
}

func (f *fakeTelephony) Answer(ctx context.Context, callControlID string) error {
	f.mu.Lock()
	f.answers++
	err := f.answerErr
	started, gate := f.answerStarted, f.answerGate
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeTelephony) Hangup(ctx context.Context, callControlID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangups++
	return nil
}

func (f *fakeTelephony) StartTranscription(ctx context.Context, callControlID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedTrans++
	return nil
}

func (f *fakeTelephony) StopTranscription(ctx context.Context, callControlID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedTrans++
	return nil
}

func (f *fakeTelephony) Speak(ctx context.Context, callControlID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaks = append(f.speaks, text)
	return f.speakErr
}

func (f *fakeTelephony) Transfer(ctx context.Context, callControlID, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, to)
	return f.transferErr
}

func (f *fakeTelephony) SendToVoicemail(ctx context.Context, callControlID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voicemails++
	return nil
}

type scriptedEngine struct {
	open       bool
	results    []agent.Result
	utterances []string
}

func (e *scriptedEngine) ProcessMessage(conv *callmodel.Conversation, utterance string) agent.Result {
	e.utterances = append(e.utterances, utterance)
	if len(e.results) == 0 {
		return agent.Result{Reply: "noted"}
	}
	r := e.results[0]
	e.results = e.results[1:]
	return r
}

func (e *scriptedEngine) BusinessOpen() bool                          { return e.open }
func (e *scriptedEngine) AfterHoursMessage() string                   { return "we are closed" }
func (e *scriptedEngine) Greeting() string                            { return "hello caller" }
func (e *scriptedEngine) Summary(conv *callmodel.Conversation) string { return "summary" }

type fakeRecorder struct {
	mu       sync.Mutex
	contacts map[string]*store.Contact
	created  []store.Contact
	logs     []store.CallLog
}

func (r *fakeRecorder) ContactByPhone(ctx context.Context, phone string) (*store.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts[phone], nil
}

func (r *fakeRecorder) CreateContact(ctx context.Context, c store.Contact) (*store.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = int64(len(r.created) + 1)
	r.created = append(r.created, c)
	return &c, nil
}

func (r *fakeRecorder) CreateCallLog(ctx context.Context, l store.CallLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return int64(len(r.logs)), nil
}

type fakeSettings map[string]string

func (f fakeSettings) Setting(key string) string { return f[key] }

type fakeNotifier struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeNotifier) NotifyCallEnded(phoneNumber string, duration time.Duration, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

type testDeps struct {
	telephony *fakeTelephony
	engine    *scriptedEngine
	recorder  *fakeRecorder
	settings  fakeSettings
	notifier  *fakeNotifier
}

func newTestService(t *testing.T, deps *testDeps) *Service {
	t.Helper()
	if deps.telephony == nil {
		deps.telephony = &fakeTelephony{}
	}
	if deps.engine == nil {
		deps.engine = &scriptedEngine{open: true}
	}
	if deps.recorder == nil {
		deps.recorder = &fakeRecorder{}
	}
	if deps.settings == nil {
		deps.settings = fakeSettings{}
	}
	if deps.notifier == nil {
		deps.notifier = &fakeNotifier{}
	}

	m := metrics.New(prometheus.NewRegistry())
	return NewService(deps.telephony, deps.engine, deps.recorder, deps.settings, deps.notifier, m, 30*time.Minute)
}

func TestHandleCallStartAnswersOnce(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-1", "cs-1", "+15551230001"))
	require.NoError(t, svc.HandleCallStart(ctx, "cc-1", "cs-1", "+15551230001"))

	assert.Equal(t, 1, deps.telephony.answers)
	assert.Equal(t, 1, deps.telephony.startedTrans)
	assert.Equal(t, []string{"hello caller"}, deps.telephony.speaks)
	assert.Len(t, svc.ActiveSessions(), 1)
}

func TestHandleCallStartAnswerFailure(t *testing.T) {
	deps := &testDeps{telephony: &fakeTelephony{answerErr: errors.New("boom")}}
	svc := newTestService(t, deps)

	err := svc.HandleCallStart(context.Background(), "cc-2", "cs-2", "+15551230002")

	require.Error(t, err)
	assert.Equal(t, 1, deps.telephony.hangups)
	assert.Empty(t, svc.ActiveSessions())
	assert.Empty(t, deps.recorder.logs)
}

func TestAnswerFailureAbandonsQueuedEvents(t *testing.T) {
	telephony := &fakeTelephony{
		answerErr:     errors.New("boom"),
		answerStarted: make(chan struct{}),
		answerGate:    make(chan struct{}),
	}
	deps := &testDeps{telephony: telephony}
	svc := newTestService(t, deps)
	ctx := context.Background()

	startDone := make(chan error, 1)
	go func() {
		startDone <- svc.HandleCallStart(ctx, "cc-race", "cs-race", "+15551230099")
	}()

	// The session is registered before Answer is issued, so a transcription
	// arriving now finds the session pointer and queues on its mutex.
	<-telephony.answerStarted
	transcribeDone := make(chan error, 1)
	go func() {
		transcribeDone <- svc.ProcessTranscription(ctx, "cc-race", "hello there", true)
	}()
	time.Sleep(50 * time.Millisecond)

	close(telephony.answerGate)
	require.Error(t, <-startDone)
	require.NoError(t, <-transcribeDone)

	assert.Empty(t, deps.engine.utterances, "engine must not run for an abandoned call")
	assert.Empty(t, telephony.speaks)
	assert.Empty(t, deps.recorder.logs)
	assert.Empty(t, deps.notifier.outcomes)
	assert.Empty(t, svc.ActiveSessions())
}

func TestHandleCallStartAfterHours(t *testing.T) {
	deps := &testDeps{engine: &scriptedEngine{open: false}}
	svc := newTestService(t, deps)

	require.NoError(t, svc.HandleCallStart(context.Background(), "cc-3", "cs-3", "+15551230003"))

	assert.Equal(t, []string{"we are closed"}, deps.telephony.speaks)
	assert.Equal(t, 1, deps.telephony.voicemails)
	// The session survives until the provider's hangup or the reaper.
	assert.Len(t, svc.ActiveSessions(), 1)
}

func TestProcessTranscriptionBuffersUntilFinal(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-4", "cs-4", "+15551230004"))

	require.NoError(t, svc.ProcessTranscription(ctx, "cc-4", "my name is", false))
	assert.Empty(t, deps.engine.utterances)

	require.NoError(t, svc.ProcessTranscription(ctx, "cc-4", "John Smith", true))
	require.Len(t, deps.engine.utterances, 1)
	assert.Equal(t, "my name is John Smith", deps.engine.utterances[0])
	assert.Equal(t, []string{"hello caller", "noted"}, deps.telephony.speaks)
}

func TestProcessTranscriptionUnknownCall(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)

	require.NoError(t, svc.ProcessTranscription(context.Background(), "cc-unknown", "hello", true))
	assert.Empty(t, deps.engine.utterances)
}

func TestProcessTranscriptionEmptyFinal(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-5", "cs-5", "+15551230005"))
	require.NoError(t, svc.ProcessTranscription(ctx, "cc-5", "   ", true))

	assert.Empty(t, deps.engine.utterances)
	assert.Len(t, svc.ActiveSessions(), 1)
}

func TestSpamCompletionHangsUpAndPersists(t *testing.T) {
	engine := &scriptedEngine{
		open:    true,
		results: []agent.Result{{Reply: "goodbye", CallComplete: true, SpamDetected: true}},
	}
	deps := &testDeps{engine: engine}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-6", "cs-6", "+15551230006"))
	require.NoError(t, svc.ProcessTranscription(ctx, "cc-6", "free cruise offer", true))

	assert.Equal(t, 1, deps.telephony.hangups)
	assert.Equal(t, 1, deps.telephony.stoppedTrans)
	assert.Empty(t, svc.ActiveSessions())
	require.Len(t, deps.recorder.logs, 1)
	assert.Equal(t, "cs-6", deps.recorder.logs[0].CallID)
	require.Len(t, deps.notifier.outcomes, 1)
}

func TestTransferWithoutDestinationFallsBackToVoicemail(t *testing.T) {
	engine := &scriptedEngine{
		open:    true,
		results: []agent.Result{{Reply: "hold on", CallComplete: true, ShouldTransfer: true}},
	}
	deps := &testDeps{engine: engine}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-7", "cs-7", "+15551230007"))
	require.NoError(t, svc.ProcessTranscription(ctx, "cc-7", "let me talk to a person", true))

	assert.Empty(t, deps.telephony.transfers)
	assert.Equal(t, 1, deps.telephony.voicemails)
	assert.Empty(t, svc.ActiveSessions())
	require.Len(t, deps.recorder.logs, 1)
}

func TestTransferUsesConfiguredDestination(t *testing.T) {
	engine := &scriptedEngine{
		open:    true,
		results: []agent.Result{{Reply: "hold on", CallComplete: true, ShouldTransfer: true}},
	}
	deps := &testDeps{
		engine:   engine,
		settings: fakeSettings{"transfer_sip_endpoint": "sip:team@example.com"},
	}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-8", "cs-8", "+15551230008"))
	require.NoError(t, svc.ProcessTranscription(ctx, "cc-8", "let me talk to a person", true))

	assert.Equal(t, []string{"sip:team@example.com"}, deps.telephony.transfers)
	assert.Zero(t, deps.telephony.voicemails)
	assert.Empty(t, svc.ActiveSessions())
}

func TestTransferFailureFallsBackToVoicemail(t *testing.T) {
	engine := &scriptedEngine{
		open:    true,
		results: []agent.Result{{Reply: "hold on", CallComplete: true, ShouldTransfer: true}},
	}
	deps := &testDeps{
		engine:    engine,
		telephony: &fakeTelephony{transferErr: errors.New("busy")},
		settings:  fakeSettings{"transfer_sip_endpoint": "sip:team@example.com"},
	}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-9", "cs-9", "+15551230009"))
	require.NoError(t, svc.ProcessTranscription(ctx, "cc-9", "let me talk to a person", true))

	assert.Len(t, deps.telephony.transfers, 1)
	assert.Equal(t, 1, deps.telephony.voicemails)
	assert.Empty(t, svc.ActiveSessions())
}

func TestHandleCallEndIsIdempotent(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-10", "cs-10", "+15551230010"))
	svc.HandleCallEnd(ctx, "cc-10")
	svc.HandleCallEnd(ctx, "cc-10")

	assert.Len(t, deps.recorder.logs, 1)
	assert.Len(t, deps.notifier.outcomes, 1)
	assert.Empty(t, svc.ActiveSessions())
}

func TestFinalizeCreatesContactForNamedCaller(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-11", "cs-11", "+15551230011"))

	sess := svc.lookup("cc-11")
	require.NotNil(t, sess)
	sess.mu.Lock()
	sess.conv.CallerName = "John Smith"
	sess.conv.CallerCompany = "Acme Corp"
	sess.mu.Unlock()

	svc.HandleCallEnd(ctx, "cc-11")

	require.Len(t, deps.recorder.created, 1)
	assert.Equal(t, "John Smith", deps.recorder.created[0].Name)
	assert.Equal(t, "+15551230011", deps.recorder.created[0].PhoneNumber)
	require.Len(t, deps.recorder.logs, 1)
	require.NotNil(t, deps.recorder.logs[0].ContactID)
}

func TestFinalizeSkipsContactWithoutName(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-12", "cs-12", "+15551230012"))
	svc.HandleCallEnd(ctx, "cc-12")

	assert.Empty(t, deps.recorder.created)
	require.Len(t, deps.recorder.logs, 1)
	assert.Nil(t, deps.recorder.logs[0].ContactID)
}

func TestCleanupReapsIdleSessions(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-13", "cs-13", "+15551230013"))
	require.NoError(t, svc.HandleCallStart(ctx, "cc-14", "cs-14", "+15551230014"))

	// Age only the first session past the idle threshold.
	sess := svc.lookup("cc-13")
	require.NotNil(t, sess)
	sess.mu.Lock()
	sess.lastActivity = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	svc.CleanupInactiveSessions()

	remaining := svc.ActiveSessions()
	require.Len(t, remaining, 1)
	assert.Equal(t, "cc-14", remaining[0].CallControlID)
	assert.Equal(t, 1, deps.telephony.hangups)
	assert.Len(t, deps.recorder.logs, 1)
}

func TestSpeakFailureTriggersRecovery(t *testing.T) {
	telephony := &fakeTelephony{}
	deps := &testDeps{telephony: telephony}
	svc := newTestService(t, deps)
	ctx := context.Background()

	require.NoError(t, svc.HandleCallStart(ctx, "cc-15", "cs-15", "+15551230015"))

	// Fail every Speak from now on; the reply, the apology and the
	// no-destination apology all fail, but recovery still finalizes.
	telephony.mu.Lock()
	telephony.speakErr = errors.New("media down")
	telephony.mu.Unlock()

	require.NoError(t, svc.ProcessTranscription(ctx, "cc-15", "hello there", true))

	assert.Empty(t, svc.ActiveSessions())
	assert.Equal(t, 1, deps.telephony.voicemails)
	require.Len(t, deps.recorder.logs, 1)
}
