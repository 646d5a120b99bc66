package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/metrics"
	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/internal/telnyx"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Orchestrator is the slice of the call service the webhook router drives.
type Orchestrator interface {
	HandleCallStart(ctx context.Context, callControlID, callSessionID, callerNumber string) error
	ProcessTranscription(ctx context.Context, callControlID, fragment string, isFinal bool) error
	HandleCallEnd(ctx context.Context, callControlID string)
}

// SignatureVerifier authenticates inbound webhook deliveries.
type SignatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature, timestamp string) bool
}

// RecordingStore attaches late-arriving recording URLs to persisted calls.
type RecordingStore interface {
	AttachRecording(ctx context.Context, callID, url string) error
}

// Notifier receives dashboard events raised at the webhook boundary.
type Notifier interface {
	NotifyIncomingCall(phoneNumber, callID string)
	NotifySystemError(message string, details map[string]any)
}

// Handler translates provider webhook events into orchestrator calls.
type Handler struct {
	verifier   SignatureVerifier
	calls      Orchestrator
	recordings RecordingStore
	notifier   Notifier
	metrics    *metrics.Metrics
}

// New creates the webhook handler.
func New(verifier SignatureVerifier, calls Orchestrator, recordings RecordingStore, notifier Notifier, m *metrics.Metrics) *Handler {
	return &Handler{
		verifier:   verifier,
		calls:      calls,
		recordings: recordings,
		notifier:   notifier,
		metrics:    m,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/telnyx", h.handleEvent)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("Telnyx-Signature-Ed25519")
	timestamp := r.Header.Get("Telnyx-Timestamp")
	if !h.verifier.VerifyWebhookSignature(body, signature, timestamp) {
		log.Printf("[webhook] invalid signature from %s", r.RemoteAddr)
		utils.RespondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event telnyx.Event
	if err := json.Unmarshal(body, &event); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(event.EventType).Inc()
	log.Printf("[webhook] %s %s", event.EventType, event.CallControlID)

	ctx := r.Context()
	switch event.EventType {
	case telnyx.EventCallInitiated:
		// Outbound legs are not answered by the agent.
		if event.Direction == telnyx.DirectionIncoming {
			h.notifier.NotifyIncomingCall(event.From, event.CallControlID)
			if err := h.calls.HandleCallStart(ctx, event.CallControlID, event.CallSessionID, event.From); err != nil {
				log.Printf("[webhook] call start failed: %v", err)
				h.notifier.NotifySystemError("failed to start call session", map[string]any{
					"callControlId": event.CallControlID,
					"error":         err.Error(),
				})
			}
		}

	case telnyx.EventCallHangup:
		h.calls.HandleCallEnd(ctx, event.CallControlID)

	case telnyx.EventTranscription:
		if strings.TrimSpace(event.Transcript) != "" {
			if err := h.calls.ProcessTranscription(ctx, event.CallControlID, event.Transcript, event.IsFinal); err != nil {
				log.Printf("[webhook] transcription handling failed: %v", err)
			}
		}

	case telnyx.EventRecordingSaved:
		callID := event.CallSessionID
		if callID == "" {
			callID = event.CallControlID
		}
		if err := h.recordings.AttachRecording(ctx, callID, event.RecordingURL); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("[webhook] no call log for recording on %s", callID)
			} else {
				log.Printf("[webhook] failed to attach recording: %v", err)
			}
		}

	case telnyx.EventCallAnswered, telnyx.EventSpeakEnded, telnyx.EventPlaybackEnded:
		// Acknowledged, nothing to do.

	case telnyx.EventDTMFReceived:
		log.Printf("[webhook] dtmf %q on %s ignored", event.Digit, event.CallControlID)

	default:
		log.Printf("[webhook] unhandled event type %q", event.EventType)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
