package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/config"
	callmodel "github.com/quietline/frontdesk/internal/model/call"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Dialer places outbound test calls.
type Dialer interface {
	Configured() bool
	CreateOutboundCall(ctx context.Context, to, from, connectionID string) (json.RawMessage, error)
}

// SessionSource exposes the in-flight call sessions.
type SessionSource interface {
	ActiveSessions() []callmodel.SessionInfo
}

// Handler serves health and provider status endpoints.
type Handler struct {
	cfg       config.TelnyxConfig
	dialer    Dialer
	sessions  SessionSource
	startedAt time.Time
}

// New creates the status handler.
func New(cfg config.TelnyxConfig, dialer Dialer, sessions SessionSource) *Handler {
	return &Handler{
		cfg:       cfg,
		dialer:    dialer,
		sessions:  sessions,
		startedAt: time.Now(),
	}
}

// RegisterRoutes mounts the status routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/telnyx/status", h.handleTelnyxStatus)
	r.Post("/telnyx/test-call", h.handleTestCall)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"activeCalls": len(h.sessions.ActiveSessions()),
	})
}

func (h *Handler) handleTelnyxStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"configured":       h.dialer.Configured(),
		"webhookSecretSet": h.cfg.WebhookSecret != "",
		"connectionIdSet":  h.cfg.ConnectionID != "",
		"fromNumberSet":    h.cfg.FromNumber != "",
		"baseUrl":          h.cfg.BaseURL,
	})
}

// handleTestCall dials an outbound call so operators can verify the
// provider integration end to end.
func (h *Handler) handleTestCall(w http.ResponseWriter, r *http.Request) {
	if !h.dialer.Configured() {
		utils.RespondError(w, http.StatusServiceUnavailable, "telnyx api key not configured")
		return
	}
	if h.cfg.ConnectionID == "" || h.cfg.FromNumber == "" {
		utils.RespondError(w, http.StatusServiceUnavailable, "telnyx connection id and from number must be configured")
		return
	}

	var payload struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.To = strings.TrimSpace(payload.To)
	if payload.To == "" {
		utils.RespondError(w, http.StatusBadRequest, "destination number is required")
		return
	}

	raw, err := h.dialer.CreateOutboundCall(r.Context(), payload.To, h.cfg.FromNumber, h.cfg.ConnectionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to place test call")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "dialing",
		"call":   raw,
	})
}
