package agent

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	callmodel "github.com/quietline/frontdesk/internal/model/call"
	agentsvc "github.com/quietline/frontdesk/internal/service/agent"
	"github.com/quietline/frontdesk/pkg/utils"
)

// monitorInterval is how often the live monitor pushes a session snapshot.
const monitorInterval = 2 * time.Second

// SessionSource exposes the in-flight call sessions.
type SessionSource interface {
	ActiveSessions() []callmodel.SessionInfo
}

// Handler exposes the agent tester and live session monitoring.
type Handler struct {
	knowledge agentsvc.KnowledgeSource
	settings  agentsvc.SettingsSource
	sessions  SessionSource
	upgrader  websocket.Upgrader
}

// New creates the agent handler.
func New(knowledge agentsvc.KnowledgeSource, settings agentsvc.SettingsSource, sessions SessionSource) *Handler {
	return &Handler{
		knowledge: knowledge,
		settings:  settings,
		sessions:  sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/agent/test", h.handleTest)
	r.Get("/agent/sessions", h.handleSessions)
	r.Get("/agent/monitor", h.handleMonitor)
}

// noopNotifier swallows engine events so test turns never reach the
// dashboard notification feed.
type noopNotifier struct{}

func (noopNotifier) NotifySpamDetected(phoneNumber, reason string)         {}
func (noopNotifier) NotifyLeadQualified(phoneNumber string, leadScore int) {}

// handleTest runs caller utterances through a detached engine so operators
// can preview agent behavior without placing a call.
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages []string `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.Messages) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "at least one message is required")
		return
	}

	engine := agentsvc.New(h.knowledge, h.settings, noopNotifier{})
	conv := callmodel.NewConversation("test", "")

	type turn struct {
		Message        string `json:"message"`
		Reply          string `json:"reply"`
		ShouldTransfer bool   `json:"shouldTransfer"`
		CallComplete   bool   `json:"callComplete"`
		SpamDetected   bool   `json:"spamDetected"`
		LeadQualified  bool   `json:"leadQualified"`
	}

	turns := make([]turn, 0, len(payload.Messages))
	for _, msg := range payload.Messages {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			continue
		}
		result := engine.ProcessMessage(conv, msg)
		turns = append(turns, turn{
			Message:        msg,
			Reply:          result.Reply,
			ShouldTransfer: result.ShouldTransfer,
			CallComplete:   result.CallComplete,
			SpamDetected:   result.SpamDetected,
			LeadQualified:  result.LeadQualified,
		})
		if result.CallComplete {
			break
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"turns":     turns,
		"leadScore": agentsvc.LeadScore(conv),
		"extracted": map[string]string{
			"callerName":    conv.CallerName,
			"callerCompany": conv.CallerCompany,
			"callerPhone":   conv.CallerPhone,
			"reasonForCall": conv.ReasonForCall,
		},
	})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.ActiveSessions()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleMonitor streams session snapshots to the dashboard over a websocket.
func (h *Handler) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[agent] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[agent] monitor connected from %s", r.RemoteAddr)

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("[agent] monitor disconnected from %s", r.RemoteAddr)
			return
		case <-ticker.C:
			sessions := h.sessions.ActiveSessions()
			if err := conn.WriteJSON(map[string]any{
				"type":     "sessions",
				"count":    len(sessions),
				"sessions": sessions,
			}); err != nil {
				log.Printf("[agent] monitor write failed: %v", err)
				return
			}
		}
	}
}
