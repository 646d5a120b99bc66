package notifications

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/service/notify"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Handler exposes the notification center and its live SSE feed.
type Handler struct {
	hub *notify.Hub
}

// New creates the notifications handler.
func New(hub *notify.Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes mounts the notification routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Post("/notifications/{id}/read", h.handleMarkRead)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
	r.Delete("/notifications/{id}", h.handleDelete)
	r.Get("/notifications/stream", h.handleStream)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"notifications": h.hub.List(limit)})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !h.hub.MarkRead(chi.URLParam(r, "id")) {
		utils.RespondError(w, http.StatusNotFound, "notification not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.hub.MarkAllRead()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Delete(chi.URLParam(r, "id")) {
		utils.RespondError(w, http.StatusNotFound, "notification not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleStream pushes notifications to the dashboard as they happen.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	log.Printf("[notify] opening stream for %s", r.RemoteAddr)
	utils.SendSSEChunk(w, flusher, map[string]any{
		"event":   "status",
		"message": "stream established",
	})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[notify] closing stream for %s", r.RemoteAddr)
			return
		case n, open := <-ch:
			if !open {
				return
			}
			utils.SendSSEChunk(w, flusher, n)
		}
	}
}
