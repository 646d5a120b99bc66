package settings

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Handler exposes operator settings (business hours, transfer destination,
// voicemail greeting and so on).
type Handler struct {
	store *store.Store
}

// New creates the settings handler.
func New(st *store.Store) *Handler {
	return &Handler{store: st}
}

// RegisterRoutes mounts the settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleList)
	r.Put("/settings/{key}", h.handleSet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.AllSettings(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		utils.RespondError(w, http.StatusBadRequest, "setting key is required")
		return
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.SetSetting(r.Context(), key, payload.Value); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save setting")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
