package knowledge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Handler manages the agent's Q&A snippets.
type Handler struct {
	store *store.Store
}

// New creates the knowledge-base handler.
func New(st *store.Store) *Handler {
	return &Handler{store: st}
}

// RegisterRoutes mounts the knowledge-base routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/knowledge", h.handleList)
	r.Post("/knowledge", h.handleCreate)
	r.Delete("/knowledge/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListKnowledge(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load knowledge base")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"knowledge": entries})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload.Question = strings.TrimSpace(payload.Question)
	payload.Answer = strings.TrimSpace(payload.Answer)
	if payload.Question == "" || payload.Answer == "" {
		utils.RespondError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	entry, err := h.store.AddKnowledge(r.Context(), payload.Question, payload.Answer)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save knowledge entry")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	if err := h.store.DeleteKnowledge(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "knowledge entry not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete knowledge entry")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
