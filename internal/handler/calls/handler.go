package calls

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quietline/frontdesk/internal/store"
	"github.com/quietline/frontdesk/pkg/utils"
)

// Handler serves the persisted call history.
type Handler struct {
	store *store.Store
}

// New creates the call-log handler.
func New(st *store.Store) *Handler {
	return &Handler{store: st}
}

// RegisterRoutes mounts the call-log routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/calls", h.handleList)
	r.Get("/calls/{id}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.CallLogFilter{
		Status: r.URL.Query().Get("status"),
		Phone:  r.URL.Query().Get("phone"),
		Limit:  100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.store.CallLogs(r.Context(), filter)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load call logs")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"calls": logs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	callLog, err := h.store.CallLogByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "call not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load call")
		return
	}

	utils.RespondJSON(w, http.StatusOK, callLog)
}
