package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/sunwardhq/helpdesk/internal/conversation"
	"github.com/sunwardhq/helpdesk/internal/log"
)

// conversationHandler exposes conversation CRUD over the Store contract.
type conversationHandler struct {
	store  conversation.Store
	logger log.Logger
}

// list handles GET /api/v1/conversations.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	convos, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if convos == nil {
		convos = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convos)
}

// create handles POST /api/v1/conversations.
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	convo, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, convo)
}

// get handles GET /api/v1/conversations/{id}.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	convo, err := h.store.Get(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, convo)
}

// delete handles DELETE /api/v1/conversations/{id}.
func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseID extracts and validates the {id} path value.
func (h *conversationHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}
