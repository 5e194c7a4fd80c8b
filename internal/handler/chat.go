package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/novamart/nova-storefront/internal/middleware"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/service"
)

// ChatHandler serves the per-user conversation mirror.
type ChatHandler struct {
	chats *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Get handles GET /api/chat
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, h.chats.Get(r.Context(), userID))
}

// Replace handles POST /api/chat
func (h *ChatHandler) Replace(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req model.ReplaceChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chat := h.chats.Replace(r.Context(), userID, &req)
	writeJSON(w, http.StatusOK, model.AppendChatResponse{OK: true, Chat: chat})
}

// Append handles POST /api/chat/append
func (h *ChatHandler) Append(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req model.AppendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, e := range req.Item {
		if err := middleware.ValidateEntryText(e.Question); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	chat, err := h.chats.Append(r.Context(), userID, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.AppendChatResponse{OK: true, Chat: chat})
}

// MarkRead handles POST /api/chat/mark-read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chat := h.chats.MarkRead(r.Context(), userID)
	writeJSON(w, http.StatusOK, model.AppendChatResponse{OK: true, Chat: chat})
}

// DeleteEntry handles DELETE /api/chat/entry/{ts}
func (h *ChatHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	h.chats.DeleteEntry(r.Context(), userID, ts)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Export handles GET /api/chat/export
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	data, err := h.chats.Export(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="nova-chat-%s.json"`, userID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
