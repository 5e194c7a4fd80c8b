package handler

import (
	"encoding/json"
	"net/http"

	"github.com/novamart/nova-storefront/internal/middleware"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/service"
)

// QAHandler answers site questions and accepts training documents.
type QAHandler struct {
	qa *service.QAService
}

// NewQAHandler creates a new QA handler.
func NewQAHandler(qa *service.QAService) *QAHandler {
	return &QAHandler{qa: qa}
}

// Ask handles POST /api/qa
func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req model.QARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateQuestion(req.Question); err != nil {
		writeJSON(w, http.StatusOK, model.QAResponse{Answers: []model.Answer{}})
		return
	}

	answers := h.qa.Answer(r.Context(), req.Question)
	writeJSON(w, http.StatusOK, model.QAResponse{Answers: answers})
}

// Train handles POST /api/qa/train
func (h *QAHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req model.TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.qa.Train(r.Context(), &req)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
