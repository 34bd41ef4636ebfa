package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"conceptforge/internal/model"
	"conceptforge/internal/service"
)

// DecisionHandler serves the pending-queue endpoints the resolver consumes
type DecisionHandler struct {
	decisions *service.DecisionService
}

// NewDecisionHandler creates a new decision handler
func NewDecisionHandler(decisions *service.DecisionService) *DecisionHandler {
	return &DecisionHandler{decisions: decisions}
}

// PendingAt handles GET /v1/concepts/{conceptId}/pending/{index}
func (h *DecisionHandler) PendingAt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conceptID := vars["conceptId"]

	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}

	item, err := h.decisions.PendingAt(r.Context(), conceptID, index)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Submit handles POST /v1/concepts/{conceptId}/decisions
func (h *DecisionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	conceptID := mux.Vars(r)["conceptId"]

	var d model.Decision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid decision body")
		return
	}
	if d.FragmentID == "" || d.InterpretationID == "" {
		writeError(w, http.StatusBadRequest, "fragment and interpretation ids are required")
		return
	}

	if err := h.decisions.Submit(r.Context(), conceptID, d); err != nil {
		if errors.Is(err, service.ErrFragmentGone) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// Skip handles POST /v1/concepts/{conceptId}/fragments/{fragmentId}/skip
func (h *DecisionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := h.decisions.Skip(r.Context(), vars["conceptId"], vars["fragmentId"])
	if err != nil {
		if errors.Is(err, service.ErrFragmentGone) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
}
