package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"conceptforge/internal/model"
	"conceptforge/internal/service"
)

// SessionHandler serves session save/resume
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Save handles PUT /v1/sessions/{key}
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var sess model.WizardSession
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session body")
		return
	}
	if sess.Key == "" {
		sess.Key = key
	}
	if sess.Key != key {
		writeError(w, http.StatusBadRequest, "session key mismatch")
		return
	}

	if err := h.sessions.Save(r.Context(), &sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": sess.Key})
}

// Get handles GET /v1/sessions/{key}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	sess, err := h.sessions.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Abandon handles DELETE /v1/sessions/{key}
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.sessions.Abandon(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.SessionAbandoned)})
}
