package handler

import (
	"encoding/json"
	"net/http"

	"conceptforge/internal/logger"
	"conceptforge/internal/service"
	"conceptforge/internal/stream"
	"conceptforge/internal/wizard"
)

// WizardHandler serves the streamed completion endpoints. Each request
// produces one event stream: data-framed JSON events over a chunked body,
// closed by the sentinel line.
type WizardHandler struct {
	completions *service.CompletionService
	log         *logger.Logger
}

// NewWizardHandler creates a new wizard handler
func NewWizardHandler(completions *service.CompletionService, log *logger.Logger) *WizardHandler {
	return &WizardHandler{
		completions: completions,
		log:         log.With("component", "wizard-handler"),
	}
}

// Stage1 handles POST /v1/wizard/stage1
func (h *WizardHandler) Stage1(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, wizard.OpStart)
}

// AnalyzeStage1 handles POST /v1/wizard/analyze-stage1
func (h *WizardHandler) AnalyzeStage1(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, wizard.OpAnalyzeStage1)
}

// AnalyzeStage2 handles POST /v1/wizard/analyze-stage2
func (h *WizardHandler) AnalyzeStage2(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, wizard.OpAnalyzeStage2)
}

// Finalize handles POST /v1/wizard/finalize
func (h *WizardHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, wizard.OpFinalize)
}

func (h *WizardHandler) run(w http.ResponseWriter, r *http.Request, op wizard.Operation) {
	var req wizard.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Op = op
	if req.ConceptName == "" {
		writeError(w, http.StatusBadRequest, "concept name is required")
		return
	}

	sw := stream.NewWriter(w)
	err := h.completions.Generate(r.Context(), req, sw.Write)
	if err != nil {
		// Headers are gone; all we can do is cut the stream short and let
		// the client treat it as a network failure.
		h.log.Warn("event stream aborted", "op", op, "error", err)
		return
	}
	if err := sw.Close(); err != nil {
		h.log.Warn("event stream close failed", "op", op, "error", err)
	}
}
