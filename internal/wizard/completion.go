package wizard

import (
	"context"
	"encoding/json"

	"conceptforge/internal/model"
	"conceptforge/internal/stream"
)

// Operation names one streamed completion call
type Operation string

const (
	OpStart         Operation = "stage1"
	OpAnalyzeStage1 Operation = "analyze-stage1"
	OpAnalyzeStage2 Operation = "analyze-stage2"
	OpFinalize      Operation = "finalize"
)

// Request carries the accumulated interview context for one completion call.
type Request struct {
	Op          Operation              `json:"op"`
	ConceptName string                 `json:"conceptName"`
	Notes       string                 `json:"notes,omitempty"`
	SourceRef   string                 `json:"sourceRef,omitempty"`
	SessionKey  string                 `json:"sessionKey"`
	Answers     [3][]model.Answer      `json:"answers"`
	Dialectics  []model.DialecticClaim `json:"dialectics,omitempty"`
	Interim     *model.InterimAnalysis `json:"interim,omitempty"`
}

// CompletionService produces the event sequence for one completion call.
// Run must return promptly: the exchange happens in the background and every
// outcome, including transport failure, is reported through the channel. The
// channel closes after the terminal event, or without one on failure (the
// machine treats that as a network failure). Cancelling ctx abandons the
// exchange.
type CompletionService interface {
	Run(ctx context.Context, req Request) <-chan stream.Event
}

// SessionStore mirrors the session into durable storage on each stage
// transition for cross-device resume. Last writer wins.
type SessionStore interface {
	Save(ctx context.Context, sess *model.WizardSession) error
}

// stage1Payload is the terminal payload of a stage-1 start call.
type stage1Payload struct {
	Questions []model.Question `json:"questions"`
}

// interimPayload is the terminal payload of analyze-stage-1: the interim
// analysis plus the generated stage-2 questions that gate the transition.
type interimPayload struct {
	Analysis  *model.InterimAnalysis `json:"analysis,omitempty"`
	Questions []model.Question       `json:"questions"`
}

// implicationsPayload is the terminal payload of analyze-stage-2.
type implicationsPayload struct {
	Preview   *model.ImplicationsPreview `json:"preview,omitempty"`
	Questions []model.Question           `json:"questions"`
}

// draftPayload is the terminal payload of finalize.
type draftPayload struct {
	Draft *model.ConceptDraft `json:"draft"`
}

func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return &StreamFailure{Message: "empty completion payload"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &StreamFailure{Message: "malformed completion payload: " + err.Error()}
	}
	return nil
}
