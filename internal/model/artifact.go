package model

import "encoding/json"

// The completion service returns three kinds of synthesis artifacts over the
// course of a wizard run. The state machine only branches on the fields that
// gate transitions (follow-up question presence); everything display-only
// stays an opaque raw payload.

// InterimAnalysis is the mid-wizard synthesis of stage-1 answers, shown
// before the stage-2 questions.
type InterimAnalysis struct {
	Summary string          `json:"summary" bson:"summary"`
	Body    json.RawMessage `json:"body,omitempty" bson:"body,omitempty"` // display-only
}

// ImplicationsPreview is the synthesis of stage-2 answers, shown before the
// stage-3 questions.
type ImplicationsPreview struct {
	Summary string          `json:"summary" bson:"summary"`
	Body    json.RawMessage `json:"body,omitempty" bson:"body,omitempty"` // display-only
}

// ConceptDraft is the terminal artifact of a completed wizard run.
type ConceptDraft struct {
	Name       string          `json:"name" bson:"name"`
	Definition string          `json:"definition" bson:"definition"`
	Body       json.RawMessage `json:"body,omitempty" bson:"body,omitempty"` // display-only
}
