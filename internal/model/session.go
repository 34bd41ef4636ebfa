package model

import "time"

// WizardState is the wizard's current position in the staged interview.
// Analyzing states are transient: a network exchange is in flight and the
// only permitted user action is cancel.
type WizardState string

const (
	StateNotes               WizardState = "notes"
	StateAnalyzingNotes      WizardState = "analyzing_notes" // stage-1 questions being generated
	StateStage1              WizardState = "stage1"
	StateAnalyzingStage1     WizardState = "analyzing_stage1" // interim analysis in flight
	StateStage2              WizardState = "stage2"
	StateAnalyzingStage2     WizardState = "analyzing_stage2" // implications preview in flight
	StateImplicationsPreview WizardState = "implications_preview"
	StateStage3              WizardState = "stage3"
	StateProcessing          WizardState = "processing" // finalize in flight
	StateComplete            WizardState = "complete"
)

// Interactive reports whether the state accepts user input other than cancel.
func (s WizardState) Interactive() bool {
	switch s {
	case StateAnalyzingNotes, StateAnalyzingStage1, StateAnalyzingStage2, StateProcessing:
		return false
	}
	return true
}

// StageState holds one stage's questions and the user's progress through
// them. Answers are always a strict prefix of Questions: answer i responds to
// question i. Drafts mirrors Questions one-to-one and holds the editable
// (possibly prefilled) answer for each question before it is submitted.
type StageState struct {
	Questions []Question `json:"questions" bson:"questions"`
	Answers   []Answer   `json:"answers" bson:"answers"`
	Drafts    []Answer   `json:"drafts,omitempty" bson:"drafts,omitempty"`
}

// Complete reports whether every question in the stage has a submitted answer.
func (s *StageState) Complete() bool {
	return len(s.Questions) > 0 && len(s.Answers) == len(s.Questions)
}

// Cursor is the index of the current (first unanswered) question.
func (s *StageState) Cursor() int {
	return len(s.Answers)
}

// SessionStatus is the lifecycle status of a persisted session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// WizardSession is the full state of one concept-definition interview. It is
// owned by exactly one client context while active and mirrored into storage
// on each stage transition (last writer wins, no merge).
type WizardSession struct {
	Key          string               `json:"key" bson:"key"`
	ConceptName  string               `json:"conceptName" bson:"conceptName"`
	SourceRef    string               `json:"sourceRef,omitempty" bson:"sourceRef,omitempty"`
	Notes        string               `json:"notes,omitempty" bson:"notes,omitempty"`
	State        WizardState          `json:"state" bson:"state"`
	Stages       [3]StageState        `json:"stages" bson:"stages"`
	Interim      *InterimAnalysis     `json:"interim,omitempty" bson:"interim,omitempty"`
	Implications *ImplicationsPreview `json:"implications,omitempty" bson:"implications,omitempty"`
	Dialectics   []DialecticClaim     `json:"dialectics,omitempty" bson:"dialectics,omitempty"`
	Draft        *ConceptDraft        `json:"draft,omitempty" bson:"draft,omitempty"`
}

// Clone returns a copy safe to read while the original keeps mutating: the
// per-stage slices and the dialectic set are copied, so in-place draft edits
// on the original never reach the clone.
func (w *WizardSession) Clone() *WizardSession {
	c := *w
	for i := range w.Stages {
		c.Stages[i].Questions = append([]Question(nil), w.Stages[i].Questions...)
		c.Stages[i].Answers = append([]Answer(nil), w.Stages[i].Answers...)
		c.Stages[i].Drafts = append([]Answer(nil), w.Stages[i].Drafts...)
	}
	c.Dialectics = append([]DialecticClaim(nil), w.Dialectics...)
	return &c
}

// StageIndex maps an interactive stage state to its 0-based stage slot,
// returning -1 for states outside the three answering stages.
func StageIndex(s WizardState) int {
	switch s {
	case StateStage1:
		return 0
	case StateStage2:
		return 1
	case StateStage3:
		return 2
	}
	return -1
}

// CurrentStage returns the stage slot for the session's state, or nil when
// the session is not in an answering stage.
func (w *WizardSession) CurrentStage() *StageState {
	i := StageIndex(w.State)
	if i < 0 {
		return nil
	}
	return &w.Stages[i]
}

// SessionRecord is the persisted form of a session: the full state as an
// opaque blob plus the columns the storage layer indexes on. UpdatedAt moves
// whenever the blob changes; LastAccessAt moves on every read or write.
type SessionRecord struct {
	Key          string        `json:"key" bson:"_id"`
	ConceptName  string        `json:"conceptName" bson:"conceptName"`
	Stage        string        `json:"stage" bson:"stage"`
	Status       SessionStatus `json:"status" bson:"status"`
	State        WizardSession `json:"state" bson:"state"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt"`
	LastAccessAt time.Time     `json:"lastAccessAt" bson:"lastAccessAt"`
}
