// Package wizard implements the staged interview state machine that
// crystallizes a new concept definition. All mutation happens under one
// mutex in response to either a user action or a delivered stream event; a
// generation token stamped on each request keeps events from a superseded or
// cancelled exchange from ever being applied.
package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/stream"
)

const mirrorTimeout = 5 * time.Second

// Machine owns one wizard session. Exactly one completion exchange may be in
// flight at a time.
type Machine struct {
	mu    sync.Mutex
	svc   CompletionService
	store SessionStore // optional
	log   *logger.Logger

	sess *model.WizardSession
	prev model.WizardState // interactive state to return to on cancel/failure

	gen    uint64 // generation of the current exchange
	cancel context.CancelFunc

	phase    string
	thinking strings.Builder
	partial  strings.Builder
	lastErr  error
}

// New creates a machine with a fresh session in the notes state.
func New(svc CompletionService, store SessionStore, log *logger.Logger) *Machine {
	return &Machine{
		svc:   svc,
		store: store,
		log:   log.With("component", "wizard"),
		sess: &model.WizardSession{
			Key:   uuid.NewString(),
			State: model.StateNotes,
		},
	}
}

// Resume rebuilds a machine around a previously persisted session. A session
// saved mid-analysis is impossible (mirroring happens on stage transitions),
// so the restored state is always interactive.
func Resume(sess *model.WizardSession, svc CompletionService, store SessionStore, log *logger.Logger) *Machine {
	return &Machine{
		svc:   svc,
		store: store,
		log:   log.With("component", "wizard", "session", sess.Key),
		sess:  sess,
	}
}

// State returns the machine's current state.
func (m *Machine) State() model.WizardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.State
}

// Session returns a snapshot copy of the session.
func (m *Machine) Session() model.WizardSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sess
}

// Err returns the error surfaced by the most recent failed operation.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Phase is the current phase indicator reported by the in-flight exchange.
func (m *Machine) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Thinking is the running commentary accumulated from thinking frames.
func (m *Machine) Thinking() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thinking.String()
}

// Partial is the advisory partial result accumulated from text frames.
func (m *Machine) Partial() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partial.String()
}

// CurrentQuestion returns the question awaiting an answer, or nil outside an
// answering stage or when the stage is exhausted.
func (m *Machine) CurrentQuestion() *model.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Questions) {
		return nil
	}
	q := stage.Questions[stage.Cursor()]
	return &q
}

// CurrentDraft returns a copy of the editable draft for the current question.
func (m *Machine) CurrentDraft() *model.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Drafts) {
		return nil
	}
	d := stage.Drafts[stage.Cursor()]
	return &d
}

// Start begins the interview: Notes -> AnalyzingNotes, issuing the stage-1
// question generation call.
func (m *Machine) Start(ctx context.Context, conceptName, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.State != model.StateNotes {
		return &TransitionError{From: m.sess.State, Op: "start"}
	}
	if strings.TrimSpace(conceptName) == "" {
		return &ValidationError{Reason: "concept name is required"}
	}

	m.sess.ConceptName = strings.TrimSpace(conceptName)
	m.sess.Notes = notes
	m.beginLocked(ctx, OpStart, model.StateAnalyzingNotes)
	return nil
}

// SubmitAnswer records the answer to the current question. Advancing within
// a stage is purely local; exhausting the stage triggers exactly one analysis
// call.
func (m *Machine) SubmitAnswer(ctx context.Context, ans model.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil {
		return &TransitionError{From: m.sess.State, Op: "submit_answer"}
	}
	cursor := stage.Cursor()
	if cursor >= len(stage.Questions) {
		return &TransitionError{From: m.sess.State, Op: "submit_answer"}
	}
	q := &stage.Questions[cursor]
	if ans.QuestionID == "" {
		ans.QuestionID = q.ID
	}
	if ans.QuestionID != q.ID {
		return &ValidationError{Reason: "answer does not reference the current question"}
	}
	if ans.IsEmpty() && !q.Optional {
		return &ValidationError{Reason: "an answer is required for this question"}
	}
	if ans.Dialectic != nil && !q.AllowDialectic {
		return &ValidationError{Reason: "this question cannot be marked as a dialectic"}
	}

	stage.Answers = append(stage.Answers, ans)
	if cursor < len(stage.Drafts) {
		stage.Drafts[cursor] = ans
	}
	if ans.Dialectic != nil {
		m.sess.Dialectics = append(m.sess.Dialectics, model.DialecticClaim{
			PoleA:      ans.Dialectic.PoleA,
			PoleB:      ans.Dialectic.PoleB,
			Note:       ans.Dialectic.Note,
			QuestionID: q.ID,
		})
	}
	m.lastErr = nil

	if len(stage.Answers) < len(stage.Questions) {
		return nil // advance in place, no network call
	}
	m.beginStageAnalysisLocked(ctx)
	return nil
}

// SelectOption applies an option selection to the current draft, honoring
// single-choice and exclusivity-group semantics.
func (m *Machine) SelectOption(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Questions) {
		return &TransitionError{From: m.sess.State, Op: "select_option"}
	}
	cursor := stage.Cursor()
	q := &stage.Questions[cursor]
	if q.OptionByValue(value) == nil {
		return &ValidationError{Reason: "unknown option value: " + value}
	}
	draft := &stage.Drafts[cursor]
	draft.QuestionID = q.ID
	draft.SelectedValues = model.ApplySelection(q, draft.SelectedValues, value)
	return nil
}

// SetDraftText replaces the free-text content of the current draft.
func (m *Machine) SetDraftText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Questions) {
		return &TransitionError{From: m.sess.State, Op: "set_draft_text"}
	}
	cursor := stage.Cursor()
	draft := &stage.Drafts[cursor]
	draft.QuestionID = stage.Questions[cursor].ID
	draft.Text = text
	return nil
}

// SetCustomResponse attaches a write-in response to the current draft.
func (m *Machine) SetCustomResponse(text, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Questions) {
		return &TransitionError{From: m.sess.State, Op: "set_custom_response"}
	}
	cursor := stage.Cursor()
	q := &stage.Questions[cursor]
	if !q.AllowCustom {
		return &ValidationError{Reason: "this question does not accept a custom response"}
	}
	draft := &stage.Drafts[cursor]
	draft.QuestionID = q.ID
	draft.Custom = &model.CustomResponse{Text: text, Category: category}
	return nil
}

// MarkDialectic annotates the current draft with a tension to preserve.
func (m *Machine) MarkDialectic(poleA, poleB, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil || stage.Cursor() >= len(stage.Questions) {
		return &TransitionError{From: m.sess.State, Op: "mark_dialectic"}
	}
	cursor := stage.Cursor()
	q := &stage.Questions[cursor]
	if !q.AllowDialectic {
		return &ValidationError{Reason: "this question cannot be marked as a dialectic"}
	}
	draft := &stage.Drafts[cursor]
	draft.QuestionID = q.ID
	draft.Dialectic = &model.DialecticAnnotation{PoleA: poleA, PoleB: poleB, Note: note}
	return nil
}

// ContinueToStage3 is the pure local transition out of the implications
// preview.
func (m *Machine) ContinueToStage3(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.State != model.StateImplicationsPreview {
		return &TransitionError{From: m.sess.State, Op: "continue_to_stage3"}
	}
	m.sess.State = model.StateStage3
	m.mirrorLocked()
	return nil
}

// Cancel aborts the in-flight exchange and returns to the prior interactive
// state. Partial streamed content is discarded; accumulated answers are
// untouched. Later-arriving events from the aborted stream are dropped by
// the generation check.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.State.Interactive() {
		return &TransitionError{From: m.sess.State, Op: "cancel"}
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.sess.State = m.prev
	m.resetStreamLocked()
	m.lastErr = nil
	return nil
}

// Retry re-issues the analysis that last failed. Valid from a fully answered
// stage (the analysis transition failed) or from the notes state (use Start).
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := m.sess.CurrentStage()
	if stage == nil || !stage.Complete() {
		return &TransitionError{From: m.sess.State, Op: "retry"}
	}
	m.lastErr = nil
	m.beginStageAnalysisLocked(ctx)
	return nil
}

func (m *Machine) beginStageAnalysisLocked(ctx context.Context) {
	switch m.sess.State {
	case model.StateStage1:
		m.beginLocked(ctx, OpAnalyzeStage1, model.StateAnalyzingStage1)
	case model.StateStage2:
		m.beginLocked(ctx, OpAnalyzeStage2, model.StateAnalyzingStage2)
	case model.StateStage3:
		m.beginLocked(ctx, OpFinalize, model.StateProcessing)
	}
}

// beginLocked issues one streamed exchange. The fresh generation implicitly
// invalidates any still-settling prior request.
func (m *Machine) beginLocked(ctx context.Context, op Operation, analyzing model.WizardState) {
	m.prev = m.sess.State
	m.sess.State = analyzing
	m.resetStreamLocked()
	m.lastErr = nil

	m.gen++
	gen := m.gen
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	req := Request{
		Op:          op,
		ConceptName: m.sess.ConceptName,
		Notes:       m.sess.Notes,
		SourceRef:   m.sess.SourceRef,
		SessionKey:  m.sess.Key,
		Dialectics:  append([]model.DialecticClaim(nil), m.sess.Dialectics...),
		Interim:     m.sess.Interim,
	}
	for i := range m.sess.Stages {
		req.Answers[i] = append([]model.Answer(nil), m.sess.Stages[i].Answers...)
	}

	ch := m.svc.Run(cctx, req)
	go m.consume(gen, op, ch)
}

// consume applies one stream's events in receipt order. A close without a
// terminal event is an implicit network failure.
func (m *Machine) consume(gen uint64, op Operation, ch <-chan stream.Event) {
	terminal := false
	for ev := range ch {
		if !m.dispatch(gen, op, ev) {
			// Superseded: drop the rest unconditionally, but keep
			// receiving so the aborted producer never blocks on a send.
			for range ch {
			}
			return
		}
		if ev.Terminal() {
			terminal = true
		}
	}
	if !terminal {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen {
			return
		}
		m.failLocked(&NetworkFailure{Err: stream.ErrTruncated})
	}
}

// dispatch applies one event. Returns false when the event belongs to a
// superseded generation.
func (m *Machine) dispatch(gen uint64, op Operation, ev stream.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}

	switch ev.Type {
	case stream.EventPhase:
		m.phase = ev.Phase
	case stream.EventThinking:
		m.thinking.WriteString(ev.Content)
	case stream.EventText:
		m.partial.WriteString(ev.Content)
	case stream.EventInterimComplete:
		m.applyInterimLocked(op, ev)
	case stream.EventComplete:
		if err := m.applyCompleteLocked(op, ev); err != nil {
			m.failLocked(err)
		}
	case stream.EventError:
		m.failLocked(&StreamFailure{Message: ev.Message})
	}
	return true
}

// applyInterimLocked stores a fully-formed intermediate artifact the moment
// it arrives rather than holding it until stream end.
func (m *Machine) applyInterimLocked(op Operation, ev stream.Event) {
	switch op {
	case OpAnalyzeStage1:
		var p interimPayload
		if err := decodePayload(ev.Data, &p); err == nil && p.Analysis != nil {
			m.sess.Interim = p.Analysis
		}
	case OpAnalyzeStage2:
		var p implicationsPayload
		if err := decodePayload(ev.Data, &p); err == nil && p.Preview != nil {
			m.sess.Implications = p.Preview
		}
	}
}

func (m *Machine) applyCompleteLocked(op Operation, ev stream.Event) error {
	switch op {
	case OpStart:
		var p stage1Payload
		if err := decodePayload(ev.Data, &p); err != nil {
			return err
		}
		if len(p.Questions) == 0 {
			return &StreamFailure{Message: "completion produced no stage-1 questions"}
		}
		m.loadStageLocked(0, p.Questions)
		m.sess.State = model.StateStage1

	case OpAnalyzeStage1:
		var p interimPayload
		if err := decodePayload(ev.Data, &p); err != nil {
			return err
		}
		if p.Analysis != nil {
			m.sess.Interim = p.Analysis
		}
		if m.sess.Interim == nil {
			return &StreamFailure{Message: "completion produced no interim analysis"}
		}
		if len(p.Questions) == 0 {
			return &StreamFailure{Message: "completion produced no stage-2 questions"}
		}
		m.loadStageLocked(1, p.Questions)
		m.sess.State = model.StateStage2

	case OpAnalyzeStage2:
		var p implicationsPayload
		if err := decodePayload(ev.Data, &p); err != nil {
			return err
		}
		if p.Preview != nil {
			m.sess.Implications = p.Preview
		}
		if m.sess.Implications == nil {
			return &StreamFailure{Message: "completion produced no implications preview"}
		}
		if len(p.Questions) == 0 {
			return &StreamFailure{Message: "completion produced no stage-3 questions"}
		}
		m.loadStageLocked(2, p.Questions)
		m.sess.State = model.StateImplicationsPreview

	case OpFinalize:
		var p draftPayload
		if err := decodePayload(ev.Data, &p); err != nil {
			return err
		}
		if p.Draft == nil {
			return &StreamFailure{Message: "completion produced no concept draft"}
		}
		m.sess.Draft = p.Draft
		m.sess.State = model.StateComplete
	}

	m.cancel = nil
	m.resetStreamLocked()
	m.mirrorLocked()
	return nil
}

// loadStageLocked installs a stage's questions and materializes prefilled
// suggestions into the draft buffer. Prefills are editable suggestions, not
// defaults applied at submit time.
func (m *Machine) loadStageLocked(idx int, questions []model.Question) {
	stage := &m.sess.Stages[idx]
	stage.Questions = questions
	stage.Answers = stage.Answers[:0]
	stage.Drafts = make([]model.Answer, len(questions))
	for i := range questions {
		q := &questions[i]
		stage.Drafts[i].QuestionID = q.ID
		if q.Prefill == nil {
			continue
		}
		switch q.Type {
		case model.QuestionOpenEnded:
			stage.Drafts[i].Text = q.Prefill.Value
		default:
			stage.Drafts[i].SelectedValues = model.ApplySelection(q, nil, q.Prefill.Value)
		}
	}
}

// failLocked converts any failure into a user-visible error plus a safe
// return to the last stable interactive state. Committed answers survive.
func (m *Machine) failLocked(err error) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if !m.sess.State.Interactive() {
		m.sess.State = m.prev
	}
	m.resetStreamLocked()
	m.lastErr = err
	m.log.Warn("wizard operation failed", "state", m.sess.State, "error", err)
}

func (m *Machine) resetStreamLocked() {
	m.phase = ""
	m.thinking.Reset()
	m.partial.Reset()
}

// mirrorLocked persists the session on a stage transition. Best effort: a
// failed save is logged and does not block the transition.
func (m *Machine) mirrorLocked() {
	if m.store == nil {
		return
	}
	snapshot := m.sess.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := m.store.Save(ctx, snapshot); err != nil {
			m.log.Warn("session mirror failed", "session", snapshot.Key, "error", err)
		}
	}()
}
