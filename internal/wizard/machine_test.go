package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/stream"
)

// scriptedRun describes one Run call's behavior: either a fixed event
// sequence delivered on a channel the fake closes, or a manual channel the
// test feeds itself.
type scriptedRun struct {
	events []stream.Event
	manual <-chan stream.Event
}

type fakeCompletions struct {
	mu    sync.Mutex
	calls []Request
	runs  []scriptedRun
}

func (f *fakeCompletions) Run(ctx context.Context, req Request) <-chan stream.Event {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, req)
	var run scriptedRun
	if idx < len(f.runs) {
		run = f.runs[idx]
	}
	f.mu.Unlock()

	if run.manual != nil {
		return run.manual
	}
	ch := make(chan stream.Event, len(run.events))
	for _, ev := range run.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (f *fakeCompletions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompletions) call(i int) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func completeEvent(t *testing.T, payload interface{}) stream.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stream.Event{Type: stream.EventComplete, Data: raw}
}

func stage1Questions() []model.Question {
	return []model.Question{
		{
			ID:   "s1-q1",
			Text: "Pick a frame",
			Type: model.QuestionSingleChoice,
			Options: []model.Option{
				{Value: "process", Label: "Process"},
				{Value: "state", Label: "State"},
			},
			Prefill: &model.Prefill{Value: "process", Confidence: model.ConfidenceHigh},
		},
		{
			ID:             "s1-q2",
			Text:           "Describe the core tension",
			Type:           model.QuestionOpenEnded,
			AllowDialectic: true,
		},
	}
}

func stage1CompleteEvent(t *testing.T) stream.Event {
	t.Helper()
	return completeEvent(t, map[string]interface{}{"questions": stage1Questions()})
}

func analyzeStage1Event(t *testing.T) stream.Event {
	t.Helper()
	return completeEvent(t, map[string]interface{}{
		"analysis": &model.InterimAnalysis{Summary: "leans processual"},
		"questions": []model.Question{
			{ID: "s2-q1", Text: "Which boundary matters most?", Type: model.QuestionOpenEnded},
		},
	})
}

func analyzeStage2Event(t *testing.T) stream.Event {
	t.Helper()
	return completeEvent(t, map[string]interface{}{
		"preview": &model.ImplicationsPreview{Summary: "three commitments follow"},
		"questions": []model.Question{
			{ID: "s3-q1", Text: "Accept the narrow reading?", Type: model.QuestionOpenEnded},
		},
	})
}

func finalizeEvent(t *testing.T) stream.Event {
	t.Helper()
	return completeEvent(t, map[string]interface{}{
		"draft": &model.ConceptDraft{Name: "liminality", Definition: "a held threshold state"},
	})
}

func newTestMachine(fake *fakeCompletions) *Machine {
	return New(fake, nil, logger.NewNop())
}

func awaitState(t *testing.T, m *Machine, want model.WizardState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, time.Second, 5*time.Millisecond, "waiting for state %s, at %s", want, m.State())
}

func awaitErr(t *testing.T, m *Machine) error {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Err() != nil
	}, time.Second, 5*time.Millisecond)
	return m.Err()
}

// startToStage1 drives a fresh machine into stage 1 using the fake's first
// scripted run.
func startToStage1(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.Start(context.Background(), "liminality", "threshold states\nmore notes"))
	awaitState(t, m, model.StateStage1)
}

func TestStartLoadsQuestionsAndPrefillDrafts(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)

	startToStage1(t, m)

	q := m.CurrentQuestion()
	require.NotNil(t, q)
	assert.Equal(t, "s1-q1", q.ID)

	draft := m.CurrentDraft()
	require.NotNil(t, draft)
	assert.Equal(t, []string{"process"}, draft.SelectedValues, "prefill materialized into the draft")

	require.Equal(t, 1, fake.callCount())
	assert.Equal(t, OpStart, fake.call(0).Op)
	assert.Equal(t, "liminality", fake.call(0).ConceptName)
}

func TestStartRequiresConceptName(t *testing.T) {
	fake := &fakeCompletions{}
	m := newTestMachine(fake)

	err := m.Start(context.Background(), "  ", "notes")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.StateNotes, m.State())
	assert.Zero(t, fake.callCount())
}

func TestStartOnlyFromNotes(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	err := m.Start(context.Background(), "again", "")
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "start", terr.Op)
}

func TestSubmitAnswerAdvancesInPlace(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	err := m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"state"}})
	require.NoError(t, err)

	assert.Equal(t, model.StateStage1, m.State())
	assert.Equal(t, 1, fake.callCount(), "advancing within a stage makes no network call")

	q := m.CurrentQuestion()
	require.NotNil(t, q)
	assert.Equal(t, "s1-q2", q.ID)
}

func TestSubmitAnswerValidation(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	var verr *ValidationError

	err := m.SubmitAnswer(context.Background(), model.Answer{})
	require.ErrorAs(t, err, &verr, "empty answer on a required question")

	err = m.SubmitAnswer(context.Background(), model.Answer{QuestionID: "s1-q2", Text: "x"})
	require.ErrorAs(t, err, &verr, "answer for a question that is not current")

	err = m.SubmitAnswer(context.Background(), model.Answer{
		SelectedValues: []string{"state"},
		Dialectic:      &model.DialecticAnnotation{PoleA: "a", PoleB: "b"},
	})
	require.ErrorAs(t, err, &verr, "dialectic on a question that does not allow it")

	q := m.CurrentQuestion()
	require.NotNil(t, q)
	assert.Equal(t, "s1-q1", q.ID, "failed submissions do not advance")
}

func TestExhaustingStageTriggersOneAnalysis(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{events: []stream.Event{analyzeStage1Event(t)}},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{
		Text:      "structure vs flux",
		Dialectic: &model.DialecticAnnotation{PoleA: "structure", PoleB: "flux"},
	}))

	awaitState(t, m, model.StateStage2)
	require.Equal(t, 2, fake.callCount())

	req := fake.call(1)
	assert.Equal(t, OpAnalyzeStage1, req.Op)
	require.Len(t, req.Answers[0], 2)
	assert.Equal(t, "structure vs flux", req.Answers[0][1].Text)
	require.Len(t, req.Dialectics, 1)
	assert.Equal(t, "s1-q2", req.Dialectics[0].QuestionID)

	sess := m.Session()
	require.NotNil(t, sess.Interim)
	assert.Equal(t, "leans processual", sess.Interim.Summary)
}

func TestInterimArtifactStoredBeforeStreamEnd(t *testing.T) {
	interim, err := json.Marshal(map[string]interface{}{
		"analysis": &model.InterimAnalysis{Summary: "early synthesis"},
	})
	require.NoError(t, err)

	manual := make(chan stream.Event)
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{manual: manual},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitState(t, m, model.StateAnalyzingStage1)

	manual <- stream.Event{Type: stream.EventInterimComplete, Data: interim}
	require.Eventually(t, func() bool {
		return m.Session().Interim != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.StateAnalyzingStage1, m.State(), "interim artifact lands while the stream is still open")

	manual <- completeEvent(t, map[string]interface{}{
		"questions": []model.Question{{ID: "s2-q1", Text: "Which boundary matters most?", Type: model.QuestionOpenEnded}},
	})
	close(manual)
	awaitState(t, m, model.StateStage2)
	assert.Equal(t, "early synthesis", m.Session().Interim.Summary, "terminal payload without analysis keeps the interim artifact")
}

func TestCancelRestoresStateAndDropsLateEvents(t *testing.T) {
	manual := make(chan stream.Event, 1)
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{manual: manual},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitState(t, m, model.StateAnalyzingStage1)

	require.NoError(t, m.Cancel())
	assert.Equal(t, model.StateStage1, m.State())
	assert.NoError(t, m.Err())
	assert.Len(t, m.Session().Stages[0].Answers, 2, "committed answers survive cancellation")

	// The aborted stream completes anyway; its events belong to a dead
	// generation and must not apply.
	manual <- analyzeStage1Event(t)
	close(manual)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, model.StateStage1, m.State())
	assert.Nil(t, m.Session().Interim)
}

func TestCancelDrainsAbortedStream(t *testing.T) {
	manual := make(chan stream.Event) // unbuffered: a send blocks until received
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{manual: manual},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitState(t, m, model.StateAnalyzingStage1)

	require.NoError(t, m.Cancel())

	// The aborted producer keeps emitting well past any channel buffer;
	// every send must still complete so it can shut down.
	late := analyzeStage1Event(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 32; i++ {
			manual <- late
		}
		close(manual)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aborted stream's producer blocked on send; late events were not drained")
	}

	assert.Equal(t, model.StateStage1, m.State())
	assert.Nil(t, m.Session().Interim)
}

func TestCancelOnlyWhileAnalyzing(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	var terr *TransitionError
	require.ErrorAs(t, m.Cancel(), &terr)
}

func TestStreamErrorRevertsWithAnswersIntact(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{events: []stream.Event{{Type: stream.EventError, Message: "model unavailable"}}},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))

	err := awaitErr(t, m)
	var sfail *StreamFailure
	require.ErrorAs(t, err, &sfail)
	assert.Equal(t, "model unavailable", sfail.Message)

	assert.Equal(t, model.StateStage1, m.State())
	assert.Len(t, m.Session().Stages[0].Answers, 2)
}

func TestChannelCloseWithoutTerminalIsNetworkFailure(t *testing.T) {
	manual := make(chan stream.Event)
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{manual: manual},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitState(t, m, model.StateAnalyzingStage1)

	close(manual)

	err := awaitErr(t, m)
	var nfail *NetworkFailure
	require.ErrorAs(t, err, &nfail)
	assert.True(t, errors.Is(err, stream.ErrTruncated))
	assert.Equal(t, model.StateStage1, m.State())
}

func TestRetryReissuesFailedAnalysis(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{stage1CompleteEvent(t)}},
		{events: []stream.Event{{Type: stream.EventError, Message: "overloaded"}}},
		{events: []stream.Event{analyzeStage1Event(t)}},
	}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitErr(t, m)

	require.NoError(t, m.Retry(context.Background()))
	awaitState(t, m, model.StateStage2)
	assert.NoError(t, m.Err())
	assert.Equal(t, 3, fake.callCount())
}

func TestCompleteWithoutQuestionsIsStreamFailure(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{completeEvent(t, map[string]interface{}{"questions": []model.Question{}})}},
	}}
	m := newTestMachine(fake)

	require.NoError(t, m.Start(context.Background(), "liminality", ""))
	err := awaitErr(t, m)
	var sfail *StreamFailure
	require.ErrorAs(t, err, &sfail)
	assert.Equal(t, model.StateNotes, m.State())
}

func TestDraftEditing(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	m := newTestMachine(fake)
	startToStage1(t, m)

	require.NoError(t, m.SelectOption("state"))
	draft := m.CurrentDraft()
	require.NotNil(t, draft)
	assert.Equal(t, []string{"state"}, draft.SelectedValues, "single choice replaces the prefill")

	var verr *ValidationError
	require.ErrorAs(t, m.SelectOption("nope"), &verr)
	require.ErrorAs(t, m.SetCustomResponse("x", ""), &verr, "question does not allow custom responses")
	require.ErrorAs(t, m.MarkDialectic("a", "b", ""), &verr, "question does not allow dialectics")

	require.NoError(t, m.SubmitAnswer(context.Background(), *m.CurrentDraft()))

	require.NoError(t, m.SetDraftText("flux holds"))
	require.NoError(t, m.MarkDialectic("structure", "flux", "keep both"))
	draft = m.CurrentDraft()
	assert.Equal(t, "flux holds", draft.Text)
	require.NotNil(t, draft.Dialectic)
	assert.Equal(t, "structure", draft.Dialectic.PoleA)
}

func TestFullRunNotesToComplete(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{
		{events: []stream.Event{
			{Type: stream.EventPhase, Phase: "reading notes"},
			{Type: stream.EventThinking, Content: "sorting themes"},
			stage1CompleteEvent(t),
		}},
		{events: []stream.Event{analyzeStage1Event(t)}},
		{events: []stream.Event{analyzeStage2Event(t)}},
		{events: []stream.Event{finalizeEvent(t)}},
	}}
	m := newTestMachine(fake)

	startToStage1(t, m)
	assert.Empty(t, m.Thinking(), "stream buffers reset once the exchange settles")

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{SelectedValues: []string{"process"}}))
	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "tension"}))
	awaitState(t, m, model.StateStage2)

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "the ritual boundary"}))
	awaitState(t, m, model.StateImplicationsPreview)
	require.NotNil(t, m.Session().Implications)

	require.NoError(t, m.ContinueToStage3(context.Background()))
	assert.Equal(t, model.StateStage3, m.State())

	require.NoError(t, m.SubmitAnswer(context.Background(), model.Answer{Text: "yes, narrow"}))
	awaitState(t, m, model.StateComplete)

	sess := m.Session()
	require.NotNil(t, sess.Draft)
	assert.Equal(t, "liminality", sess.Draft.Name)

	require.Equal(t, 4, fake.callCount())
	ops := []Operation{fake.call(0).Op, fake.call(1).Op, fake.call(2).Op, fake.call(3).Op}
	assert.Equal(t, []Operation{OpStart, OpAnalyzeStage1, OpAnalyzeStage2, OpFinalize}, ops)
}

type recordingStore struct {
	mu    sync.Mutex
	saved []model.WizardSession
}

func (s *recordingStore) Save(ctx context.Context, sess *model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *sess)
	return nil
}

func TestStageTransitionsMirrorSession(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	store := &recordingStore{}
	m := New(fake, store, logger.NewNop())

	require.NoError(t, m.Start(context.Background(), "liminality", "notes"))
	awaitState(t, m, model.StateStage1)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.saved) == 1
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, model.StateStage1, store.saved[0].State)
	assert.Equal(t, "liminality", store.saved[0].ConceptName)
}

func TestMirrorSnapshotIsolatedFromDraftEdits(t *testing.T) {
	fake := &fakeCompletions{runs: []scriptedRun{{events: []stream.Event{stage1CompleteEvent(t)}}}}
	store := &recordingStore{}
	m := New(fake, store, logger.NewNop())

	require.NoError(t, m.Start(context.Background(), "liminality", "notes"))
	awaitState(t, m, model.StateStage1)
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.saved) == 1
	}, time.Second, 5*time.Millisecond)

	// In-place edits to the live draft must never reach the snapshot the
	// saver was handed.
	require.NoError(t, m.SelectOption("state"))
	require.NoError(t, m.SetDraftText("edited after the mirror"))

	store.mu.Lock()
	defer store.mu.Unlock()
	draft := store.saved[0].Stages[0].Drafts[0]
	assert.Equal(t, []string{"process"}, draft.SelectedValues, "mirrored draft keeps the prefill")
	assert.Empty(t, draft.Text)
}
