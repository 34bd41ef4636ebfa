package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"conceptforge/internal/config"
	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/stream"
	"conceptforge/internal/wizard"
)

// CompletionService is the upstream generator behind the streamed wizard
// endpoints. It calls a Gemini-style API when configured and falls back to a
// deterministic mock otherwise; either way it emits the protocol event
// sequence (phase, thinking, interim_complete, complete) through the emit
// callback. What the questions and analyses say is the model's business;
// this service owns the event plumbing.
type CompletionService struct {
	config *config.AIConfig
	client *http.Client
	log    *logger.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(log *logger.Logger) *CompletionService {
	cfg := config.DefaultAIConfig()
	return &CompletionService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		log: log.With("component", "completion"),
	}
}

// Generate runs one wizard completion call and emits its event sequence.
// Exactly one terminal event is emitted unless emit itself fails (client
// went away).
func (s *CompletionService) Generate(ctx context.Context, req wizard.Request, emit func(stream.Event) error) error {
	if err := emit(stream.Event{Type: stream.EventPhase, Phase: phaseFor(req.Op)}); err != nil {
		return err
	}

	payload, err := s.generatePayload(ctx, req, emit)
	if err != nil {
		s.log.Warn("completion failed", "op", req.Op, "error", err)
		return emit(stream.Event{Type: stream.EventError, Message: err.Error()})
	}
	return emit(stream.Event{Type: stream.EventComplete, Data: payload})
}

func phaseFor(op wizard.Operation) string {
	switch op {
	case wizard.OpStart:
		return "generating stage 1 questions"
	case wizard.OpAnalyzeStage1:
		return "synthesizing interim analysis"
	case wizard.OpAnalyzeStage2:
		return "previewing implications"
	case wizard.OpFinalize:
		return "drafting concept definition"
	}
	return string(op)
}

func (s *CompletionService) generatePayload(ctx context.Context, req wizard.Request, emit func(stream.Event) error) (json.RawMessage, error) {
	switch req.Op {
	case wizard.OpStart:
		questions, err := s.stageQuestions(ctx, req, 1)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"questions": questions})

	case wizard.OpAnalyzeStage1:
		analysis := s.interimAnalysis(ctx, req)
		// Hand the analysis over the moment it exists; the follow-up
		// questions take their own model call.
		interim, err := json.Marshal(map[string]interface{}{"analysis": analysis})
		if err != nil {
			return nil, err
		}
		if err := emit(stream.Event{Type: stream.EventInterimComplete, Data: interim}); err != nil {
			return nil, err
		}
		questions, err := s.stageQuestions(ctx, req, 2)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"analysis": analysis, "questions": questions})

	case wizard.OpAnalyzeStage2:
		preview := s.implicationsPreview(ctx, req)
		questions, err := s.stageQuestions(ctx, req, 3)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"preview": preview, "questions": questions})

	case wizard.OpFinalize:
		draft := s.conceptDraft(ctx, req)
		return json.Marshal(map[string]interface{}{"draft": draft})
	}
	return nil, fmt.Errorf("unknown completion operation %q", req.Op)
}

func (s *CompletionService) stageQuestions(ctx context.Context, req wizard.Request, stage int) ([]model.Question, error) {
	if s.config.IsEnabled() {
		prompt := s.buildQuestionPrompt(req, stage)
		response, err := s.callModel(ctx, s.config.Models.StageQuestions, prompt)
		if err == nil {
			var parsed struct {
				Questions []model.Question `json:"questions"`
			}
			if jsonErr := json.Unmarshal([]byte(response), &parsed); jsonErr == nil && len(parsed.Questions) > 0 {
				fillQuestionIDs(parsed.Questions, stage)
				return parsed.Questions, nil
			}
		}
		s.log.Warn("model question generation failed, using mock", "stage", stage, "error", err)
	}
	return s.mockQuestions(req, stage), nil
}

func (s *CompletionService) interimAnalysis(ctx context.Context, req wizard.Request) *model.InterimAnalysis {
	if s.config.IsEnabled() {
		prompt := s.buildAnalysisPrompt(req, "interim")
		if response, err := s.callModel(ctx, s.config.Models.InterimAnalysis, prompt); err == nil {
			var analysis model.InterimAnalysis
			if json.Unmarshal([]byte(response), &analysis) == nil && analysis.Summary != "" {
				return &analysis
			}
		}
	}
	return &model.InterimAnalysis{
		Summary: fmt.Sprintf("Synthesis of %d stage-1 answers for %q.", len(req.Answers[0]), req.ConceptName),
	}
}

func (s *CompletionService) implicationsPreview(ctx context.Context, req wizard.Request) *model.ImplicationsPreview {
	if s.config.IsEnabled() {
		prompt := s.buildAnalysisPrompt(req, "implications")
		if response, err := s.callModel(ctx, s.config.Models.Implications, prompt); err == nil {
			var preview model.ImplicationsPreview
			if json.Unmarshal([]byte(response), &preview) == nil && preview.Summary != "" {
				return &preview
			}
		}
	}
	return &model.ImplicationsPreview{
		Summary: fmt.Sprintf("Implications of the stage-2 commitments for %q.", req.ConceptName),
	}
}

func (s *CompletionService) conceptDraft(ctx context.Context, req wizard.Request) *model.ConceptDraft {
	if s.config.IsEnabled() {
		prompt := s.buildAnalysisPrompt(req, "finalize")
		if response, err := s.callModel(ctx, s.config.Models.Finalize, prompt); err == nil {
			var draft model.ConceptDraft
			if json.Unmarshal([]byte(response), &draft) == nil && draft.Definition != "" {
				return &draft
			}
		}
	}
	return &model.ConceptDraft{
		Name:       req.ConceptName,
		Definition: fmt.Sprintf("Definition of %q drawn from the interview answers.", req.ConceptName),
	}
}

func (s *CompletionService) mockQuestions(req wizard.Request, stage int) []model.Question {
	questions := []model.Question{
		{
			Text:           fmt.Sprintf("What distinguishes %q from its nearest neighbor concept?", req.ConceptName),
			Type:           model.QuestionOpenEnded,
			AllowDialectic: true,
		},
		{
			Text: fmt.Sprintf("Which register does %q primarily operate in?", req.ConceptName),
			Type: model.QuestionSingleChoice,
			Options: []model.Option{
				{Value: "descriptive", Label: "Descriptive"},
				{Value: "normative", Label: "Normative"},
				{Value: "generative", Label: "Generative"},
			},
			AllowCustom: true,
		},
	}
	if stage == 1 && strings.TrimSpace(req.Notes) != "" {
		questions[0].Prefill = &model.Prefill{
			Value:      firstLine(req.Notes),
			Confidence: model.ConfidenceMedium,
			Reasoning:  "drawn from the opening of the notes",
			Excerpt:    firstLine(req.Notes),
		}
	}
	fillQuestionIDs(questions, stage)
	return questions
}

func fillQuestionIDs(questions []model.Question, stage int) {
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = fmt.Sprintf("s%d-%s", stage, uuid.NewString()[:8])
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (s *CompletionService) buildQuestionPrompt(req wizard.Request, stage int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\nStage: %d\nNotes:\n%s\n", req.ConceptName, stage, req.Notes)
	writeAnswerContext(&b, req)
	b.WriteString("\nProduce the next stage's interview questions as JSON {\"questions\":[...]}.")
	return b.String()
}

func (s *CompletionService) buildAnalysisPrompt(req wizard.Request, kind string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\nTask: %s\n", req.ConceptName, kind)
	writeAnswerContext(&b, req)
	if req.Interim != nil {
		fmt.Fprintf(&b, "\nInterim analysis so far: %s\n", req.Interim.Summary)
	}
	for _, d := range req.Dialectics {
		fmt.Fprintf(&b, "Preserved dialectic: %s vs %s\n", d.PoleA, d.PoleB)
	}
	return b.String()
}

func writeAnswerContext(b *strings.Builder, req wizard.Request) {
	for stage, answers := range req.Answers {
		for _, a := range answers {
			fmt.Fprintf(b, "stage %d answer %s: %s %v\n", stage+1, a.QuestionID, a.Text, a.SelectedValues)
		}
	}
}

// geminiRequest is the generateContent request body
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the subset of the generateContent response we read
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// callModel performs a single generateContent call and returns the raw text
// of the first candidate.
func (s *CompletionService) callModel(ctx context.Context, modelName, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := s.config.ModelEndpoint(modelName) + "?key=" + s.config.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("completion API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("completion returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
