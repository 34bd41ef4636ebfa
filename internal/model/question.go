package model

// QuestionType defines how a question is answered
type QuestionType string

const (
	QuestionOpenEnded    QuestionType = "OPEN_ENDED"    // Free text
	QuestionSingleChoice QuestionType = "SINGLE_CHOICE" // Exactly one option
	QuestionMultiChoice  QuestionType = "MULTI_CHOICE"  // Any number of options
)

// ConfidenceTier grades a prefilled suggestion
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Option is a selectable choice on a question. Options sharing a non-empty
// ExclusiveGroup are mutually exclusive with each other but not with options
// outside the group.
type Option struct {
	Value          string `json:"value" bson:"value"`
	Label          string `json:"label" bson:"label"`
	ExclusiveGroup string `json:"exclusiveGroup,omitempty" bson:"exclusiveGroup,omitempty"`
	Implications   string `json:"implications,omitempty" bson:"implications,omitempty"`
}

// Prefill is a suggested answer pre-loaded from notes analysis. It is
// materialized into the stage's draft buffer, editable, never auto-submitted.
type Prefill struct {
	Value      string         `json:"value" bson:"value"`
	Confidence ConfidenceTier `json:"confidence" bson:"confidence"`
	Reasoning  string         `json:"reasoning,omitempty" bson:"reasoning,omitempty"`
	Excerpt    string         `json:"excerpt,omitempty" bson:"excerpt,omitempty"` // source excerpt the suggestion came from
}

// Question is one interview question inside a wizard stage
type Question struct {
	ID             string       `json:"id" bson:"id"`
	Text           string       `json:"text" bson:"text"`
	Type           QuestionType `json:"type" bson:"type"`
	Options        []Option     `json:"options,omitempty" bson:"options,omitempty"`
	Prefill        *Prefill     `json:"prefill,omitempty" bson:"prefill,omitempty"`
	Optional       bool         `json:"optional,omitempty" bson:"optional,omitempty"`
	AllowCustom    bool         `json:"allowCustomResponse,omitempty" bson:"allowCustomResponse,omitempty"`
	AllowDialectic bool         `json:"allowMarkDialectic,omitempty" bson:"allowMarkDialectic,omitempty"`
}

// OptionByValue returns the option with the given value, or nil.
func (q *Question) OptionByValue(value string) *Option {
	for i := range q.Options {
		if q.Options[i].Value == value {
			return &q.Options[i]
		}
	}
	return nil
}

// ApplySelection returns the selection set after choosing value on q,
// honoring the question type and exclusivity groups: single-choice questions
// keep only the new value; on multi-choice, the new value evicts prior
// selections sharing its exclusivity group and leaves the rest alone.
func ApplySelection(q *Question, selected []string, value string) []string {
	if q.Type == QuestionSingleChoice {
		return []string{value}
	}

	opt := q.OptionByValue(value)
	group := ""
	if opt != nil {
		group = opt.ExclusiveGroup
	}

	next := make([]string, 0, len(selected)+1)
	for _, v := range selected {
		if v == value {
			continue // re-selecting moves it to the end, no duplicate
		}
		if group != "" {
			if other := q.OptionByValue(v); other != nil && other.ExclusiveGroup == group {
				continue
			}
		}
		next = append(next, v)
	}
	return append(next, value)
}
