package model

// CustomResponse is a write-in answer outside the offered options
type CustomResponse struct {
	Text     string `json:"text" bson:"text"`
	Category string `json:"category,omitempty" bson:"category,omitempty"`
}

// DialecticAnnotation marks a productive tension the user wants preserved
// rather than resolved
type DialecticAnnotation struct {
	PoleA string `json:"poleA" bson:"poleA"`
	PoleB string `json:"poleB" bson:"poleB"`
	Note  string `json:"note,omitempty" bson:"note,omitempty"`
}

// Answer is one submitted answer with its metadata. Exactly one of
// SelectedValues / Text / Custom carries the response unless the question is
// optional and the answer is empty.
type Answer struct {
	QuestionID string `json:"questionId" bson:"questionId"`
	// SelectedValues holds chosen option values, unique, in selection order
	SelectedValues []string             `json:"selectedValues,omitempty" bson:"selectedValues,omitempty"`
	Text           string               `json:"text,omitempty" bson:"text,omitempty"`
	Custom         *CustomResponse      `json:"custom,omitempty" bson:"custom,omitempty"`
	Dialectic      *DialecticAnnotation `json:"dialectic,omitempty" bson:"dialectic,omitempty"`
}

// IsEmpty reports whether the answer carries no response content. A dialectic
// annotation alone does not count as a response.
func (a *Answer) IsEmpty() bool {
	return len(a.SelectedValues) == 0 && a.Text == "" && (a.Custom == nil || a.Custom.Text == "")
}

// DialecticClaim is an accumulated dialectic with provenance. Claims are
// append-only for the life of a session and never deduplicated client-side.
type DialecticClaim struct {
	PoleA      string `json:"poleA" bson:"poleA"`
	PoleB      string `json:"poleB" bson:"poleB"`
	Note       string `json:"note,omitempty" bson:"note,omitempty"`
	QuestionID string `json:"questionId" bson:"questionId"` // which question produced it
}
