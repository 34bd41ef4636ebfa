package model

import "time"

// RelationshipType is how an evidence fragment relates to the concept record
type RelationshipType string

const (
	RelIllustrates RelationshipType = "illustrates"
	RelDeepens     RelationshipType = "deepens"
	RelChallenges  RelationshipType = "challenges"
	RelLimits      RelationshipType = "limits"
	RelBridges     RelationshipType = "bridges"
	RelInverts     RelationshipType = "inverts"
)

// EvidenceFragment is one piece of extracted evidence that could not be
// applied automatically and needs a human decision.
type EvidenceFragment struct {
	ID           string           `json:"id" bson:"_id"`
	ConceptID    string           `json:"conceptId" bson:"conceptId"`
	Content      string           `json:"content" bson:"content"`
	Citation     string           `json:"citation" bson:"citation"`
	Target       string           `json:"target" bson:"target"` // dimension/operation reference
	Confidence   float64          `json:"confidence" bson:"confidence"`
	Relationship RelationshipType `json:"relationship" bson:"relationship"`
	Rationale    string           `json:"rationale" bson:"rationale"` // why this needs a decision
}

// ChangeType categorizes a structural change to the concept record
type ChangeType string

const (
	ChangeAddEntry     ChangeType = "add_entry"
	ChangeReviseEntry  ChangeType = "revise_entry"
	ChangeSplitEntry   ChangeType = "split_entry"
	ChangeMergeEntries ChangeType = "merge_entries"
	ChangeRetireEntry  ChangeType = "retire_entry"
)

// StructuralChange is one atomic edit to the concept's analytical record.
// Changes are only ever applied as part of their parent interpretation, all
// together or not at all.
type StructuralChange struct {
	ID           string     `json:"id" bson:"id"`
	Type         ChangeType `json:"type" bson:"type"`
	Target       string     `json:"target" bson:"target"`
	Before       string     `json:"before,omitempty" bson:"before,omitempty"`
	After        string     `json:"after" bson:"after"`
	Commitment   string     `json:"commitment,omitempty" bson:"commitment,omitempty"`
	Foreclosures []string   `json:"foreclosures,omitempty" bson:"foreclosures,omitempty"`
}

// Interpretation is one mutually exclusive structural reading of a fragment,
// bundling the ordered changes that realize it.
type Interpretation struct {
	ID          string             `json:"id" bson:"id"`
	Title       string             `json:"title" bson:"title"`
	Strategy    string             `json:"strategy" bson:"strategy"`
	Recommended bool               `json:"recommended,omitempty" bson:"recommended,omitempty"`
	Changes     []StructuralChange `json:"changes" bson:"changes"`
}

// ChangeIDs returns the ids of the interpretation's changes in order.
func (i *Interpretation) ChangeIDs() []string {
	ids := make([]string, len(i.Changes))
	for n, c := range i.Changes {
		ids[n] = c.ID
	}
	return ids
}

// PendingStatus is the queue status of a fragment awaiting a decision
type PendingStatus string

const (
	PendingOpen    PendingStatus = "pending"
	PendingDecided PendingStatus = "decided"
	PendingSkipped PendingStatus = "skipped" // deferred, still pending, moved to tail
)

// PendingDecision is a queued fragment with its competing interpretations.
// Position orders the concept's queue; skip moves a fragment to the tail
// without consuming it.
type PendingDecision struct {
	ID              string           `json:"id" bson:"_id"`
	ConceptID       string           `json:"conceptId" bson:"conceptId"`
	Fragment        EvidenceFragment `json:"fragment" bson:"fragment"`
	Interpretations []Interpretation `json:"interpretations" bson:"interpretations"`
	Position        int64            `json:"position" bson:"position"`
	Deferrals       int              `json:"deferrals" bson:"deferrals"`
	DecidedWith     string           `json:"decidedWith,omitempty" bson:"decidedWith,omitempty"` // interpretation id
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt"`
}

// Decision is a recorded resolution of a pending fragment. Rejected ids stay
// in the record for audit even though the current design always submits an
// interpretation whole.
type Decision struct {
	FragmentID        string    `json:"fragmentId" bson:"fragmentId"`
	InterpretationID  string    `json:"interpretationId" bson:"interpretationId"`
	AcceptedChangeIDs []string  `json:"acceptedChangeIds" bson:"acceptedChangeIds"`
	RejectedChangeIDs []string  `json:"rejectedChangeIds" bson:"rejectedChangeIds"`
	DecidedAt         time.Time `json:"decidedAt" bson:"decidedAt"`
}

// RecordEntry is one addressable entry of a concept's analytical record,
// the unit structural changes operate on.
type RecordEntry struct {
	ConceptID string    `json:"conceptId" bson:"conceptId"`
	Target    string    `json:"target" bson:"target"` // dimension/operation reference
	Content   string    `json:"content" bson:"content"`
	Retired   bool      `json:"retired,omitempty" bson:"retired,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
