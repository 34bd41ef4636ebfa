package model

import (
	"errors"
	"time"
)

// ClusterType classifies what a cluster's members propose
type ClusterType string

const (
	ClusterConceptImpact     ClusterType = "concept-impact"
	ClusterDialecticImpact   ClusterType = "dialectic-impact"
	ClusterEmergingConcept   ClusterType = "emerging-concept"
	ClusterEmergingDialectic ClusterType = "emerging-dialectic"
)

// ClusterStatus is the review status of a cluster
type ClusterStatus string

const (
	ClusterPending   ClusterStatus = "pending"
	ClusterReviewing ClusterStatus = "reviewing"
	ClusterResolved  ClusterStatus = "resolved"
)

// ClusterAction is the aggregator's recommended disposition
type ClusterAction string

const (
	ActionAccept      ClusterAction = "accept"
	ActionReject      ClusterAction = "reject"
	ActionMerge       ClusterAction = "merge"
	ActionRefine      ClusterAction = "refine"
	ActionHumanReview ClusterAction = "human-review"
)

// ClusterGroup is a server-computed batch of near-duplicate proposals.
// Similarity is computed upstream; this side only reads summaries and
// membership.
type ClusterGroup struct {
	ID             string        `json:"id" bson:"_id"`
	ConceptID      string        `json:"conceptId" bson:"conceptId"`
	Type           ClusterType   `json:"type" bson:"type"`
	Summary        string        `json:"summary" bson:"summary"`
	Recommendation string        `json:"recommendation" bson:"recommendation"`
	Action         ClusterAction `json:"action" bson:"action"`
	Status         ClusterStatus `json:"status" bson:"status"`
	TargetRef      string        `json:"targetRef,omitempty" bson:"targetRef,omitempty"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// ErrAmbiguousMember is returned when a cluster member references zero or
// more than one proposal entity.
var ErrAmbiguousMember = errors.New("cluster member must reference exactly one of challenge, emerging concept, emerging dialectic")

// ClusterMember ties one proposal into a cluster. Exactly one of ChallengeID,
// EmergingConceptID, EmergingDialecticID is set; Similarity is the member's
// score in [0,1] against the cluster's implicit centroid.
type ClusterMember struct {
	ID                  string  `json:"id" bson:"_id"`
	ClusterID           string  `json:"clusterId" bson:"clusterId"`
	ChallengeID         string  `json:"challengeId,omitempty" bson:"challengeId,omitempty"`
	EmergingConceptID   string  `json:"emergingConceptId,omitempty" bson:"emergingConceptId,omitempty"`
	EmergingDialecticID string  `json:"emergingDialecticId,omitempty" bson:"emergingDialecticId,omitempty"`
	Similarity          float64 `json:"similarity" bson:"similarity"`
}

// Validate enforces the single-reference invariant and the similarity range.
func (m *ClusterMember) Validate() error {
	refs := 0
	if m.ChallengeID != "" {
		refs++
	}
	if m.EmergingConceptID != "" {
		refs++
	}
	if m.EmergingDialecticID != "" {
		refs++
	}
	if refs != 1 {
		return ErrAmbiguousMember
	}
	if m.Similarity < 0 || m.Similarity > 1 {
		return errors.New("cluster member similarity out of range")
	}
	return nil
}

// NewClusterMember constructs a validated member.
func NewClusterMember(id, clusterID, challengeID, emergingConceptID, emergingDialecticID string, similarity float64) (*ClusterMember, error) {
	m := &ClusterMember{
		ID:                  id,
		ClusterID:           clusterID,
		ChallengeID:         challengeID,
		EmergingConceptID:   emergingConceptID,
		EmergingDialecticID: emergingDialecticID,
		Similarity:          similarity,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
