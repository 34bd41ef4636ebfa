package service

import (
	"context"

	"conceptforge/internal/logger"
	"conceptforge/internal/model"
	"conceptforge/internal/repository"
)

// ClusterService is the read glue over the aggregator's output: cluster
// summaries and membership. Grouping and similarity are computed upstream
// and never recomputed here.
type ClusterService struct {
	repo repository.ClusterRepo
	log  *logger.Logger
}

// NewClusterService creates a new cluster service
func NewClusterService(repo repository.ClusterRepo, log *logger.Logger) *ClusterService {
	return &ClusterService{
		repo: repo,
		log:  log.With("component", "clusters"),
	}
}

// ClusterSummary is a group with its member count, the shape list views
// render.
type ClusterSummary struct {
	model.ClusterGroup
	MemberCount int `json:"memberCount"`
}

// ListByConcept returns summaries of every cluster targeting the concept.
func (s *ClusterService) ListByConcept(ctx context.Context, conceptID string) ([]ClusterSummary, error) {
	groups, err := s.repo.ListByConcept(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ClusterSummary, 0, len(groups))
	for _, g := range groups {
		members, err := s.repo.GetMembers(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ClusterSummary{ClusterGroup: *g, MemberCount: len(members)})
	}
	return summaries, nil
}

// Members returns a cluster's membership, highest similarity first.
func (s *ClusterService) Members(ctx context.Context, clusterID string) ([]*model.ClusterMember, error) {
	return s.repo.GetMembers(ctx, clusterID)
}

// SetStatus advances a cluster through pending -> reviewing -> resolved.
func (s *ClusterService) SetStatus(ctx context.Context, clusterID string, status model.ClusterStatus) error {
	return s.repo.UpdateStatus(ctx, clusterID, status)
}
