package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conceptforge/internal/model"
)

// ClusterRepo handles MongoDB operations for cluster groups and members.
// Similarity computation happens upstream; this layer only stores what the
// aggregator produced and serves summaries/membership reads.
type ClusterRepo interface {
	CreateGroup(ctx context.Context, g *model.ClusterGroup) error
	GetGroup(ctx context.Context, id string) (*model.ClusterGroup, error)
	ListByConcept(ctx context.Context, conceptID string) ([]*model.ClusterGroup, error)
	UpdateStatus(ctx context.Context, id string, status model.ClusterStatus) error
	AddMember(ctx context.Context, m *model.ClusterMember) error
	GetMembers(ctx context.Context, clusterID string) ([]*model.ClusterMember, error)
}

type clusterRepo struct {
	groups  *mongo.Collection
	members *mongo.Collection
}

// NewClusterRepo creates a new cluster repository
func NewClusterRepo(db *mongo.Database) ClusterRepo {
	return &clusterRepo{
		groups:  db.Collection("cluster_groups"),
		members: db.Collection("cluster_members"),
	}
}

func (r *clusterRepo) CreateGroup(ctx context.Context, g *model.ClusterGroup) error {
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	_, err := r.groups.InsertOne(ctx, g)
	return err
}

func (r *clusterRepo) GetGroup(ctx context.Context, id string) (*model.ClusterGroup, error) {
	var g model.ClusterGroup
	err := r.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *clusterRepo) ListByConcept(ctx context.Context, conceptID string) ([]*model.ClusterGroup, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.groups.Find(ctx, bson.M{"conceptId": conceptID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []*model.ClusterGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *clusterRepo) UpdateStatus(ctx context.Context, id string, status model.ClusterStatus) error {
	res, err := r.groups.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddMember rejects members violating the single-reference invariant before
// they ever reach storage.
func (r *clusterRepo) AddMember(ctx context.Context, m *model.ClusterMember) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.members.InsertOne(ctx, m)
	return err
}

func (r *clusterRepo) GetMembers(ctx context.Context, clusterID string) ([]*model.ClusterMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "similarity", Value: -1}})
	cursor, err := r.members.Find(ctx, bson.M{"clusterId": clusterID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*model.ClusterMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}
