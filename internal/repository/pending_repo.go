package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conceptforge/internal/model"
)

// PendingRepo handles MongoDB operations for the per-concept queue of
// evidence fragments awaiting a decision. Queue order is the Position field;
// positional reads sort on it, so consuming a document shifts every later
// fragment forward by one.
type PendingRepo interface {
	Create(ctx context.Context, p *model.PendingDecision) error
	CountPending(ctx context.Context, conceptID string) (int, error)
	// GetAt returns the pending fragment at the 0-based queue position, or
	// nil when the position is past the end of the queue.
	GetAt(ctx context.Context, conceptID string, index int) (*model.PendingDecision, error)
	GetByFragmentID(ctx context.Context, conceptID, fragmentID string) (*model.PendingDecision, error)
	// MarkDecided consumes the fragment: it leaves the pending queue.
	MarkDecided(ctx context.Context, conceptID, fragmentID string, d model.Decision) error
	// Defer moves the fragment to the queue tail without consuming it.
	Defer(ctx context.Context, conceptID, fragmentID string) error
}

type pendingRepo struct {
	collection *mongo.Collection
}

// NewPendingRepo creates a new pending-decision repository
func NewPendingRepo(db *mongo.Database) PendingRepo {
	return &pendingRepo{
		collection: db.Collection("pending_decisions"),
	}
}

func pendingFilter(conceptID string) bson.M {
	return bson.M{
		"conceptId":   conceptID,
		"decidedWith": bson.M{"$in": bson.A{nil, ""}},
	}
}

func (r *pendingRepo) Create(ctx context.Context, p *model.PendingDecision) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Position == 0 {
		pos, err := r.tailPosition(ctx, p.ConceptID)
		if err != nil {
			return err
		}
		p.Position = pos
	}
	_, err := r.collection.InsertOne(ctx, p)
	return err
}

func (r *pendingRepo) CountPending(ctx context.Context, conceptID string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, pendingFilter(conceptID))
	return int(n), err
}

func (r *pendingRepo) GetAt(ctx context.Context, conceptID string, index int) (*model.PendingDecision, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "position", Value: 1}}).
		SetSkip(int64(index)).
		SetLimit(1)

	cursor, err := r.collection.Find(ctx, pendingFilter(conceptID), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []*model.PendingDecision
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *pendingRepo) GetByFragmentID(ctx context.Context, conceptID, fragmentID string) (*model.PendingDecision, error) {
	filter := pendingFilter(conceptID)
	filter["fragment._id"] = fragmentID

	var p model.PendingDecision
	err := r.collection.FindOne(ctx, filter).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pendingRepo) MarkDecided(ctx context.Context, conceptID, fragmentID string, d model.Decision) error {
	filter := pendingFilter(conceptID)
	filter["fragment._id"] = fragmentID

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"decidedWith": d.InterpretationID,
			"decision":    d,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *pendingRepo) Defer(ctx context.Context, conceptID, fragmentID string) error {
	tail, err := r.tailPosition(ctx, conceptID)
	if err != nil {
		return err
	}

	filter := pendingFilter(conceptID)
	filter["fragment._id"] = fragmentID

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"position": tail},
		"$inc": bson.M{"deferrals": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// tailPosition returns a position strictly after every queued fragment for
// the concept.
func (r *pendingRepo) tailPosition(ctx context.Context, conceptID string) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "position", Value: -1}})

	var last model.PendingDecision
	err := r.collection.FindOne(ctx, bson.M{"conceptId": conceptID}, opts).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Position + 1, nil
}
