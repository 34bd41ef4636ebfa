package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conceptforge/internal/model"
)

// RecordRepo stores the concept's analytical record entries, the unit
// structural changes operate on. Entries are keyed by (conceptId, target).
type RecordRepo interface {
	Get(ctx context.Context, conceptID, target string) (*model.RecordEntry, error)
	Put(ctx context.Context, e *model.RecordEntry) error
	Retire(ctx context.Context, conceptID, target string) error
}

type recordRepo struct {
	collection *mongo.Collection
}

// NewRecordRepo creates a new concept-record repository
func NewRecordRepo(db *mongo.Database) RecordRepo {
	return &recordRepo{
		collection: db.Collection("record_entries"),
	}
}

func (r *recordRepo) Get(ctx context.Context, conceptID, target string) (*model.RecordEntry, error) {
	var e model.RecordEntry
	err := r.collection.FindOne(ctx, bson.M{"conceptId": conceptID, "target": target}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *recordRepo) Put(ctx context.Context, e *model.RecordEntry) error {
	e.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"conceptId": e.ConceptID, "target": e.Target}, e, opts)
	return err
}

func (r *recordRepo) Retire(ctx context.Context, conceptID, target string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"conceptId": conceptID, "target": target},
		bson.M{"$set": bson.M{"retired": true, "updatedAt": time.Now()}},
	)
	return err
}
