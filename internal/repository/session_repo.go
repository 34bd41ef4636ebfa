package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conceptforge/internal/model"
)

// SessionRepo handles MongoDB operations for persisted wizard sessions.
// Writes are last-writer-wins: concurrent saves under the same key clobber
// each other by design.
type SessionRepo interface {
	Upsert(ctx context.Context, rec *model.SessionRecord) error
	GetByKey(ctx context.Context, key string) (*model.SessionRecord, error)
	SetStatus(ctx context.Context, key string, status model.SessionStatus) error
	TouchAccess(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Upsert(ctx context.Context, rec *model.SessionRecord) error {
	now := time.Now()
	rec.UpdatedAt = now
	rec.LastAccessAt = now

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": rec.Key}, upsertUpdate(rec, now), opts)
	return err
}

// upsertUpdate replaces every mutable column but pins createdAt to the first
// insert, so repeated mirrors never move the creation timestamp.
func upsertUpdate(rec *model.SessionRecord, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"conceptName":  rec.ConceptName,
			"stage":        rec.Stage,
			"status":       rec.Status,
			"state":        rec.State,
			"updatedAt":    now,
			"lastAccessAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
}

func (r *sessionRepo) GetByKey(ctx context.Context, key string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, key string, status model.SessionStatus) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": key}, bson.M{
		"$set": bson.M{
			"status":       status,
			"updatedAt":    time.Now(),
			"lastAccessAt": time.Now(),
		},
	})
	return err
}

func (r *sessionRepo) TouchAccess(ctx context.Context, key string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": key}, bson.M{
		"$set": bson.M{"lastAccessAt": time.Now()},
	})
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
