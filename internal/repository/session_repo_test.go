package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"conceptforge/internal/model"
)

func TestUpsertUpdatePinsCreatedAt(t *testing.T) {
	rec := &model.SessionRecord{
		Key:         "sess-1",
		ConceptName: "liminality",
		Stage:       "stage2",
		Status:      model.SessionActive,
		State:       model.WizardSession{Key: "sess-1", State: model.StateStage2},
	}
	now := time.Now()

	update := upsertUpdate(rec, now)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	_, touchesCreatedAt := set["createdAt"]
	assert.False(t, touchesCreatedAt, "repeated saves must not move the creation timestamp")
	assert.Equal(t, "liminality", set["conceptName"])
	assert.Equal(t, "stage2", set["stage"])
	assert.Equal(t, model.SessionActive, set["status"])
	assert.Equal(t, now, set["updatedAt"])
	assert.Equal(t, now, set["lastAccessAt"])

	insert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, now, insert["createdAt"])
}
