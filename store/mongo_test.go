package store

import (
	"context"
	"os"
	"testing"
	"time"

	"civic-issues/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MONGODB_TEST_URI must point at a replica set; change streams need one.
func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("civic_test_" + time.Now().Format("150405"))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := NewMongoStore(db)
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongoStore_Lifecycle(t *testing.T) {
	s := newTestMongoStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)
	assert.Empty(t, receive(t, ch))

	created := time.Now().UTC().Truncate(time.Millisecond)
	id, err := s.Create(ctx, newIssue("pothole", created))
	require.NoError(t, err)
	assert.Len(t, receive(t, ch), 1)

	require.NoError(t, s.Increment(ctx, id, FieldUpvotes, 1, created.Add(time.Second)))
	status := models.InProgress
	require.NoError(t, s.Update(ctx, id, Patch{Status: &status, UpdatedAt: created.Add(2 * time.Second)}))

	require.Eventually(t, func() bool {
		snapshot, err := s.Snapshot(ctx)
		return err == nil && len(snapshot) == 1 &&
			snapshot[0].Upvotes == 1 && snapshot[0].Status == models.InProgress
	}, 5*time.Second, 50*time.Millisecond)

	first, err := s.Record(ctx, id, "u1")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := s.Record(ctx, id, "u1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.Revoke(ctx, id, "u1"))
	first, err = s.Record(ctx, id, "u1")
	require.NoError(t, err)
	assert.True(t, first)
}
