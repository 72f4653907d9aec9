package store

import (
	"context"
	"testing"
	"time"

	"civic-issues/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIssue(title string, createdAt time.Time) models.Issue {
	return models.Issue{
		Title:     title,
		Category:  models.Pothole,
		Severity:  models.Low,
		Status:    models.Reported,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func receive(t *testing.T, ch <-chan []models.Issue) []models.Issue {
	t.Helper()
	select {
	case snapshot, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snapshot
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed")
		return nil
	}
}

func TestMemoryStore_CreateAssignsID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Create(ctx, newIssue("first", time.Now()))
	require.NoError(t, err)
	b, err := s.Create(ctx, newIssue("second", time.Now()))
	require.NoError(t, err)

	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
}

func TestMemoryStore_SnapshotNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

	_, _ = s.Create(ctx, newIssue("old", base))
	_, _ = s.Create(ctx, newIssue("new", base.Add(time.Hour)))

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", snapshot[0].Title)
	assert.Equal(t, "old", snapshot[1].Title)
}

func TestMemoryStore_UpdateAndIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created := time.Now()

	id, err := s.Create(ctx, newIssue("lamp", created))
	require.NoError(t, err)

	later := created.Add(time.Minute)
	status := models.Resolved
	require.NoError(t, s.Update(ctx, id, Patch{Status: &status, UpdatedAt: later}))
	require.NoError(t, s.Increment(ctx, id, FieldUpvotes, 2, later.Add(time.Minute)))

	snapshot, _ := s.Snapshot(ctx)
	require.Len(t, snapshot, 1)
	assert.Equal(t, models.Resolved, snapshot[0].Status)
	assert.Equal(t, int64(2), snapshot[0].Upvotes)
	assert.Equal(t, later.Add(time.Minute), snapshot[0].UpdatedAt)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	missing := primitive.NewObjectID()

	assert.ErrorIs(t, s.Increment(ctx, missing, FieldUpvotes, 1, time.Now()), models.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, missing, Patch{UpdatedAt: time.Now()}), models.ErrNotFound)
}

func TestMemoryStore_IncrementRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, _ := s.Create(ctx, newIssue("x", time.Now()))

	assert.ErrorIs(t, s.Increment(ctx, id, "severity", 1, time.Now()), models.ErrInvalidInput)
}

func TestMemoryStore_SubscribePushesSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	_, _ = s.Create(ctx, newIssue("existing", time.Now()))

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)
	assert.Len(t, receive(t, ch), 1)

	_, _ = s.Create(ctx, newIssue("added", time.Now()))
	assert.Len(t, receive(t, ch), 2)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_SlowSubscriberSeesLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = s.Create(ctx, newIssue("issue", time.Now()))
	}

	assert.Len(t, receive(t, ch), 5)
}

func TestMemoryStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	issue := primitive.NewObjectID()

	first, err := s.Record(ctx, issue, "u1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.Record(ctx, issue, "u1")
	require.NoError(t, err)
	assert.False(t, again)

	other, _ := s.Record(ctx, issue, "u2")
	assert.True(t, other)

	require.NoError(t, s.Revoke(ctx, issue, "u1"))
	afterRevoke, err := s.Record(ctx, issue, "u1")
	require.NoError(t, err)
	assert.True(t, afterRevoke)
}
