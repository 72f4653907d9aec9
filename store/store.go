// Package store persists issues and pushes collection snapshots to subscribers.
package store

import (
	"context"
	"time"

	"civic-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

//go:generate mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

const (
	IssuesCollection = "issues"
	VotesCollection  = "votes"

	FieldUpvotes = "upvotes"
)

// Patch is a partial update of an issue. Nil fields are left untouched.
type Patch struct {
	Status    *models.IssueStatus
	UpdatedAt time.Time
}

// IssueStore is the document store holding the issues collection.
type IssueStore interface {
	// Create writes the issue atomically and returns the id assigned by the store.
	Create(ctx context.Context, issue models.Issue) (primitive.ObjectID, error)
	Update(ctx context.Context, id primitive.ObjectID, patch Patch) error
	// Increment atomically adds delta to a numeric field and sets updatedAt.
	Increment(ctx context.Context, id primitive.ObjectID, field string, delta int64, at time.Time) error
	Snapshot(ctx context.Context) ([]models.Issue, error)
	// Subscribe pushes the current snapshot and then a fresh one after every change.
	// Slow readers only ever see the latest snapshot. The channel is closed when ctx is done.
	Subscribe(ctx context.Context) (<-chan []models.Issue, error)
}

// VoteLedger remembers which actor upvoted which issue.
type VoteLedger interface {
	// Record returns false when the actor already voted on the issue.
	Record(ctx context.Context, issueID primitive.ObjectID, actorID string) (bool, error)
	// Revoke forgets a recorded vote whose upvote could not be applied.
	Revoke(ctx context.Context, issueID primitive.ObjectID, actorID string) error
}

func publish(ch chan []models.Issue, snapshot []models.Issue) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
