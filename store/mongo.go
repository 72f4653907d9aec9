package store

import (
	"context"
	"fmt"
	"time"

	"civic-issues/models"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps issues in MongoDB and relies on change streams for
// subscriptions, so the server must run as a replica set.
type MongoStore struct {
	issues *mongo.Collection
	votes  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		issues: db.Collection(IssuesCollection),
		votes:  db.Collection(VotesCollection),
	}
}

// EnsureIndexes creates the createdAt index used for listing and the unique vote index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("s.issues.Indexes.CreateMany: %w", err)
	}

	if err := models.EnsureVoteIndex(ctx, s.votes); err != nil {
		return fmt.Errorf("models.EnsureVoteIndex: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, issue models.Issue) (primitive.ObjectID, error) {
	issue.ID = primitive.NewObjectID()

	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
		return primitive.NilObjectID, fmt.Errorf("s.issues.InsertOne: %w", err)
	}
	return issue.ID, nil
}

func (s *MongoStore) Update(ctx context.Context, id primitive.ObjectID, patch Patch) error {
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}

	res, err := s.issues.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("s.issues.UpdateOne: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Increment(ctx context.Context, id primitive.ObjectID, field string, delta int64, at time.Time) error {
	if field != FieldUpvotes {
		return fmt.Errorf("%w: field %q is not a counter", models.ErrInvalidInput, field)
	}

	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{"updatedAt": at},
	}

	res, err := s.issues.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("s.issues.UpdateOne: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Snapshot(ctx context.Context) ([]models.Issue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.issues.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("s.issues.Find: %w", err)
	}
	defer cursor.Close(ctx)

	issues := make([]models.Issue, 0)
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("cursor.All: %w", err)
	}
	return issues, nil
}

func (s *MongoStore) Subscribe(ctx context.Context) (<-chan []models.Issue, error) {
	// Open the stream before reading the first snapshot so no change falls in between.
	stream, err := s.issues.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("s.issues.Watch: %w", err)
	}

	initial, err := s.Snapshot(ctx)
	if err != nil {
		_ = stream.Close(context.Background())
		return nil, err
	}

	ch := make(chan []models.Issue, 1)
	ch <- initial

	go func() {
		defer close(ch)
		defer func() {
			if err := stream.Close(context.Background()); err != nil {
				log.Errorf("store.MongoStore: stream.Close: %v", err)
			}
		}()

		for stream.Next(ctx) {
			snapshot, err := s.Snapshot(ctx)
			if err != nil {
				log.Errorf("store.MongoStore: refresh snapshot: %v", err)
				continue
			}
			publish(ch, snapshot)
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			log.Errorf("store.MongoStore: change stream stopped: %v", err)
		}
	}()

	return ch, nil
}

func (s *MongoStore) Record(ctx context.Context, issueID primitive.ObjectID, actorID string) (bool, error) {
	vote := models.Vote{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		User:      actorID,
		CreatedAt: time.Now(),
	}

	if _, err := s.votes.InsertOne(ctx, vote); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("s.votes.InsertOne: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Revoke(ctx context.Context, issueID primitive.ObjectID, actorID string) error {
	if _, err := s.votes.DeleteOne(ctx, bson.M{"issue": issueID, "user": actorID}); err != nil {
		return fmt.Errorf("s.votes.DeleteOne: %w", err)
	}
	return nil
}
