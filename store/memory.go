package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"civic-issues/models"

	mapset "github.com/deckarep/golang-set/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process IssueStore and VoteLedger. Every write
// pushes a new snapshot to subscribers, like the Mongo change stream does.
type MemoryStore struct {
	mu      sync.Mutex
	issues  map[primitive.ObjectID]models.Issue
	votes   mapset.Set[string]
	subs    map[int]chan []models.Issue
	nextSub int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues: make(map[primitive.ObjectID]models.Issue),
		votes:  mapset.NewThreadUnsafeSet[string](),
		subs:   make(map[int]chan []models.Issue),
	}
}

func (s *MemoryStore) Create(ctx context.Context, issue models.Issue) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue.ID = primitive.NewObjectID()
	s.issues[issue.ID] = issue
	s.broadcast()

	return issue.ID, nil
}

func (s *MemoryStore) Update(ctx context.Context, id primitive.ObjectID, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	issue.UpdatedAt = patch.UpdatedAt
	s.issues[id] = issue
	s.broadcast()

	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, id primitive.ObjectID, field string, delta int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if field != FieldUpvotes {
		return fmt.Errorf("%w: field %q is not a counter", models.ErrInvalidInput, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return fmt.Errorf("issue %s: %w", id.Hex(), models.ErrNotFound)
	}
	issue.Upvotes += delta
	issue.UpdatedAt = at
	s.issues[id] = issue
	s.broadcast()

	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context) ([]models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan []models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan []models.Issue, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshot()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.subs, id)
		close(ch)
	}()

	return ch, nil
}

func (s *MemoryStore) Record(ctx context.Context, issueID primitive.ObjectID, actorID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.votes.Add(voteKey(issueID, actorID)), nil
}

func (s *MemoryStore) Revoke(ctx context.Context, issueID primitive.ObjectID, actorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.votes.Remove(voteKey(issueID, actorID))
	return nil
}

func voteKey(issueID primitive.ObjectID, actorID string) string {
	return issueID.Hex() + ":" + actorID
}

// snapshot copies the collection, newest first. Callers hold mu.
func (s *MemoryStore) snapshot() []models.Issue {
	out := make([]models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// broadcast pushes a fresh snapshot to every subscriber. Callers hold mu.
func (s *MemoryStore) broadcast() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.snapshot()
	for _, ch := range s.subs {
		publish(ch, snapshot)
	}
}
