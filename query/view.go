package query

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"civic-issues/models"
	"civic-issues/store"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// View keeps the latest snapshot of the issues collection for the whole
// process. Snapshots are replaced, never modified, so readers need no lock.
type View struct {
	store   store.IssueStore
	current atomic.Pointer[[]models.Issue]

	mu        sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	listeners map[int]chan struct{}
	nextID    int
}

func NewView(issues store.IssueStore) *View {
	return &View{
		store:     issues,
		listeners: make(map[int]chan struct{}),
	}
}

// Start subscribes to the store. Calls after the first are no-ops.
func (v *View) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("query view: closed")
	}
	if v.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots, err := v.store.Subscribe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("query view: subscribe: %w", err)
	}

	v.started = true
	v.cancel = cancel
	v.done = make(chan struct{})

	go v.consume(snapshots)

	return nil
}

func (v *View) consume(snapshots <-chan []models.Issue) {
	defer close(v.done)

	for snapshot := range snapshots {
		owned := slices.Clone(snapshot)
		v.current.Store(&owned)
		v.notify()

		log.WithField("issues", len(owned)).Debug("query view: snapshot replaced")
	}
}

func (v *View) notify() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, ch := range v.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (v *View) snapshot() []models.Issue {
	if p := v.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Snapshot returns a copy of the current snapshot.
func (v *View) Snapshot() []models.Issue {
	return slices.Clone(v.snapshot())
}

func (v *View) Derive(filter Filter) Views {
	return Derive(v.snapshot(), filter)
}

// Issue looks up one issue in the current snapshot.
func (v *View) Issue(id primitive.ObjectID) (models.Issue, bool) {
	for _, issue := range v.snapshot() {
		if issue.ID == id {
			return issue, true
		}
	}
	return models.Issue{}, false
}

// Changes signals after each new snapshot. Bursts collapse into one signal.
// The channel is closed when ctx is done or the view is closed.
func (v *View) Changes(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		close(ch)
		return ch
	}
	id := v.nextID
	v.nextID++
	v.listeners[id] = ch
	v.mu.Unlock()

	go func() {
		<-ctx.Done()

		v.mu.Lock()
		defer v.mu.Unlock()

		if _, ok := v.listeners[id]; ok {
			delete(v.listeners, id)
			close(ch)
		}
	}()

	return ch
}

// Close unsubscribes, drops the snapshot and closes every Changes channel.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	cancel, done := v.cancel, v.done
	v.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	v.current.Store(nil)

	v.mu.Lock()
	for id, ch := range v.listeners {
		delete(v.listeners, id)
		close(ch)
	}
	v.mu.Unlock()
}
