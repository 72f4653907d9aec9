// Package mutation applies upvotes and status changes to stored issues.
// Calls return as soon as the write is queued; writes to one issue are
// applied in call order.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-issues/models"
	"civic-issues/store"
	"civic-issues/worker"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Op names the kind of write that failed.
type Op string

const (
	OpUpvote    Op = "upvote"
	OpSetStatus Op = "set_status"
)

// ErrorHandler observes writes that failed after the call returned.
type ErrorHandler func(op Op, issueID primitive.ObjectID, err error)

type Engine struct {
	store   store.IssueStore
	ledger  store.VoteLedger
	policy  models.Policy
	pool    *worker.Pool
	workers int
	onError ErrorHandler
	now     func() time.Time
	cancel  context.CancelFunc
}

type Option func(*Engine)

func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithUpvoteLedger limits each actor to one upvote per issue.
func WithUpvoteLedger(ledger store.VoteLedger) Option {
	return func(e *Engine) { e.ledger = ledger }
}

func WithErrorHandler(fn ErrorHandler) Option {
	return func(e *Engine) { e.onError = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(issues store.IssueStore, policy models.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:   issues,
		policy:  policy,
		workers: worker.DefaultCount,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Writes outlive the request that queued them.
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.pool = worker.NewPool(ctx, e.workers)

	return e
}

// Upvote queues a +1 on the issue's upvote count.
func (e *Engine) Upvote(_ context.Context, actor models.Actor, issueID primitive.ObjectID) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%w: sign in to upvote", models.ErrUnauthorized)
	}

	at := e.now()
	return e.enqueue(OpUpvote, issueID, func(ctx context.Context) error {
		if e.ledger != nil {
			first, err := e.ledger.Record(ctx, issueID, actor.ID)
			if err != nil {
				return err
			}
			if !first {
				log.WithFields(log.Fields{
					"issue": issueID.Hex(),
					"actor": actor.ID,
				}).Debug("mutation: repeat upvote ignored")
				return nil
			}
		}

		err := e.store.Increment(ctx, issueID, store.FieldUpvotes, 1, at)
		if err != nil && e.ledger != nil {
			// The vote was never counted, so the actor may try again.
			if rerr := e.ledger.Revoke(ctx, issueID, actor.ID); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	})
}

// SetStatus queues a status change. Any status may follow any other.
func (e *Engine) SetStatus(_ context.Context, actor models.Actor, issueID primitive.ObjectID, status models.IssueStatus) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%w: sign in to change status", models.ErrUnauthorized)
	}
	if e.policy == nil || !e.policy.IsPrivileged(actor) {
		return fmt.Errorf("%w: status changes need a privileged role", models.ErrForbidden)
	}
	if _, ok := models.ParseStatus(string(status)); !ok {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}

	at := e.now()
	return e.enqueue(OpSetStatus, issueID, func(ctx context.Context) error {
		return e.store.Update(ctx, issueID, store.Patch{Status: &status, UpdatedAt: at})
	})
}

func (e *Engine) enqueue(op Op, issueID primitive.ObjectID, write worker.Call) error {
	err := e.pool.Push(issueID.Hex(), func(ctx context.Context) error {
		if err := write(ctx); err != nil {
			if e.onError != nil {
				e.onError(op, issueID, err)
			}
			return fmt.Errorf("mutation %s on %s: %w", op, issueID.Hex(), err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mutation %s: %w", op, err)
	}
	return nil
}

// Close waits for queued writes, then stops the workers.
func (e *Engine) Close() {
	e.pool.StopWait()
	e.cancel()
}
