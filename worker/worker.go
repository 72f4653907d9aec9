// Package worker runs queued calls on a fixed set of goroutines. Calls
// pushed under the same key always land on the same goroutine, so they
// run one at a time in push order.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultCount = 4

var ErrStopped = errors.New("worker pool stopped")

type Call func(ctx context.Context) error

type Pool struct {
	shards []*shard
	wg     sync.WaitGroup
	once   sync.Once
}

type shard struct {
	mu     sync.Mutex
	queue  []Call
	notify chan struct{}
	closed bool
}

// NewPool starts count workers. Cancelling ctx stops them without draining.
func NewPool(ctx context.Context, count int) *Pool {
	if count <= 0 {
		count = DefaultCount
	}

	pool := &Pool{shards: make([]*shard, count)}
	pool.wg.Add(count)

	for index := range pool.shards {
		index := index
		s := &shard{notify: make(chan struct{}, 1)}
		pool.shards[index] = s

		go func() {
			defer pool.wg.Done()
			s.run(ctx, index)
		}()
	}

	return pool
}

// Push queues call behind every earlier call with the same key. It never
// blocks on the call itself.
func (p *Pool) Push(key string, call Call) error {
	s := p.shards[xxhash.Sum64String(key)%uint64(len(p.shards))]

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	s.queue = append(s.queue, call)
	s.mu.Unlock()

	s.wake()
	return nil
}

// StopWait rejects new calls and blocks until every queued call has run.
func (p *Pool) StopWait() {
	p.once.Do(func() {
		for _, s := range p.shards {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.wake()
		}
	})
	p.wg.Wait()
}

func (s *shard) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *shard) next(ctx context.Context) (Call, bool) {
	s.mu.Lock()
	for len(s.queue) == 0 {
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-s.notify:
		}

		s.mu.Lock()
	}

	call := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.mu.Unlock()

	return call, true
}

func (s *shard) run(ctx context.Context, index int) {
	for {
		call, ok := s.next(ctx)
		if !ok {
			if ctx.Err() != nil {
				log.WithField("worker", index).Warn("worker.pool: context cancelled: worker stopped")
			}
			return
		}
		if err := call(ctx); err != nil {
			log.WithField("worker", index).Errorf("worker.pool: worker call failed: %v", err)
		}
	}
}
