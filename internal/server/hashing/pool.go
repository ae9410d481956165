// Package hashing runs password hashing on a bounded worker pool so that a
// burst of logins cannot consume unbounded CPU and memory.
package hashing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrSaturated is returned under PolicyReject when the queue is full.
	ErrSaturated = errors.New("hash pool saturated")
	// ErrClosed is returned for work submitted to, or pending on, a closed pool.
	ErrClosed = errors.New("hash pool closed")
)

// Policy decides what Submit does when the queue is full.
type Policy int

const (
	// PolicyReject fails fast with ErrSaturated.
	PolicyReject Policy = iota
	// PolicyWait blocks until a queue slot frees or the context ends.
	PolicyWait
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyWait:
		return "wait"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "reject" or "wait".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject", "":
		return PolicyReject, nil
	case "wait":
		return PolicyWait, nil
	default:
		return 0, fmt.Errorf("unknown hash pool policy %q", s)
	}
}

// PoolOptions configure a Pool.
type PoolOptions struct {
	Workers int
	Queue   int
	Policy  Policy

	// OnQueueChange, if set, is called with the number of queued jobs
	// whenever a job is enqueued or picked up.
	OnQueueChange func(depth int)
}

type job struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
}

// Pool is a fixed set of workers draining a bounded queue. A job holds one
// of Workers+Queue slots from submission until a worker has finished with it.
type Pool struct {
	slots  chan struct{}
	jobs   chan *job
	quit   chan struct{}
	policy Policy
	notify func(int)

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts opts.Workers workers. Workers below 1 is treated as 1 and a
// negative queue as 0.
func NewPool(opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Queue < 0 {
		opts.Queue = 0
	}

	p := &Pool{
		slots:  make(chan struct{}, opts.Workers+opts.Queue),
		jobs:   make(chan *job, opts.Workers+opts.Queue),
		quit:   make(chan struct{}),
		policy: opts.Policy,
		notify: opts.OnQueueChange,
	}

	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			p.report()
			// the submitter may already have given up
			if j.ctx.Err() == nil {
				j.fn()
			}
			close(j.done)
			<-p.slots
		}
	}
}

func (p *Pool) report() {
	if p.notify != nil {
		p.notify(len(p.jobs))
	}
}

// Submit queues fn and waits for it to finish. It returns ErrSaturated,
// ErrClosed or the context's error when fn did not run to completion.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.quit:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}

	switch p.policy {
	case PolicyWait:
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			return ErrClosed
		}
	default:
		select {
		case p.slots <- struct{}{}:
		default:
			return ErrSaturated
		}
	}
	// never blocks: jobs has room for every slot
	p.jobs <- j
	p.report()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		// a worker may have been mid-job when the pool closed
		select {
		case <-j.done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Depth returns the number of jobs waiting for a worker.
func (p *Pool) Depth() int {
	return len(p.jobs)
}

// Close stops the workers after their current job. Queued jobs are dropped
// and their submitters get ErrClosed.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
