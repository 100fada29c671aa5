package engine

import (
	"context"
	"sync"

	"github.com/collstore/collstore/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// writeRequest is one queued persistence request. done receives the write's
// outcome exactly once; only callers that must block on durability (drop)
// hold on to it.
type writeRequest struct {
	done chan error
}

// writeQueue serializes all full-state persistence writes through a single
// worker, so at most one disk write is in flight engine-wide.
//
// The state to persist is snapshotted when a request is *serviced*, not when
// it is enqueued: every completed write is internally consistent and the
// final queued request always reflects the latest state. When the channel is
// full, a fire-and-forget enqueue coalesces into the already-pending request,
// which will serialize the later state anyway.
type writeQueue struct {
	requests chan *writeRequest
	limiter  *rate.Limiter // optional write throttle

	snapshot func() *model.State
	write    func(context.Context, *model.State) error
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWriteQueue(depth int, limiter *rate.Limiter, snapshot func() *model.State, write func(context.Context, *model.State) error, logger *zap.SugaredLogger) *writeQueue {
	if depth <= 0 {
		depth = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &writeQueue{
		requests: make(chan *writeRequest, depth),
		limiter:  limiter,
		snapshot: snapshot,
		write:    write,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *writeQueue) start() {
	q.wg.Add(1)
	go q.run()
}

func (q *writeQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			// Drain whatever was enqueued before shutdown so the final
			// in-memory state still reaches disk.
			for {
				select {
				case req := <-q.requests:
					q.service(req)
				default:
					return
				}
			}
		case req := <-q.requests:
			q.service(req)
		}
	}
}

func (q *writeQueue) service(req *writeRequest) {
	if q.limiter != nil {
		// A cancelled context means shutdown; write anyway, it is the last one.
		_ = q.limiter.Wait(q.ctx)
	}

	st := q.snapshot()
	err := q.write(context.Background(), st)
	if err != nil {
		// Ordinary mutators do not await completion; the failure is still
		// visible here and to whoever holds req.done.
		q.logger.Errorw("state write failed", "error", err)
	}

	if req.done != nil {
		req.done <- err
	}
}

// enqueue submits a fire-and-forget persistence request. If the queue is
// full the request coalesces with one already pending.
func (q *writeQueue) enqueue() {
	select {
	case q.requests <- &writeRequest{}:
	default:
	}
}

// enqueueWait submits a persistence request and blocks until the resulting
// write completes, returning its error. Used by operations that treat
// durability as a completion gate.
func (q *writeQueue) enqueueWait() error {
	select {
	case <-q.ctx.Done():
		return ErrClosed
	default:
	}

	req := &writeRequest{done: make(chan error, 1)}
	select {
	case q.requests <- req:
	case <-q.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-req.done:
		return err
	case <-q.ctx.Done():
		// The shutdown drain may still service the request; if it already
		// has, report that outcome.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// close stops the worker after draining pending requests.
func (q *writeQueue) close() {
	q.cancel()
	q.wg.Wait()
}
