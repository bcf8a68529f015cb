package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"climalog/internal/modules/readings/types"
)

var ErrWriterClosed = errors.New("reading writer is closed")

const defaultQueueSize = 64

type appendRequest struct {
	ctx     context.Context
	reading types.Reading
	reply   chan appendResult
}

type appendResult struct {
	id  int64
	err error
}

// QueuedWriter funnels every Append through one goroutine so inserts are
// serialized regardless of how many requests arrive concurrently. Reads go
// straight to the wrapped repository.
type QueuedWriter struct {
	repo      ReadingsRepository
	queue     chan appendRequest
	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
	mu        sync.RWMutex

	// OnDepth, if set, observes the queue length after each enqueue and dequeue.
	OnDepth func(depth int)
}

type QueueOption func(*QueuedWriter)

func WithDepthObserver(fn func(depth int)) QueueOption {
	return func(w *QueuedWriter) { w.OnDepth = fn }
}

func NewQueuedWriter(repo ReadingsRepository, size int, opts ...QueueOption) *QueuedWriter {
	if size <= 0 {
		size = defaultQueueSize
	}
	w := &QueuedWriter{
		repo:  repo,
		queue: make(chan appendRequest, size),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

func (w *QueuedWriter) Append(ctx context.Context, rec types.Reading) (int64, error) {
	req := appendRequest{ctx: ctx, reading: rec, reply: make(chan appendResult, 1)}

	// The read lock keeps Close from closing the channel mid-send.
	w.mu.RLock()
	if w.closing.Load() {
		w.mu.RUnlock()
		return 0, ErrWriterClosed
	}
	select {
	case <-ctx.Done():
		w.mu.RUnlock()
		return 0, ctx.Err()
	case w.queue <- req:
	}
	w.mu.RUnlock()
	w.observeDepth()

	// Once queued, the writer decides the outcome: a request still waiting
	// when ctx ends is skipped, one already inserting completes.
	res := <-req.reply
	return res.id, res.err
}

func (w *QueuedWriter) QueryRecent(ctx context.Context, limit int) ([]types.Reading, error) {
	return w.repo.QueryRecent(ctx, limit)
}

func (w *QueuedWriter) Count(ctx context.Context) (int, error) {
	return w.repo.Count(ctx)
}

// Close stops accepting appends and waits until queued ones are written or
// ctx expires.
func (w *QueuedWriter) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closing.Store(true)
		close(w.queue)
		w.mu.Unlock()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *QueuedWriter) run() {
	defer close(w.done)
	for req := range w.queue {
		w.observeDepth()
		if err := req.ctx.Err(); err != nil {
			req.reply <- appendResult{err: err}
			continue
		}
		id, err := w.repo.Append(context.WithoutCancel(req.ctx), req.reading)
		req.reply <- appendResult{id: id, err: err}
	}
}

func (w *QueuedWriter) observeDepth() {
	if w.OnDepth != nil {
		w.OnDepth(len(w.queue))
	}
}
