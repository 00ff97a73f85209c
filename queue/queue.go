// Package queue provides an in-process, at-least-once message queue backed
// by a worker pool. The ingestion pipeline publishes one message per stage;
// failed messages are redelivered up to a retry cap and then dropped with an
// error log.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/ronbun/core"
)

const defaultMaxAttempts = 3

var (
	// ErrQueueClosed is returned when publishing to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrHandlerRequired is returned when a handler is not provided.
	ErrHandlerRequired = errors.New("handler required")
)

// Message is one unit of pipeline work: run a stage for a paper.
type Message struct {
	PaperID string
	ArxivID string
	Stage   core.Stage
	Attempt int // delivery attempt, starting at 1
}

// Publisher enqueues pipeline messages. Satisfied by Queue; test doubles
// implement it to capture published work.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler consumes one message. A non-nil error triggers redelivery until
// the attempt cap is reached.
type Handler func(ctx context.Context, msg Message) error

// Queue is an in-process at-least-once queue with pooled consumers. Published
// messages land in an unbounded pending list; a dispatcher goroutine feeds
// them to the pool. Handlers therefore never block on a pool slot when they
// publish follow-up work, even with a single worker.
type Queue struct {
	pool        *ants.Pool
	handler     Handler
	maxAttempts int
	logger      *slog.Logger
	wg          sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Message
	closed  bool
}

var _ Publisher = (*Queue)(nil)

// Option configures a Queue.
type Option func(*Queue) error

// WithWorkers sets the consumer pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) Option {
	return func(q *Queue) error {
		if size < 1 {
			size = 1
		}
		if q.pool != nil {
			q.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		q.pool = pool
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt cap.
// Default is 3.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			n = 1
		}
		q.maxAttempts = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// New creates a queue consuming with the given handler.
func New(handler Handler, opts ...Option) (*Queue, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		pool:        pool,
		handler:     handler,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(q); optErr != nil {
			q.pool.Release()
			return nil, optErr
		}
	}

	q.cond = sync.NewCond(&q.mu)
	go q.dispatch()
	return q, nil
}

// Publish enqueues a message for asynchronous consumption. It never blocks;
// the message waits in the pending list until a pool worker is free.
func (q *Queue) Publish(ctx context.Context, msg Message) error {
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.wg.Add(1)
	q.pending = append(q.pending, msg)
	q.cond.Signal()
	return nil
}

// dispatch moves pending messages into the pool. Submit blocks while the
// pool is saturated, which is safe here because the dispatcher is not a pool
// worker itself. Exits once the queue is closed and the pending list is
// empty.
func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		err := q.pool.Submit(func() {
			defer q.wg.Done()
			q.consume(msg)
		})
		if err != nil {
			q.logger.Error("dispatch failed, dropping message",
				"paper_id", msg.PaperID,
				"stage", msg.Stage.String(),
				"err", err)
			q.wg.Done()
		}
	}
}

func (q *Queue) consume(msg Message) {
	err := q.handler(context.Background(), msg)
	if err == nil {
		return
	}

	if msg.Attempt >= q.maxAttempts {
		q.logger.Error("dropping message after final attempt",
			"paper_id", msg.PaperID,
			"stage", msg.Stage.String(),
			"attempt", msg.Attempt,
			"err", err)
		return
	}

	q.logger.Warn("redelivering message",
		"paper_id", msg.PaperID,
		"stage", msg.Stage.String(),
		"attempt", msg.Attempt,
		"err", err)

	msg.Attempt++
	if pubErr := q.Publish(context.Background(), msg); pubErr != nil {
		q.logger.Error("redelivery failed", "paper_id", msg.PaperID, "err", pubErr)
	}
}

// Drain blocks until all published messages, including redeliveries, have
// been consumed.
func (q *Queue) Drain() {
	q.wg.Wait()
}

// Close stops accepting messages, waits for pending and in-flight work and
// releases the pool. The queue should not be used after calling Close.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	q.pool.Release()
}
