package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned when the write-behind buffer cannot take another mutation.
	ErrQueueFull = errors.New("persistence: write-behind queue full")
	// ErrWriterClosed is returned for writes submitted after Close.
	ErrWriterClosed = errors.New("persistence: writer closed")
)

// WriterOptions tunes the write-behind worker.
type WriterOptions struct {
	QueueSize      int           // buffered mutations before ErrQueueFull
	MaxAttempts    int           // attempts per mutation, including the first
	RetryDelay     time.Duration // base delay, doubled after each failed attempt
	AttemptTimeout time.Duration // deadline for a single downstream call
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 200 * time.Millisecond
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	return o
}

// Writer is a Gateway that accepts mutations immediately and applies them to
// the next Gateway from a single background worker, in submission order,
// retrying failed writes with exponential backoff.
type Writer struct {
	next Gateway
	opts WriterOptions
	log  logrus.FieldLogger

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
	queue  chan Mutation

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWriter starts the worker. Call Close to drain and stop it.
func NewWriter(next Gateway, opts WriterOptions, logger logrus.FieldLogger) *Writer {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		next:   next,
		opts:   opts,
		log:    logger.WithField("component", "write_behind"),
		queue:  make(chan Mutation, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) UpsertLobby(_ context.Context, lobby LobbyRecord) error {
	return w.enqueue(Mutation{Kind: MutationUpsertLobby, Lobby: &lobby})
}

func (w *Writer) UpsertPlayer(_ context.Context, player PlayerRecord) error {
	return w.enqueue(Mutation{Kind: MutationUpsertPlayer, Player: &player})
}

// Pending reports how many mutations are waiting for the worker.
func (w *Writer) Pending() int {
	return len(w.queue)
}

func (w *Writer) enqueue(m Mutation) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.queue <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for m := range w.queue {
		w.apply(m)
	}
}

func (w *Writer) apply(m Mutation) {
	delay := w.opts.RetryDelay
	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(w.ctx, w.opts.AttemptTimeout)
		err = m.Apply(ctx, w.next)
		cancel()
		if err == nil {
			return
		}
		w.log.WithFields(logrus.Fields{
			"kind":    m.Kind,
			"attempt": attempt,
			"error":   err,
		}).Warn("durable write failed")
		if attempt == w.opts.MaxAttempts {
			break
		}
		select {
		case <-w.ctx.Done():
			w.log.WithField("kind", m.Kind).Error("writer stopped before durable write succeeded; mutation dropped")
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
	w.log.WithFields(logrus.Fields{
		"kind":  m.Kind,
		"error": err,
	}).Error("giving up on durable write; mutation dropped")
}

// Close stops accepting writes and waits for the queue to drain. If ctx ends
// first, in-flight retries are abandoned and ctx.Err() is returned.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}
