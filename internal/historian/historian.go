// Package historian drains queued lobby mutations into the durable store in
// batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	"github.com/sirupsen/logrus"
)

// Source yields queued mutations. ok is false when nothing arrived within
// timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (m persistence.Mutation, ok bool, err error)
}

// Sink applies a batch atomically.
type Sink interface {
	ApplyBatch(ctx context.Context, batch []persistence.Mutation) error
}

// Options tunes batching.
type Options struct {
	BatchSize  int           // flush once this many mutations are buffered
	FlushDelay time.Duration // flush at least this often
	PopTimeout time.Duration // how long one Pop may block
}

// Service moves mutations from a Source to a Sink.
type Service struct {
	src  Source
	sink Sink
	opts Options
	log  logrus.FieldLogger

	batchMu sync.Mutex
	batch   []persistence.Mutation
}

// New builds a Service. Zero options take the defaults 20 / 500ms / 1s.
func New(src Source, sink Sink, opts Options, logger logrus.FieldLogger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = time.Second
	}
	return &Service{
		src:   src,
		sink:  sink,
		opts:  opts,
		log:   logger.WithField("component", "historian"),
		batch: make([]persistence.Mutation, 0, opts.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes what it holds and returns.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()

	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	for {
		select {
		case <-ctx.Done():
			// ctx is gone; the final flush gets a fresh deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Flush(flushCtx)
			cancel()
			return

		case <-ticker.C:
			s.Flush(ctx)

		default:
			m, ok, err := s.src.Pop(ctx, s.opts.PopTimeout)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					continue
				}
				s.log.WithError(err).Error("pop failed")
				continue
			}
			if !ok {
				continue
			}
			s.appendToBatch(ctx, m)
		}
	}
}

// appendToBatch buffers m and flushes when the batch is full.
func (s *Service) appendToBatch(ctx context.Context, m persistence.Mutation) {
	s.batchMu.Lock()
	s.batch = append(s.batch, m)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the buffered batch in one transaction. If the batch fails as a
// whole, each mutation is retried alone so that a single bad record only
// loses itself. It returns how many mutations were written.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return 0
	}
	batch := make([]persistence.Mutation, len(s.batch))
	copy(batch, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	err := s.sink.ApplyBatch(ctx, batch)
	if err == nil {
		s.log.WithField("count", len(batch)).Debug("flushed mutations")
		return len(batch)
	}
	s.log.WithError(err).WithField("count", len(batch)).Warn("batch failed, applying one at a time")

	written := 0
	for _, m := range batch {
		if err := s.sink.ApplyBatch(ctx, []persistence.Mutation{m}); err != nil {
			s.log.WithError(err).WithField("kind", m.Kind).Error("dropping mutation")
			continue
		}
		written++
	}
	return written
}

// Pending reports how many mutations are buffered but not yet flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
