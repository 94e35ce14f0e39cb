package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hollyoak/flaircast/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner sink's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the result) when
// the buffer is full, instead of blocking. For sinks where lossiness is
// acceptable, like a non-critical webhook.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async decouples prediction from delivery via a buffered channel. The
// prediction loop writes into the channel; a background goroutine drains it
// to the wrapped sink. Inner sink errors go to errFunc, not the caller.
type Async struct {
	inner      output.Sink
	ch         chan output.Result
	done       chan struct{}
	errFunc    func(error)
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New wraps a sink in an async channel-based writer. The background drain
// goroutine starts immediately.
func New(inner output.Sink, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) { slog.Warn("async sink write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan output.Result, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the result into the channel. By default it blocks when the
// channel is full (backpressure); with WithDropOnFull the result is lost.
func (a *Async) Write(_ context.Context, r output.Result) error {
	if a.dropOnFull {
		select {
		case a.ch <- r:
		default:
			slog.Warn("async sink buffer full, dropping result",
				"submission_id", r.SubmissionID, "label", r.Label)
		}
		return nil
	}
	a.ch <- r
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish (with a
// timeout), then closes the inner sink.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async sink drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for r := range a.ch {
		if err := a.inner.Write(context.Background(), r); err != nil {
			a.errFunc(err)
		}
	}
}
