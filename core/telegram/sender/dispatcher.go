// Package sender runs outbound Telegram calls on a bounded worker queue.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/retry"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")
)

// Options sizes the queue and sets how failed calls are retried.
// Retry.Retryable and Retry.WaitHint default to ShouldRetry and FloodWait.
type Options struct {
	QueueSize int
	Workers   int
	Retry     retry.Policy
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = retry.Policy{Attempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}
	}
	if o.Retry.Retryable == nil {
		o.Retry.Retryable = ShouldRetry
	}
	if o.Retry.WaitHint == nil {
		o.Retry.WaitHint = FloodWait
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func(ctx context.Context) error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher executes queued calls on a fixed pool of workers.
type Dispatcher struct {
	opts    Options
	jobs    chan job
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	failed  atomic.Uint64
	pending atomic.Int64
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
				d.pending.Add(-1)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be called more than once.
// The job keeps the values of ctx but not its cancellation.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func(ctx context.Context) error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), action: action, endpoint: endpoint, run: run}:
		d.pending.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that ended in failure.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Pending is the number of jobs queued or in flight.
func (d *Dispatcher) Pending() int64 { return d.pending.Load() }

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := 0
	logger.Debug(j.ctx, logger.CompSender, "send.start", j.attrs()...)
	err := d.opts.Retry.Do(ctx, j.action, func(ctx context.Context) error {
		attempts++
		return j.run(ctx)
	})
	took := logger.Took(start)
	if err == nil {
		attrs := j.attrs(slog.String("status", "ok"), slog.Duration("duration", took))
		if attempts > 1 {
			logger.Info(j.ctx, logger.CompSender, "send.retry.success", append(attrs, slog.Int("attempts", attempts))...)
			return
		}
		logger.Debug(j.ctx, logger.CompSender, "send.success", attrs...)
		return
	}
	d.failed.Add(1)
	logger.Error(j.ctx, logger.CompSender, "send.fail", j.attrs(
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", took),
	)...)
}
