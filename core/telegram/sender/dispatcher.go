// Package sender runs outbound Bot API calls with bounded retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")
	errNilRun    = errors.New("telegram sender: nil run function")
)

// Options sizes the queue and bounds retries. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration // grows linearly with each attempt
	MaxDuration  time.Duration // budget for one call including retries
}

func (o Options) normalized() Options {
	def := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}
	o.QueueSize = def(o.QueueSize, 64)
	o.Workers = def(o.Workers, 2)
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// call is one outbound request. action names the Bot API method, endpoint
// what the call is for.
type call struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (c call) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", c.action)}
	if c.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", c.endpoint))
	}
	if rid := logger.RIDFrom(c.ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(c.ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

// Dispatcher runs calls inline (Do) or on a small worker pool (Enqueue).
type Dispatcher struct {
	opts  Options
	queue chan call

	mu     sync.RWMutex // guards closed against Enqueue racing Close
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.normalized()
	d := &Dispatcher{opts: opts, queue: make(chan call, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				_ = d.attempt(c)
			}
		}()
	}
	return d
}

// Do runs the call on the caller's goroutine and returns its final error.
// Conversation replies use Do so they arrive in order.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	return d.attempt(call{ctx: orBackground(ctx), action: action, endpoint: endpoint, run: run})
}

// Enqueue hands the call to a worker without waiting. run may be invoked
// more than once when the error is transient.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- call{ctx: orBackground(ctx), action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of calls that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new calls and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) attempt(c call) error {
	budget, cancel := context.WithTimeout(c.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(c.ctx, "tg.sender", "send.start", c.attrs()...)

	tries := 0
	err := budget.Err()
	for err == nil {
		tries++
		if err = c.run(); err == nil {
			d.succeeded(c, tries, time.Since(start))
			return nil
		}
		if tries > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(tries)
		if werr := sleep(budget, delay); werr != nil {
			err = werr
			break
		}
		logger.Debug(c.ctx, "tg.sender", "send.retry.backoff",
			append(c.attrs(), slog.Int("attempt", tries), slog.Int64("backoff_ms", delay.Milliseconds()))...)
		err = budget.Err()
	}

	d.errs.Add(1)
	d.failed(c, err, tries, time.Since(start))
	return err
}

func (d *Dispatcher) succeeded(c call, tries int, took time.Duration) {
	attrs := c.attrs()
	if tries > 1 {
		attrs = append(attrs, slog.Int("attempts", tries))
	}
	logger.Debug(c.ctx, "tg.sender", "send.success", append(attrs, slog.Duration("duration", took))...)
}

func (d *Dispatcher) failed(c call, err error, tries int, took time.Duration) {
	attrs := append(c.attrs(),
		slog.String("err", netutil.Redact(err)),
		slog.String("error_kind", netutil.Classify(err)),
		slog.Int("attempts", tries),
		slog.Duration("duration", took),
	)
	if code := netutil.StatusFromError(err); code != 0 {
		attrs = append(attrs, slog.Int("err_code", code))
	}
	logger.Error(c.ctx, "tg.sender", "send.fail", attrs...)
}

// sleep waits for d or until ctx is done, returning ctx's error in that case.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
