// Package sender runs outbound Telegram calls with retries while keeping the
// messages of one chat in the order they were issued.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/tarotbot/core/logger"
)

const component = "tg.sender"

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("telegram sender: closed")

// Options tune the retry policy.
type Options struct {
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one call, retries included.
	MaxDuration time.Duration
}

// Call describes one Bot API request.
type Call struct {
	// ChatID serializes calls for the same chat. Zero means no ordering.
	ChatID   int64
	Action   string
	Endpoint string
	// Idempotent calls may be repeated when the outcome is unknown, for
	// example after a response timeout. Sends are not idempotent: Telegram
	// may already have delivered the message.
	Idempotent bool
}

// Dispatcher executes calls on the caller's goroutine. Calls for one chat
// never overlap, so a card sent after another arrives after it.
type Dispatcher struct {
	opts   Options
	closed atomic.Bool
	errs   atomic.Uint64

	mu    sync.Mutex
	chats map[int64]*chatLock
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

// NewDispatcher fills zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{opts: opts, chats: make(map[int64]*chatLock)}
}

// ErrorCount returns the number of calls that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close makes later calls fail with ErrClosed. Calls in progress finish.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

// Do runs call, retrying as the error class and call.Idempotent allow.
func (d *Dispatcher) Do(ctx context.Context, call Call, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if d.closed.Load() {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if call.ChatID != 0 {
		release, err := d.acquire(ctx, call.ChatID)
		if err != nil {
			return err
		}
		defer release()
	}
	return d.execute(ctx, call, run)
}

func (d *Dispatcher) acquire(ctx context.Context, chatID int64) (func(), error) {
	d.mu.Lock()
	l, ok := d.chats[chatID]
	if !ok {
		l = &chatLock{sem: make(chan struct{}, 1)}
		d.chats[chatID] = l
	}
	l.refs++
	d.mu.Unlock()

	drop := func() {
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.chats, chatID)
		}
		d.mu.Unlock()
	}

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			drop()
		}, nil
	case <-ctx.Done():
		drop()
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) execute(ctx context.Context, call Call, run func() error) error {
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = deadline.Err(); err != nil {
			d.fail(ctx, call, err, attempt-1, start)
			return err
		}
		if err = run(); err == nil {
			if attempt > 1 {
				logger.Info(ctx, component, "send.retry.success", attrs(call,
					slog.Int("attempt", attempt),
					slog.Duration("duration", logger.Took(start)),
				)...)
			}
			return nil
		}

		class := Classify(err)
		if !class.Retry(call.Idempotent) || attempt == attempts {
			d.fail(ctx, call, err, attempt, start)
			return err
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait := RetryAfter(err); wait > delay {
			delay = wait
		}
		logger.Debug(ctx, component, "send.retry", attrs(call,
			slog.Int("attempt", attempt),
			slog.String("class", class.String()),
			slog.Duration("delay", delay),
		)...)

		timer := time.NewTimer(delay)
		select {
		case <-deadline.Done():
			timer.Stop()
			d.fail(ctx, call, err, attempt, start)
			return err
		case <-timer.C:
		}
	}
	return err
}

func (d *Dispatcher) fail(ctx context.Context, call Call, err error, attempts int, start time.Time) {
	d.errs.Add(1)
	logger.Error(ctx, component, "send.fail", attrs(call,
		slog.String("err", RedactToken(err.Error())),
		slog.String("class", Classify(err).String()),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)...)
}

func attrs(call Call, extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	out = append(out, slog.String("action", call.Action))
	if call.Endpoint != "" {
		out = append(out, slog.String("endpoint", call.Endpoint))
	}
	return append(out, extra...)
}
