package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func dialErr() error {
	return &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func responseTimeout() error {
	return &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(Options{MaxRetries: 3, RetryBackoff: time.Millisecond})
}

func TestDoRetriesWhenRequestNeverSent(t *testing.T) {
	d := newTestDispatcher()
	calls := 0
	err := d.Do(context.Background(), Call{ChatID: 1, Action: "send.text"}, func() error {
		calls++
		if calls < 3 {
			return dialErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("ErrorCount = %d", d.ErrorCount())
	}
}

func TestDoDoesNotRepeatSendAfterResponseTimeout(t *testing.T) {
	d := newTestDispatcher()
	calls := 0
	err := d.Do(context.Background(), Call{ChatID: 1, Action: "send.text"}, func() error {
		calls++
		return responseTimeout()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("a send that may have been delivered ran %d times", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestDoRepeatsIdempotentCallAfterResponseTimeout(t *testing.T) {
	d := newTestDispatcher()
	calls := 0
	err := d.Do(context.Background(), Call{ChatID: 1, Action: "edit.text", Idempotent: true}, func() error {
		calls++
		if calls == 1 {
			return responseTimeout()
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	d := newTestDispatcher()
	calls := 0
	err := d.Do(context.Background(), Call{Action: "send.text"}, func() error {
		calls++
		return tele.ErrBlockedByUser
	})
	if !errors.Is(err, tele.ErrBlockedByUser) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	d := newTestDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := d.Do(ctx, Call{Action: "send.text"}, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || ran {
		t.Fatalf("err = %v ran = %v", err, ran)
	}
}

func TestDoAfterClose(t *testing.T) {
	d := newTestDispatcher()
	d.Close()
	if err := d.Do(context.Background(), Call{}, func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoSerializesOneChat(t *testing.T) {
	d := newTestDispatcher()
	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), Call{ChatID: 42, Action: "send.text"}, func() error {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("%d calls for one chat overlapped", peak)
	}
	d.mu.Lock()
	left := len(d.chats)
	d.mu.Unlock()
	if left != 0 {
		t.Fatalf("%d chat locks leaked", left)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{dialErr(), NotSent},
		{&net.DNSError{Err: "no such host", Name: "api.telegram.org"}, NotSent},
		{responseTimeout(), Uncertain},
		{tele.NewError(502, "Bad Gateway"), Uncertain},
		{fmt.Errorf("telegram: internal (500)"), Uncertain},
		{tele.FloodError{RetryAfter: 3}, Flood},
		{tele.ErrBlockedByUser, Permanent},
		{context.Canceled, Permanent},
		{errors.New("boom"), Permanent},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%T) = %s, want %s", c.err, got, c.want)
		}
	}
	if got := RetryAfter(tele.FloodError{RetryAfter: 3}); got != 3*time.Second {
		t.Fatalf("RetryAfter = %v", got)
	}
}

func TestRedactToken(t *testing.T) {
	msg := `Post "https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage": dial tcp: timeout`
	got := RedactToken(msg)
	want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": dial tcp: timeout`
	if got != want {
		t.Fatalf("RedactToken = %q", got)
	}
}
