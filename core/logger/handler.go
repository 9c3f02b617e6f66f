package logger

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// contextHandler appends the update-scoped Fields found in ctx to every record.
type contextHandler struct {
	next slog.Handler
}

func newHandler(w io.Writer, lvl slog.Leveler, text bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceAttr}
	if text {
		return contextHandler{next: slog.NewTextHandler(w, opts)}
	}
	return contextHandler{next: slog.NewJSONHandler(w, opts)}
}

func (h contextHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if f := FieldsFrom(ctx); !f.empty() {
		r.AddAttrs(f.attrs()...)
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}

// replaceAttr keeps lines short: "ts" instead of "time", no empty msg, and
// durations rendered as whole milliseconds under a "_ms" key.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
		case slog.MessageKey:
			if a.Value.String() == "" {
				return slog.Attr{}
			}
		}
	}
	if a.Value.Kind() == slog.KindDuration {
		return slog.Int64(a.Key+"_ms", RoundMS(a.Value.Duration()).Milliseconds())
	}
	return a
}

// every admits num out of each den calls.
type every struct {
	num, den uint64
	n        atomic.Uint64
}

func newEvery(num, den int) *every {
	return &every{num: uint64(num), den: uint64(den)}
}

func (e *every) Allow() bool {
	if e.num == 0 {
		return false
	}
	return (e.n.Add(1)-1)%e.den < e.num
}
