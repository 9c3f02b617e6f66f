package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Fields identify the update, and later the reading, a log line belongs to.
type Fields struct {
	RID       string
	UpdateID  int
	UserID    int64
	ChatID    int64
	Handler   string
	ReadingID string
}

type fieldsKey struct{}

// FieldsFrom returns the fields stored in ctx; the zero value when none are.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

func with(ctx context.Context, set func(*Fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := FieldsFrom(ctx)
	set(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithRID stores the request id for the update being handled.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, func(f *Fields) { f.RID = strings.TrimSpace(rid) })
}

// WithUpdateMeta stores the update id and its sender and chat.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, func(f *Fields) {
		f.UpdateID, f.UserID, f.ChatID = updateID, userID, chatID
	})
}

// WithHandler stores the route name that serves the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	return with(ctx, func(f *Fields) { f.Handler = strings.TrimSpace(handler) })
}

// WithReadingID tags every later line with the reading being delivered.
func WithReadingID(ctx context.Context, id string) context.Context {
	return with(ctx, func(f *Fields) { f.ReadingID = strings.TrimSpace(id) })
}

// BuildRID derives a request id that stays stable across redeliveries of an update.
func BuildRID(updateID int, chatID, userID int64) string {
	if chatID == userID {
		return fmt.Sprintf("u%d-%d", updateID, userID)
	}
	return fmt.Sprintf("u%d-%d-%d", updateID, chatID, userID)
}

func (f Fields) empty() bool {
	return f == Fields{}
}

func (f Fields) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6)
	if f.RID != "" {
		out = append(out, slog.String("rid", f.RID))
	}
	if f.UpdateID != 0 {
		out = append(out, slog.Int("update_id", f.UpdateID))
	}
	if f.UserID != 0 {
		out = append(out, slog.Int64("user_id", f.UserID))
	}
	if f.ChatID != 0 && f.ChatID != f.UserID {
		out = append(out, slog.Int64("chat_id", f.ChatID))
	}
	if f.Handler != "" {
		out = append(out, slog.String("handler", f.Handler))
	}
	if f.ReadingID != "" {
		out = append(out, slog.String("reading_id", f.ReadingID))
	}
	return out
}

// Status maps an error to the status attribute value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns the time elapsed since start.
func Took(start time.Time) time.Duration {
	return time.Since(start)
}

// RoundMS rounds d to whole milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SanitizeLimit strips control and format runes from user text and caps it at max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SummarizeStrings joins up to limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 || len(values) <= limit {
		return strings.Join(values, ","), false
	}
	return strings.Join(values[:limit], ","), true
}
