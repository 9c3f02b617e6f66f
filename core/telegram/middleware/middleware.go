// Package middleware holds the global chain every update passes through.
package middleware

import (
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/tarotbot/core/config"
	"github.com/m3rciful/tarotbot/core/logger"
	tg "github.com/m3rciful/tarotbot/core/telegram"
	"github.com/m3rciful/tarotbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Chain returns recover, scope and, when configured, the rate limiter.
func Chain(cfg coreconfig.RateLimitConfig, onLimited tele.HandlerFunc) []tele.MiddlewareFunc {
	mws := []tele.MiddlewareFunc{Recover, Scope}
	if cfg.IntervalMS > 0 {
		skip := make(map[tg.Kind]bool, len(cfg.ExcludeUpdates))
		for _, k := range cfg.ExcludeUpdates {
			skip[tg.Kind(strings.ToLower(k))] = true
		}
		mws = append(mws, RateLimit(time.Duration(cfg.IntervalMS)*time.Millisecond, skip, onLimited))
	}
	return mws
}

// Recover turns a handler panic into an error line.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(helpers.Context(c), "tg", "panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = nil
			}
		}()
		return next(c)
	}
}

// Scope attaches send counters and the update context, and writes a sampled
// debug line describing the update.
func Scope(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		helpers.AttachCounters(c)
		ctx := helpers.Context(c)
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "tg", "update.received", describe(c.Update())...)
		}
		return next(c)
	}
}

func describe(upd tele.Update) []slog.Attr {
	kind := tg.KindOf(upd)
	attrs := []slog.Attr{slog.String("kind", string(kind))}
	switch kind {
	case tg.KindCallback:
		key, _ := tg.CallbackKey(upd.Callback)
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 64)))
	case tg.KindCheckout:
		attrs = append(attrs,
			slog.String("payload", logger.SanitizeLimit(upd.PreCheckoutQuery.Payload, 64)),
			slog.Int("amount", upd.PreCheckoutQuery.Total),
		)
	case tg.KindPayment:
		attrs = append(attrs,
			slog.String("payload", logger.SanitizeLimit(upd.Message.Payment.Payload, 64)),
			slog.Int("amount", upd.Message.Payment.Total),
		)
	case tg.KindCommand, tg.KindText:
		attrs = append(attrs, slog.String("text", logger.SanitizeLimit(upd.Message.Text, 128)))
	}
	return attrs
}

// AdminOnly lets only adminID through. With adminID zero nobody passes.
func AdminOnly(adminID int64, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); adminID != 0 && u != nil && u.ID == adminID {
				return next(c)
			}
			logger.Warn(helpers.Context(c), "tg", "admin.reject")
			if onReject != nil {
				return onReject(c)
			}
			return nil
		}
	}
}
