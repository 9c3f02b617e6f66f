package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/tarotbot/core/logger"
	tg "github.com/m3rciful/tarotbot/core/telegram"
	"github.com/m3rciful/tarotbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// limiter remembers when each user was last let through.
type limiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[int64]time.Time
}

// allow reports whether userID may pass now, and records the pass.
func (l *limiter) allow(userID int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[userID] = now
	if len(l.seen) > 4096 {
		for id, t := range l.seen {
			if now.Sub(t) >= l.interval {
				delete(l.seen, id)
			}
		}
	}
	return true
}

// RateLimit drops updates that arrive within interval of the user's last
// admitted one. Payment updates always pass: a dropped pre-checkout query
// fails the charge. Kinds in skip pass too.
func RateLimit(interval time.Duration, skip map[tg.Kind]bool, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	l := &limiter{interval: interval, now: time.Now, seen: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			kind := tg.KindOf(c.Update())
			u := c.Sender()
			if u == nil || kind.Payment() || skip[kind] || l.allow(u.ID) {
				return next(c)
			}
			logger.Warn(helpers.Context(c), "tg", "rate_limit")
			if onLimited != nil {
				return onLimited(c)
			}
			return nil
		}
	}
}
