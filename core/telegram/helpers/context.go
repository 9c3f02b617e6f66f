// Package helpers bridges tele.Context and the context.Context the reading
// flow runs on.
package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/tarotbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey      = "ctx"
	countersKey = "counters"
)

type countersCtxKey struct{}

// Context returns the update's context, building it from the update ids on
// first use and caching it on c.
func Context(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	id := c.Update().ID
	ctx := logger.WithRID(context.Background(), logger.BuildRID(id, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, id, userID, chatID)
	if k := CountersOf(c); k != nil {
		ctx = context.WithValue(ctx, countersCtxKey{}, k)
	}
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler tags the update's context with the handler serving it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(Context(c), handler)
	c.Set(ctxKey, ctx)
	return ctx
}

// Counters track what one update sent back.
type Counters struct {
	messages atomic.Int64
	kb       atomic.Bool
}

// Add records one sent or edited message.
func (k *Counters) Add(hasKB bool) {
	if k == nil {
		return
	}
	k.messages.Add(1)
	if hasKB {
		k.kb.Store(true)
	}
}

// Snapshot returns the message count and whether any message carried a keyboard.
func (k *Counters) Snapshot() (int, bool) {
	if k == nil {
		return 0, false
	}
	return int(k.messages.Load()), k.kb.Load()
}

// AttachCounters stores fresh counters on c. Call it before Context.
func AttachCounters(c tele.Context) *Counters {
	k := &Counters{}
	c.Set(countersKey, k)
	return k
}

// CountersOf returns the counters stored on c, or nil.
func CountersOf(c tele.Context) *Counters {
	k, _ := c.Get(countersKey).(*Counters)
	return k
}

// CountSend records a message sent for the update behind ctx. Messages
// delivered after the handler returned still count toward its counters.
func CountSend(ctx context.Context, hasKB bool) {
	if k, ok := ctx.Value(countersCtxKey{}).(*Counters); ok {
		k.Add(hasKB)
	}
}
