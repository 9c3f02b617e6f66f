package helpers

import (
	"context"
	"testing"

	"github.com/m3rciful/tarotbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

type storeContext struct {
	tele.Context
	store map[string]interface{}
}

func newStoreContext() *storeContext {
	return &storeContext{store: map[string]interface{}{}}
}

func (s *storeContext) Get(key string) interface{}    { return s.store[key] }
func (s *storeContext) Set(key string, v interface{}) { s.store[key] = v }
func (s *storeContext) Update() tele.Update           { return tele.Update{ID: 9} }
func (s *storeContext) Sender() *tele.User            { return &tele.User{ID: 1} }
func (s *storeContext) Chat() *tele.Chat              { return &tele.Chat{ID: 2} }

func TestContextCarriesUpdateFields(t *testing.T) {
	c := newStoreContext()
	ctx := WithHandler(c, "begin")

	f := logger.FieldsFrom(ctx)
	if f.UpdateID != 9 || f.UserID != 1 || f.ChatID != 2 || f.Handler != "begin" || f.RID == "" {
		t.Fatalf("fields = %+v", f)
	}
	if Context(c) != ctx {
		t.Fatal("handler context not cached on c")
	}
}

func TestCountSendThroughHandlerContext(t *testing.T) {
	c := newStoreContext()
	AttachCounters(c)

	ctx := WithHandler(c, "begin")
	CountSend(ctx, false)
	CountSend(ctx, true)

	n, kb := CountersOf(c).Snapshot()
	if n != 2 || !kb {
		t.Fatalf("counters = %d/%v, want 2/true", n, kb)
	}
}

func TestCountSendWithoutCounters(t *testing.T) {
	CountSend(context.Background(), true)
	var k *Counters
	if n, kb := k.Snapshot(); n != 0 || kb {
		t.Fatal("nil counters must read as zero")
	}
}
