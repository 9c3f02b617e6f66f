package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/tarotbot/core/logger"
	tg "github.com/m3rciful/tarotbot/core/telegram"
	tghelpers "github.com/m3rciful/tarotbot/core/telegram/helpers"
	"github.com/m3rciful/tarotbot/internal/billing"
	"github.com/m3rciful/tarotbot/internal/flow"
	"github.com/m3rciful/tarotbot/internal/outbound"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

const (
	documentReply = "The cards do not read files. Send /start to get a reading."
	expiredReply  = "That button has expired. Send /start to begin again."
)

// Events is the part of flow.Machine the handlers drive.
type Events interface {
	Start(ctx context.Context, p flow.Peer) error
	Begin(ctx context.Context, p flow.Peer) error
	Offer(ctx context.Context, p flow.Peer) error
	PayStandard(ctx context.Context, p flow.Peer) error
	PayPremium(ctx context.Context, p flow.Peer) error
	Cancel(ctx context.Context, p flow.Peer) error
	Text(ctx context.Context, p flow.Peer, text string) error
	InProgress(userID int64) bool
	PaymentSucceeded(ctx context.Context, p flow.Peer, pay flow.Payment) error
	Stats(ctx context.Context) (flow.Stats, error)
}

// failureCounter reports delivery failures for /stats.
type failureCounter interface {
	ErrorCount() uint64
}

// CheckoutFunc answers a pre-checkout query.
type CheckoutFunc func(ctx context.Context, q *tele.PreCheckoutQuery) error

// Handlers adapt Telegram updates to machine events.
type Handlers struct {
	events   Events
	out      outbound.Channel
	checkout CheckoutFunc
	failures failureCounter
}

// NewHandlers builds handlers over the machine. Replies the machine does not
// own, such as /stats, go through out.
func NewHandlers(events Events, out outbound.Channel, checkout CheckoutFunc, failures failureCounter) *Handlers {
	return &Handlers{events: events, out: out, checkout: checkout, failures: failures}
}

func peerOf(c tele.Context) (flow.Peer, bool) {
	u := c.Sender()
	if u == nil {
		return flow.Peer{}, false
	}
	p := flow.Peer{UserID: u.ID, ChatID: u.ID}
	if ch := c.Chat(); ch != nil {
		p.ChatID = ch.ID
	}
	return p, true
}

// event wraps a peer-scoped machine call as a handler.
func (h *Handlers) event(name string, fn func(ctx context.Context, p flow.Peer) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		p, ok := peerOf(c)
		if !ok {
			return nil
		}
		return fn(tghelpers.WithHandler(c, name), p)
	}
}

// Register adds commands and callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	commands := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Handler: h.event("start", h.events.Start), Description: "Start over"}},
		{"/reading", tg.Command{Handler: h.event("reading", h.events.Offer), Description: "Choose a reading"}},
		{"/cancel", tg.Command{Handler: h.event("cancel", h.events.Cancel), Description: "Cancel the current reading"}},
		{"/stats", tg.Command{Handler: h.Stats, Description: "Bot statistics", AdminOnly: true}},
	}
	for _, c := range commands {
		if err := reg.Command(c.name, c.cmd); err != nil {
			return err
		}
	}

	callbacks := map[string]tele.HandlerFunc{
		flow.KeyBegin:       h.event("begin", h.events.Begin),
		flow.KeyPayStandard: h.event("pay_standard", h.events.PayStandard),
		flow.KeyPayPremium:  h.event("pay_premium", h.events.PayPremium),
		flow.KeyCancel:      h.event("cancel", h.events.Cancel),
	}
	for key, fn := range callbacks {
		if err := reg.Callback(key, fn); err != nil {
			return err
		}
	}
	return nil
}

// InProgress reports whether the user's conversation waits for text.
func (h *Handlers) InProgress(userID int64) bool {
	return h.events.InProgress(userID)
}

// Text passes free text to the machine, which also answers text outside a
// conversation with a hint for the current phase.
func (h *Handlers) Text(c tele.Context) error {
	p, ok := peerOf(c)
	if !ok {
		return nil
	}
	return h.events.Text(tghelpers.WithHandler(c, "text"), p, c.Text())
}

// Checkout approves pre-checkout queries.
func (h *Handlers) Checkout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil || h.checkout == nil {
		return nil
	}
	return h.checkout(tghelpers.WithHandler(c, "pre_checkout"), q)
}

// Paid forwards a successful payment notice to the machine.
func (h *Handlers) Paid(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Payment == nil {
		return nil
	}
	p, ok := peerOf(c)
	if !ok {
		return nil
	}
	return h.events.PaymentSucceeded(tghelpers.WithHandler(c, "payment"), p, flow.Payment{
		ChargeID: m.Payment.TelegramChargeID,
		Payload:  m.Payment.Payload,
		Currency: m.Payment.Currency,
		Amount:   m.Payment.Total,
	})
}

// Stats replies with activity counters.
func (h *Handlers) Stats(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "stats")
	st, err := h.events.Stats(ctx)
	if err != nil {
		logger.Warn(ctx, component, "stats", slog.String("err", err.Error()))
	}
	var failures uint64
	if h.failures != nil {
		failures = h.failures.ErrorCount()
	}
	return h.reply(c, statsText(st, failures))
}

func statsText(st flow.Stats, failures uint64) string {
	return fmt.Sprintf("📊 Stats\n\nOpen sessions: %d\nIn flight: %d\nPaid receipts: %d\nFree users: %d\nSend failures: %d",
		st.Active, st.Busy, st.Receipts, st.Free, failures)
}

// UnknownDocument answers files, which the bot never asks for.
func (h *Handlers) UnknownDocument(c tele.Context) error {
	return h.reply(c, documentReply)
}

// UnknownCallback answers stale or foreign buttons.
func (h *Handlers) UnknownCallback(c tele.Context) error {
	return h.reply(c, expiredReply)
}

func (h *Handlers) reply(c tele.Context, text string) error {
	p, ok := peerOf(c)
	if !ok || h.out == nil {
		return nil
	}
	_, err := h.out.Send(tghelpers.Context(c), p.ChatID, outbound.Message{Text: text})
	return err
}

// checkoutApprover binds billing.ApproveCheckout to a bot.
func checkoutApprover(bot *tele.Bot) CheckoutFunc {
	return func(ctx context.Context, q *tele.PreCheckoutQuery) error {
		return billing.ApproveCheckout(ctx, bot, q)
	}
}
