// Package router turns a registry and the bot's fallbacks into telebot routes.
package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/tarotbot/core/logger"
	tg "github.com/m3rciful/tarotbot/core/telegram"
	"github.com/m3rciful/tarotbot/core/telegram/helpers"
	"github.com/m3rciful/tarotbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text while it waits for input.
type Conversation interface {
	InProgress(userID int64) bool
	Text(c tele.Context) error
}

// Options supply everything the registry does not hold.
type Options struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc

	Conversation Conversation

	// Checkout answers pre-checkout queries and must not block.
	Checkout tele.HandlerFunc
	Paid     tele.HandlerFunc

	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	UnknownCallback tele.HandlerFunc
}

// Routes builds one route per command plus the callback, text, document and
// payment endpoints.
func Routes(reg *tg.Registry, opts Options) []tg.Route {
	var routes []tg.Route
	for _, name := range reg.Commands() {
		cmd, _ := reg.Lookup(name)
		h := served(name, tg.KindCommand, cmd.Handler)
		if cmd.AdminOnly {
			h = middleware.AdminOnly(opts.AdminID, opts.OnAdminReject)(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Kind: tg.KindCommand, Handler: h})
	}

	routes = append(routes,
		tg.Route{Endpoint: tele.OnCallback, Kind: tg.KindCallback, Handler: callback(reg, opts.UnknownCallback)},
		tg.Route{Endpoint: tele.OnText, Kind: tg.KindText, Handler: text(opts)},
	)
	if opts.UnknownDocument != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnDocument, Kind: tg.KindDocument, Handler: served("document", tg.KindDocument, opts.UnknownDocument)})
	}
	if opts.Checkout != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnCheckout, Kind: tg.KindCheckout, Handler: served("pre_checkout", tg.KindCheckout, opts.Checkout)})
	}
	if opts.Paid != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnPayment, Kind: tg.KindPayment, Handler: served("payment", tg.KindPayment, opts.Paid)})
	}
	return routes
}

// callback acknowledges the press, then runs the button's handler.
func callback(reg *tg.Registry, unknown tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		_ = c.Respond()
		key, _ := tg.CallbackKey(c.Callback())
		if h, ok := reg.Button(key); ok {
			return served("cb:"+key, tg.KindCallback, h)(c)
		}
		if unknown == nil {
			return nil
		}
		return served("cb:unknown", tg.KindCallback, unknown)(c)
	}
}

// text prefers the conversation when it waits for input.
func text(opts Options) tele.HandlerFunc {
	return func(c tele.Context) error {
		conv := opts.Conversation
		if conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID) {
			return served("text", tg.KindText, conv.Text)(c)
		}
		if opts.UnknownText != nil {
			return served("text:unknown", tg.KindText, opts.UnknownText)(c)
		}
		return nil
	}
}

// served names the handler in the update's context and logs one summary
// line with what it sent back.
func served(name string, kind tg.Kind, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ctx := helpers.WithHandler(c, name)
		err := h(c)

		msgs, kb := helpers.CountersOf(c).Snapshot()
		attrs := []slog.Attr{
			slog.String("kind", string(kind)),
			slog.String("status", logger.Status(err)),
			slog.Int("messages", msgs),
			slog.Bool("kb", kb),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
		logger.Info(ctx, "tg", "handler.handled", attrs...)
		return err
	}
}
