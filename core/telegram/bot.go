// Package telegram owns the telebot instance: transport, routes and the
// start/stop lifecycle.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/tarotbot/core/config"
	"github.com/m3rciful/tarotbot/core/logger"
	"github.com/m3rciful/tarotbot/core/telegram/helpers"
	"github.com/m3rciful/tarotbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Route binds a handler to a telebot endpoint such as "/start" or tele.OnText.
type Route struct {
	Endpoint string
	Kind     Kind
	Handler  tele.HandlerFunc
}

// Bot is a configured telebot instance plus the dispatcher its outbound
// calls go through.
type Bot struct {
	*tele.Bot
	Dispatcher *sender.Dispatcher

	cfg *coreconfig.Config
}

// New builds the bot. telebot checks the token with getMe.
func New(cfg *coreconfig.Config, opts sender.Options) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config")
	}
	start := time.Now()
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  newPoller(cfg),
		Client:  newHTTPClient(longPoll(cfg)),
		OnError: logBotError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	logger.TG.Info("", slog.String("event", "mode"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Bot{Bot: b, Dispatcher: sender.NewDispatcher(opts), cfg: cfg}, nil
}

// Mount installs global middleware, then routes. telebot applies Use only to
// handlers registered after it.
func (b *Bot) Mount(reg *Registry, mws []tele.MiddlewareFunc, routes []Route) {
	b.Use(mws...)
	for _, r := range routes {
		if r.Endpoint == "" || r.Handler == nil {
			continue
		}
		b.Handle(r.Endpoint, r.Handler)
	}
	if reg != nil {
		reg.logSummary()
	}
}

// Run publishes the command menu and serves updates until ctx is done. The
// dispatcher is closed on return.
func (b *Bot) Run(ctx context.Context, reg *Registry) error {
	defer b.Dispatcher.Close()

	if b.cfg.Telegram.RunMode == coreconfig.RunModeLongpoll {
		if err := b.RemoveWebhook(false); err != nil {
			logger.TG.Warn("", slog.String("event", "delete_webhook"),
				slog.String("err", sender.RedactToken(err.Error())),
			)
		}
	}
	if reg != nil {
		if err := b.SetCommands(reg.Menu()); err != nil {
			logger.TWire.Warn("", slog.String("event", "set_commands"),
				slog.String("err", sender.RedactToken(err.Error())),
			)
		}
	}

	done := make(chan struct{})
	go func() {
		b.Start()
		close(done)
	}()
	logger.TG.Info("", slog.String("event", "ready"))

	select {
	case <-ctx.Done():
		b.Stop()
		<-done
	case <-done:
	}
	logger.TG.Info("", slog.String("event", "shutdown"))
	return nil
}

func logBotError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = helpers.Context(c)
	}
	logger.Error(ctx, "tg", "bot.error",
		slog.String("err", logger.SanitizeLimit(sender.RedactToken(err.Error()), 256)),
	)
}
