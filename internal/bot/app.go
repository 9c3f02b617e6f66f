// Package bot wires the reading flow into the Telegram runtime.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/tarotbot/core/bootstrap"
	"github.com/m3rciful/tarotbot/core/logger"
	tg "github.com/m3rciful/tarotbot/core/telegram"
	"github.com/m3rciful/tarotbot/core/telegram/middleware"
	"github.com/m3rciful/tarotbot/core/telegram/router"
	"github.com/m3rciful/tarotbot/core/telegram/sender"
	"github.com/m3rciful/tarotbot/core/telegram/state"
	"github.com/m3rciful/tarotbot/internal/billing"
	"github.com/m3rciful/tarotbot/internal/delivery"
	"github.com/m3rciful/tarotbot/internal/flow"
	"github.com/m3rciful/tarotbot/internal/genai"
	"github.com/m3rciful/tarotbot/internal/reading"
)

// App is a fully wired bot.
type App struct {
	infra *bootstrap.Infra
	bot   *tg.Bot
	reg   *tg.Registry
}

// New initializes logging and the ledger, connects to Telegram and mounts
// every route.
func New(ctx context.Context, cfg *Config) (*App, error) {
	infra, err := bootstrap.Open(ctx, cfg.Logging, cfg.Ledger, bootstrap.Steps{})
	if err != nil {
		return nil, err
	}
	a := &App{infra: infra, reg: tg.NewRegistry()}

	a.bot, err = tg.New(&cfg.Config, sender.Options{MaxRetries: 2, RetryBackoff: time.Second})
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	ch := NewChannel(a.bot.Bot, a.bot.Dispatcher)
	m := flow.NewMachine(flow.Deps{
		Store:     state.NewStore[flow.Session](nil),
		Channel:   ch,
		Billing:   billing.NewTelegramGateway(a.bot.Bot, cfg.Tarot.ProviderToken),
		Ledger:    newLedger(infra),
		Generator: newGenerator(cfg.GenAI),
		Delivery:  delivery.NewSequencer(ch, cfg.Tarot.Pacing.Pacing()),
		Catalog:   cfg.Tarot.Catalog(),
		Allow:     flow.NewAllowlist(cfg.Tarot.FreeUsers),
	})

	h := NewHandlers(m, ch, checkoutApprover(a.bot.Bot), a.bot.Dispatcher)
	if err := h.Register(a.reg); err != nil {
		_ = infra.Close()
		return nil, err
	}
	routes := router.Routes(a.reg, router.Options{
		AdminID:         cfg.Telegram.AdminID,
		Conversation:    h,
		Checkout:        h.Checkout,
		Paid:            h.Paid,
		UnknownText:     h.Text,
		UnknownDocument: h.UnknownDocument,
		UnknownCallback: h.UnknownCallback,
	})
	a.bot.Mount(a.reg, middleware.Chain(cfg.RateLimit, nil), routes)

	logger.Info(logger.Background(), component, "bootstrap",
		slog.String("status", "ok"),
		slog.Bool("sql_ledger", infra.DB != nil),
		slog.String("model", cfg.GenAI.Model),
		slog.Int("free_users", len(cfg.Tarot.FreeUsers)),
	)
	return a, nil
}

// Run serves updates until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.bot.Run(ctx, a.reg)
}

// Close releases the ledger and flushes logs.
func (a *App) Close() error {
	return a.infra.Close()
}

func newLedger(infra *bootstrap.Infra) billing.Ledger {
	if infra.DB != nil {
		return billing.NewSQLLedger(infra.DB)
	}
	return billing.NewMemoryLedger()
}

// newGenerator falls back to the static texts when no model client can be
// built.
func newGenerator(cfg genai.Config) *reading.Generator {
	client, err := genai.NewClient(cfg)
	if err != nil {
		logger.Warn(logger.Background(), component, "genai",
			slog.String("status", "skip"),
			slog.String("reason", "fallback_only"),
			slog.String("err", err.Error()),
		)
		return reading.NewGenerator(nil, reading.WithTimeout(cfg.Timeout()))
	}
	return reading.NewGenerator(client, reading.WithTimeout(cfg.Timeout()))
}
