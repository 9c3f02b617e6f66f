// Package billing issues Telegram Stars invoices, approves pre-checkout
// queries and records charge receipts for duplicate detection.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tarotbot/core/logger"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

const component = "billing"

// Currency is the only supported currency: Telegram Stars.
const Currency = "XTR"

// ErrInvoiceFailed is returned when the invoice could not be issued.
var ErrInvoiceFailed = errors.New("billing: invoice request failed")

// Invoice describes a single-item payment request.
type Invoice struct {
	Tier        tarot.Tier
	Title       string
	Description string
	Label       string
	// Amount is in the provider's minor unit (whole Stars for XTR).
	Amount int
}

// Payload identifies the purchased tier on the resulting payment event.
func (i Invoice) Payload() string {
	return i.Tier.Payload()
}

// Gateway requests payments. Implementations never retry on their own.
type Gateway interface {
	RequestPayment(ctx context.Context, chatID int64, inv Invoice) error
}

// Catalog prices the tiers.
type Catalog struct {
	StandardPrice int
	PremiumPrice  int
}

// Price returns the amount charged for tier.
func (c Catalog) Price(tier tarot.Tier) int {
	if tier == tarot.TierPremium {
		return c.PremiumPrice
	}
	return c.StandardPrice
}

// Invoice builds the invoice for tier.
func (c Catalog) Invoice(tier tarot.Tier) Invoice {
	if tier == tarot.TierPremium {
		return Invoice{
			Tier:        tarot.TierPremium,
			Title:       "Premium drunk tarot reading",
			Description: "A personal 5-card spread based on your birthdate, with an astrological comment and a drink picked for you.",
			Label:       "Premium reading",
			Amount:      c.PremiumPrice,
		}
	}
	return Invoice{
		Tier:        tarot.TierStandard,
		Title:       "Drunk tarot reading",
		Description: "A 3-card spread with humorous drinking interpretations and a cocktail recommendation.",
		Label:       "Tarot reading",
		Amount:      c.StandardPrice,
	}
}

// invoiceSender is satisfied by *tele.Bot.
type invoiceSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramGateway sends invoices through the Bot API.
type TelegramGateway struct {
	bot           invoiceSender
	providerToken string
}

// NewTelegramGateway builds a gateway. providerToken is empty for Stars.
func NewTelegramGateway(bot invoiceSender, providerToken string) *TelegramGateway {
	return &TelegramGateway{bot: bot, providerToken: providerToken}
}

// RequestPayment sends the invoice to chatID.
func (g *TelegramGateway) RequestPayment(ctx context.Context, chatID int64, inv Invoice) error {
	start := time.Now()
	tinv := &tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload(),
		Currency:    Currency,
		Token:       g.providerToken,
		Prices:      []tele.Price{{Label: inv.Label, Amount: inv.Amount}},
	}
	_, err := g.bot.Send(tele.ChatID(chatID), tinv)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("chat_id", chatID),
		slog.String("tier", string(inv.Tier)),
		slog.Int("amount", inv.Amount),
		slog.String("currency", Currency),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, component, "invoice", attrs...)
		return fmt.Errorf("%w: %v", ErrInvoiceFailed, err)
	}
	logger.Info(ctx, component, "invoice", attrs...)
	return nil
}

// checkoutAccepter is satisfied by *tele.Bot.
type checkoutAccepter interface {
	Accept(query *tele.PreCheckoutQuery, errorMessage ...string) error
}

// ApproveCheckout answers a pre-checkout query with ok. It runs no business
// logic and turns a panic into an error so the update loop keeps going.
func ApproveCheckout(ctx context.Context, bot checkoutAccepter, q *tele.PreCheckoutQuery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("billing: pre-checkout panic: %v", r)
		}
		attrs := []slog.Attr{slog.String("status", logger.Status(err))}
		if q != nil {
			attrs = append(attrs,
				slog.String("payload", q.Payload),
				slog.Int("amount", q.Total),
				slog.String("currency", q.Currency),
			)
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
			logger.Error(ctx, component, "pre_checkout", attrs...)
			return
		}
		logger.Info(ctx, component, "pre_checkout", attrs...)
	}()
	if q == nil {
		return errors.New("billing: empty pre-checkout query")
	}
	return bot.Accept(q)
}
