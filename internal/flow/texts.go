package flow

import (
	"fmt"

	"github.com/m3rciful/tarotbot/internal/billing"
	"github.com/m3rciful/tarotbot/internal/outbound"
)

// Callback keys carried by inline buttons.
const (
	KeyBegin       = "begin"
	KeyPayStandard = "pay_standard"
	KeyPayPremium  = "pay_premium"
	KeyCancel      = "cancel"
)

var (
	btnBegin  = outbound.Button{Text: "🔮 Begin the reading", Data: KeyBegin}
	btnCancel = outbound.Button{Text: "✖️ Cancel", Data: KeyCancel}
)

const (
	textWelcome = "🍷 Welcome to the drunk tarot!\n\n" +
		"The cards know what you should drink tonight and why. Ready to find out?"
	textBirthdatePrompt = "🎂 Send your birthdate in the format DD.MM.YYYY, for example 15.05.1990."
	textBirthdateRetry  = "❌ That does not look like a date. Please use DD.MM.YYYY, for example 15.05.1990."
	textBirthdateSaved  = "✅ Birthdate saved. The reading starts as soon as the payment goes through."
	textAwaitPayment    = "💳 Waiting for your payment. Use the invoice above or /cancel to start over."
	textBusy            = "⏳ Your reading is already on its way."
	textInProgress      = "You already have a reading in progress. Send /cancel to start over."
	textCancelled       = "✖️ Reading cancelled. Send /start whenever you want to try again."
	textHint            = "Send /start to get a reading."
	textInvoiceFailed   = "⚠️ Could not create the invoice. Please try again."
	textFreeReading     = "🎁 This one is on the house."
)

func offerText(c billing.Catalog) string {
	return fmt.Sprintf("🃏 Choose your reading:\n\n"+
		"• Standard: 3 cards with a drink recommendation, %d ⭐\n"+
		"• Premium: 5 cards tuned to your birthdate with an astrological comment, %d ⭐",
		c.StandardPrice, c.PremiumPrice)
}

func offerButtons(c billing.Catalog) [][]outbound.Button {
	return [][]outbound.Button{
		{{Text: fmt.Sprintf("🃏 Standard, %d ⭐", c.StandardPrice), Data: KeyPayStandard}},
		{{Text: fmt.Sprintf("🌟 Premium, %d ⭐", c.PremiumPrice), Data: KeyPayPremium}},
		{btnCancel},
	}
}

func retryButtons(key string) [][]outbound.Button {
	return [][]outbound.Button{
		{{Text: "🔁 Try again", Data: key}},
		{btnCancel},
	}
}

func paymentText(p Payment) string {
	return fmt.Sprintf("✅ Payment received: %d ⭐\nReceipt: %s", p.Amount, shortCharge(p.ChargeID))
}

func shortCharge(id string) string {
	const keep = 12
	if len(id) <= keep {
		return id
	}
	return id[:keep] + "..."
}
