package delivery

import (
	"fmt"
	"strings"

	"github.com/m3rciful/tarotbot/core/telegram/format"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

// VerdictText is the final status before the summary block.
const VerdictText = "🔮 The cards are whispering... preparing your verdict."

// IntroText opens a delivery.
func IntroText(tier tarot.Tier) string {
	if tier == tarot.TierPremium {
		return "✨ Your personal reading begins. Pour yourself something nice."
	}
	return "✨ Your reading begins. Grab a glass."
}

// ShufflingText is the status shown while card n of total is drawn.
func ShufflingText(n, total int) string {
	return fmt.Sprintf("🃏 Shuffling the deck... drawing card %d of %d", n, total)
}

// CardText renders one card as MarkdownV2.
func CardText(n int, c tarot.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎴 %s\n\n", format.Bold(fmt.Sprintf("Card %d: %s", n, c.Name)))
	fmt.Fprintf(&b, "📜 %s\n\n", format.MDV2(c.Description))
	fmt.Fprintf(&b, "🍸 %s", format.Italic(c.Interpretation))
	return b.String()
}

// SummaryText renders the closing block for r's tier as MarkdownV2.
func SummaryText(r tarot.Reading) string {
	var b strings.Builder
	if r.Tier == tarot.TierPremium {
		fmt.Fprintf(&b, "🌟 %s\n%s\n\n", format.Bold("Your personal summary:"), format.MDV2(r.Summary))
		fmt.Fprintf(&b, "🪐 %s\n%s\n\n", format.Bold("Astrological comment:"), format.MDV2(r.Commentary))
	} else {
		fmt.Fprintf(&b, "🌟 %s\n%s\n\n", format.Bold("Summary:"), format.MDV2(r.Summary))
	}
	fmt.Fprintf(&b, "🥃 %s %s", format.Bold("Your drink:"), format.MDV2(r.Recommendation))
	return b.String()
}

// MessageText renders the reader's closing note as MarkdownV2.
func MessageText(msg string) string {
	return "💌 " + format.Bold("A word from your reader:") + "\n\n" + format.MDV2(msg)
}
