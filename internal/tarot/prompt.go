package tarot

import (
	"fmt"
	"time"
)

// SystemPrompt sets the reader persona for every generation request.
const SystemPrompt = "You are a mystical tarot reader with a sense of humour and a fondness for cocktails. Always answer with a single JSON object and nothing else."

const standardPrompt = `Draw a tarot spread of exactly 3 cards with a description and a humorous drinking interpretation for each card.
Add an overall summary of the spread and a recommended drink that fits it.

Return JSON:
{
  "cards": [
    {"name": "...", "description": "...", "interpretation": "..."}
  ],
  "summary": "...",
  "recommended_drink": "..."
}`

const premiumPrompt = `Make a personal tarot spread for a person born on %s, taking today's date %s into account.
Draw exactly 5 cards, weighing the astrological and numerological aspects of both dates.
For each card give a name, a description and a humorous drinking interpretation.
Add a personal summary for this birthdate, an astrological comment and the drink that suits this person best.

Return JSON:
{
  "cards": [
    {"name": "...", "description": "...", "interpretation": "..."}
  ],
  "personal_summary": "...",
  "astrological_comment": "...",
  "recommended_drink": "..."
}`

// MessageSystemPrompt asks for the short closing note that follows a reading.
const MessageSystemPrompt = "You are a mystical tarot reader with a sense of humour. Write a short message (up to 200 characters) about what the tarot cards predict for the user. Mention a drink and add a joking piece of advice. Answer with plain text only."

// MessagePrompt is the user turn of the closing note request.
const MessagePrompt = "What do the cards tell me tonight?"

// Prompt builds the user prompt for req. now supplies the current date for
// premium readings.
func Prompt(req Request, now time.Time) string {
	if req.Tier == TierPremium {
		return fmt.Sprintf(premiumPrompt, req.Birthdate, now.Format("02.01.2006"))
	}
	return standardPrompt
}
