package tarot

var fallbackDeck = []Card{
	{
		Name:           "The Fool",
		Description:    "New beginnings, adventure and a leap into the unknown.",
		Interpretation: "Time for spontaneous plans and a round nobody ordered.",
	},
	{
		Name:           "The Magician",
		Description:    "Willpower and the skill to bend energy to your intent.",
		Interpretation: "Your talents grow stronger with every glass, up to a point.",
	},
	{
		Name:           "The High Priestess",
		Description:    "Intuition, secrets and quiet knowledge.",
		Interpretation: "Trust your inner voice, especially after the third shot.",
	},
	{
		Name:           "The Star",
		Description:    "Hope, renewal and a calm sense of direction.",
		Interpretation: "A clear night, a clear head and a long drink under the sky.",
	},
	{
		Name:           "Temperance",
		Description:    "Balance, patience and the art of mixing things well.",
		Interpretation: "One part courage, one part restraint, plenty of ice.",
	},
}

// FallbackMessage replaces the closing note when it cannot be generated.
const FallbackMessage = "The cards say: drink something strong and put off big decisions for a while. Luck smiles at you after the third glass!"

// Fallback returns the statically defined reading for tier.
// The result always satisfies Validate.
func Fallback(tier Tier) Reading {
	if !tier.Valid() {
		tier = TierStandard
	}
	cards := make([]Card, tier.CardCount())
	copy(cards, fallbackDeck)

	r := Reading{
		Tier:           tier,
		Cards:          cards,
		Summary:        "Your cards point to an interesting stretch of life. Trust your intuition and stay open to new chances.",
		Recommendation: "Whisky and cola: a classic that never lets you down.",
		Message:        FallbackMessage,
		Fallback:       true,
	}
	if tier == TierPremium {
		r.Summary = "You are entering a season where instinct beats planning. Say yes to the invitations that make you smile."
		r.Commentary = "The planets line up in favour of slow evenings and honest conversations."
		r.Recommendation = "A Negroni: bitter, sweet and perfectly balanced, just like your week ahead."
	}
	return r
}
