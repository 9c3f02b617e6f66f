// Package tarot holds the product model: reading tiers, cards and the
// validated reading bundle delivered to the user.
package tarot

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is a product variant.
type Tier string

const (
	// TierStandard is the three-card reading.
	TierStandard Tier = "standard"
	// TierPremium is the five-card personal reading that needs a birthdate.
	TierPremium Tier = "premium"
)

// ParseTier maps an invoice payload back to a tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierStandard:
		return TierStandard, true
	case TierPremium:
		return TierPremium, true
	}
	return "", false
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierPremium
}

// CardCount is the exact number of cards a reading of this tier carries.
func (t Tier) CardCount() int {
	if t == TierPremium {
		return 5
	}
	return 3
}

// NeedsBirthdate reports whether the tier collects a birthdate before generation.
func (t Tier) NeedsBirthdate() bool {
	return t == TierPremium
}

// Payload is the invoice payload used to reconcile a payment with the tier.
func (t Tier) Payload() string {
	return string(t)
}

var birthdateRe = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

// ValidBirthdate reports whether s has the DD.MM.YYYY shape.
// Only the shape is checked, not calendar validity.
func ValidBirthdate(s string) bool {
	return birthdateRe.MatchString(s)
}

// Request describes what to generate.
type Request struct {
	Tier      Tier
	Birthdate string
}

// Card is one drawn card.
type Card struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Interpretation string `json:"interpretation"`
}

// Reading is a validated reading bundle.
// Standard readings use Summary and Recommendation; premium readings use
// Summary as the personal summary and also carry Commentary.
type Reading struct {
	Tier           Tier
	Cards          []Card
	Summary        string
	Commentary     string
	Recommendation string
	// Message is the reader's closing note, sent after the summary. It is
	// optional and not validated.
	Message string
	// Fallback marks a statically defined reading used when generation failed.
	Fallback bool
}

// Validate checks the card-count invariant and that every field the tier
// delivers is filled in.
func (r Reading) Validate() error {
	if !r.Tier.Valid() {
		return fmt.Errorf("unknown tier %q", r.Tier)
	}
	if len(r.Cards) != r.Tier.CardCount() {
		return fmt.Errorf("tier %s needs %d cards, got %d", r.Tier, r.Tier.CardCount(), len(r.Cards))
	}
	for i, c := range r.Cards {
		if blank(c.Name) || blank(c.Description) || blank(c.Interpretation) {
			return fmt.Errorf("card %d is incomplete", i+1)
		}
	}
	if blank(r.Summary) || blank(r.Recommendation) {
		return fmt.Errorf("summary and recommendation are required")
	}
	if r.Tier == TierPremium && blank(r.Commentary) {
		return fmt.Errorf("premium reading needs a commentary")
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
