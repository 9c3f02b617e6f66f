package flow

import (
	"github.com/m3rciful/tarotbot/internal/tarot"
)

// Phase is the named state of a user's conversation.
type Phase int

const (
	// Idle is the initial and terminal phase.
	Idle Phase = iota
	// OfferShown means the tier offer is on screen.
	OfferShown
	// AwaitingPayment means an invoice for Session.Intent is open.
	AwaitingPayment
	// AwaitingBirthdate means a valid birthdate is expected as free text.
	AwaitingBirthdate
	// Generating means the reading is being drawn.
	Generating
	// Delivering means the reading is being sent.
	Delivering
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case OfferShown:
		return "offer_shown"
	case AwaitingPayment:
		return "awaiting_payment"
	case AwaitingBirthdate:
		return "awaiting_birthdate"
	case Generating:
		return "generating"
	case Delivering:
		return "delivering"
	}
	return "unknown"
}

// Busy reports whether a reading is in flight.
func (p Phase) Busy() bool {
	return p == Generating || p == Delivering
}

// Session is the per-user conversation state.
//
// A premium purchase waits for payment and birthdate at the same time: it is
// AwaitingBirthdate with an open Intent until either arrives. Once the date
// is in, the session drops to AwaitingPayment with Birthdate set.
type Session struct {
	Phase Phase
	Tier  tarot.Tier
	// Intent is the tier of the open invoice, empty when none is open.
	Intent tarot.Tier
	Paid   bool
	// Birthdate is pending input, consumed when generation starts.
	Birthdate string
	// Epoch increases on every reset and generation start; an in-flight
	// reading only writes back while the epoch it started with is current.
	Epoch uint64
}

// reset returns s cleared to Idle, keeping only the epoch.
func (s Session) reset() Session {
	return Session{Phase: Idle, Epoch: s.Epoch + 1}
}

// startGenerating consumes the pending birthdate and moves s to Generating.
func (s *Session) startGenerating() (tarot.Request, uint64) {
	req := tarot.Request{Tier: s.Tier, Birthdate: s.Birthdate}
	*s = Session{Phase: Generating, Tier: s.Tier, Paid: s.Paid, Epoch: s.Epoch + 1}
	return req, s.Epoch
}

// Allowlist holds the user ids that read for free. It is immutable.
type Allowlist struct {
	ids map[int64]struct{}
}

// NewAllowlist builds an allow-list from ids.
func NewAllowlist(ids []int64) Allowlist {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Allowlist{ids: m}
}

// Contains reports whether userID skips payment.
func (a Allowlist) Contains(userID int64) bool {
	_, ok := a.ids[userID]
	return ok
}

// Len returns the number of listed users.
func (a Allowlist) Len() int {
	return len(a.ids)
}
