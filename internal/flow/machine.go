// Package flow implements the conversation and payment state machine that
// takes a user from the offer through payment and input collection to a
// delivered reading.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/m3rciful/tarotbot/core/logger"
	"github.com/m3rciful/tarotbot/core/telegram/state"
	"github.com/m3rciful/tarotbot/internal/billing"
	"github.com/m3rciful/tarotbot/internal/outbound"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

const component = "flow"

// Generator draws a reading and never fails.
type Generator interface {
	Generate(ctx context.Context, req tarot.Request) tarot.Reading
}

// Deliverer sends a reading to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, r tarot.Reading) error
}

// Peer identifies who an event came from and where to answer.
type Peer struct {
	UserID int64
	ChatID int64
}

// Payment is a successful payment notice.
type Payment struct {
	ChargeID string
	Payload  string
	Currency string
	Amount   int
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Store     *state.Store[Session]
	Channel   outbound.Channel
	Billing   billing.Gateway
	Ledger    billing.Ledger
	Generator Generator
	Delivery  Deliverer
	Catalog   billing.Catalog
	Allow     Allowlist
}

// Machine routes user events through the session state.
type Machine struct {
	store   *state.Store[Session]
	ch      outbound.Channel
	billing billing.Gateway
	ledger  billing.Ledger
	gen     Generator
	deliver Deliverer
	catalog billing.Catalog
	allow   Allowlist
}

// NewMachine wires a Machine. A nil Store or Ledger gets an in-memory one.
func NewMachine(d Deps) *Machine {
	if d.Store == nil {
		d.Store = state.NewStore[Session](nil)
	}
	if d.Ledger == nil {
		d.Ledger = billing.NewMemoryLedger()
	}
	return &Machine{
		store:   d.Store,
		ch:      d.Channel,
		billing: d.Billing,
		ledger:  d.Ledger,
		gen:     d.Generator,
		deliver: d.Delivery,
		catalog: d.Catalog,
		allow:   d.Allow,
	}
}

// Session returns a snapshot of the user's session.
func (m *Machine) Session(userID int64) Session {
	return m.store.Get(userID)
}

// Free reports whether userID is on the allow-list.
func (m *Machine) Free(userID int64) bool {
	return m.allow.Contains(userID)
}

// Start resets the session and shows the welcome screen.
func (m *Machine) Start(ctx context.Context, p Peer) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	defer tx.Unlock()
	cur := tx.Session()
	next := cur.reset()
	tx.Save(next)
	m.logTransition(ctx, "start", cur, next)
	return m.say(ctx, p.ChatID, textWelcome, [][]outbound.Button{{btnBegin}})
}

// Begin handles the begin button. Allow-listed users go straight to a
// standard reading; everyone else sees the offer.
func (m *Machine) Begin(ctx context.Context, p Peer) error {
	if !m.allow.Contains(p.UserID) {
		return m.Offer(ctx, p)
	}
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	cur := tx.Session()
	if cur.Phase != Idle && cur.Phase != OfferShown {
		tx.Unlock()
		return m.refuse(ctx, p, cur)
	}
	next := cur
	next.Tier = tarot.TierStandard
	next.Paid = true
	req, epoch := next.startGenerating()
	tx.Save(next)
	tx.Unlock()
	m.logTransition(ctx, "begin", cur, next)

	if err := m.say(ctx, p.ChatID, textFreeReading, nil); err != nil {
		logger.Warn(ctx, component, "notify", slog.String("err", err.Error()))
	}
	m.run(ctx, p, req, epoch)
	return nil
}

// Offer shows the tier choice.
func (m *Machine) Offer(ctx context.Context, p Peer) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	defer tx.Unlock()
	cur := tx.Session()
	if cur.Phase != Idle && cur.Phase != OfferShown {
		return m.refuse(ctx, p, cur)
	}
	next := Session{Phase: OfferShown, Epoch: cur.Epoch}
	tx.Save(next)
	m.logTransition(ctx, "offer", cur, next)
	return m.say(ctx, p.ChatID, offerText(m.catalog), offerButtons(m.catalog))
}

// PayStandard handles the standard tier button.
func (m *Machine) PayStandard(ctx context.Context, p Peer) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	cur := tx.Session()
	retry := cur.Phase == AwaitingPayment && cur.Intent == tarot.TierStandard
	if cur.Phase != OfferShown && !retry {
		tx.Unlock()
		return m.refuse(ctx, p, cur)
	}

	if m.allow.Contains(p.UserID) {
		next := Session{Phase: cur.Phase, Tier: tarot.TierStandard, Paid: true, Epoch: cur.Epoch}
		req, epoch := next.startGenerating()
		tx.Save(next)
		tx.Unlock()
		m.logTransition(ctx, "pay_standard", cur, next)
		if err := m.say(ctx, p.ChatID, textFreeReading, nil); err != nil {
			logger.Warn(ctx, component, "notify", slog.String("err", err.Error()))
		}
		m.run(ctx, p, req, epoch)
		return nil
	}
	defer tx.Unlock()

	next := Session{Phase: AwaitingPayment, Tier: tarot.TierStandard, Intent: tarot.TierStandard, Epoch: cur.Epoch}
	tx.Save(next)
	m.logTransition(ctx, "pay_standard", cur, next)
	return m.invoice(ctx, p, tarot.TierStandard, KeyPayStandard)
}

// PayPremium handles the premium tier button. The invoice and the birthdate
// prompt go out together; either may be answered first. An open standard
// invoice that is still unpaid is replaced.
func (m *Machine) PayPremium(ctx context.Context, p Peer) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	defer tx.Unlock()
	cur := tx.Session()
	retry := cur.Intent == tarot.TierPremium && !cur.Paid &&
		(cur.Phase == AwaitingBirthdate || cur.Phase == AwaitingPayment)
	upgrade := cur.Phase == AwaitingPayment && cur.Intent == tarot.TierStandard && !cur.Paid
	if cur.Phase != OfferShown && !retry && !upgrade {
		return m.refuse(ctx, p, cur)
	}

	if m.allow.Contains(p.UserID) {
		next := Session{Phase: AwaitingBirthdate, Tier: tarot.TierPremium, Paid: true, Epoch: cur.Epoch}
		tx.Save(next)
		m.logTransition(ctx, "pay_premium", cur, next)
		return m.say(ctx, p.ChatID, textFreeReading+"\n\n"+textBirthdatePrompt, [][]outbound.Button{{btnCancel}})
	}

	next := cur
	if !retry {
		next = Session{Phase: AwaitingBirthdate, Tier: tarot.TierPremium, Intent: tarot.TierPremium, Epoch: cur.Epoch}
	}
	tx.Save(next)
	m.logTransition(ctx, "pay_premium", cur, next)
	if err := m.invoice(ctx, p, tarot.TierPremium, KeyPayPremium); err != nil {
		return err
	}
	if next.Phase == AwaitingBirthdate {
		return m.say(ctx, p.ChatID, textBirthdatePrompt, [][]outbound.Button{{btnCancel}})
	}
	return nil
}

// invoice requests payment for tier. A failed request leaves the session as
// it is and offers a retry button.
func (m *Machine) invoice(ctx context.Context, p Peer, tier tarot.Tier, retryKey string) error {
	err := m.billing.RequestPayment(ctx, p.ChatID, m.catalog.Invoice(tier))
	if err == nil {
		return nil
	}
	logger.Warn(ctx, component, "invoice",
		slog.String("status", "fail"),
		slog.String("tier", string(tier)),
		slog.String("err", err.Error()),
	)
	return m.say(ctx, p.ChatID, textInvoiceFailed, retryButtons(retryKey))
}

// Cancel resets the session from any phase. An in-flight reading finishes
// but no longer writes back.
func (m *Machine) Cancel(ctx context.Context, p Peer) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	defer tx.Unlock()
	cur := tx.Session()
	next := cur.reset()
	tx.Save(next)
	m.logTransition(ctx, "cancel", cur, next)
	return m.say(ctx, p.ChatID, textCancelled, nil)
}

// InProgress reports whether free text from userID is expected input.
func (m *Machine) InProgress(userID int64) bool {
	return m.store.Get(userID).Phase == AwaitingBirthdate
}

// Text handles free-text input.
func (m *Machine) Text(ctx context.Context, p Peer, text string) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	cur := tx.Session()
	switch cur.Phase {
	case AwaitingBirthdate:
	case AwaitingPayment:
		tx.Unlock()
		return m.say(ctx, p.ChatID, textAwaitPayment, [][]outbound.Button{{btnCancel}})
	case Generating, Delivering:
		tx.Unlock()
		return m.say(ctx, p.ChatID, textBusy, nil)
	default:
		tx.Unlock()
		return m.say(ctx, p.ChatID, textHint, nil)
	}

	date := strings.TrimSpace(text)
	if !tarot.ValidBirthdate(date) {
		tx.Unlock()
		logger.Debug(ctx, component, "birthdate", slog.String("status", "skip"), slog.String("reason", "bad_format"))
		return m.say(ctx, p.ChatID, textBirthdateRetry, [][]outbound.Button{{btnCancel}})
	}

	next := cur
	next.Birthdate = date
	if next.Paid || !next.Tier.NeedsBirthdate() {
		req, epoch := next.startGenerating()
		tx.Save(next)
		tx.Unlock()
		m.logTransition(ctx, "birthdate", cur, next)
		m.run(ctx, p, req, epoch)
		return nil
	}
	next.Phase = AwaitingPayment
	tx.Save(next)
	tx.Unlock()
	m.logTransition(ctx, "birthdate", cur, next)
	return m.say(ctx, p.ChatID, textBirthdateSaved, nil)
}

// PaymentSucceeded handles a successful payment notice. Every charge id is
// fulfilled at most once; notices that match no open intent are logged and
// otherwise ignored.
func (m *Machine) PaymentSucceeded(ctx context.Context, p Peer, pay Payment) error {
	tx, err := m.store.Lock(ctx, p.UserID)
	if err != nil {
		return err
	}
	attrs := []slog.Attr{
		slog.String("charge_id", pay.ChargeID),
		slog.String("payload", pay.Payload),
		slog.Int("amount", pay.Amount),
		slog.String("currency", pay.Currency),
	}

	fresh, err := m.ledger.Record(ctx, billing.Receipt{
		ChargeID: pay.ChargeID,
		UserID:   p.UserID,
		Payload:  pay.Payload,
		Amount:   pay.Amount,
		Currency: pay.Currency,
	})
	if err != nil {
		tx.Unlock()
		logger.Error(ctx, component, "payment", append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return fmt.Errorf("record payment: %w", err)
	}
	if !fresh {
		tx.Unlock()
		logger.Warn(ctx, component, "payment", append(attrs, slog.String("status", "duplicate"))...)
		return nil
	}

	cur := tx.Session()
	tier, ok := tarot.ParseTier(pay.Payload)
	matched := ok && !cur.Paid && cur.Intent == tier && pay.Currency == billing.Currency &&
		(cur.Phase == AwaitingPayment || cur.Phase == AwaitingBirthdate)
	if !matched {
		tx.Unlock()
		logger.Warn(ctx, component, "payment", append(attrs,
			slog.String("status", "skip"),
			slog.String("reason", "no_matching_intent"),
			slog.String("from", cur.Phase.String()),
			slog.String("tier", string(cur.Intent)),
		)...)
		return nil
	}

	next := cur
	next.Paid = true
	next.Intent = ""
	logger.Info(ctx, component, "payment", append(attrs, slog.String("status", "ok"), slog.String("tier", string(tier)))...)
	if err := m.say(ctx, p.ChatID, paymentText(pay), nil); err != nil {
		logger.Warn(ctx, component, "notify", slog.String("err", err.Error()))
	}

	if tier.NeedsBirthdate() && next.Birthdate == "" {
		next.Phase = AwaitingBirthdate
		tx.Save(next)
		tx.Unlock()
		m.logTransition(ctx, "payment", cur, next)
		return m.say(ctx, p.ChatID, textBirthdatePrompt, [][]outbound.Button{{btnCancel}})
	}
	req, epoch := next.startGenerating()
	tx.Save(next)
	tx.Unlock()
	m.logTransition(ctx, "payment", cur, next)
	m.run(ctx, p, req, epoch)
	return nil
}

// run draws and delivers a reading. It is called without the user lock so a
// cancel can land meanwhile; each write-back checks the epoch first.
func (m *Machine) run(ctx context.Context, p Peer, req tarot.Request, epoch uint64) {
	ctx = logger.WithReadingID(ctx, ulid.Make().String())
	reading := m.gen.Generate(ctx, req)
	if len(reading.Cards) != req.Tier.CardCount() {
		reading = tarot.Fallback(req.Tier)
	}

	if !m.advance(ctx, p.UserID, epoch, Generating, Delivering) {
		return
	}
	if err := m.deliver.Deliver(ctx, p.ChatID, reading); err != nil {
		logger.Warn(ctx, component, "deliver", slog.String("status", "fail"), slog.String("err", err.Error()))
	}
	m.advance(ctx, p.UserID, epoch, Delivering, Idle)
}

// advance moves the session from one phase to the next if epoch still owns it.
func (m *Machine) advance(ctx context.Context, userID int64, epoch uint64, from, to Phase) bool {
	// The write-back must happen even if the update context is gone.
	tx, err := m.store.Lock(context.WithoutCancel(ctx), userID)
	if err != nil {
		return false
	}
	defer tx.Unlock()
	cur := tx.Session()
	if cur.Epoch != epoch || cur.Phase != from {
		logger.Info(ctx, component, "transition",
			slog.String("status", "stale"),
			slog.String("outcome", "discarded"),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Uint64("epoch", epoch),
		)
		return false
	}
	next := cur
	if to == Idle {
		next = Session{Phase: Idle, Epoch: cur.Epoch}
	} else {
		next.Phase = to
	}
	tx.Save(next)
	m.logTransition(ctx, to.String(), cur, next)
	return true
}

func (m *Machine) refuse(ctx context.Context, p Peer, cur Session) error {
	logger.Debug(ctx, component, "transition",
		slog.String("status", "skip"),
		slog.String("from", cur.Phase.String()),
	)
	if cur.Phase.Busy() {
		return m.say(ctx, p.ChatID, textBusy, nil)
	}
	return m.say(ctx, p.ChatID, textInProgress, [][]outbound.Button{{btnCancel}})
}

func (m *Machine) say(ctx context.Context, chatID int64, text string, buttons [][]outbound.Button) error {
	if m.ch == nil {
		return errors.New("flow: no outbound channel")
	}
	_, err := m.ch.Send(ctx, chatID, outbound.Message{Text: text, Buttons: buttons})
	return err
}

func (m *Machine) logTransition(ctx context.Context, event string, from, to Session) {
	logger.Info(ctx, component, "transition",
		slog.String("status", "ok"),
		slog.String("trigger", event),
		slog.String("from", from.Phase.String()),
		slog.String("to", to.Phase.String()),
		slog.String("tier", string(to.Tier)),
		slog.Bool("paid", to.Paid),
		slog.Uint64("epoch", to.Epoch),
	)
}

// Stats is a snapshot of machine activity.
type Stats struct {
	Active   int
	Busy     int
	Receipts int
	Free     int
}

// Stats counts non-idle sessions and recorded receipts.
func (m *Machine) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Active: m.store.Count(func(s Session) bool { return s.Phase != Idle }),
		Busy:   m.store.Count(func(s Session) bool { return s.Phase.Busy() }),
		Free:   m.allow.Len(),
	}
	n, err := m.ledger.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Receipts = n
	return st, nil
}
