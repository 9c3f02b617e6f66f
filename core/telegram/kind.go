package telegram

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Kind classifies an incoming update by the route that serves it.
type Kind string

const (
	KindCommand  Kind = "command"
	KindCallback Kind = "callback"
	KindText     Kind = "message"
	KindDocument Kind = "document"
	// KindCheckout is a pre-checkout query; Telegram cancels the charge if
	// it is not answered within seconds.
	KindCheckout Kind = "checkout"
	// KindPayment is a successful payment notice.
	KindPayment Kind = "payment"
	KindOther   Kind = "other"
)

// Payment reports whether k belongs to the payment handshake.
func (k Kind) Payment() bool {
	return k == KindCheckout || k == KindPayment
}

// KindOf classifies upd.
func KindOf(upd tele.Update) Kind {
	switch {
	case upd.PreCheckoutQuery != nil:
		return KindCheckout
	case upd.Callback != nil:
		return KindCallback
	case upd.Message == nil:
		return KindOther
	case upd.Message.Payment != nil:
		return KindPayment
	case upd.Message.Document != nil:
		return KindDocument
	case strings.HasPrefix(upd.Message.Text, "/"):
		return KindCommand
	case upd.Message.Text != "":
		return KindText
	}
	return KindOther
}

// CallbackKey splits telebot's "\f<unique>|<payload>" button data. Data
// without the form-feed prefix is a bare key.
func CallbackKey(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}
