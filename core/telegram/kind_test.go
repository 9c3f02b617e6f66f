package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		upd  tele.Update
		want Kind
	}{
		{tele.Update{PreCheckoutQuery: &tele.PreCheckoutQuery{ID: "q"}}, KindCheckout},
		{tele.Update{Message: &tele.Message{Payment: &tele.Payment{Total: 100}}}, KindPayment},
		{tele.Update{Callback: &tele.Callback{Data: "\fbegin"}}, KindCallback},
		{tele.Update{Message: &tele.Message{Text: "/start"}}, KindCommand},
		{tele.Update{Message: &tele.Message{Text: "1990-05-17"}}, KindText},
		{tele.Update{Message: &tele.Message{Document: &tele.Document{}}}, KindDocument},
		{tele.Update{}, KindOther},
	}
	for _, c := range cases {
		if got := KindOf(c.upd); got != c.want {
			t.Errorf("KindOf = %q, want %q", got, c.want)
		}
	}
	if !KindCheckout.Payment() || !KindPayment.Payment() || KindText.Payment() {
		t.Fatal("Payment() misclassifies")
	}
}

func TestCallbackKey(t *testing.T) {
	cases := []struct {
		cb      *tele.Callback
		key     string
		payload string
	}{
		{&tele.Callback{Data: "\fpay_premium|"}, "pay_premium", ""},
		{&tele.Callback{Data: "\fbegin"}, "begin", ""},
		{&tele.Callback{Data: "\fcancel|reading|1"}, "cancel", "reading|1"},
		{&tele.Callback{Unique: "begin", Data: "x"}, "begin", "x"},
		{&tele.Callback{Data: "plain"}, "plain", ""},
		{nil, "", ""},
	}
	for _, tc := range cases {
		key, payload := CallbackKey(tc.cb)
		if key != tc.key || payload != tc.payload {
			t.Errorf("CallbackKey(%+v) = %q, %q; want %q, %q", tc.cb, key, payload, tc.key, tc.payload)
		}
	}
}
