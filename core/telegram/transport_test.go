package telegram

import (
	"net/http"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/tarotbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestNewPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://tarot.example.com", SecretToken: "s3cret"}

	wh, ok := newPoller(cfg).(*tele.Webhook)
	if !ok {
		t.Fatal("expected webhook poller")
	}
	if wh.Listen != "0.0.0.0:8443" || wh.SecretToken != "s3cret" || wh.Endpoint.PublicURL != "https://tarot.example.com" {
		t.Fatalf("unexpected webhook %+v", wh)
	}
}

func TestNewPollerLongPoll(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	if !ok || lp.Timeout != defaultLongPoll {
		t.Fatalf("poller = %#v", newPoller(cfg))
	}
	cfg.Telegram.LongPollTimeoutSeconds = 30
	if lp := newPoller(cfg).(*tele.LongPoller); lp.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
}

func TestHTTPClientOutlastsLongPoll(t *testing.T) {
	c := newHTTPClient(25 * time.Second)
	if c.Timeout <= 25*time.Second {
		t.Fatalf("client timeout %v shorter than poll", c.Timeout)
	}
	if tr := c.Transport.(*http.Transport); tr.ResponseHeaderTimeout <= 25*time.Second {
		t.Fatalf("header timeout %v shorter than poll", tr.ResponseHeaderTimeout)
	}
}
